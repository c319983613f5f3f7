package avatar

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

var (
	ErrNoFile   = utilities.NewHTTPError(http.StatusBadRequest, `No file uploaded. Expected field "avatar"`)
	ErrTooLarge = utilities.NewHTTPError(http.StatusRequestEntityTooLarge, "File too large. Maximum size is 5MB.")
)

type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// readFile extracts the "avatar" part of a multipart request.
func readFile(w http.ResponseWriter, r *http.Request) (File, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize+1<<20)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return File{}, ErrTooLarge
		}
		return File{}, ErrNoFile
	}
	f, hdr, err := r.FormFile("avatar")
	if err != nil {
		return File{}, ErrNoFile
	}
	defer f.Close()
	if hdr.Size > MaxUploadSize {
		return File{}, ErrTooLarge
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return File{}, err
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(data)
	}
	return File{Name: hdr.Filename, ContentType: ct, Data: data}, nil
}

func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	file, err := readFile(w, r)
	if err != nil {
		h.logger.Debugw("avatar upload rejected", "user_id", cur.ID, "err", err)
		utilities.WriteError(w, err)
		return
	}
	u, url, err := h.svc.Upload(r.Context(), cur.ID, file)
	if err != nil {
		h.logger.Warnw("avatar upload failed", "user_id", cur.ID, "err", err)
		user.WriteServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status": "success",
		"data":   map[string]any{"user": u, "avatar_url": url},
	})
}

func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	u, deleted, err := h.svc.Remove(r.Context(), cur.ID)
	if err != nil {
		user.WriteServiceError(w, err)
		return
	}
	data := map[string]any{"avatar_url": nil, "deleted": deleted}
	if deleted {
		data["user"] = u
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": data})
}

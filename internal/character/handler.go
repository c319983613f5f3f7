package character

import (
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// Handler contains dependencies for handling character endpoints.
type Handler struct {
	svc    *Service
	logger *zap.SugaredLogger
}

// NewHandler constructs a new Handler.
func NewHandler(svc *Service, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// List serves GET /api/characters?limit=&offset=.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	chars, err := h.svc.List(r.Context(), limit, offset)
	if err != nil {
		h.logger.Warnw("list characters failed", "err", err)
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"results": len(chars),
		"data":    map[string]any{"characters": chars},
	})
}

package subscriber

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/repo"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// Handler exposes device registration for push notifications.
type Handler struct {
	repo   *repo.SubscriberRepo
	logger *zap.SugaredLogger
}

func NewHandler(r *repo.SubscriberRepo, logger *zap.SugaredLogger) *Handler {
	return &Handler{repo: r, logger: logger}
}

type RegisterRequest struct {
	Token    string          `json:"token"`
	Platform string          `json:"platform"`
	Metadata json.RawMessage `json:"metadata"`
}

// Register serves POST /api/devices.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	var req RegisterRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	req.Token = strings.TrimSpace(req.Token)
	if req.Token == "" {
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "token is required"))
		return
	}
	if req.Platform == "" {
		req.Platform = "fcm"
	}
	if !entity.Platforms[req.Platform] {
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "unsupported platform"))
		return
	}
	sub := &entity.Subscriber{Token: req.Token, UserID: u.ID, Platform: req.Platform, Metadata: req.Metadata}
	if err := h.repo.Upsert(r.Context(), sub); err != nil {
		h.logger.Warnw("register device failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusCreated, map[string]any{"status": "success", "data": map[string]any{"device": sub}})
}

// Delete serves DELETE /api/devices/{token}.
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	u, ok := auth.UserFromContext(r.Context())
	if !ok {
		utilities.WriteError(w, auth.ErrNotLoggedIn)
		return
	}
	deleted, err := h.repo.Delete(r.Context(), u.ID, r.PathValue("token"))
	if err != nil {
		h.logger.Warnw("delete device failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, err)
		return
	}
	if !deleted {
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusNotFound, "device not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

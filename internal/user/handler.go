package user

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/alert"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// CookieConfig controls the session cookie written on signup and login.
type CookieConfig struct {
	Days   int
	Secure bool
}

// Handler exposes HTTP endpoints for account operations.
type Handler struct {
	svc    *UserService
	tokens *auth.Tokens
	cookie CookieConfig
	alerts *alert.Notifier
	logger *zap.SugaredLogger
}

func NewHandler(svc *UserService, tokens *auth.Tokens, cookie CookieConfig, alerts *alert.Notifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, tokens: tokens, cookie: cookie, alerts: alerts, logger: logger}
}

// httpError maps service errors to client-facing errors.
func httpError(err error) error {
	switch {
	case errors.Is(err, ErrMissingFields):
		return utilities.NewHTTPError(http.StatusBadRequest, "Please provide all required fields")
	case errors.Is(err, ErrUserExists):
		return utilities.NewHTTPError(http.StatusBadRequest, "User with this email/username/phone already exists")
	case errors.Is(err, ErrBadCredentials):
		return utilities.NewHTTPError(http.StatusUnauthorized, "Incorrect email/username/phone or password")
	case errors.Is(err, ErrDisabled):
		return utilities.NewHTTPError(http.StatusForbidden, "This account is closed. Please contact support to reopen.")
	case errors.Is(err, ErrUserNotFound):
		return utilities.NewHTTPError(http.StatusNotFound, "User not found")
	case errors.Is(err, ErrPasswordRequired):
		return utilities.NewHTTPError(http.StatusBadRequest, "Password is required to close the account.")
	case errors.Is(err, ErrIncorrectPassword):
		return utilities.NewHTTPError(http.StatusUnauthorized, "Incorrect password")
	case errors.Is(err, ErrWeakPassword):
		return utilities.NewHTTPError(http.StatusBadRequest, "newPassword must be at least 8 characters long")
	case errors.Is(err, ErrInvalidField):
		return utilities.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return err
}

// WriteServiceError renders a UserService error. Exported for sibling handlers.
func WriteServiceError(w http.ResponseWriter, err error) {
	utilities.WriteError(w, httpError(err))
}

func (h *Handler) sendToken(w http.ResponseWriter, status int, u *entity.User) {
	token, err := h.tokens.Sign(u.ID)
	if err != nil {
		h.logger.Warnw("sign token failed", "user_id", u.ID, "err", err)
		utilities.WriteError(w, err)
		return
	}
	auth.SetCookie(w, token, h.cookie.Days, h.cookie.Secure)
	utilities.WriteJSON(w, status, map[string]any{
		"status": "success",
		"token":  token,
		"data":   map[string]any{"user": u},
	})
}

func (h *Handler) Signup(w http.ResponseWriter, r *http.Request) {
	var req SignupInput
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid signup payload", "err", err)
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		h.logger.Warnw("signup failed", "err", err)
		WriteServiceError(w, err)
		return
	}
	h.sendToken(w, http.StatusCreated, u)
}

// LoginRequest login payload.
type LoginRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		h.logger.Debugw("invalid login payload", "err", err)
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.Login(r.Context(), req.Identifier, req.Password)
	if err != nil {
		h.logger.Debugw("login failed", "err", err)
		if errors.Is(err, ErrMissingFields) {
			utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "Please provide identifier and password!"))
			return
		}
		WriteServiceError(w, err)
		return
	}
	h.alerts.Notify(r.Context(), r, alert.KindLogin, u.DisplayName(), u.Email)
	h.sendToken(w, http.StatusOK, u)
}

func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	u, err := h.svc.Get(r.Context(), cur.ID)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"user": u}})
}

func (h *Handler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	body := map[string]any{}
	if err := utilities.DecodeJSON(r, &body); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.UpdateMe(r.Context(), cur.ID, body)
	if err != nil {
		h.logger.Warnw("update profile failed", "user_id", cur.ID, "err", err)
		WriteServiceError(w, err)
		return
	}
	utilities.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "data": map[string]any{"user": u}})
}

func (h *Handler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	var req struct {
		Password string `json:"password"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.Deactivate(r.Context(), cur.ID, req.Password)
	if err != nil {
		WriteServiceError(w, err)
		return
	}
	auth.ClearCookie(w)
	utilities.WriteJSON(w, http.StatusOK, map[string]any{
		"status":  "success",
		"message": "Account has been closed. You can contact support to reopen it.",
		"data":    map[string]any{"user": u},
	})
}

package verification

import (
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/alert"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/auth"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

type Handler struct {
	svc    *Service
	alerts *alert.Notifier
	logger *zap.SugaredLogger
}

func NewHandler(svc *Service, alerts *alert.Notifier, logger *zap.SugaredLogger) *Handler {
	return &Handler{svc: svc, alerts: alerts, logger: logger}
}

func writeErr(w http.ResponseWriter, err error) {
	var he *utilities.HTTPError
	if errors.As(err, &he) {
		utilities.WriteError(w, he)
		return
	}
	user.WriteServiceError(w, err)
}

func success(w http.ResponseWriter, msg string, data any) {
	body := map[string]any{"status": "success", "message": msg}
	if data != nil {
		body["data"] = data
	}
	utilities.WriteJSON(w, http.StatusOK, body)
}

func sentData(res *SendResult) map[string]any {
	return map[string]any{"uuid": res.UUID, "contactNumber": res.ContactNumber, "expiresIn": res.ExpiresIn}
}

func (h *Handler) SendPhone(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	var req struct {
		ContactNumber string `json:"contactNumber"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	res, err := h.svc.SendPhoneVerification(r.Context(), cur.ID, req.ContactNumber)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !res.Ready {
		success(w, "WhatsApp verification unavailable. Please verify via email.", map[string]any{"whatsapp_ready": false})
		return
	}
	success(w, "OTP sent via WhatsApp", sentData(res))
}

func (h *Handler) ConfirmPhone(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	var req ConfirmInput
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, verifiedFor, err := h.svc.VerifyPhoneOtp(r.Context(), cur.ID, req)
	if err != nil {
		h.logger.Debugw("phone verification failed", "user_id", cur.ID, "err", err)
		writeErr(w, err)
		return
	}
	success(w, "Phone verified successfully", map[string]any{"user": u, "verifiedFor": verifiedFor})
}

func (h *Handler) SendEmail(w http.ResponseWriter, r *http.Request) {
	success(w, "Email verification is disabled.", nil)
}

func (h *Handler) ConfirmEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		OTP string `json:"otp"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	if req.OTP == "" {
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "OTP is required"))
		return
	}
	success(w, "Email verification is disabled.", nil)
}

func (h *Handler) SendPasswordOtp(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	var req struct {
		Method        string `json:"method"`
		ContactNumber string `json:"contactNumber"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	res, err := h.svc.SendPasswordResetOtp(r.Context(), cur.ID, req.Method, req.ContactNumber)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !res.Ready {
		success(w, "WhatsApp unavailable. Choose email method.", map[string]any{"whatsapp_ready": false})
		return
	}
	success(w, "Password reset OTP sent via WhatsApp", sentData(res))
}

func (h *Handler) ConfirmPasswordOtp(w http.ResponseWriter, r *http.Request) {
	cur, _ := auth.UserFromContext(r.Context())
	var req ResetInput
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.ConfirmPasswordResetOtp(r.Context(), cur.ID, req)
	if err != nil {
		writeErr(w, err)
		return
	}
	success(w, "Password reset successfully.", map[string]any{"user": u})
}

func (h *Handler) ForgotWhatsappSend(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ContactNumber string `json:"contactNumber"`
	}
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	ready, err := h.svc.SendPublicReset(r.Context(), req.ContactNumber)
	if err != nil {
		writeErr(w, err)
		return
	}
	if !ready {
		success(w, "WhatsApp verification unavailable. Please try email method.", nil)
		return
	}
	success(w, "If an account with that number exists, a reset code has been sent via WhatsApp.", nil)
}

func (h *Handler) ForgotWhatsappConfirm(w http.ResponseWriter, r *http.Request) {
	var req PublicResetInput
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	u, err := h.svc.ConfirmPublicReset(r.Context(), req)
	if err != nil {
		h.logger.Debugw("public password reset failed", "err", err)
		writeErr(w, err)
		return
	}
	h.alerts.Notify(r.Context(), r, alert.KindPasswordReset, u.DisplayName(), u.Email)
	success(w, "Password reset successfully.", map[string]any{"user": u})
}

type emailResetRequest struct {
	Email       string `json:"email"`
	OTP         string `json:"otp"`
	NewPassword string `json:"newPassword"`
}

func (h *Handler) ForgotEmailSend(w http.ResponseWriter, r *http.Request) {
	var req emailResetRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	if req.Email == "" {
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "email is required"))
		return
	}
	success(w, "Password reset via email is currently disabled.", nil)
}

func (h *Handler) ForgotEmailConfirm(w http.ResponseWriter, r *http.Request) {
	var req emailResetRequest
	if err := utilities.DecodeJSON(r, &req); err != nil {
		utilities.WriteError(w, err)
		return
	}
	switch {
	case req.Email == "":
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "email is required"))
	case req.OTP == "":
		utilities.WriteError(w, utilities.NewHTTPError(http.StatusBadRequest, "OTP is required"))
	case len(req.NewPassword) < user.MinPasswordLength:
		user.WriteServiceError(w, user.ErrWeakPassword)
	default:
		utilities.WriteError(w, ErrEmailResetDisabled)
	}
}

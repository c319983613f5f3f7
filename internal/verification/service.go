// Package verification implements WhatsApp OTP flows: phone verification,
// password reset for signed-in users and the public forgot-password flow.
package verification

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

var (
	ErrContactRequired     = utilities.NewHTTPError(http.StatusBadRequest, "contactNumber is required to send OTP")
	ErrPhoneMethodContact  = utilities.NewHTTPError(http.StatusBadRequest, "contactNumber is required for phone method")
	ErrSendFailed          = utilities.NewHTTPError(http.StatusBadGateway, "Failed to send OTP. Please try again later.")
	ErrPersistSession      = utilities.NewHTTPError(http.StatusInternalServerError, "Failed to persist OTP session. Please retry.")
	ErrSessionNotFound     = utilities.NewHTTPError(http.StatusBadRequest, "OTP session expired or not found. Please request a new code.")
	ErrInvalidSession      = utilities.NewHTTPError(http.StatusBadRequest, "Invalid verification session. Please resend OTP.")
	ErrOTPRequired         = utilities.NewHTTPError(http.StatusBadRequest, "otp is required")
	ErrInvalidOTP          = utilities.NewHTTPError(http.StatusBadRequest, "Invalid or expired OTP.")
	ErrInvalidContact      = utilities.NewHTTPError(http.StatusBadRequest, "Invalid contact or code.")
	ErrEmailResetDisabled  = utilities.NewHTTPError(http.StatusBadRequest, "Password reset via email is currently disabled.")
	ErrPublicContactNeeded = utilities.NewHTTPError(http.StatusBadRequest, "contactNumber is required")
)

// Users is the account surface the flows need. *user.UserService implements it.
type Users interface {
	Get(ctx context.Context, id string) (*entity.User, error)
	FindByIdentifier(ctx context.Context, identifier string) (*entity.User, error)
	FindByPhoneSuffix(ctx context.Context, long, short string) (*entity.User, error)
	MarkPhoneVerified(ctx context.Context, id string) (*entity.User, error)
	MarkVerified(ctx context.Context, id string) (*entity.User, error)
	SetPassword(ctx context.Context, id, newPassword string) (*entity.User, error)
}

// session is the OTP session kept in the KV store while a code is pending.
type session struct {
	UUID          string  `json:"uuid"`
	ContactNumber string  `json:"contactNumber"`
	Reason        string  `json:"reason"`
	UserID        *string `json:"userId,omitempty"`
}

func phoneVerifKey(userID string) string   { return "phone_verif:" + userID }
func phonePwdKey(userID string) string     { return "phone_pwd:" + userID }
func publicPhoneKey(contact string) string { return "pwd_whatsapp_public_phone:" + contact }
func legacyPublicKey(userID string) string { return "pwd_whatsapp_public:" + userID }

// SendResult is returned by the send flows. Ready is false when the gateway
// cannot deliver WhatsApp messages; nothing was sent in that case.
type SendResult struct {
	Ready         bool
	UUID          string
	ContactNumber string
	ExpiresIn     int
}

// Service runs the OTP flows.
type Service struct {
	users   Users
	gateway Gateway
	store   kvstore.Store
	logger  *zap.SugaredLogger
}

func NewService(users Users, gateway Gateway, store kvstore.Store, logger *zap.SugaredLogger) *Service {
	return &Service{users: users, gateway: gateway, store: store, logger: logger}
}

// ready is false whenever the status call fails.
func (s *Service) ready(ctx context.Context) bool {
	return utilities.BestEffort(s.logger, "whatsapp status", false, func() (bool, error) {
		return s.gateway.Ready(ctx)
	})
}

func (s *Service) loadSession(ctx context.Context, key string) (*session, bool) {
	var sess session
	found, err := kvstore.GetJSON(ctx, s.store, key, &sess)
	if err != nil {
		s.logger.Warnw("load otp session failed", "key", key, "err", err)
		return nil, false
	}
	if !found {
		return nil, false
	}
	return &sess, true
}

func (s *Service) saveSession(ctx context.Context, key string, sess session, ttlSeconds int) error {
	if err := s.store.Del(ctx, key); err != nil {
		s.logger.Debugw("clear otp session failed", "key", key, "err", err)
	}
	return kvstore.SetJSON(ctx, s.store, key, sess, time.Duration(ttlSeconds)*time.Second)
}

func (s *Service) dropSession(ctx context.Context, key string) {
	if err := s.store.Del(ctx, key); err != nil {
		s.logger.Warnw("delete otp session failed", "key", key, "err", err)
	}
}

func (s *Service) verify(ctx context.Context, uuid, contact, otp string) (*Verified, bool) {
	v, err := s.gateway.Verify(ctx, uuid, contact, otp)
	if err != nil {
		s.logger.Warnw("otp verify failed", "err", err)
		return nil, false
	}
	return v, v.Success
}

// sendTo dispatches an OTP and stores the session under key.
func (s *Service) sendTo(ctx context.Context, key, contact, reason string) (*SendResult, error) {
	sent, err := s.gateway.Send(ctx, contact, reason)
	if err != nil {
		s.logger.Warnw("otp send failed", "reason", reason, "err", err)
		return nil, ErrSendFailed
	}
	sess := session{UUID: sent.UUID, ContactNumber: contact, Reason: reason}
	if err := s.saveSession(ctx, key, sess, sent.ExpiresIn); err != nil {
		s.logger.Warnw("persist otp session failed", "key", key, "err", err)
		return nil, ErrPersistSession
	}
	return &SendResult{Ready: true, UUID: sent.UUID, ContactNumber: contact, ExpiresIn: sent.ExpiresIn}, nil
}

// SendPhoneVerification sends a verification code to contact, or to the
// account's phone number when contact is empty.
func (s *Service) SendPhoneVerification(ctx context.Context, userID, contact string) (*SendResult, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !s.ready(ctx) {
		return &SendResult{Ready: false}, nil
	}
	if contact == "" {
		contact = u.Phone()
	}
	if contact == "" {
		return nil, ErrContactRequired
	}
	return s.sendTo(ctx, phoneVerifKey(userID), contact, ReasonAccount)
}

// ConfirmInput carries the fields of an OTP confirmation. UUID and
// ContactNumber override the values stored with the session.
type ConfirmInput struct {
	OTP           string `json:"otp"`
	UUID          string `json:"uuid"`
	ContactNumber string `json:"contactNumber"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// VerifyPhoneOtp confirms the phone verification code, marks the phone
// channel verified and recomputes the overall verification state.
func (s *Service) VerifyPhoneOtp(ctx context.Context, userID string, in ConfirmInput) (*entity.User, string, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	if in.OTP == "" {
		return nil, "", ErrOTPRequired
	}
	key := phoneVerifKey(userID)
	sess, ok := s.loadSession(ctx, key)
	if !ok {
		return nil, "", ErrSessionNotFound
	}
	uuid := firstNonEmpty(in.UUID, sess.UUID)
	contact := firstNonEmpty(in.ContactNumber, sess.ContactNumber, u.Phone())
	if uuid == "" || contact == "" {
		return nil, "", ErrInvalidSession
	}
	v, ok := s.verify(ctx, uuid, contact, in.OTP)
	if !ok {
		return nil, "", ErrInvalidOTP
	}
	if _, err := s.users.MarkPhoneVerified(ctx, userID); err != nil {
		return nil, "", err
	}
	s.dropSession(ctx, key)

	updated, err := s.ComputeFullVerification(ctx, userID)
	if err != nil {
		return nil, "", err
	}
	return updated, firstNonEmpty(v.VerifiedFor, ReasonAccount), nil
}

// ComputeFullVerification sets is_verified once every required channel is
// verified. Email (or the legacy flag) is always required; the phone is
// required only when the account has one and the gateway is ready.
func (s *Service) ComputeFullVerification(ctx context.Context, userID string) (*entity.User, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	requirePhone := u.Phone() != "" && s.ready(ctx)
	emailOK := u.IsEmailVerified || u.IsVerified
	if emailOK && (!requirePhone || u.IsPhoneVerified) && !u.IsVerified {
		return s.users.MarkVerified(ctx, userID)
	}
	return u, nil
}

// SendPasswordResetOtp starts a password reset for a signed-in user. Only the
// phone method is available.
func (s *Service) SendPasswordResetOtp(ctx context.Context, userID, method, contact string) (*SendResult, error) {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if method != "phone" {
		return nil, ErrEmailResetDisabled
	}
	if !s.ready(ctx) {
		return &SendResult{Ready: false}, nil
	}
	contact = firstNonEmpty(contact, u.Phone())
	if contact == "" {
		return nil, ErrPhoneMethodContact
	}
	return s.sendTo(ctx, phonePwdKey(userID), contact, ReasonPassword)
}

// ResetInput is a password reset confirmation.
type ResetInput struct {
	ConfirmInput
	Method      string `json:"method"`
	NewPassword string `json:"newPassword"`
}

// ConfirmPasswordResetOtp checks the reset code and replaces the password.
func (s *Service) ConfirmPasswordResetOtp(ctx context.Context, userID string, in ResetInput) (*entity.User, error) {
	if len(in.NewPassword) < user.MinPasswordLength {
		return nil, user.ErrWeakPassword
	}
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if in.Method != "phone" {
		return nil, ErrEmailResetDisabled
	}
	key := phonePwdKey(userID)
	sess, ok := s.loadSession(ctx, key)
	if !ok {
		return nil, ErrSessionNotFound
	}
	uuid := firstNonEmpty(in.UUID, sess.UUID)
	contact := firstNonEmpty(in.ContactNumber, sess.ContactNumber, u.Phone())
	if uuid == "" || contact == "" {
		return nil, ErrInvalidSession
	}
	if in.OTP == "" {
		return nil, ErrOTPRequired
	}
	if _, ok := s.verify(ctx, uuid, contact, in.OTP); !ok {
		return nil, ErrInvalidOTP
	}
	updated, err := s.users.SetPassword(ctx, userID, in.NewPassword)
	if err != nil {
		return nil, err
	}
	s.dropSession(ctx, key)
	return updated, nil
}

// resolveByPhone finds the account for contact by trying each phone variant,
// then a suffix match on the last 10 or 7 digits. Lookup errors are logged
// and treated as misses.
func (s *Service) resolveByPhone(ctx context.Context, contact string) *entity.User {
	for _, v := range PhoneVariants(contact) {
		u, err := s.users.FindByIdentifier(ctx, v)
		if err != nil {
			s.logger.Debugw("phone lookup failed", "err", err)
			continue
		}
		if u != nil {
			return u
		}
	}
	last10, last7 := phoneSuffixes(contact)
	if last10 == "" {
		return nil
	}
	u, err := s.users.FindByPhoneSuffix(ctx, last10, last7)
	if err != nil {
		s.logger.Debugw("phone suffix lookup failed", "err", err)
		return nil
	}
	return u
}

// SendPublicReset starts the unauthenticated WhatsApp reset. It reports
// whether the gateway was ready; send failures are only logged so the
// response never reveals whether an account exists.
func (s *Service) SendPublicReset(ctx context.Context, contact string) (bool, error) {
	if contact == "" {
		return false, ErrPublicContactNeeded
	}
	if !s.ready(ctx) {
		return false, nil
	}
	sent, err := s.gateway.Send(ctx, contact, ReasonPassword)
	if err != nil {
		s.logger.Warnw("public reset otp send failed", "err", err)
		return true, nil
	}
	sess := session{UUID: sent.UUID, ContactNumber: contact, Reason: ReasonPassword}
	if u := s.resolveByPhone(ctx, contact); u != nil {
		sess.UserID = &u.ID
	}
	if err := s.saveSession(ctx, publicPhoneKey(contact), sess, sent.ExpiresIn); err != nil {
		s.logger.Warnw("persist public reset session failed", "err", err)
	}
	return true, nil
}

// PublicResetInput is the unauthenticated reset confirmation.
type PublicResetInput struct {
	ContactNumber string `json:"contactNumber"`
	OTP           string `json:"otp"`
	NewPassword   string `json:"newPassword"`
	UUID          string `json:"uuid"`
}

// ConfirmPublicReset verifies the code sent by SendPublicReset and replaces
// the password of the matching account.
func (s *Service) ConfirmPublicReset(ctx context.Context, in PublicResetInput) (*entity.User, error) {
	if in.ContactNumber == "" {
		return nil, ErrPublicContactNeeded
	}
	if in.OTP == "" {
		return nil, ErrOTPRequired
	}
	if len(in.NewPassword) < user.MinPasswordLength {
		return nil, user.ErrWeakPassword
	}

	var sess *session
	phoneKey := ""
	for _, v := range PhoneVariants(in.ContactNumber) {
		if found, ok := s.loadSession(ctx, publicPhoneKey(v)); ok {
			sess, phoneKey = found, publicPhoneKey(v)
			break
		}
	}

	verified := false
	uuid := in.UUID
	if uuid == "" && sess != nil {
		uuid = sess.UUID
	}
	if uuid != "" {
		_, verified = s.verify(ctx, uuid, in.ContactNumber, in.OTP)
	}

	var u *entity.User
	if sess != nil && sess.UserID != nil && *sess.UserID != "" {
		u = utilities.BestEffort[*entity.User](s.logger, "reset session user", nil, func() (*entity.User, error) {
			return s.users.Get(ctx, *sess.UserID)
		})
	}
	if u == nil {
		u = s.resolveByPhone(ctx, in.ContactNumber)
	}

	if !verified && u != nil {
		if legacy, ok := s.loadSession(ctx, legacyPublicKey(u.ID)); ok {
			if id := firstNonEmpty(in.UUID, legacy.UUID); id != "" {
				_, verified = s.verify(ctx, id, in.ContactNumber, in.OTP)
			}
		}
	}

	if !verified {
		return nil, ErrInvalidOTP
	}
	if u == nil {
		return nil, ErrInvalidContact
	}
	updated, err := s.users.SetPassword(ctx, u.ID, in.NewPassword)
	if err != nil {
		return nil, err
	}
	if phoneKey == "" {
		phoneKey = publicPhoneKey(in.ContactNumber)
	}
	s.dropSession(ctx, phoneKey)
	s.dropSession(ctx, legacyPublicKey(u.ID))
	return updated, nil
}

package verification

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
)

type fakeUsers struct {
	mu        sync.Mutex
	byID      map[string]*entity.User
	suffix    *entity.User
	passwords map[string]string
}

func newFakeUsers(users ...*entity.User) *fakeUsers {
	f := &fakeUsers{byID: map[string]*entity.User{}, passwords: map[string]string{}}
	for _, u := range users {
		f.byID[u.ID] = u
	}
	return f
}

func (f *fakeUsers) Get(_ context.Context, id string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) FindByIdentifier(_ context.Context, ident string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byID {
		if u.Email == ident || u.Username == ident || u.Phone() == ident {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeUsers) FindByPhoneSuffix(context.Context, string, string) (*entity.User, error) {
	return f.suffix, nil
}

func (f *fakeUsers) update(id string, fn func(u *entity.User)) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrUserNotFound
	}
	fn(u)
	cp := *u
	return &cp, nil
}

func (f *fakeUsers) MarkPhoneVerified(_ context.Context, id string) (*entity.User, error) {
	return f.update(id, func(u *entity.User) { u.IsPhoneVerified = true })
}

func (f *fakeUsers) MarkVerified(_ context.Context, id string) (*entity.User, error) {
	return f.update(id, func(u *entity.User) { u.IsVerified = true })
}

func (f *fakeUsers) SetPassword(_ context.Context, id, pw string) (*entity.User, error) {
	if len(pw) < user.MinPasswordLength {
		return nil, user.ErrWeakPassword
	}
	return f.update(id, func(*entity.User) { f.passwords[id] = pw })
}

func strptr(s string) *string { return &s }

type fixture struct {
	svc   *Service
	users *fakeUsers
	gw    *stubGateway
	mr    *miniredis.Miniredis
}

func newFixture(t *testing.T, users ...*entity.User) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	store, err := kvstore.NewRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	gw := newStubGateway()
	fu := newFakeUsers(users...)
	svc := NewService(fu, gw.start(t), store, zaptest.NewLogger(t).Sugar())
	return &fixture{svc: svc, users: fu, gw: gw, mr: mr}
}

func (fx *fixture) session(t *testing.T, key string) session {
	t.Helper()
	raw, err := fx.mr.Get(key)
	require.NoError(t, err)
	var s session
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	return s
}

func TestSendPhoneVerificationStoresSession(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+919876543210")})

	res, err := fx.svc.SendPhoneVerification(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.True(t, res.Ready)
	assert.Equal(t, "+919876543210", res.ContactNumber)
	assert.Equal(t, 120, res.ExpiresIn)

	s := fx.session(t, "phone_verif:u1")
	assert.Equal(t, "otp-uuid-1", s.UUID)
	assert.Equal(t, ReasonAccount, s.Reason)
	assert.Equal(t, 120*time.Second, fx.mr.TTL("phone_verif:u1"))
}

func TestSendPhoneVerificationGatewayNotReady(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+919876543210")})
	fx.gw.with(func(g *stubGateway) { g.ready = false })

	res, err := fx.svc.SendPhoneVerification(context.Background(), "u1", "")
	require.NoError(t, err)
	assert.False(t, res.Ready)
	assert.Zero(t, fx.gw.sendCount())
	assert.False(t, fx.mr.Exists("phone_verif:u1"))
}

func TestSendPhoneVerificationErrors(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1"})

	_, err := fx.svc.SendPhoneVerification(context.Background(), "u1", "")
	assert.ErrorIs(t, err, ErrContactRequired)

	_, err = fx.svc.SendPhoneVerification(context.Background(), "ghost", "+1")
	assert.ErrorIs(t, err, user.ErrUserNotFound)

	fx.gw.with(func(g *stubGateway) { g.reject = true })
	_, err = fx.svc.SendPhoneVerification(context.Background(), "u1", "+15550100")
	assert.ErrorIs(t, err, ErrSendFailed)
}

func TestVerifyPhoneOtp(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+919876543210"), IsEmailVerified: true})
	ctx := context.Background()

	_, _, err := fx.svc.VerifyPhoneOtp(ctx, "u1", ConfirmInput{OTP: "123456"})
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = fx.svc.SendPhoneVerification(ctx, "u1", "")
	require.NoError(t, err)

	_, _, err = fx.svc.VerifyPhoneOtp(ctx, "u1", ConfirmInput{})
	assert.ErrorIs(t, err, ErrOTPRequired)

	_, _, err = fx.svc.VerifyPhoneOtp(ctx, "u1", ConfirmInput{OTP: "000000"})
	assert.ErrorIs(t, err, ErrInvalidOTP)
	assert.True(t, fx.mr.Exists("phone_verif:u1"))

	u, verifiedFor, err := fx.svc.VerifyPhoneOtp(ctx, "u1", ConfirmInput{OTP: "123456"})
	require.NoError(t, err)
	assert.Equal(t, "account_verification", verifiedFor)
	assert.True(t, u.IsPhoneVerified)
	assert.True(t, u.IsVerified)
	assert.False(t, fx.mr.Exists("phone_verif:u1"))
}

func TestComputeFullVerification(t *testing.T) {
	ctx := context.Background()

	t.Run("phone required when gateway ready", func(t *testing.T) {
		fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+1"), IsEmailVerified: true})
		u, err := fx.svc.ComputeFullVerification(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, u.IsVerified)
	})

	t.Run("email suffices when gateway is down", func(t *testing.T) {
		fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+1"), IsEmailVerified: true})
		fx.gw.with(func(g *stubGateway) { g.ready = false })
		u, err := fx.svc.ComputeFullVerification(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, u.IsVerified)
	})

	t.Run("email required", func(t *testing.T) {
		fx := newFixture(t, &entity.User{ID: "u1", IsPhoneVerified: true})
		u, err := fx.svc.ComputeFullVerification(ctx, "u1")
		require.NoError(t, err)
		assert.False(t, u.IsVerified)
	})
}

func TestPasswordResetOtp(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+919876543210")})
	ctx := context.Background()

	_, err := fx.svc.SendPasswordResetOtp(ctx, "u1", "email", "")
	assert.ErrorIs(t, err, ErrEmailResetDisabled)

	res, err := fx.svc.SendPasswordResetOtp(ctx, "u1", "phone", "")
	require.NoError(t, err)
	assert.Equal(t, "otp-uuid-1", res.UUID)
	assert.Equal(t, ReasonPassword, fx.session(t, "phone_pwd:u1").Reason)

	_, err = fx.svc.ConfirmPasswordResetOtp(ctx, "u1", ResetInput{Method: "phone", NewPassword: "short"})
	assert.ErrorIs(t, err, user.ErrWeakPassword)

	in := ResetInput{Method: "phone", NewPassword: "new-password", ConfirmInput: ConfirmInput{OTP: "999999"}}
	_, err = fx.svc.ConfirmPasswordResetOtp(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrInvalidOTP)

	in.OTP = "123456"
	_, err = fx.svc.ConfirmPasswordResetOtp(ctx, "u1", in)
	require.NoError(t, err)
	assert.Equal(t, "new-password", fx.users.passwords["u1"])
	assert.False(t, fx.mr.Exists("phone_pwd:u1"))

	_, err = fx.svc.ConfirmPasswordResetOtp(ctx, "u1", in)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestPublicResetResolvesUserBySuffix(t *testing.T) {
	stored := &entity.User{ID: "u1", PhoneNumber: strptr("+91 98765 43210")}
	fx := newFixture(t, stored)
	fx.users.suffix = stored
	ctx := context.Background()

	ready, err := fx.svc.SendPublicReset(ctx, "09876543210")
	require.NoError(t, err)
	assert.True(t, ready)

	s := fx.session(t, "pwd_whatsapp_public_phone:09876543210")
	require.NotNil(t, s.UserID)
	assert.Equal(t, "u1", *s.UserID)

	// The confirmation may spell the number differently.
	u, err := fx.svc.ConfirmPublicReset(ctx, PublicResetInput{
		ContactNumber: "+919876543210", OTP: "123456", NewPassword: "new-password", UUID: "otp-uuid-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, "new-password", fx.users.passwords["u1"])
}

func TestPublicResetUsesStoredSession(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("9876543210")})
	ctx := context.Background()

	_, err := fx.svc.SendPublicReset(ctx, "9876543210")
	require.NoError(t, err)

	_, err = fx.svc.ConfirmPublicReset(ctx, PublicResetInput{ContactNumber: "9876543210", OTP: "123456", NewPassword: "new-password"})
	require.NoError(t, err)
	assert.False(t, fx.mr.Exists("pwd_whatsapp_public_phone:9876543210"))
}

func TestPublicResetLegacyKey(t *testing.T) {
	fx := newFixture(t, &entity.User{ID: "u1", PhoneNumber: strptr("+919876543210")})
	require.NoError(t, fx.mr.Set("pwd_whatsapp_public:u1", `{"uuid":"otp-uuid-1","contactNumber":"+919876543210"}`))

	u, err := fx.svc.ConfirmPublicReset(context.Background(), PublicResetInput{
		ContactNumber: "+919876543210", OTP: "123456", NewPassword: "new-password",
	})
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.False(t, fx.mr.Exists("pwd_whatsapp_public:u1"))
}

func TestPublicResetFailures(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()

	_, err := fx.svc.SendPublicReset(ctx, "")
	assert.ErrorIs(t, err, ErrPublicContactNeeded)

	_, err = fx.svc.ConfirmPublicReset(ctx, PublicResetInput{ContactNumber: "+15550100", OTP: "123456", NewPassword: "short"})
	assert.ErrorIs(t, err, user.ErrWeakPassword)

	_, err = fx.svc.ConfirmPublicReset(ctx, PublicResetInput{ContactNumber: "+15550100", OTP: "123456", NewPassword: "new-password"})
	assert.ErrorIs(t, err, ErrInvalidOTP)

	// A valid code for a number no account uses.
	_, err = fx.svc.SendPublicReset(ctx, "+15550100")
	require.NoError(t, err)
	_, err = fx.svc.ConfirmPublicReset(ctx, PublicResetInput{ContactNumber: "+15550100", OTP: "123456", NewPassword: "new-password"})
	assert.ErrorIs(t, err, ErrInvalidContact)
}

func TestSendPublicResetGatewayNotReady(t *testing.T) {
	fx := newFixture(t)
	fx.gw.with(func(g *stubGateway) { g.ready = false })

	ready, err := fx.svc.SendPublicReset(context.Background(), "+15550100")
	require.NoError(t, err)
	assert.False(t, ready)
	assert.Zero(t, fx.gw.sendCount())
}

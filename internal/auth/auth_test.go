package auth

import (
	"context"
	"database/sql"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
)

type fakeUsers map[string]*entity.User

func (f fakeUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	u, ok := f[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func TestSignAndParse(t *testing.T) {
	tk := NewTokens("secret", time.Hour)
	raw, err := tk.Sign("u-1")
	require.NoError(t, err)

	claims, err := tk.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.ID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), claims.ExpiresAt.Time, 2*time.Second)

	_, err = NewTokens("other", time.Hour).Parse(raw)
	assert.Error(t, err)
}

func TestParseRejectsExpiredAndForeignAlg(t *testing.T) {
	tk := NewTokens("secret", time.Minute)
	tk.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	raw, err := tk.Sign("u-1")
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Minute).Parse(raw)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{ID: "u-1"}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewTokens("secret", time.Minute).Parse(none)
	assert.Error(t, err)
}

func protectedRecorder(t *testing.T, users fakeUsers, mutate func(*http.Request)) (*httptest.ResponseRecorder, *entity.User) {
	t.Helper()
	var seen *entity.User
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	h := Protect(NewTokens("secret", time.Hour), users, zaptest.NewLogger(t).Sugar())(next)
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	mutate(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func bearer(t *testing.T, id string) func(*http.Request) {
	raw, err := NewTokens("secret", time.Hour).Sign(id)
	require.NoError(t, err)
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+raw) }
}

func TestProtect(t *testing.T) {
	changed := time.Now().Add(time.Hour)
	users := fakeUsers{
		"ok":      {ID: "ok", IsActive: true},
		"closed":  {ID: "closed", IsActive: false},
		"rotated": {ID: "rotated", IsActive: true, PasswordChangedAt: &changed},
	}

	rec, u := protectedRecorder(t, users, bearer(t, "ok"))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, u)
	assert.Equal(t, "ok", u.ID)

	rec, _ = protectedRecorder(t, users, func(*http.Request) {})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = protectedRecorder(t, users, func(r *http.Request) { r.Header.Set("Authorization", "Bearer junk") })
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = protectedRecorder(t, users, bearer(t, "missing"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = protectedRecorder(t, users, bearer(t, "closed"))
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = protectedRecorder(t, users, bearer(t, "rotated"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "changed password")
}

func TestProtectAcceptsCookie(t *testing.T) {
	raw, err := NewTokens("secret", time.Hour).Sign("ok")
	require.NoError(t, err)
	rec, u := protectedRecorder(t, fakeUsers{"ok": {ID: "ok", IsActive: true}}, func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: CookieName, Value: raw})
	})
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.NotNil(t, u)
}

func TestCookies(t *testing.T) {
	rec := httptest.NewRecorder()
	SetCookie(rec, "tok", 90, true)
	c := rec.Result().Cookies()[0]
	assert.Equal(t, CookieName, c.Name)
	assert.True(t, c.HttpOnly)
	assert.True(t, c.Secure)

	rec = httptest.NewRecorder()
	ClearCookie(rec)
	assert.Equal(t, "loggedout", rec.Result().Cookies()[0].Value)
}

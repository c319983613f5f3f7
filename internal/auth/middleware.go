package auth

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

var (
	ErrNotLoggedIn     = utilities.NewHTTPError(http.StatusUnauthorized, "You are not logged in! Please log in to get access.")
	ErrInvalidToken    = utilities.NewHTTPError(http.StatusUnauthorized, "Invalid token. Please log in again.")
	ErrUserGone        = utilities.NewHTTPError(http.StatusUnauthorized, "The user belonging to this token no longer exists.")
	ErrPasswordChanged = utilities.NewHTTPError(http.StatusUnauthorized, "User recently changed password! Please log in again.")
	ErrAccountClosed   = utilities.NewHTTPError(http.StatusForbidden, "This account is closed. Please contact support to reopen.")
)

// UserLoader resolves the account behind a token.
type UserLoader interface {
	GetByID(ctx context.Context, id string) (*entity.User, error)
}

type ctxKey struct{}

// WithUser returns a copy of ctx carrying u.
func WithUser(ctx context.Context, u *entity.User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// UserFromContext returns the authenticated account set by Protect.
func UserFromContext(ctx context.Context) (*entity.User, bool) {
	u, ok := ctx.Value(ctxKey{}).(*entity.User)
	return u, ok && u != nil
}

// tokenFromRequest prefers the Authorization header over the cookie.
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer") {
		if parts := strings.Fields(h); len(parts) == 2 {
			return parts[1]
		}
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}

// Protect returns a middleware that only lets requests with a valid token for
// an active account through.
func Protect(tokens *Tokens, users UserLoader, logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw := tokenFromRequest(r)
			if raw == "" {
				utilities.WriteError(w, ErrNotLoggedIn)
				return
			}
			claims, err := tokens.Parse(raw)
			if err != nil {
				logger.Debugw("rejected token", "err", err)
				utilities.WriteError(w, ErrInvalidToken)
				return
			}
			u, err := users.GetByID(r.Context(), claims.ID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					utilities.WriteError(w, ErrUserGone)
					return
				}
				logger.Warnw("load token user failed", "user_id", claims.ID, "err", err)
				utilities.WriteError(w, err)
				return
			}
			if !u.IsActive {
				utilities.WriteError(w, ErrAccountClosed)
				return
			}
			if u.PasswordChangedAt != nil && claims.IssuedAt != nil &&
				claims.IssuedAt.Unix() < u.PasswordChangedAt.Unix() {
				utilities.WriteError(w, ErrPasswordChanged)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), u)))
		})
	}
}

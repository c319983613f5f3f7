package router

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/avatar"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/user"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/verification"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// RequestIDHeader carries the per-request correlation id.
const RequestIDHeader = "X-Request-ID"

// loggingResponseWriter wraps http.ResponseWriter to capture status and size.
type loggingResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.status = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Write(b []byte) (int, error) {
	if lrw.status == 0 {
		lrw.status = http.StatusOK
	}
	n, err := lrw.ResponseWriter.Write(b)
	lrw.size += n
	return n, err
}

// RequestIDMiddleware keeps an incoming X-Request-ID or assigns a new KSUID,
// and echoes it on the response.
func RequestIDMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" {
				id = utilities.NewKSUID()
				r.Header.Set(RequestIDHeader, id)
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}

// LoggingMiddleware returns a middleware that logs requests at debug level using the provided sugared logger.
func LoggingMiddleware(logger *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			lrw := &loggingResponseWriter{ResponseWriter: w}
			next.ServeHTTP(lrw, r)
			dur := time.Since(start)
			// ensure status is set
			status := lrw.status
			if status == 0 {
				status = http.StatusOK
			}
			logger.Debugw("http request",
				"request_id", r.Header.Get(RequestIDHeader),
				"method", r.Method,
				"path", r.URL.Path,
				"remote", r.RemoteAddr,
				"status", status,
				"duration_ms", float64(dur.Microseconds())/1000.0,
				"size", lrw.size,
			)
		})
	}
}

// SecurityHeadersMiddleware returns a middleware that sets common HTTP security headers.
func SecurityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "no-referrer-when-downgrade")
			w.Header().Set("Permissions-Policy", "camera=(), microphone=(), geolocation=()")

			// JSON API only; nothing should be framed or scripted from here.
			if w.Header().Get("Content-Security-Policy") == "" {
				w.Header().Set("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none';")
			}

			// HSTS only over TLS. 30 days.
			if r.TLS != nil {
				w.Header().Set("Strict-Transport-Security", "max-age=2592000; includeSubDomains")
			}

			next.ServeHTTP(w, r)
		})
	}
}

// Handlers groups the endpoint handlers mounted by RegisterRoutes. Protect
// guards every route that acts on the caller's account.
type Handlers struct {
	Users        *user.Handler
	Verification *verification.Handler
	Avatars      *avatar.Handler
	Characters   *character.Handler
	Devices      *subscriber.Handler
	Protect      func(http.Handler) http.Handler
}

// RegisterRoutes mounts HTTP handlers using the standard library's http.ServeMux.
func RegisterRoutes(logger *zap.SugaredLogger, h Handlers) http.Handler {
	mux := http.NewServeMux()
	protected := func(fn http.HandlerFunc) http.Handler { return h.Protect(fn) }

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	// account
	mux.HandleFunc("POST /api/auth/signup", h.Users.Signup)
	mux.HandleFunc("POST /api/auth/login", h.Users.Login)
	mux.Handle("GET /api/auth/me", protected(h.Users.Me))
	mux.Handle("PATCH /api/auth/me", protected(h.Users.UpdateMe))
	mux.Handle("DELETE /api/auth/me", protected(h.Users.DeleteMe))
	mux.Handle("POST /api/auth/avatar", protected(h.Avatars.Upload))
	mux.Handle("DELETE /api/auth/avatar", protected(h.Avatars.Delete))

	// verification and password reset
	mux.Handle("POST /api/auth/verify/phone/send", protected(h.Verification.SendPhone))
	mux.Handle("POST /api/auth/verify/phone/confirm", protected(h.Verification.ConfirmPhone))
	mux.Handle("POST /api/auth/verify/email/send", protected(h.Verification.SendEmail))
	mux.Handle("POST /api/auth/verify/email/confirm", protected(h.Verification.ConfirmEmail))
	mux.Handle("POST /api/auth/password/otp/send", protected(h.Verification.SendPasswordOtp))
	mux.Handle("POST /api/auth/password/otp/confirm", protected(h.Verification.ConfirmPasswordOtp))
	mux.HandleFunc("POST /api/auth/forgot-password/whatsapp/send", h.Verification.ForgotWhatsappSend)
	mux.HandleFunc("POST /api/auth/forgot-password/whatsapp/confirm", h.Verification.ForgotWhatsappConfirm)
	mux.HandleFunc("POST /api/auth/forgot-password/email/send", h.Verification.ForgotEmailSend)
	mux.HandleFunc("POST /api/auth/forgot-password/email/confirm", h.Verification.ForgotEmailConfirm)

	mux.HandleFunc("GET /api/characters", h.Characters.List)

	// push devices
	mux.Handle("POST /api/devices", protected(h.Devices.Register))
	mux.Handle("DELETE /api/devices/{token}", protected(h.Devices.Delete))

	// request id first so the access log can carry it
	return RequestIDMiddleware()(LoggingMiddleware(logger)(SecurityHeadersMiddleware()(mux)))
}

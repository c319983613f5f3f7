package alert

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/mail"
)

func TestClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)
	r.RemoteAddr = "10.0.0.9:5123"
	assert.Equal(t, "10.0.0.9", ClientIP(r))

	r.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	assert.Equal(t, "203.0.113.7", ClientIP(r))
}

func TestLocate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/8.8.8.8/json/":
			_, _ = io.WriteString(w, `{"city":"Mountain View","region":"California","country_name":"United States"}`)
		case "/1.1.1.1/json/":
			_, _ = io.WriteString(w, `{"error":true,"reason":"RateLimited"}`)
		default:
			t.Errorf("unexpected lookup %s", r.URL.Path)
		}
	}))
	defer srv.Close()
	l := NewLocator(srv.URL)
	ctx := context.Background()

	loc, err := l.Locate(ctx, "8.8.8.8")
	require.NoError(t, err)
	assert.Equal(t, "Mountain View, California, United States", loc)

	_, err = l.Locate(ctx, "1.1.1.1")
	assert.ErrorContains(t, err, "RateLimited")

	for _, ip := range []string{"", "127.0.0.1", "10.1.2.3", "192.168.1.1", "172.20.0.1", "::1", "not-an-ip"} {
		loc, err := l.Locate(ctx, ip)
		assert.NoError(t, err, ip)
		assert.Empty(t, loc, ip)
	}
}

func TestBuild(t *testing.T) {
	when := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m := Build(Details{Kind: KindPasswordReset, Name: "Sam", AppName: "Clyra AI", IP: "203.0.113.7", When: when})
	assert.Equal(t, "Clyra AI: Password Reset Alert", m.Subject)
	assert.Contains(t, m.Text, "We noticed a password reset on your account.")
	assert.Contains(t, m.Text, "Location: Unknown")
	assert.Contains(t, m.Text, "2026-03-01T12:00:00Z")

	m = Build(Details{Kind: KindLogin, Name: "<b>", AppName: "Clyra AI"})
	assert.Equal(t, "Clyra AI: New Login Alert", m.Subject)
	assert.Contains(t, m.HTML, "&lt;b&gt;")
}

func TestNotifySwallowsFailures(t *testing.T) {
	log := zaptest.NewLogger(t).Sugar()
	r := httptest.NewRequest(http.MethodPost, "/api/auth/login", nil)

	var disabled *Notifier
	disabled.Notify(context.Background(), r, KindLogin, "Sam", "sam@example.com")

	n := NewNotifier(true, "Clyra AI", NewLocator("http://127.0.0.1:1"), mail.NewSender(mail.Config{}, log), log)
	assert.NotPanics(t, func() { n.Notify(context.Background(), r, KindLogin, "Sam", "sam@example.com") })
}

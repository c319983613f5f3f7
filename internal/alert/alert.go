// Package alert sends security notices (new login, password reset) to the
// account owner.
package alert

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/mail"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

const (
	KindLogin         = "login"
	KindPasswordReset = "password_reset"
)

const supportEmail = "contact@orincore.com"

// ClientIP returns the first X-Forwarded-For entry, else the RemoteAddr host.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		if first := strings.TrimSpace(strings.Split(xf, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Locator resolves an IP address to "city, region, country" via ipapi.
type Locator struct {
	baseURL    string
	httpClient *http.Client
}

func NewLocator(baseURL string) *Locator {
	return &Locator{baseURL: strings.TrimRight(baseURL, "/"), httpClient: &http.Client{Timeout: 5 * time.Second}}
}

func skipLookup(ip string) bool {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return true
	}
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsUnspecified() || addr.IsLinkLocalUnicast()
}

// Locate returns "" without error for empty, private and loopback addresses.
func (l *Locator) Locate(ctx context.Context, ip string) (string, error) {
	if ip == "" || skipLookup(ip) {
		return "", nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.baseURL+"/"+url.PathEscape(ip)+"/json/", nil)
	if err != nil {
		return "", err
	}
	resp, err := l.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ipapi: unexpected status %s", resp.Status)
	}
	var body struct {
		Error       bool   `json:"error"`
		Reason      string `json:"reason"`
		City        string `json:"city"`
		Region      string `json:"region"`
		CountryName string `json:"country_name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", err
	}
	if body.Error {
		return "", fmt.Errorf("ipapi: %s", body.Reason)
	}
	parts := make([]string, 0, 3)
	for _, p := range []string{body.City, body.Region, body.CountryName} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", "), nil
}

// Details describe the event being reported.
type Details struct {
	Kind      string
	Name      string
	AppName   string
	IP        string
	UserAgent string
	When      time.Time
	Location  string
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}

// Build renders the alert email.
func Build(d Details) mail.Message {
	action := "New Login"
	if d.Kind == KindPasswordReset {
		action = "Password Reset"
	}
	when := d.When.UTC().Format(time.RFC3339)
	subject := fmt.Sprintf("%s: %s Alert", d.AppName, action)
	text := fmt.Sprintf("Hi %s,\n\nWe noticed a %s on your account.\n\nTime: %s\nIP: %s\nLocation: %s\nDevice: %s\n\n"+
		"If this was you, no action is needed. If you don't recognize this activity, please reset your password immediately or contact support at %s.\n\nThe %s Security Team",
		d.Name, strings.ToLower(action), when, d.IP, orUnknown(d.Location), orUnknown(d.UserAgent), supportEmail, d.AppName)

	e := html.EscapeString
	body := fmt.Sprintf(`<!DOCTYPE html><html lang="en"><body style="font-family:Segoe UI,Roboto,Arial,sans-serif;">
<p>Hi %s,</p><h2>%s on your account</h2>
<table><tr><td>Time</td><td>%s</td></tr><tr><td>IP</td><td>%s</td></tr>
<tr><td>Location</td><td>%s</td></tr><tr><td>Device</td><td>%s</td></tr></table>
<p>If this wasn't you, reset your password or contact <a href="mailto:%s">%s</a>.</p>
</body></html>`,
		e(d.Name), e(action), e(when), e(d.IP), e(orUnknown(d.Location)), e(orUnknown(d.UserAgent)), supportEmail, supportEmail)
	return mail.Message{Subject: subject, Text: text, HTML: body}
}

// Notifier emails security alerts when enabled. Every failure is logged and
// swallowed.
type Notifier struct {
	enabled bool
	appName string
	locator *Locator
	mailer  *mail.Sender
	logger  *zap.SugaredLogger
}

func NewNotifier(enabled bool, appName string, locator *Locator, mailer *mail.Sender, logger *zap.SugaredLogger) *Notifier {
	return &Notifier{enabled: enabled, appName: appName, locator: locator, mailer: mailer, logger: logger}
}

// Notify sends a kind alert for the account reachable at email.
func (n *Notifier) Notify(ctx context.Context, r *http.Request, kind, name, email string) {
	if n == nil || !n.enabled || email == "" {
		return
	}
	ip := ClientIP(r)
	location := utilities.BestEffort(n.logger, "ip geolocation", "", func() (string, error) {
		return n.locator.Locate(ctx, ip)
	})
	msg := Build(Details{
		Kind: kind, Name: name, AppName: n.appName, IP: ip,
		UserAgent: r.UserAgent(), When: time.Now(), Location: location,
	})
	msg.To = []string{email}
	if err := n.mailer.Send(ctx, msg); err != nil {
		n.logger.Warnw("security alert email failed", "kind", kind, "err", err)
	}
}

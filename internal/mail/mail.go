// Package mail sends transactional email over SMTP.
package mail

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"mime/multipart"
	"net"
	"net/smtp"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

var ErrNotConfigured = errors.New("mail: SMTP_HOST is not set")

type Config struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

type Message struct {
	To      []string
	Subject string
	Text    string
	HTML    string
}

// deliverFunc matches smtp.SendMail.
type deliverFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Sender is shared by the whole process and safe for concurrent use.
type Sender struct {
	cfg     Config
	logger  *zap.SugaredLogger
	deliver deliverFunc
}

func NewSender(cfg Config, logger *zap.SugaredLogger) *Sender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	s := &Sender{cfg: cfg, logger: logger}
	if cfg.Port == 465 {
		s.deliver = s.sendImplicitTLS
	} else {
		s.deliver = smtp.SendMail
	}
	if cfg.From != "" && cfg.User != "" && cfg.From != cfg.User {
		logger.Warnw("custom SMTP_FROM in use; make sure the sender is verified", "from", cfg.From)
	}
	return s
}

// Enabled reports whether an SMTP host is configured.
func (s *Sender) Enabled() bool { return s.cfg.Host != "" }

func (s *Sender) from() string {
	if s.cfg.From != "" {
		return s.cfg.From
	}
	return s.cfg.User
}

// Send delivers m. ctx only bounds the wait; an in-flight SMTP exchange is not aborted.
func (s *Sender) Send(ctx context.Context, m Message) error {
	if !s.Enabled() {
		return ErrNotConfigured
	}
	if len(m.To) == 0 {
		return errors.New("mail: no recipients")
	}
	body, err := build(s.from(), m)
	if err != nil {
		return err
	}
	var a smtp.Auth
	if s.cfg.User != "" {
		a = smtp.PlainAuth("", s.cfg.User, s.cfg.Pass, s.cfg.Host)
	}
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	done := make(chan error, 1)
	go func() { done <- s.deliver(addr, a, s.from(), m.To, body) }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("send mail: %w", err)
		}
		s.logger.Infow("email sent", "to", m.To, "subject", m.Subject)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Sender) sendImplicitTLS(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 15 * time.Second}, "tcp", addr, &tls.Config{ServerName: s.cfg.Host})
	if err != nil {
		return err
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()
	if a != nil {
		if err := c.Auth(a); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}

// build renders a multipart/alternative message with text and HTML parts.
func build(from string, m Message) ([]byte, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", from)
	fmt.Fprintf(&buf, "To: %s\r\n", strings.Join(m.To, ", "))
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", m.Subject))
	fmt.Fprintf(&buf, "Date: %s\r\n", time.Now().UTC().Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/alternative; boundary=%s\r\n\r\n", mw.Boundary())

	parts := []struct{ ctype, body string }{{"text/plain", m.Text}, {"text/html", m.HTML}}
	for _, p := range parts {
		if p.body == "" {
			continue
		}
		h := textproto.MIMEHeader{}
		h.Set("Content-Type", p.ctype+"; charset=utf-8")
		h.Set("Content-Transfer-Encoding", "8bit")
		pw, err := mw.CreatePart(h)
		if err != nil {
			return nil, err
		}
		if _, err := pw.Write([]byte(p.body)); err != nil {
			return nil, err
		}
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

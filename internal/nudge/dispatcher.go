package nudge

import (
	"context"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/push"
)

const (
	maxBodyRunes   = 120
	truncatedRunes = 117
	defaultTitle   = "New message"
)

// Dispatcher tells the user about a nudge. Failures are logged only.
type Dispatcher struct {
	push        push.Sender
	pushEnabled bool
	logger      *zap.SugaredLogger
}

func NewDispatcher(sender push.Sender, pushEnabled bool, logger *zap.SugaredLogger) *Dispatcher {
	return &Dispatcher{push: sender, pushEnabled: pushEnabled, logger: logger}
}

// Notification builds the push payload for c.
func Notification(c Candidate, content string) push.Notification {
	title := c.CharacterName()
	if title == "" {
		title = defaultTitle
	}
	body := content
	if r := []rune(content); len(r) > maxBodyRunes {
		body = string(r[:truncatedRunes]) + "…"
	}
	return push.Notification{
		Title: title,
		Body:  body,
		Data: map[string]string{
			"type":         "nudge",
			"session_id":   c.SessionID,
			"character_id": c.CharacterID,
		},
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, c Candidate, content string) {
	d.email(ctx, c)
	if !d.pushEnabled || d.push == nil {
		return
	}
	if err := d.push.SendToUser(ctx, c.UserID, Notification(c, content)); err != nil {
		d.logger.Warnw("nudge push failed", "user_id", c.UserID, "session_id", c.SessionID, "err", err)
	}
}

// email is the nudge email channel. It is switched off.
func (d *Dispatcher) email(context.Context, Candidate) {}

// Package push fans notifications out to a user's registered devices.
package push

import (
	"context"
	"time"
)

// Notification is what the user sees on the device plus routing data for the
// client.
type Notification struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

// Sender delivers a notification to every device of a user.
type Sender interface {
	SendToUser(ctx context.Context, userID string, n Notification) error
}

// Envelope is the message handed to the delivery gateway, one per device.
type Envelope struct {
	Token    string `json:"token"`
	Platform string `json:"platform"`
	UserID   string `json:"user_id"`
	Notification
	SentAt time.Time `json:"sent_at"`
}

// Noop drops every notification. Used when PUSH_ENABLED is off.
type Noop struct{}

func (Noop) SendToUser(context.Context, string, Notification) error { return nil }

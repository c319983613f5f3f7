package entity

import (
	"encoding/json"
	"time"
)

// Platforms accepted for device registration.
var Platforms = map[string]bool{"fcm": true, "apns": true, "web": true}

// Subscriber is one push-capable device of a user (table `push_subscribers`).
type Subscriber struct {
	Token     string          `db:"token" json:"token"`
	UserID    string          `db:"user_id" json:"user_id"`
	Platform  string          `db:"platform" json:"platform"`
	Metadata  json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

package entity

import (
	"encoding/json"
	"time"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is a conversation between one user and one character
// (table `chat_sessions`). CharacterID is empty when the character was removed.
type Session struct {
	ID          string    `db:"id" json:"id"`
	UserID      string    `db:"user_id" json:"user_id"`
	CharacterID string    `db:"character_id" json:"character_id"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Message is one turn of a session (table `chat_messages`).
type Message struct {
	ID         string          `db:"id" json:"id"`
	SessionID  string          `db:"session_id" json:"session_id"`
	Role       string          `db:"role" json:"role"`
	Content    string          `db:"content" json:"content"`
	IsNSFW     bool            `db:"is_nsfw" json:"is_nsfw"`
	OrderIndex int             `db:"order_index" json:"order_index"`
	Metadata   json.RawMessage `db:"metadata" json:"metadata,omitempty"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
}

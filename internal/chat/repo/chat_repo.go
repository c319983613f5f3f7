package repo

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
)

// ChatRepo provides data access for chat sessions and messages using sqlx.
type ChatRepo struct {
	db *sqlx.DB
}

func NewChatRepo(db *sqlx.DB) *ChatRepo { return &ChatRepo{db: db} }

// ListStaleSessions returns sessions whose last activity is before cutoff,
// oldest first, capped at limit rows.
func (r *ChatRepo) ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]entity.Session, error) {
	const q = `SELECT id, user_id, COALESCE(character_id::text, '') AS character_id, updated_at
		FROM chat_sessions WHERE updated_at < $1 ORDER BY updated_at ASC LIMIT $2`
	var out []entity.Session
	if err := r.db.SelectContext(ctx, &out, q, cutoff, limit); err != nil {
		return nil, err
	}
	return out, nil
}

// GetMaxOrderIndex returns the highest order_index of a session, or nil when
// the session has no indexed messages.
func (r *ChatRepo) GetMaxOrderIndex(ctx context.Context, sessionID string) (*int, error) {
	const q = `SELECT MAX(order_index) FROM chat_messages WHERE session_id=$1`
	var v sql.NullInt64
	if err := r.db.GetContext(ctx, &v, q, sessionID); err != nil {
		return nil, err
	}
	if !v.Valid {
		return nil, nil
	}
	idx := int(v.Int64)
	return &idx, nil
}

// InsertMessage appends m to its session and fills in ID and CreatedAt.
func (r *ChatRepo) InsertMessage(ctx context.Context, m *entity.Message) error {
	meta := "{}"
	if len(m.Metadata) > 0 {
		meta = string(m.Metadata)
	}
	const q = `INSERT INTO chat_messages (session_id, role, content, is_nsfw, order_index, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb) RETURNING id, created_at`
	return r.db.QueryRowxContext(ctx, q, m.SessionID, m.Role, m.Content, m.IsNSFW, m.OrderIndex, meta).
		Scan(&m.ID, &m.CreatedAt)
}

// TouchSession bumps updated_at to now.
func (r *ChatRepo) TouchSession(ctx context.Context, sessionID string) error {
	const q = `UPDATE chat_sessions SET updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, sessionID)
	return err
}

// RecentMessages returns up to limit messages of a session, newest first.
func (r *ChatRepo) RecentMessages(ctx context.Context, sessionID string, limit int) ([]entity.Message, error) {
	const q = `SELECT id, session_id, role, content, is_nsfw, COALESCE(order_index, 0) AS order_index, created_at
		FROM chat_messages WHERE session_id=$1
		ORDER BY order_index DESC NULLS LAST, created_at DESC LIMIT $2`
	var out []entity.Message
	if err := r.db.SelectContext(ctx, &out, q, sessionID, limit); err != nil {
		return nil, err
	}
	return out, nil
}

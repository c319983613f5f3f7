package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/subscriber/entity"
)

type SubscriberRepo struct {
	db *sqlx.DB
}

func NewSubscriberRepo(db *sqlx.DB) *SubscriberRepo {
	return &SubscriberRepo{db: db}
}

// Upsert registers a device token. A token moving to another account is
// reassigned to the latest user.
func (r *SubscriberRepo) Upsert(ctx context.Context, s *entity.Subscriber) error {
	meta := "{}"
	if len(s.Metadata) > 0 {
		meta = string(s.Metadata)
	}
	const q = `INSERT INTO push_subscribers (token, user_id, platform, metadata)
		VALUES ($1, $2, $3, $4::jsonb)
		ON CONFLICT (token) DO UPDATE SET user_id=EXCLUDED.user_id, platform=EXCLUDED.platform, metadata=EXCLUDED.metadata
		RETURNING created_at`
	return r.db.QueryRowxContext(ctx, q, s.Token, s.UserID, s.Platform, meta).Scan(&s.CreatedAt)
}

// ListByUser returns the devices registered for a user.
func (r *SubscriberRepo) ListByUser(ctx context.Context, userID string) ([]entity.Subscriber, error) {
	const q = `SELECT token, user_id, platform, created_at FROM push_subscribers WHERE user_id=$1 ORDER BY created_at ASC`
	var out []entity.Subscriber
	if err := r.db.SelectContext(ctx, &out, q, userID); err != nil {
		return nil, err
	}
	return out, nil
}

// Delete removes a device token owned by userID. It reports whether a row was removed.
func (r *SubscriberRepo) Delete(ctx context.Context, userID, token string) (bool, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM push_subscribers WHERE token=$1 AND user_id=$2`, token, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

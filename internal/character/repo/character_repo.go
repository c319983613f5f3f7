package repo

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
)

// Repo is the repository implementation for characters backed by PostgreSQL.
type Repo struct {
	db *sqlx.DB
}

// NewRepo constructs a new Repo with an existing *sqlx.DB connection.
func NewRepo(db *sqlx.DB) *Repo {
	return &Repo{db: db}
}

// GetByIDs loads the characters with the given ids in one query. Unknown ids
// are simply absent from the result.
func (r *Repo) GetByIDs(ctx context.Context, ids []string) ([]entity.Character, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q, args, err := sqlx.In(`SELECT id, name, avatar_url, persona FROM characters WHERE id::text IN (?)`, ids)
	if err != nil {
		return nil, err
	}
	var out []entity.Character
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// List returns characters ordered by name with pagination.
func (r *Repo) List(ctx context.Context, limit, offset int) ([]entity.Character, error) {
	const q = `SELECT id, name, avatar_url, persona FROM characters ORDER BY name ASC LIMIT $1 OFFSET $2`
	out := []entity.Character{}
	if err := r.db.SelectContext(ctx, &out, q, limit, offset); err != nil {
		return nil, err
	}
	return out, nil
}

package character

import (
	"context"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/character/repo"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

// Service encapsulates read access to characters and depends on a repo.
type Service struct {
	repo *repo.Repo
}

// NewService constructs a Service with the provided repository.
func NewService(r *repo.Repo) *Service {
	return &Service{repo: r}
}

// List returns a page of characters. Out of range limits fall back to sane bounds.
func (s *Service) List(ctx context.Context, limit, offset int) ([]entity.Character, error) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.List(ctx, limit, offset)
}

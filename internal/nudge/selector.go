package nudge

import (
	"context"
	"time"

	"go.uber.org/zap"

	charentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
)

// SessionStore lists inactive chat sessions, oldest first.
type SessionStore interface {
	ListStaleSessions(ctx context.Context, cutoff time.Time, limit int) ([]chatentity.Session, error)
}

// CharacterStore resolves characters in one batch.
type CharacterStore interface {
	GetByIDs(ctx context.Context, ids []string) ([]charentity.Character, error)
}

// Candidate is the session picked to represent one user in a tick.
type Candidate struct {
	SessionID   string
	UserID      string
	CharacterID string
	Character   *charentity.Character
}

// CharacterName is the character's name, or "" when unresolved.
func (c Candidate) CharacterName() string {
	if c.Character == nil {
		return ""
	}
	return c.Character.Name
}

// byUser keeps the first session seen per user, in insertion order.
type byUser struct {
	order []string
	items map[string]Candidate
}

func newByUser(capacity int) *byUser {
	return &byUser{order: make([]string, 0, capacity), items: make(map[string]Candidate, capacity)}
}

// add reports false when userID already has a candidate.
func (m *byUser) add(c Candidate) bool {
	if _, ok := m.items[c.UserID]; ok {
		return false
	}
	m.order = append(m.order, c.UserID)
	m.items[c.UserID] = c
	return true
}

func (m *byUser) values() []Candidate {
	out := make([]Candidate, 0, len(m.order))
	for _, k := range m.order {
		out = append(out, m.items[k])
	}
	return out
}

type Selector struct {
	sessions   SessionStore
	characters CharacterStore
	logger     *zap.SugaredLogger
	now        func() time.Time
}

func NewSelector(sessions SessionStore, characters CharacterStore, logger *zap.SugaredLogger) *Selector {
	return &Selector{sessions: sessions, characters: characters, logger: logger, now: time.Now}
}

// Select returns at most one candidate per user whose session has been idle
// for inactiveHours, oldest first. Query failures yield no candidates.
func (s *Selector) Select(ctx context.Context, inactiveHours, limit int) []Candidate {
	if inactiveHours <= 0 || limit <= 0 {
		return nil
	}
	cutoff := s.now().Add(-time.Duration(inactiveHours) * time.Hour)
	sessions, err := s.sessions.ListStaleSessions(ctx, cutoff, limit)
	if err != nil {
		s.logger.Warnw("list stale sessions failed", "err", err)
		return nil
	}
	if len(sessions) == 0 {
		return nil
	}

	users := newByUser(len(sessions))
	seenChar := map[string]bool{}
	var charIDs []string
	for _, sess := range sessions {
		if !users.add(Candidate{SessionID: sess.ID, UserID: sess.UserID, CharacterID: sess.CharacterID}) {
			continue
		}
		if sess.CharacterID != "" && !seenChar[sess.CharacterID] {
			seenChar[sess.CharacterID] = true
			charIDs = append(charIDs, sess.CharacterID)
		}
	}

	candidates := users.values()
	if len(charIDs) == 0 {
		return candidates
	}
	chars, err := s.characters.GetByIDs(ctx, charIDs)
	if err != nil {
		s.logger.Warnw("load characters failed", "err", err)
		return candidates
	}
	byID := make(map[string]*charentity.Character, len(chars))
	for i := range chars {
		byID[chars[i].ID] = &chars[i]
	}
	for i := range candidates {
		candidates[i].Character = byID[candidates[i].CharacterID]
	}
	return candidates
}

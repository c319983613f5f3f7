package nudge

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
)

var nudgeMetadata = json.RawMessage(`{"nudge":true}`)

// MessageStore appends messages to a session.
type MessageStore interface {
	GetMaxOrderIndex(ctx context.Context, sessionID string) (*int, error)
	InsertMessage(ctx context.Context, m *chatentity.Message) error
	TouchSession(ctx context.Context, sessionID string) error
}

type Inserter struct {
	store  MessageStore
	logger *zap.SugaredLogger
}

func NewInserter(store MessageStore, logger *zap.SugaredLogger) *Inserter {
	return &Inserter{store: store, logger: logger}
}

// Insert appends content as an assistant turn flagged as a nudge, then bumps
// the session's updated_at. A failed bump is only logged.
func (i *Inserter) Insert(ctx context.Context, sessionID, content string, nsfw bool) error {
	maxIdx, err := i.store.GetMaxOrderIndex(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("read order index: %w", err)
	}
	next := 1
	if maxIdx != nil {
		next = *maxIdx + 1
	}
	m := &chatentity.Message{
		SessionID:  sessionID,
		Role:       chatentity.RoleAssistant,
		Content:    content,
		IsNSFW:     nsfw,
		OrderIndex: next,
		Metadata:   nudgeMetadata,
	}
	if err := i.store.InsertMessage(ctx, m); err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	if err := i.store.TouchSession(ctx, sessionID); err != nil {
		i.logger.Warnw("touch session failed", "session_id", sessionID, "err", err)
	}
	return nil
}

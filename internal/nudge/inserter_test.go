package nudge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
)

func TestInsertFirstMessage(t *testing.T) {
	chats := newMemChats(session("s1", "u1", "c1", 0))
	require.NoError(t, NewInserter(chats, zaptest.NewLogger(t).Sugar()).Insert(context.Background(), "s1", "hi", false))

	got := chats.inserted("s1")
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].OrderIndex)
	assert.Equal(t, chatentity.RoleAssistant, got[0].Role)
	assert.JSONEq(t, `{"nudge":true}`, string(got[0].Metadata))
	assert.False(t, got[0].IsNSFW)
}

func TestInsertContinuesOrderIndex(t *testing.T) {
	chats := newMemChats(session("s1", "u1", "c1", 0))
	chats.messages["s1"] = []chatentity.Message{msg(chatentity.RoleUser, "a", 3), msg(chatentity.RoleAssistant, "b", 7)}
	require.NoError(t, NewInserter(chats, zaptest.NewLogger(t).Sugar()).Insert(context.Background(), "s1", "hi", true))

	got := chats.inserted("s1")
	require.Len(t, got, 3)
	assert.Equal(t, 8, got[2].OrderIndex)
	assert.True(t, got[2].IsNSFW)
}

func TestInsertErrors(t *testing.T) {
	logger := zaptest.NewLogger(t).Sugar()

	chats := newMemChats()
	chats.maxErr = errors.New("db down")
	err := NewInserter(chats, logger).Insert(context.Background(), "s1", "hi", false)
	require.Error(t, err)
	assert.ErrorIs(t, err, chats.maxErr)

	chats = newMemChats()
	chats.insertErr["gone"] = errors.New("fk violation")
	err = NewInserter(chats, logger).Insert(context.Background(), "gone", "hi", false)
	assert.ErrorIs(t, err, chats.insertErr["gone"])
	assert.Empty(t, chats.inserted("gone"))
}

func TestInsertIgnoresTouchFailure(t *testing.T) {
	chats := newMemChats(session("s1", "u1", "c1", 0))
	chats.touchErr = errors.New("lock timeout")
	require.NoError(t, NewInserter(chats, zaptest.NewLogger(t).Sugar()).Insert(context.Background(), "s1", "hi", false))
	assert.Len(t, chats.inserted("s1"), 1)
}

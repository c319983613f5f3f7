package nudge

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	charentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/character/entity"
	chatentity "github.com/ovaphlow/pitchfork/service-chat-go/internal/chat/entity"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/llm"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/push"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
)

func newTestStore(t *testing.T) (*kvstore.Redis, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	st, err := kvstore.NewRedis("redis://" + mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st, mr
}

// countingStore records every call made to the wrapped store.
type countingStore struct {
	kvstore.Store
	calls atomic.Int64
}

func (c *countingStore) Get(ctx context.Context, k string) (string, bool, error) {
	c.calls.Add(1)
	return c.Store.Get(ctx, k)
}

func (c *countingStore) Set(ctx context.Context, k, v string, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Store.Set(ctx, k, v, ttl)
}

func (c *countingStore) Del(ctx context.Context, k string) error {
	c.calls.Add(1)
	return c.Store.Del(ctx, k)
}

func (c *countingStore) SetNX(ctx context.Context, k, v string, ttl time.Duration) (bool, error) {
	c.calls.Add(1)
	return c.Store.SetNX(ctx, k, v, ttl)
}

func (c *countingStore) Expire(ctx context.Context, k string, ttl time.Duration) error {
	c.calls.Add(1)
	return c.Store.Expire(ctx, k, ttl)
}

// memChats is an in-memory chat store.
type memChats struct {
	mu        sync.Mutex
	sessions  []chatentity.Session
	messages  map[string][]chatentity.Message
	calls     int
	lastLimit int
	listErr   error
	maxErr    error
	touchErr  error
	insertErr map[string]error
}

func newMemChats(sessions ...chatentity.Session) *memChats {
	return &memChats{sessions: sessions, messages: map[string][]chatentity.Message{}, insertErr: map[string]error{}}
}

func (m *memChats) ListStaleSessions(_ context.Context, cutoff time.Time, limit int) ([]chatentity.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []chatentity.Session
	for _, s := range m.sessions {
		if s.UpdatedAt.Before(cutoff) {
			out = append(out, s)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memChats) GetMaxOrderIndex(_ context.Context, sessionID string) (*int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.maxErr != nil {
		return nil, m.maxErr
	}
	var max *int
	for _, msg := range m.messages[sessionID] {
		if max == nil || msg.OrderIndex > *max {
			v := msg.OrderIndex
			max = &v
		}
	}
	return max, nil
}

func (m *memChats) InsertMessage(_ context.Context, msg *chatentity.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if err := m.insertErr[msg.SessionID]; err != nil {
		return err
	}
	msg.ID = msg.SessionID + "-m"
	msg.CreatedAt = time.Now()
	m.messages[msg.SessionID] = append(m.messages[msg.SessionID], *msg)
	return nil
}

func (m *memChats) TouchSession(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.touchErr != nil {
		return m.touchErr
	}
	for i := range m.sessions {
		if m.sessions[i].ID == sessionID {
			m.sessions[i].UpdatedAt = time.Now()
		}
	}
	return nil
}

func (m *memChats) RecentMessages(_ context.Context, sessionID string, limit int) ([]chatentity.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	msgs := append([]chatentity.Message(nil), m.messages[sessionID]...)
	sort.SliceStable(msgs, func(i, j int) bool { return msgs[i].OrderIndex > msgs[j].OrderIndex })
	if len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

func (m *memChats) session(id string) chatentity.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return s
		}
	}
	return chatentity.Session{}
}

func (m *memChats) inserted(sessionID string) []chatentity.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]chatentity.Message(nil), m.messages[sessionID]...)
}

type memCharacters struct {
	chars map[string]charentity.Character
	err   error
	calls [][]string
}

func (m *memCharacters) GetByIDs(_ context.Context, ids []string) ([]charentity.Character, error) {
	m.calls = append(m.calls, ids)
	if m.err != nil {
		return nil, m.err
	}
	var out []charentity.Character
	for _, id := range ids {
		if c, ok := m.chars[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

type fakeLLM struct {
	text  string
	err   error
	calls int
	last  []llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.calls++
	f.last = msgs
	return f.text, f.err
}

type sentPush struct {
	UserID string
	N      push.Notification
}

type fakePush struct {
	sent []sentPush
	err  error
}

func (f *fakePush) SendToUser(_ context.Context, userID string, n push.Notification) error {
	f.sent = append(f.sent, sentPush{UserID: userID, N: n})
	return f.err
}

// fixedRandom returns f from Float64 and n (clamped below the bound) from Int64N.
type fixedRandom struct {
	f float64
	n int64
}

func (r fixedRandom) Float64() float64 { return r.f }

func (r fixedRandom) Int64N(bound int64) int64 {
	if r.n >= bound {
		return bound - 1
	}
	return r.n
}

func strptr(s string) *string { return &s }

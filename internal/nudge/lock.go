package nudge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// LockKey guards a tick.
const LockKey = "nudge:lock"

// DefaultLockTTL applies when Acquire is given a non-positive ttl.
const DefaultLockTTL = 55 * time.Second

// RunLock is a TTL lock with no release: a crashed holder is recovered by
// expiry alone.
type RunLock struct {
	store  kvstore.Store
	logger *zap.SugaredLogger
}

func NewRunLock(store kvstore.Store, logger *zap.SugaredLogger) *RunLock {
	return &RunLock{store: store, logger: logger}
}

// Acquire reports whether key was newly set. A failing store grants the lock.
// The key always expires: ttl <= 0 means DefaultLockTTL.
func (l *RunLock) Acquire(ctx context.Context, key string, ttl time.Duration) bool {
	if ttl <= 0 {
		ttl = DefaultLockTTL
	}
	owner := utilities.NewToken("tick_")
	return utilities.BestEffort(l.logger, "nudge run lock", true, func() (bool, error) {
		return l.store.SetNX(ctx, key, owner, ttl)
	})
}

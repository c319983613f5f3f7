package nudge

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/utilities"
)

// RateLimiter caps nudges per user per UTC day. The read, increment and
// expire steps are separate commands; the run lock keeps writers single.
type RateLimiter struct {
	store  kvstore.Store
	logger *zap.SugaredLogger
	now    func() time.Time
}

func NewRateLimiter(store kvstore.Store, logger *zap.SugaredLogger) *RateLimiter {
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// RateKey is nudge:user:<userID>:<YYYY-MM-DD> for the UTC day of t.
func RateKey(userID string, t time.Time) string {
	return fmt.Sprintf("nudge:user:%s:%s", userID, t.UTC().Format(time.DateOnly))
}

// secondsUntilDayEnd counts whole seconds until 23:59:59.999 UTC, at least 1.
func secondsUntilDayEnd(now time.Time) int64 {
	now = now.UTC()
	end := time.Date(now.Year(), now.Month(), now.Day(), 23, 59, 59, 999_000_000, time.UTC)
	return max(1, int64(end.Sub(now)/time.Second))
}

// Allow reports whether userID may receive another nudge today and, if so,
// counts it. Store failures allow the nudge.
func (l *RateLimiter) Allow(ctx context.Context, userID string, maxPerDay int) bool {
	return utilities.BestEffort(l.logger, "nudge rate limit", true, func() (bool, error) {
		return l.allow(ctx, userID, maxPerDay)
	})
}

func (l *RateLimiter) allow(ctx context.Context, userID string, maxPerDay int) (bool, error) {
	now := l.now()
	key := RateKey(userID, now)
	raw, found, err := l.store.Get(ctx, key)
	if err != nil {
		return true, err
	}
	count := 0
	if found {
		if count, err = strconv.Atoi(raw); err != nil {
			return true, fmt.Errorf("parse %s: %w", key, err)
		}
	}
	if count >= maxPerDay {
		return false, nil
	}
	if err := l.store.Set(ctx, key, strconv.Itoa(count+1), 0); err != nil {
		return true, err
	}
	if err := l.store.Expire(ctx, key, time.Duration(secondsUntilDayEnd(now))*time.Second); err != nil {
		return true, err
	}
	return true, nil
}

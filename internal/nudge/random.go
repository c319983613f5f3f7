package nudge

import (
	"context"
	"math/rand/v2"
	"time"
)

// Random supplies the randomness of a tick: the skip roll, the pause jitter
// and the fallback choice.
type Random interface {
	// Float64 returns a value in [0, 1).
	Float64() float64
	// Int64N returns a value in [0, n). n must be positive.
	Int64N(n int64) int64
}

// systemRandom uses the math/rand/v2 global source, which is safe for
// concurrent use.
type systemRandom struct{}

func (systemRandom) Float64() float64      { return rand.Float64() }
func (systemRandom) Int64N(n int64) int64 { return rand.Int64N(n) }

// NewRandom returns the default Random.
func NewRandom() Random { return systemRandom{} }

// jitter picks a duration in [lo, hi].
func jitter(r Random, lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(r.Int64N(int64(hi-lo)+1))
}

// PauseFunc waits for d or until ctx is done.
type PauseFunc func(ctx context.Context, d time.Duration) error

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

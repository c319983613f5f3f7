package nudge

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Ticker is a unit of periodic work.
type Ticker interface {
	Tick(ctx context.Context) Result
}

// Scheduler runs a Ticker every interval. The first tick happens one
// interval after Run is called.
type Scheduler struct {
	job      Ticker
	interval time.Duration
	logger   *zap.SugaredLogger
}

func NewScheduler(job Ticker, interval time.Duration, logger *zap.SugaredLogger) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{job: job, interval: interval, logger: logger}
}

// Run ticks until ctx is done. Ticks never overlap within one process.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res := s.job.Tick(ctx)
			s.logger.Debugw("nudge tick", "skipped", res.Skipped, "reason", res.Reason, "processed", res.Processed)
		}
	}
}

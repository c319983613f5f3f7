// Package nudge re-engages users whose chats went quiet: it picks stale
// sessions, writes a short message from the character and notifies the user.
package nudge

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-chat-go/internal/config"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/llm"
	"github.com/ovaphlow/pitchfork/service-chat-go/internal/push"
	"github.com/ovaphlow/pitchfork/service-chat-go/pkg/kvstore"
)

// Config holds the tick knobs.
type Config struct {
	Enabled          bool
	MinInactiveHours int
	MaxPerDay        int
	BatchLimit       int
	LockTTL          time.Duration
	SkipProbability  float64
	JitterMin        time.Duration
	JitterMax        time.Duration
	PushEnabled      bool
}

func ConfigFrom(c *config.Config) Config {
	return Config{
		Enabled:          c.Nudge.Enabled,
		MinInactiveHours: c.Nudge.MinInactiveHours,
		MaxPerDay:        c.Nudge.MaxPerDay,
		BatchLimit:       c.Nudge.BatchLimit,
		LockTTL:          c.Nudge.LockTTL,
		SkipProbability:  c.Nudge.SkipProbability,
		JitterMin:        c.Nudge.JitterMin,
		JitterMax:        c.Nudge.JitterMax,
		PushEnabled:      c.PushEnabled,
	}
}

// Result reports one tick. A skipped tick encodes as {"skipped":true} with an
// optional reason; a completed one as {"processed":n}.
type Result struct {
	Skipped   bool
	Reason    string
	Processed int
}

func (r Result) MarshalJSON() ([]byte, error) {
	if r.Skipped {
		v := map[string]any{"skipped": true}
		if r.Reason != "" {
			v["reason"] = r.Reason
		}
		return json.Marshal(v)
	}
	return json.Marshal(map[string]int{"processed": r.Processed})
}

// ChatStore is the conversation storage a tick reads and writes.
type ChatStore interface {
	SessionStore
	MessageStore
	HistoryStore
}

// Deps are the collaborators of a Job.
type Deps struct {
	Store      kvstore.Store
	Chats      ChatStore
	Characters CharacterStore
	LLM        llm.Completer
	Push       push.Sender
	Random     Random
	Pause      PauseFunc
	Logger     *zap.SugaredLogger
}

// Job is one unit of nudge work. Tick is safe to call from a scheduler or a
// one-shot command.
type Job struct {
	cfg        Config
	lock       *RunLock
	limiter    *RateLimiter
	selector   *Selector
	generator  *Generator
	inserter   *Inserter
	dispatcher *Dispatcher
	random     Random
	pause      PauseFunc
	logger     *zap.SugaredLogger
}

func NewJob(cfg Config, d Deps) *Job {
	if d.Random == nil {
		d.Random = NewRandom()
	}
	if d.Pause == nil {
		d.Pause = sleep
	}
	return &Job{
		cfg:        cfg,
		lock:       NewRunLock(d.Store, d.Logger),
		limiter:    NewRateLimiter(d.Store, d.Logger),
		selector:   NewSelector(d.Chats, d.Characters, d.Logger),
		generator:  NewGenerator(d.LLM, d.Chats, d.Random, d.Logger),
		inserter:   NewInserter(d.Chats, d.Logger),
		dispatcher: NewDispatcher(d.Push, cfg.PushEnabled, d.Logger),
		random:     d.Random,
		pause:      d.Pause,
		logger:     d.Logger,
	}
}

// Tick runs one pass: lock, select, then for each candidate in order skip
// roll, rate limit, generate, insert and dispatch.
func (j *Job) Tick(ctx context.Context) Result {
	if !j.cfg.Enabled {
		return Result{Skipped: true}
	}
	if !j.lock.Acquire(ctx, LockKey, j.cfg.LockTTL) {
		j.logger.Debugw("nudge tick skipped, lock held")
		return Result{Skipped: true, Reason: "locked"}
	}

	candidates := j.selector.Select(ctx, j.cfg.MinInactiveHours, j.cfg.BatchLimit*2)
	processed := 0
	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if j.random.Float64() < j.cfg.SkipProbability {
			continue
		}
		if !j.limiter.Allow(ctx, c.UserID, j.cfg.MaxPerDay) {
			continue
		}
		content := j.generator.Generate(ctx, c.SessionID, c.UserID, c.Character)
		if content == "" {
			content = j.generator.Fallback(c.CharacterName())
		}
		if err := j.inserter.Insert(ctx, c.SessionID, content, false); err != nil {
			j.logger.Warnw("nudge insert failed", "session_id", c.SessionID, "user_id", c.UserID, "err", err)
			continue
		}
		j.dispatcher.Dispatch(ctx, c, content)
		processed++
		if processed >= j.cfg.BatchLimit {
			break
		}
		if err := j.pause(ctx, jitter(j.random, j.cfg.JitterMin, j.cfg.JitterMax)); err != nil {
			break
		}
	}
	j.logger.Infow("nudge tick finished", "candidates", len(candidates), "processed", processed)
	return Result{Processed: processed}
}

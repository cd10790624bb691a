package recurrence

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/myrjola/repsched/internal/day"
	"github.com/myrjola/repsched/internal/errors"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// Runner funnels pass triggers through a single in-flight pass.
//
// Passes never overlap: triggers arriving while a pass runs wait for it and then share a single follow-up pass. An
// optional periodic tick makes occurrences appear even when no client opens a screen.
type Runner struct {
	svc    *Service
	logger *slog.Logger
	now    func() time.Time
	group  singleflight.Group
	cron   *cron.Cron
	tick   time.Duration

	slowThreshold time.Duration
	onSlow        func(ctx context.Context)
	started       atomic.Uint64
}

// NewRunner creates a runner for svc. A positive tick schedules a periodic pass once Start is called.
func NewRunner(svc *Service, logger *slog.Logger, tick time.Duration) *Runner {
	return &Runner{
		svc:    svc,
		logger: logger,
		now:    time.Now,
		group:  singleflight.Group{},
		cron:   cron.New(cron.WithLocation(day.Location())),
		tick:   tick,

		slowThreshold: 0,
		onSlow:        nil,
		started:       atomic.Uint64{},
	}
}

// OnSlowPass registers fn to be called after a pass that took longer than threshold. Call it before Start.
func (r *Runner) OnSlowPass(threshold time.Duration, fn func(ctx context.Context)) {
	r.slowThreshold = threshold
	r.onSlow = fn
}

// Trigger runs a pass or joins the one in flight. trigger names the cause, e.g. the focused screen.
//
// A pass that was already running when the trigger arrived has listed its rules before it, so the trigger waits for
// it and then runs, or joins, a fresh pass. Rules created just before a focus event are therefore always evaluated
// for it. The pass outlives a cancelled ctx so that callers joining it are not failed by the first caller going away.
func (r *Runner) Trigger(ctx context.Context, trigger string) (PassResult, error) {
	arrived := r.started.Load()
	out, shared, err := r.join(ctx, trigger)
	if err == nil && out.seq <= arrived {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "in-flight scheduling pass predates trigger, running again",
			slog.String("trigger", trigger))
		out, shared, err = r.join(ctx, trigger)
	}
	if err != nil {
		return PassResult{}, fmt.Errorf("scheduling pass: %w", err)
	}
	if shared {
		r.logger.LogAttrs(ctx, slog.LevelDebug, "joined in-flight scheduling pass", slog.String("trigger", trigger))
	}
	return out.result, nil
}

// passOutcome is the result of a pass together with its sequence number. Sequence numbers increase with every
// pass started.
type passOutcome struct {
	seq    uint64
	result PassResult
}

func (r *Runner) join(ctx context.Context, trigger string) (passOutcome, bool, error) {
	v, err, shared := r.group.Do("pass", func() (any, error) {
		seq := r.started.Add(1)
		passCtx := context.WithoutCancel(ctx)
		start := time.Now()
		result, err := r.svc.runPass(passCtx, r.now(), trigger)
		if elapsed := time.Since(start); r.onSlow != nil && elapsed > r.slowThreshold {
			r.logger.LogAttrs(passCtx, slog.LevelWarn, "slow scheduling pass",
				slog.String("trigger", trigger), slog.Duration("duration", elapsed))
			r.onSlow(passCtx)
		}
		return passOutcome{seq: seq, result: result}, err
	})
	if err != nil {
		return passOutcome{}, shared, err //nolint:wrapcheck // wrapped by Trigger.
	}
	out, _ := v.(passOutcome)
	return out, shared, nil
}

// Start schedules the periodic tick, if any, and starts the scheduler goroutine.
func (r *Runner) Start() error {
	if r.tick > 0 {
		if _, err := r.cron.AddFunc(fmt.Sprintf("@every %s", r.tick), func() {
			if _, err := r.Trigger(context.Background(), "tick"); err != nil {
				r.logger.LogAttrs(context.Background(), slog.LevelError, "periodic scheduling pass failed",
					errors.SlogError(err))
			}
		}); err != nil {
			return fmt.Errorf("schedule periodic pass: %w", err)
		}
	}
	r.cron.Start()
	return nil
}

// Stop stops the periodic tick and waits for a running tick to finish or ctx to be done.
func (r *Runner) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

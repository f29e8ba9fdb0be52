// Package scheduler implements the Scheduler (spec §4.5): a cooperative,
// single-threaded loop that evaluates the live cron expression, waits for
// its next occurrence, runs the Sync Pipeline, then the Retention Engine
// under a mutex, and returns to re-evaluate the cron expression.
package scheduler

import (
	"context"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/reposync/retention"
	"go.uber.org/zap"
)

// waitSlice bounds how long a single Wait iteration sleeps before
// re-checking cancellation and cron-expression changes (spec §5 "cron wait
// slice (≤1 s)").
const waitSlice = 1 * time.Second

// cronRetryDelay is how long EvaluateCron waits before rechecking an
// unparseable cron expression.
const cronRetryDelay = 1 * time.Second

// SyncRunner is the collaborator invoked by the Run state.
type SyncRunner interface {
	Run(ctx context.Context, settings config.Settings) error
}

// RetentionRunner is the collaborator invoked by the PostRun state.
type RetentionRunner interface {
	Run(ctx context.Context, settings config.Settings) (retention.Result, error)
}

// Scheduler drives the repositories job family's cooperative loop.
type Scheduler struct {
	Sync      SyncRunner
	Retention RetentionRunner
	Log       *zap.SugaredLogger

	// Now returns the current instant in UTC. Defaults to time.Now().UTC.
	Now func() time.Time
	// Sleep suspends the loop for d, returning early if ctx is cancelled.
	// Defaults to a context-aware real sleep.
	Sleep func(ctx context.Context, d time.Duration)

	retentionMu      chan struct{} // 1-buffered semaphore, spec §5 "retention mutex"
	lastWarnedInvalid string
}

// New returns a Scheduler ready to Run.
func New(sync SyncRunner, retentionEngine RetentionRunner, log *zap.SugaredLogger) *Scheduler {
	return &Scheduler{
		Sync:        sync,
		Retention:   retentionEngine,
		Log:         log,
		retentionMu: make(chan struct{}, 1),
	}
}

// Settings is the live-snapshot accessor the loop reads at the start of
// every state. A function rather than a stored field so the caller decides
// how freshness is published (e.g. config.Watcher.Snapshots() draining into
// an atomic.Value).
type Settings func() config.Settings

// Run executes the cooperative loop until ctx is cancelled (spec §4.5). It
// returns ctx.Err() on cancellation. If ComputeNext finds no future
// occurrence for an otherwise-valid cron expression, it logs an error and
// returns nil.
func (s *Scheduler) Run(ctx context.Context, live Settings) error {
	for {
		schedule, cronExpr, err := s.evaluateCron(ctx, live)
		if err != nil {
			if err == context.Canceled || ctx.Err() != nil {
				return ctx.Err()
			}
			continue // unparseable; evaluateCron already slept and logged
		}

		target, ok := s.computeNext(schedule)
		if !ok {
			s.Log.Errorw("cron expression has no future occurrence, terminating loop", "cron", cronExpr)
			return nil
		}

		switch s.wait(ctx, live, cronExpr, target) {
		case waitOutcomeShutdown:
			return ctx.Err()
		case waitOutcomeReschedule:
			continue
		case waitOutcomeRun:
		}

		settings := live()
		s.run(ctx, settings)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.postRun(ctx, settings)
	}
}

// evaluateCron reads the live cron expression and parses it, retrying with
// a fixed delay (and a de-duplicated warning) while it remains unparseable.
func (s *Scheduler) evaluateCron(ctx context.Context, live Settings) (cronSchedule, string, error) {
	expr := live().Schedule.Repositories.Cron
	schedule, err := parseCron(expr)
	if err != nil {
		if expr != s.lastWarnedInvalid {
			s.Log.Warnw("cron expression invalid, retrying", "cron", expr, "error", err)
			s.lastWarnedInvalid = expr
		}
		s.sleep(ctx, cronRetryDelay)
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", errCronInvalid
	}
	s.lastWarnedInvalid = ""
	return schedule, expr, nil
}

// computeNext resolves the next occurrence strictly after now+1ms, in UTC.
func (s *Scheduler) computeNext(schedule cronSchedule) (time.Time, bool) {
	from := s.now().Add(time.Millisecond)
	next := schedule.Next(from)
	return next, !next.IsZero()
}

type waitOutcome int

const (
	waitOutcomeRun waitOutcome = iota
	waitOutcomeShutdown
	waitOutcomeReschedule
)

// wait sleeps in ≤1s slices until the target is reached, cancellation is
// signaled, or the live cron expression changes out from under the
// currently scheduled target (spec §4.5 Wait).
func (s *Scheduler) wait(ctx context.Context, live Settings, scheduledFor string, target time.Time) waitOutcome {
	for {
		if ctx.Err() != nil {
			return waitOutcomeShutdown
		}
		now := s.now()
		if !now.Before(target) {
			return waitOutcomeRun
		}
		if live().Schedule.Repositories.Cron != scheduledFor {
			return waitOutcomeReschedule
		}
		remaining := target.Sub(now)
		slice := waitSlice
		if remaining < slice {
			slice = remaining
		}
		s.sleep(ctx, slice)
	}
}

// run invokes the Sync Pipeline once, recovering from panics so a single
// malformed job family iteration never kills the process (spec §4.5 Run:
// "exceptions are caught and logged with the elapsed duration").
func (s *Scheduler) run(ctx context.Context, settings config.Settings) {
	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.Log.Errorw("sync run panicked", "panic", r, "elapsed", s.now().Sub(started))
		}
	}()
	if err := s.Sync.Run(ctx, settings); err != nil {
		s.Log.Errorw("sync run failed", "error", err, "elapsed", s.now().Sub(started))
		return
	}
	s.Log.Infow("sync run complete", "elapsed", s.now().Sub(started))
}

// postRun acquires the retention mutex so retention never overlaps a sync
// run, invokes the Retention Engine, then releases it (spec §4.5 PostRun,
// §5 "retention mutex").
func (s *Scheduler) postRun(ctx context.Context, settings config.Settings) {
	s.retentionMu <- struct{}{}
	defer func() { <-s.retentionMu }()

	started := s.now()
	defer func() {
		if r := recover(); r != nil {
			s.Log.Errorw("retention run panicked", "panic", r, "elapsed", s.now().Sub(started))
		}
	}()
	result, err := s.Retention.Run(ctx, settings)
	if err != nil {
		s.Log.Errorw("retention run failed", "error", err, "elapsed", s.now().Sub(started))
		return
	}
	s.Log.Infow("retention run complete",
		"elapsed", s.now().Sub(started),
		"snapshotsDeleted", result.SnapshotsDeleted,
		"indexesRewritten", result.IndexesRewritten,
		"registryRewritten", result.RegistryRewritten,
	)
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) {
	if s.Sleep != nil {
		s.Sleep(ctx, d)
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}

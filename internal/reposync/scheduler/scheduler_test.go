package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gitvault/gitvault/internal/config"
	"github.com/gitvault/gitvault/internal/reposync/retention"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSync struct {
	calls   int32
	lastErr error
}

func (f *fakeSync) Run(ctx context.Context, settings config.Settings) error {
	atomic.AddInt32(&f.calls, 1)
	return f.lastErr
}

type fakeRetention struct {
	calls int32
}

func (f *fakeRetention) Run(ctx context.Context, settings config.Settings) (retention.Result, error) {
	atomic.AddInt32(&f.calls, 1)
	return retention.Result{}, nil
}

func settingsWithCron(expr string) config.Settings {
	var s config.Settings
	s.Schedule.Repositories.Cron = expr
	return s
}

func TestComputeNextStrictlyAfterNow(t *testing.T) {
	sync := &fakeSync{}
	ret := &fakeRetention{}
	s := New(sync, ret, zap.NewNop().Sugar())
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }

	schedule, err := parseCron("* * * * *")
	require.NoError(t, err)
	next, ok := s.computeNext(schedule)
	require.True(t, ok)
	require.True(t, next.After(now))
}

func TestParseCronAcceptsFiveAndSixField(t *testing.T) {
	_, err := parseCron("* * * * *")
	require.NoError(t, err)
	_, err = parseCron("*/5 * * * * *")
	require.NoError(t, err)
	_, err = parseCron("not a cron expression")
	require.Error(t, err)
}

func TestRunInvokesSyncThenRetentionEachOccurrence(t *testing.T) {
	sync := &fakeSync{}
	ret := &fakeRetention{}
	s := New(sync, ret, zap.NewNop().Sugar())

	settings := settingsWithCron("* * * * * *") // every second, 6-field
	live := func() config.Settings { return settings }

	ctx, cancel := context.WithTimeout(context.Background(), 2500*time.Millisecond)
	defer cancel()

	err := s.Run(ctx, live)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, int(atomic.LoadInt32(&sync.calls)), 1)
	require.GreaterOrEqual(t, int(atomic.LoadInt32(&ret.calls)), 1)
	require.Equal(t, atomic.LoadInt32(&sync.calls), atomic.LoadInt32(&ret.calls), "every sync run is followed by exactly one retention run")
}

func TestRunTerminatesOnShutdownDuringWait(t *testing.T) {
	sync := &fakeSync{}
	ret := &fakeRetention{}
	s := New(sync, ret, zap.NewNop().Sugar())

	settings := settingsWithCron("0 0 1 1 *") // once a year: effectively never within the test window
	live := func() config.Settings { return settings }

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	err := s.Run(ctx, live)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, atomic.LoadInt32(&sync.calls))
}

func TestRunReschedulesWhenCronExpressionChangesMidWait(t *testing.T) {
	sync := &fakeSync{}
	ret := &fakeRetention{}
	s := New(sync, ret, zap.NewNop().Sugar())

	settings := settingsWithCron("0 0 1 1 *")
	live := func() config.Settings { return settings }

	ctx, cancel := context.WithTimeout(context.Background(), 2800*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(200 * time.Millisecond)
		settings = settingsWithCron("* * * * * *")
	}()

	err := s.Run(ctx, live)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, int(atomic.LoadInt32(&sync.calls)), 1, "the new expression's occurrences are not missed")
}

func TestEvaluateCronRetriesOnInvalidExpression(t *testing.T) {
	sync := &fakeSync{}
	ret := &fakeRetention{}
	s := New(sync, ret, zap.NewNop().Sugar())

	settings := settingsWithCron("garbage")
	live := func() config.Settings { return settings }

	ctx, cancel := context.WithTimeout(context.Background(), 2400*time.Millisecond)
	defer cancel()

	go func() {
		time.Sleep(300 * time.Millisecond)
		settings = settingsWithCron("* * * * * *")
	}()

	err := s.Run(ctx, live)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.GreaterOrEqual(t, int(atomic.LoadInt32(&sync.calls)), 1)
}

func TestRunDoesNotStartRetentionAfterCancellationDuringSync(t *testing.T) {
	ret := &fakeRetention{}
	ctx, cancel := context.WithCancel(context.Background())
	sync := &cancelingSync{cancel: cancel}
	s := New(sync, ret, zap.NewNop().Sugar())

	settings := settingsWithCron("* * * * * *")
	live := func() config.Settings { return settings }

	err := s.Run(ctx, live)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, atomic.LoadInt32(&ret.calls), "cancellation during sync skips retention for that iteration")
}

type cancelingSync struct {
	cancel context.CancelFunc
}

func (c *cancelingSync) Run(ctx context.Context, settings config.Settings) error {
	c.cancel()
	return nil
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniconomy2025/sumsang-phones/repository/memory"
	"github.com/miniconomy2025/sumsang-phones/usecase/simulation"
)

type recordingRunner struct {
	mu      sync.Mutex
	days    []int
	err     error
	panic   bool
	started chan struct{}
	block   chan struct{}
}

func (r *recordingRunner) RunDay(_ context.Context, day int) (simulation.Report, error) {
	if r.started != nil {
		close(r.started)
	}
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.days = append(r.days, day)
	r.mu.Unlock()
	if r.panic {
		panic("boom")
	}
	return simulation.Report{Day: day}, r.err
}

type staticHealth bool

func (h staticHealth) IsOnline() bool { return bool(h) }

type fakeLease struct {
	held     bool
	released int
}

func (l *fakeLease) Acquire(context.Context) (func(context.Context), bool, error) {
	if l.held {
		return nil, false, nil
	}
	return func(context.Context) { l.released++ }, true, nil
}

var epoch = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestScheduler(t *testing.T, runner DayRunner, health ConnectionHealth, lease Lease) (*Scheduler, *time.Time) {
	t.Helper()
	repos := memory.NewStore().Repositories()
	require.NoError(t, repos.Simulation.Reset(context.Background(), epoch))

	s := NewScheduler(repos.Simulation, runner, health, lease, nil, SchedulerConfig{
		PollInterval: time.Second,
		DayLength:    time.Minute,
	})
	now := epoch.Add(10 * time.Second)
	s.now = func() time.Time { return now }
	return s, &now
}

func TestTickRunsOncePerDay(t *testing.T) {
	runner := &recordingRunner{}
	s, now := newTestScheduler(t, runner, nil, nil)
	ctx := context.Background()

	res, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, 1, res.Day)

	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.False(t, res.Ran)
	assert.Equal(t, "same day", res.Reason)

	*now = epoch.Add(61 * time.Second)
	res, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.True(t, res.Ran)

	assert.Equal(t, []int{1, 2}, runner.days)
}

func TestTickSkipsWhenStopped(t *testing.T) {
	runner := &recordingRunner{}
	repos := memory.NewStore().Repositories()
	s := NewScheduler(repos.Simulation, runner, nil, nil, nil, SchedulerConfig{})

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "stopped", res.Reason)
	assert.Empty(t, runner.days)
}

func TestTickSkipsWhileOffline(t *testing.T) {
	runner := &recordingRunner{}
	s, _ := newTestScheduler(t, runner, staticHealth(false), nil)

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "offline", res.Reason)
	assert.Empty(t, runner.days)
}

func TestTickRespectsLease(t *testing.T) {
	runner := &recordingRunner{}
	lease := &fakeLease{held: true}
	s, _ := newTestScheduler(t, runner, staticHealth(true), lease)

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "leased", res.Reason)

	lease.held = false
	res, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ran)
	assert.Equal(t, 1, lease.released)
}

func TestTickIsSingleFlight(t *testing.T) {
	runner := &recordingRunner{started: make(chan struct{}), block: make(chan struct{})}
	s, _ := newTestScheduler(t, runner, nil, nil)

	done := make(chan TickResult)
	go func() {
		res, _ := s.Tick(context.Background())
		done <- res
	}()
	<-runner.started

	res, err := s.Tick(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "busy", res.Reason)

	close(runner.block)
	first := <-done
	assert.True(t, first.Ran)
	assert.Equal(t, []int{1}, runner.days)
}

func TestTickRecoversPanicAndReportsError(t *testing.T) {
	runner := &recordingRunner{panic: true}
	s, now := newTestScheduler(t, runner, nil, nil)

	res, err := s.Tick(context.Background())
	require.Error(t, err)
	assert.True(t, res.Ran)
	assert.Contains(t, err.Error(), "panic")

	runner.panic = false
	runner.err = errors.New("phase failed")
	*now = epoch.Add(2 * time.Minute)
	_, err = s.Tick(context.Background())
	assert.EqualError(t, err, "phase failed")

	// the token was released both times
	*now = epoch.Add(3 * time.Minute)
	runner.err = nil
	res, err = s.Tick(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Ran)
}

func TestStartStopIdempotent(t *testing.T) {
	s, _ := newTestScheduler(t, &recordingRunner{}, nil, nil)
	s.Start()
	s.Start()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
	s.Stop(ctx)
}

package services

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase/simulation"
)

// ConnectionHealth abstracts the connection monitor functionality.
type ConnectionHealth interface {
	IsOnline() bool
}

// DayRunner runs the daily pipeline.
type DayRunner interface {
	RunDay(ctx context.Context, day int) (simulation.Report, error)
}

// Lease is a cross-instance guard around one pipeline run.
type Lease interface {
	Acquire(ctx context.Context) (release func(context.Context), ok bool, err error)
}

// SchedulerConfig controls the polling cadence.
type SchedulerConfig struct {
	PollInterval time.Duration
	DayLength    time.Duration
	// RunTimeout bounds one pipeline run.
	RunTimeout time.Duration
}

// TickResult describes what one tick did.
type TickResult struct {
	Day    int
	Ran    bool
	Reason string
	Report simulation.Report
}

// Scheduler polls the persisted clock and runs the pipeline once per new day.
type Scheduler struct {
	clock   repository.SimulationRepository
	runner  DayRunner
	monitor ConnectionHealth
	lease   Lease
	token   *semaphore.Weighted
	logger  *zap.Logger
	cron    *cron.Cron
	cfg     SchedulerConfig
	now     func() time.Time

	mu      sync.Mutex
	started bool
}

func NewScheduler(
	clock repository.SimulationRepository,
	runner DayRunner,
	monitor ConnectionHealth,
	lease Lease,
	logger *zap.Logger,
	cfg SchedulerConfig,
) *Scheduler {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.DayLength <= 0 {
		cfg.DayLength = 2 * time.Minute
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = cfg.DayLength
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Scheduler{
		clock:   clock,
		runner:  runner,
		monitor: monitor,
		lease:   lease,
		token:   semaphore.NewWeighted(1),
		logger:  logger,
		cfg:     cfg,
		now:     time.Now,
		cron:    cron.New(cron.WithSeconds()),
	}

	schedule := fmt.Sprintf("@every %s", cfg.PollInterval)
	_, _ = s.cron.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.RunTimeout)
		defer cancel()
		if _, err := s.Tick(ctx); err != nil {
			s.logger.Error("daily pipeline failed", zap.Error(err))
		}
	})

	return s
}

// Start launches the cron scheduler. Calling it twice is a no-op.
func (s *Scheduler) Start() {
	if s == nil || s.cron == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.started = true
	s.cron.Start()
	s.logger.Info("day scheduler started", zap.Duration("poll_interval", s.cfg.PollInterval))
}

// Stop halts the cron and waits for a running tick or ctx.
func (s *Scheduler) Stop(ctx context.Context) {
	if s == nil || s.cron == nil {
		return
	}
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.started = false
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-ctx.Done():
	}
	s.logger.Info("day scheduler stopped")
}

// Tick checks the clock once. When the simulated day moved past the
// persisted counter it claims the new day and runs the pipeline for it.
// Overlapping ticks are skipped.
func (s *Scheduler) Tick(ctx context.Context) (TickResult, error) {
	if !s.token.TryAcquire(1) {
		s.logger.Debug("tick skipped, pipeline still running")
		return TickResult{Reason: "busy"}, nil
	}
	defer s.token.Release(1)

	if s.monitor != nil && !s.monitor.IsOnline() {
		s.logger.Debug("tick skipped (offline)")
		return TickResult{Reason: "offline"}, nil
	}

	if s.lease != nil {
		release, ok, err := s.lease.Acquire(ctx)
		if err != nil {
			return TickResult{Reason: "lease"}, fmt.Errorf("acquire lease: %w", err)
		}
		if !ok {
			s.logger.Debug("tick skipped, lease held elsewhere")
			return TickResult{Reason: "leased"}, nil
		}
		defer release(context.WithoutCancel(ctx))
	}

	clock, err := s.clock.Clock(ctx)
	if err != nil {
		if errors.Is(err, domain.ErrSimulationNotStarted) {
			return TickResult{Reason: "stopped"}, nil
		}
		return TickResult{}, err
	}
	if !clock.Running {
		return TickResult{Reason: "stopped"}, nil
	}

	day := clock.DayAt(s.now(), s.cfg.DayLength)
	advanced, err := s.clock.AdvanceDay(ctx, day)
	if err != nil {
		return TickResult{Day: day}, err
	}
	if !advanced {
		return TickResult{Day: day, Reason: "same day"}, nil
	}

	report, err := s.run(ctx, day)
	return TickResult{Day: day, Ran: true, Report: report}, err
}

func (s *Scheduler) run(ctx context.Context, day int) (report simulation.Report, err error) {
	log := logger.FromContext(logger.ContextWithDay(ctx, day), s.logger)
	defer func() {
		if r := recover(); r != nil {
			log.Error("daily pipeline panicked",
				zap.Any("panic", r),
				zap.ByteString("stack", debug.Stack()))
			err = fmt.Errorf("day %d: pipeline panic: %v", day, r)
		}
	}()

	log.Info("day started")
	return s.runner.RunDay(ctx, day)
}

var _ simulation.Scheduler = (*Scheduler)(nil)

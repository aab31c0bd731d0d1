package usecase

import (
	"context"
	"time"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

// Calendar derives the simulated day from the persisted clock.
type Calendar struct {
	Simulation repository.SimulationRepository
	DayLength  time.Duration
	Now        func() time.Time
}

// Today is the day the clock points at now. It fails when the simulation is
// not running.
func (c Calendar) Today(ctx context.Context) (int, error) {
	clock, err := c.Simulation.Clock(ctx)
	if err != nil {
		return 0, err
	}
	if !clock.Running {
		return 0, domain.ErrSimulationNotStarted
	}
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	day := clock.DayAt(now(), c.DayLength)
	if day < clock.CurrentDay {
		day = clock.CurrentDay
	}
	return day, nil
}

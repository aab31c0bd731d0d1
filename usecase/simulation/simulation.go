// Package simulation starts and stops the simulated company and drives its
// daily batch.
package simulation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase/finance"
	"github.com/miniconomy2025/sumsang-phones/usecase/procurement"
)

// Scheduler is the timer that fires the daily pipeline.
type Scheduler interface {
	Start()
	Stop(ctx context.Context)
}

// Resetter clears per-run state kept outside the store.
type Resetter interface {
	Reset(ctx context.Context) error
}

// Seed sizes the purchases placed when a run starts.
type Seed struct {
	MachinesPerProduct int
	PartBatch          int
	InitialLoan        decimal.Decimal
}

type UseCase struct {
	simulation       repository.SimulationRepository
	catalog          repository.CatalogRepository
	machinePurchases repository.MachinePurchaseRepository
	events           repository.EventRepository
	machineSupplier  gateway.MachineSupplier
	finance          *finance.UseCase
	procurement      *procurement.UseCase
	journal          Resetter
	scheduler        Scheduler
	seed             Seed
	now              func() time.Time
	logger           *zap.Logger

	mu sync.Mutex
}

// Option customises a UseCase.
type Option func(*UseCase)

// WithClock overrides the wall clock used for the default epoch.
func WithClock(now func() time.Time) Option {
	return func(uc *UseCase) { uc.now = now }
}

func New(
	store repository.Store,
	machineSupplier gateway.MachineSupplier,
	financeUC *finance.UseCase,
	procurementUC *procurement.UseCase,
	journal Resetter,
	scheduler Scheduler,
	seed Seed,
	logger *zap.Logger,
	opts ...Option,
) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	uc := &UseCase{
		simulation:       store.Simulation,
		catalog:          store.Catalog,
		machinePurchases: store.MachinePurchases,
		events:           store.Events,
		machineSupplier:  machineSupplier,
		finance:          financeUC,
		procurement:      procurementUC,
		journal:          journal,
		scheduler:        scheduler,
		seed:             seed,
		now:              time.Now,
		logger:           logger,
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// Start wipes the previous run and begins a new one at epoch (now when
// zero). The bank account and loan must succeed; seed purchases that fail
// are logged and left to the daily procurement.
func (uc *UseCase) Start(ctx context.Context, epoch time.Time) (domain.Clock, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	clock, err := uc.currentClock(ctx)
	if err != nil {
		return domain.Clock{}, err
	}
	if clock.Running {
		return clock, domain.ErrSimulationRunning
	}
	if epoch.IsZero() {
		epoch = uc.now()
	}

	// Transaction ids restart with the store, so journal entries of the
	// previous run would answer for the new one.
	if uc.journal != nil {
		if err := uc.journal.Reset(ctx); err != nil {
			return domain.Clock{}, fmt.Errorf("journal reset: %w", err)
		}
	}
	if err := uc.simulation.Reset(ctx, epoch); err != nil {
		return domain.Clock{}, fmt.Errorf("reset: %w", err)
	}

	if err := uc.openBanking(ctx); err != nil {
		if stopErr := uc.simulation.SetRunning(ctx, false); stopErr != nil {
			uc.logger.Error("failed to roll back start", zap.Error(stopErr))
		}
		return domain.Clock{}, err
	}

	if err := uc.seedMachines(ctx); err != nil {
		uc.logger.Warn("machine seeding incomplete", zap.Error(err))
	}
	if err := uc.seedParts(ctx); err != nil {
		uc.logger.Warn("parts seeding incomplete", zap.Error(err))
	}

	if uc.scheduler != nil {
		uc.scheduler.Start()
	}

	clock, err = uc.simulation.Clock(ctx)
	if err != nil {
		return domain.Clock{}, err
	}
	logger.FromContext(ctx, uc.logger).Info("simulation started", zap.Time("epoch", clock.Epoch))
	return clock, nil
}

// Stop halts the scheduler and marks the run stopped. State is kept.
func (uc *UseCase) Stop(ctx context.Context) (domain.Clock, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	clock, err := uc.simulation.Clock(ctx)
	if err != nil {
		return domain.Clock{}, err
	}
	if !clock.Running {
		return clock, domain.ErrSimulationNotStarted
	}
	if uc.scheduler != nil {
		uc.scheduler.Stop(ctx)
	}
	if err := uc.simulation.SetRunning(ctx, false); err != nil {
		return clock, err
	}
	clock.Running = false
	logger.FromContext(ctx, uc.logger).Info("simulation stopped", zap.Int("day", clock.CurrentDay))
	return clock, nil
}

// Resume restarts the scheduler after a process restart when the persisted
// clock says a run is in progress.
func (uc *UseCase) Resume(ctx context.Context) (bool, error) {
	clock, err := uc.currentClock(ctx)
	if err != nil {
		return false, err
	}
	if !clock.Running {
		return false, nil
	}
	if uc.scheduler != nil {
		uc.scheduler.Start()
	}
	uc.logger.Info("simulation resumed", zap.Int("day", clock.CurrentDay))
	return true, nil
}

// currentClock treats a store that never held a run as stopped.
func (uc *UseCase) currentClock(ctx context.Context) (domain.Clock, error) {
	clock, err := uc.simulation.Clock(ctx)
	if errors.Is(err, domain.ErrSimulationNotStarted) {
		return domain.Clock{}, nil
	}
	return clock, err
}

func (uc *UseCase) openBanking(ctx context.Context) error {
	if uc.finance == nil {
		return nil
	}
	if _, err := uc.finance.OpenAccount(ctx); err != nil {
		return err
	}
	if _, err := uc.finance.TakeLoan(ctx, uc.seed.InitialLoan); err != nil {
		return err
	}
	return nil
}

// seedMachines orders the starting fleet for every product.
func (uc *UseCase) seedMachines(ctx context.Context) error {
	if uc.seed.MachinesPerProduct <= 0 {
		return nil
	}
	if uc.machineSupplier == nil {
		return domain.ErrCounterpartyUnavailable
	}
	products, err := uc.catalog.Products(ctx)
	if err != nil {
		return err
	}

	var errs []error
	for _, product := range products {
		order, err := uc.machineSupplier.PurchaseMachines(ctx, product, uc.seed.MachinesPerProduct)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", product.Name, err))
			continue
		}
		purchase := &domain.MachinePurchase{
			ProductID:    product.ID,
			MachineCount: uc.seed.MachinesPerProduct,
			RatePerDay:   order.RatePerDay,
			Ratios:       order.Ratios,
			Cost:         order.Cost,
			Reference:    order.Reference,
			Account:      order.Account,
			Status:       domain.MachinePurchasePipeline.Initial(),
		}
		if err := uc.machinePurchases.Create(ctx, purchase); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", product.Name, err))
			continue
		}
		if uc.events != nil {
			_ = uc.events.Append(ctx, domain.StatusEvent{
				Kind:          domain.KindMachinePurchase,
				TransactionID: purchase.ID,
				To:            purchase.Status,
				CreatedAt:     time.Now(),
			})
		}
		uc.logger.Info("machine purchase placed",
			zap.Int64("purchase_id", purchase.ID),
			zap.String("product", product.Name),
			zap.Int("machines", purchase.MachineCount))
	}
	return errors.Join(errs...)
}

// seedParts orders one batch of every part type.
func (uc *UseCase) seedParts(ctx context.Context) error {
	if uc.seed.PartBatch <= 0 || uc.procurement == nil {
		return nil
	}
	var errs []error
	for _, part := range domain.Parts {
		if _, err := uc.procurement.Order(ctx, 0, part, uc.seed.PartBatch); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", part, err))
		}
	}
	return errors.Join(errs...)
}

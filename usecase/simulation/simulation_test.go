package simulation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/repository/memory"
	"github.com/miniconomy2025/sumsang-phones/usecase/advance"
	"github.com/miniconomy2025/sumsang-phones/usecase/finance"
	"github.com/miniconomy2025/sumsang-phones/usecase/procurement"
	"github.com/miniconomy2025/sumsang-phones/usecase/production"
)

type fakeBank struct {
	down     bool
	payments int
	repaid   int
}

func (b *fakeBank) OpenAccount(context.Context) (string, error) {
	if b.down {
		return "", domain.ErrCounterpartyUnavailable
	}
	return "ACC", nil
}

func (b *fakeBank) ApplyForLoan(_ context.Context, amount decimal.Decimal) (gateway.Loan, error) {
	return gateway.Loan{Number: "LOAN", Amount: amount}, nil
}

func (b *fakeBank) MakePayment(context.Context, gateway.Payment) error {
	if b.down {
		return domain.ErrCounterpartyUnavailable
	}
	b.payments++
	return nil
}

func (b *fakeBank) LoanBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.NewFromInt(1000), nil
}

func (b *fakeBank) RepayLoan(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	b.repaid++
	return amount, nil
}

type fakeCarrier struct{ n int }

func (c *fakeCarrier) RequestDelivery(context.Context, gateway.DeliveryRequest) (domain.Delivery, error) {
	c.n++
	return domain.Delivery{Reference: fmt.Sprintf("pickup-%d", c.n), Cost: decimal.NewFromInt(5), Account: "carrier"}, nil
}

type fakeSupplier struct {
	name string
	down bool
	n    int
}

func (s *fakeSupplier) Name() string { return s.name }

func (s *fakeSupplier) Purchase(_ context.Context, qty int) (gateway.SupplierOrder, error) {
	if s.down {
		return gateway.SupplierOrder{}, domain.ErrCounterpartyUnavailable
	}
	s.n++
	return gateway.SupplierOrder{Reference: fmt.Sprintf("%s-%d", s.name, s.n), Cost: decimal.NewFromInt(int64(qty)), Account: s.name}, nil
}

func (s *fakeSupplier) OrderOpen(context.Context, string) (bool, error) { return true, nil }

type fakeMachineSupplier struct{}

func (fakeMachineSupplier) Name() string { return "machines" }

func (fakeMachineSupplier) PurchaseMachines(_ context.Context, product domain.Product, count int) (gateway.MachineOrder, error) {
	return gateway.MachineOrder{
		SupplierOrder: gateway.SupplierOrder{
			Reference: fmt.Sprintf("m-%d", product.ID),
			Cost:      decimal.NewFromInt(int64(count) * 1000),
			Account:   "machines",
		},
		RatePerDay: 20,
		Ratios:     domain.Recipe{domain.PartScreen: 1, domain.PartCase: 1, domain.PartElectronics: 1},
	}, nil
}

type fakeScheduler struct {
	starts, stops int
}

func (s *fakeScheduler) Start()                   { s.starts++ }
func (s *fakeScheduler) Stop(ctx context.Context) { s.stops++ }

type fakeResetter struct {
	resets int
	err    error
}

func (r *fakeResetter) Reset(context.Context) error {
	if r.err != nil {
		return r.err
	}
	r.resets++
	return nil
}

type harness struct {
	mem       *memory.Store
	repos     repository.Store
	bank      *fakeBank
	suppliers map[domain.Part]*fakeSupplier
	scheduler *fakeScheduler
	journal   *fakeResetter
	sim       *UseCase
	pipeline  *Pipeline
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		mem: memory.NewStore(
			domain.Product{
				ID:     1,
				Name:   "Cosmos Z25",
				Price:  decimal.NewFromInt(1000),
				Recipe: domain.Recipe{domain.PartScreen: 1, domain.PartCase: 1, domain.PartElectronics: 1},
			},
			domain.Product{ID: 2, Name: "Cosmos Z25 FE", Price: decimal.NewFromInt(700)},
		),
		bank:      &fakeBank{},
		scheduler: &fakeScheduler{},
		journal:   &fakeResetter{},
		suppliers: map[domain.Part]*fakeSupplier{
			domain.PartScreen:      {name: "screens"},
			domain.PartCase:        {name: "cases"},
			domain.PartElectronics: {name: "electronics"},
		},
	}
	h.repos = h.mem.Repositories()

	gw := &gateway.Gateway{
		Bank:              h.bank,
		BulkLogistics:     &fakeCarrier{},
		ConsumerLogistics: &fakeCarrier{},
		PartSuppliers:     map[domain.Part]gateway.Supplier{},
		MachineSupplier:   fakeMachineSupplier{},
	}
	for part, s := range h.suppliers {
		gw.PartSuppliers[part] = s
	}

	financeUC := finance.New(h.repos.Simulation, h.bank, nil, decimal.NewFromInt(100), nil)
	procurementUC := procurement.New(h.repos, gw, nil, procurement.DefaultPolicy(), nil)
	h.sim = New(h.repos, gw.MachineSupplier, financeUC, procurementUC, h.journal, h.scheduler, Seed{
		MachinesPerProduct: 2,
		PartBatch:          1000,
		InitialLoan:        decimal.NewFromInt(50000),
	}, nil)
	h.pipeline = NewPipeline(
		procurementUC,
		production.New(h.repos, production.DefaultPolicy(), nil),
		advance.New(h.repos, gw, nil, advance.DefaultPolicy(), nil),
		financeUC,
		nil, 0, nil,
	)
	return h
}

func TestStartSeedsTheRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	epoch := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	clock, err := h.sim.Start(ctx, epoch)
	require.NoError(t, err)
	assert.True(t, clock.Running)
	assert.Equal(t, 0, clock.CurrentDay)
	assert.Equal(t, epoch, clock.Epoch)
	assert.Equal(t, 1, h.scheduler.starts)
	assert.Equal(t, 1, h.journal.resets)

	account, err := h.repos.Simulation.Setting(ctx, domain.SettingAccountNumber)
	require.NoError(t, err)
	assert.Equal(t, "ACC", account)
	loan, err := h.repos.Simulation.Setting(ctx, domain.SettingLoanNumber)
	require.NoError(t, err)
	assert.Equal(t, "LOAN", loan)

	machines, err := h.repos.MachinePurchases.List(ctx, repository.PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, machines, 2)
	for _, m := range machines {
		assert.Equal(t, 2, m.MachineCount)
		assert.Equal(t, domain.StatusPendingPayment, m.Status)
	}

	parts, err := h.repos.PartsPurchases.List(ctx, repository.PurchaseFilter{})
	require.NoError(t, err)
	assert.Len(t, parts, 3)
}

func TestStartWhileRunningConflicts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.sim.Start(ctx, time.Time{})
	require.NoError(t, err)

	_, err = h.sim.Start(ctx, time.Time{})
	assert.ErrorIs(t, err, domain.ErrSimulationRunning)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeConflict))
	assert.Equal(t, 1, h.scheduler.starts)
}

func TestStartRollsBackWhenBankIsDown(t *testing.T) {
	h := newHarness(t)
	h.bank.down = true

	_, err := h.sim.Start(context.Background(), time.Time{})
	require.Error(t, err)

	clock, err := h.repos.Simulation.Clock(context.Background())
	require.NoError(t, err)
	assert.False(t, clock.Running)
	assert.Zero(t, h.scheduler.starts)
}

func TestStartFailsWhenJournalCannotReset(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	require.NoError(t, h.repos.Orders.Create(ctx, &domain.Order{
		Items:  []domain.OrderItem{{ProductID: 1, Quantity: 1}},
		Status: domain.StatusPendingPayment,
	}))
	h.journal.err = errors.New("bolt: database not open")

	_, err := h.sim.Start(ctx, time.Time{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "journal reset")

	orders, err := h.repos.Orders.List(ctx, repository.OrderFilter{})
	require.NoError(t, err)
	assert.Len(t, orders, 1, "the previous run is left untouched")
	assert.Zero(t, h.scheduler.starts)

	clock, err := h.repos.Simulation.Clock(ctx)
	require.NoError(t, err)
	assert.False(t, clock.Running)
}

func TestStopAndResume(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.sim.Stop(ctx)
	assert.ErrorIs(t, err, domain.ErrSimulationNotStarted)

	_, err = h.sim.Start(ctx, time.Time{})
	require.NoError(t, err)

	clock, err := h.sim.Stop(ctx)
	require.NoError(t, err)
	assert.False(t, clock.Running)
	assert.Equal(t, 1, h.scheduler.stops)

	resumed, err := h.sim.Resume(ctx)
	require.NoError(t, err)
	assert.False(t, resumed)

	require.NoError(t, h.repos.Simulation.SetRunning(ctx, true))
	resumed, err = h.sim.Resume(ctx)
	require.NoError(t, err)
	assert.True(t, resumed)
	assert.Equal(t, 2, h.scheduler.starts)
}

func TestRunDayRunsEveryPhase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.sim.Start(ctx, time.Time{})
	require.NoError(t, err)

	report, err := h.pipeline.RunDay(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Day)
	assert.Len(t, report.Needs, 3)
	require.Len(t, report.Advances, 3)
	assert.Equal(t, 3, report.Advances[1].Examined)
	assert.Equal(t, 2, report.Advances[2].Examined)
	assert.Empty(t, report.Failures)
	assert.Equal(t, 1, h.bank.repaid)

	// 3 supplier and 2 machine payments, each followed by a delivery payment.
	assert.Equal(t, 10, h.bank.payments)
}

func TestRunDayContainsPhaseFailures(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_, err := h.sim.Start(ctx, time.Time{})
	require.NoError(t, err)

	h.mem.AddMachine(domain.Machine{ProductID: 1, RatePerDay: 1000})
	require.NoError(t, h.repos.Orders.Create(ctx, &domain.Order{
		Items:  []domain.OrderItem{{ProductID: 1, Quantity: 1}},
		Total:  decimal.NewFromInt(1000),
		Status: domain.StatusPendingPayment,
	}))
	h.suppliers[domain.PartScreen].down = true
	h.bank.down = true

	report, err := h.pipeline.RunDay(ctx, 1)
	require.Error(t, err)
	assert.Contains(t, report.Failures, "procurement")
	assert.Contains(t, report.Failures, "advance")
	assert.NotContains(t, report.Failures, "finance")
	assert.Equal(t, 1, h.bank.repaid, "loan servicing still ran")
}

package procurement

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/repository/memory"
)

type fakeSupplier struct {
	maxAccepted int
	down        bool
	calls       []int
}

func (f *fakeSupplier) Name() string { return "fake" }

func (f *fakeSupplier) Purchase(_ context.Context, qty int) (gateway.SupplierOrder, error) {
	f.calls = append(f.calls, qty)
	if f.down {
		return gateway.SupplierOrder{}, domain.ErrCounterpartyUnavailable
	}
	if f.maxAccepted > 0 && qty > f.maxAccepted {
		return gateway.SupplierOrder{}, domain.ErrCounterpartyRejected
	}
	return gateway.SupplierOrder{
		Reference: fmt.Sprintf("ref-%d", len(f.calls)),
		Cost:      decimal.NewFromInt(int64(qty)),
		Account:   "supplier-acc",
	}, nil
}

func (f *fakeSupplier) OrderOpen(context.Context, string) (bool, error) { return true, nil }

type fakeSuppliers map[domain.Part]*fakeSupplier

func (f fakeSuppliers) Supplier(part domain.Part) (gateway.Supplier, error) {
	s, ok := f[part]
	if !ok {
		return nil, domain.ErrInvalidPayload
	}
	return s, nil
}

func newSuppliers() fakeSuppliers {
	return fakeSuppliers{
		domain.PartScreen:      &fakeSupplier{},
		domain.PartCase:        &fakeSupplier{},
		domain.PartElectronics: &fakeSupplier{},
	}
}

func TestPolicySplit(t *testing.T) {
	p := DefaultPolicy()
	assert.Equal(t, []int{1000, 1000, 500}, p.Split(2500))
	assert.Equal(t, []int{1000, 100}, p.Split(1050), "remainder below minimum rounds up")
	assert.Equal(t, []int{1000, 1000, 100}, p.Split(2050))
	assert.Equal(t, []int{100}, p.Split(100))
	assert.Equal(t, []int{100}, p.Split(60))
	assert.Equal(t, []int{100}, p.Split(1))
	assert.Nil(t, p.Split(0))

	tiny := Policy{BatchSize: 50, MinOrder: 100}
	assert.Equal(t, []int{50, 50}, tiny.Split(60), "minimum never exceeds one batch")
}

func TestPolicyShrink(t *testing.T) {
	p := DefaultPolicy()

	next, ok := p.Shrink(2500)
	assert.True(t, ok)
	assert.Equal(t, 1500, next)

	next, ok = p.Shrink(1000)
	assert.True(t, ok)
	assert.Equal(t, 500, next)

	next, ok = p.Shrink(150)
	assert.False(t, ok)
	assert.Equal(t, 75, next)
}

func TestPolicyAssess(t *testing.T) {
	p := DefaultPolicy()

	need := p.Assess(Need{Usage: 70, Inventory: 400, Open: 0})
	assert.Equal(t, 2100, need.Target)
	assert.Equal(t, 1700, need.Shortfall)

	need = p.Assess(Need{Usage: 70, Inventory: 400, Open: 100})
	assert.Equal(t, 500, need.Effective)
	assert.Zero(t, need.Shortfall, "effective stock above the threshold does not reorder")

	need = p.Assess(Need{Usage: 0, Inventory: 0})
	assert.Zero(t, need.Shortfall)
}

func newStore() (*memory.Store, repository.Store) {
	mem := memory.NewStore(domain.Product{
		ID:     1,
		Name:   "Cosmos Z25",
		Price:  decimal.NewFromInt(1200),
		Recipe: domain.Recipe{domain.PartScreen: 1, domain.PartCase: 1, domain.PartElectronics: 2},
	})
	return mem, mem.Repositories()
}

func TestAssessUsesPlannedUtilization(t *testing.T) {
	mem, repos := newStore()
	mem.AddMachine(domain.Machine{ProductID: 1, RatePerDay: 100, AcquiredDay: 0})
	mem.SetParts(domain.PartScreen, 400)
	mem.SetParts(domain.PartCase, 5000)
	require.NoError(t, repos.PartsPurchases.Create(context.Background(), &domain.PartsPurchase{
		Part: domain.PartElectronics, Quantity: 900, Status: domain.StatusPendingDeliveryDropOff,
	}))
	require.NoError(t, repos.PartsPurchases.Create(context.Background(), &domain.PartsPurchase{
		Part: domain.PartElectronics, Quantity: 5000, Status: domain.StatusReceived,
	}))

	uc := New(repos, newSuppliers(), nil, DefaultPolicy(), nil)
	needs, err := uc.Assess(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, needs, 3)

	byPart := map[domain.Part]Need{}
	for _, n := range needs {
		byPart[n.Part] = n
	}
	assert.InDelta(t, 70, byPart[domain.PartScreen].Usage, 1e-9)
	assert.Equal(t, 1700, byPart[domain.PartScreen].Shortfall)
	assert.Zero(t, byPart[domain.PartCase].Shortfall)
	assert.InDelta(t, 140, byPart[domain.PartElectronics].Usage, 1e-9)
	assert.Equal(t, 900, byPart[domain.PartElectronics].Open)
	assert.Equal(t, 4200-900, byPart[domain.PartElectronics].Shortfall)
}

func TestOrderSplitsIntoBatches(t *testing.T) {
	_, repos := newStore()
	suppliers := newSuppliers()
	uc := New(repos, suppliers, nil, DefaultPolicy(), nil)

	placed, err := uc.Order(context.Background(), 3, domain.PartScreen, 2500)
	require.NoError(t, err)
	require.Len(t, placed, 3)
	assert.Equal(t, []int{1000, 1000, 500}, suppliers[domain.PartScreen].calls)

	purchases, err := repos.PartsPurchases.List(context.Background(), repository.PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, purchases, 3)
	for _, p := range purchases {
		assert.Equal(t, domain.StatusPendingPayment, p.Status)
		assert.Equal(t, 3, p.CreatedDay)
		assert.NotEmpty(t, p.Reference)
		assert.Equal(t, "supplier-acc", p.Account)
	}

	events, err := repos.Events.List(context.Background(), domain.KindPartsPurchase, 0, 10)
	require.NoError(t, err)
	assert.Len(t, events, 3)
}

func TestOrderShrinksRejectedRemainder(t *testing.T) {
	_, repos := newStore()
	suppliers := newSuppliers()
	suppliers[domain.PartCase].maxAccepted = 300
	uc := New(repos, suppliers, nil, DefaultPolicy(), nil)

	placed, err := uc.Order(context.Background(), 1, domain.PartCase, 1500)
	require.NoError(t, err)

	assert.Equal(t, []int{1000, 500, 250, 250}, suppliers[domain.PartCase].calls)
	require.Len(t, placed, 2)
	assert.Equal(t, 250, placed[0].Quantity)
	assert.Equal(t, 250, placed[1].Quantity)
}

func TestOrderGivesUpBelowMinimum(t *testing.T) {
	_, repos := newStore()
	suppliers := newSuppliers()
	suppliers[domain.PartCase].maxAccepted = 50
	uc := New(repos, suppliers, nil, DefaultPolicy(), nil)

	placed, err := uc.Order(context.Background(), 1, domain.PartCase, 400)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeRejected))
	assert.Empty(t, placed)
	assert.Equal(t, []int{400, 200, 100}, suppliers[domain.PartCase].calls)
}

func TestRunContainsSupplierFailure(t *testing.T) {
	mem, repos := newStore()
	mem.AddMachine(domain.Machine{ProductID: 1, RatePerDay: 100, AcquiredDay: 0})
	suppliers := newSuppliers()
	suppliers[domain.PartScreen].down = true
	uc := New(repos, suppliers, nil, DefaultPolicy(), nil)

	needs, err := uc.Run(context.Background(), 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrCounterpartyUnavailable)

	byPart := map[domain.Part]Need{}
	for _, n := range needs {
		byPart[n.Part] = n
	}
	assert.Zero(t, byPart[domain.PartScreen].Placed)
	assert.Equal(t, 2100, byPart[domain.PartCase].Placed)
	assert.Equal(t, 4200, byPart[domain.PartElectronics].Placed)
	assert.Equal(t, []int{1000}, suppliers[domain.PartScreen].calls)
}

func TestRunRestocksSmallShortfall(t *testing.T) {
	mem, repos := newStore()
	mem.AddMachine(domain.Machine{ProductID: 1, RatePerDay: 4, AcquiredDay: 0})
	mem.SetParts(domain.PartCase, 1000)
	mem.SetParts(domain.PartElectronics, 1000)
	suppliers := newSuppliers()
	uc := New(repos, suppliers, nil, DefaultPolicy(), nil)

	needs, err := uc.Run(context.Background(), 1)
	require.NoError(t, err)

	byPart := map[domain.Part]Need{}
	for _, n := range needs {
		byPart[n.Part] = n
	}
	assert.InDelta(t, 2.8, byPart[domain.PartScreen].Usage, 1e-9)
	assert.Equal(t, 84, byPart[domain.PartScreen].Shortfall)
	assert.Equal(t, 100, byPart[domain.PartScreen].Placed)
	assert.Equal(t, []int{100}, suppliers[domain.PartScreen].calls)
	assert.Empty(t, suppliers[domain.PartCase].calls)
}

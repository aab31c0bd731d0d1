package advance

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/repository/memory"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// --- fakes ---

type fakeBank struct {
	fail     error
	payments []gateway.Payment
}

func (b *fakeBank) OpenAccount(context.Context) (string, error) { return "acc", nil }

func (b *fakeBank) ApplyForLoan(_ context.Context, amount decimal.Decimal) (gateway.Loan, error) {
	return gateway.Loan{Number: "loan", Amount: amount}, nil
}

func (b *fakeBank) MakePayment(_ context.Context, p gateway.Payment) error {
	if b.fail != nil {
		return b.fail
	}
	b.payments = append(b.payments, p)
	return nil
}

func (b *fakeBank) LoanBalance(context.Context, string) (decimal.Decimal, error) {
	return decimal.Zero, nil
}

func (b *fakeBank) RepayLoan(_ context.Context, _ string, amount decimal.Decimal) (decimal.Decimal, error) {
	return amount, nil
}

type fakeCarrier struct {
	fail       error
	incomplete bool
	requests   []gateway.DeliveryRequest
}

func (c *fakeCarrier) RequestDelivery(_ context.Context, req gateway.DeliveryRequest) (domain.Delivery, error) {
	if c.fail != nil {
		return domain.Delivery{}, c.fail
	}
	c.requests = append(c.requests, req)
	if c.incomplete {
		return domain.Delivery{Reference: "pickup"}, nil
	}
	return domain.Delivery{
		Reference: fmt.Sprintf("pickup-%d", len(c.requests)),
		Cost:      decimal.NewFromInt(25),
		Account:   "carrier-acc",
	}, nil
}

type fakeSupplier struct {
	open    bool
	openErr error
}

func (s *fakeSupplier) Name() string { return "screen-supplier" }

func (s *fakeSupplier) Purchase(context.Context, int) (gateway.SupplierOrder, error) {
	return gateway.SupplierOrder{}, errors.New("not used")
}

func (s *fakeSupplier) OrderOpen(context.Context, string) (bool, error) {
	return s.open, s.openErr
}

type memJournal struct {
	records map[usecase.CallKey]usecase.CallRecord
}

func newMemJournal() *memJournal {
	return &memJournal{records: make(map[usecase.CallKey]usecase.CallRecord)}
}

func (j *memJournal) Recall(_ context.Context, key usecase.CallKey) (usecase.CallRecord, bool, error) {
	rec, ok := j.records[key]
	return rec, ok, nil
}

func (j *memJournal) Remember(_ context.Context, rec usecase.CallRecord) error {
	j.records[rec.Key] = rec
	return nil
}

// flakyOrders fails the next Transition after delegating the call check.
type flakyOrders struct {
	repository.OrderRepository
	failNext bool
}

func (f *flakyOrders) Transition(ctx context.Context, order *domain.Order, from domain.Status) error {
	if f.failNext {
		f.failNext = false
		return errors.New("connection reset")
	}
	return f.OrderRepository.Transition(ctx, order, from)
}

// --- fixture ---

type fixture struct {
	mem      *memory.Store
	repos    repository.Store
	bank     *fakeBank
	consumer *fakeCarrier
	bulk     *fakeCarrier
	supplier *fakeSupplier
	journal  *memJournal
	uc       *UseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		mem: memory.NewStore(
			domain.Product{ID: 1, Name: "Cosmos Z25", Price: decimal.NewFromInt(1200)},
			domain.Product{ID: 2, Name: "Cosmos Z25 FE", Price: decimal.NewFromInt(800)},
		),
		bank:     &fakeBank{},
		consumer: &fakeCarrier{},
		bulk:     &fakeCarrier{},
		supplier: &fakeSupplier{open: true},
		journal:  newMemJournal(),
	}
	f.repos = f.mem.Repositories()
	f.build()
	return f
}

func (f *fixture) build() {
	gw := &gateway.Gateway{
		Bank:              f.bank,
		BulkLogistics:     f.bulk,
		ConsumerLogistics: f.consumer,
		PartSuppliers:     map[domain.Part]gateway.Supplier{domain.PartScreen: f.supplier},
	}
	f.uc = New(f.repos, gw, f.journal, DefaultPolicy(), nil)
}

func (f *fixture) order(t *testing.T, status domain.Status, paid int64, createdDay int, items ...domain.OrderItem) *domain.Order {
	t.Helper()
	o := &domain.Order{
		Items:      items,
		Total:      decimal.NewFromInt(1000),
		AmountPaid: decimal.NewFromInt(paid),
		Status:     status,
		CreatedDay: createdDay,
	}
	require.NoError(t, f.repos.Orders.Create(context.Background(), o))
	return o
}

func (f *fixture) reload(t *testing.T, id int64) *domain.Order {
	t.Helper()
	o, err := f.repos.Orders.Get(context.Background(), id)
	require.NoError(t, err)
	return o
}

// --- orders ---

func TestOrderReservesBothLines(t *testing.T) {
	f := newFixture(t)
	f.consumer.fail = domain.ErrCounterpartyUnavailable
	f.mem.SetStock(1, domain.StockLevel{Available: 10})
	f.mem.SetStock(2, domain.StockLevel{Available: 5, Reserved: 1})
	o := f.order(t, domain.StatusPendingStock, 1000, 1,
		domain.OrderItem{ProductID: 1, Quantity: 3},
		domain.OrderItem{ProductID: 2, Quantity: 4})

	moves, err := f.uc.AdvanceOrder(context.Background(), 2, o)
	require.Error(t, err, "delivery request fails after the reservation")
	assert.Equal(t, 1, moves)
	assert.Equal(t, domain.StatusPendingDeliveryRequest, f.reload(t, o.ID).Status)

	stock, err := f.repos.Inventory.Stock(context.Background())
	require.NoError(t, err)
	assert.Equal(t, domain.StockLevel{Available: 10, Reserved: 3}, stock[1])
	assert.Equal(t, domain.StockLevel{Available: 5, Reserved: 5}, stock[2])
}

func TestOrderWaitsForStock(t *testing.T) {
	f := newFixture(t)
	f.mem.SetStock(1, domain.StockLevel{Available: 10})
	f.mem.SetStock(2, domain.StockLevel{Available: 1})
	o := f.order(t, domain.StatusPendingStock, 1000, 1,
		domain.OrderItem{ProductID: 1, Quantity: 3},
		domain.OrderItem{ProductID: 2, Quantity: 4})

	moves, err := f.uc.AdvanceOrder(context.Background(), 2, o)
	require.NoError(t, err)
	assert.Zero(t, moves)
	assert.Equal(t, domain.StatusPendingStock, f.reload(t, o.ID).Status)

	stock, err := f.repos.Inventory.Stock(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stock[1].Reserved, "reservation is all or nothing")
}

func TestOrderPaymentTimeout(t *testing.T) {
	f := newFixture(t)
	o := f.order(t, domain.StatusPendingPayment, 400, 1, domain.OrderItem{ProductID: 1, Quantity: 1})

	moves, err := f.uc.AdvanceOrder(context.Background(), 2, o)
	require.NoError(t, err)
	assert.Zero(t, moves)

	moves, err = f.uc.AdvanceOrder(context.Background(), 3, o)
	require.NoError(t, err)
	assert.Equal(t, 1, moves)
	assert.Equal(t, domain.StatusCancelled, f.reload(t, o.ID).Status)
}

func TestPaidOrderCascadesToCollection(t *testing.T) {
	f := newFixture(t)
	f.mem.SetStock(1, domain.StockLevel{Available: 10})
	o := f.order(t, domain.StatusPendingPayment, 1000, 1, domain.OrderItem{ProductID: 1, Quantity: 2})

	res, err := f.uc.Orders(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, Result{Kind: domain.KindOrder, Examined: 1, Advanced: 4}, res)

	stored := f.reload(t, o.ID)
	assert.Equal(t, domain.StatusPendingDeliveryCollection, stored.Status)
	assert.Equal(t, "pickup-1", stored.Delivery.Reference)

	require.Len(t, f.consumer.requests, 1)
	assert.Equal(t, 2, f.consumer.requests[0].Quantity)
	require.Len(t, f.bank.payments, 1)
	assert.Equal(t, "carrier-acc", f.bank.payments[0].ToAccount)
	assert.True(t, decimal.NewFromInt(25).Equal(f.bank.payments[0].Amount))

	// A second pass over the same order is a no-op.
	res, err = f.uc.Orders(context.Background(), 2)
	require.NoError(t, err)
	assert.Zero(t, res.Advanced)
	assert.Len(t, f.bank.payments, 1)
	assert.Len(t, f.consumer.requests, 1)
}

func TestDeliveryPaymentTimeoutRetriesSameDelivery(t *testing.T) {
	f := newFixture(t)
	f.mem.SetStock(1, domain.StockLevel{Available: 10})
	f.bank.fail = domain.WrapError(domain.ErrCodeUnavailable, domain.ErrCounterpartyUnavailable.Message, errors.New("timeout"))
	o := f.order(t, domain.StatusPendingStock, 1000, 1, domain.OrderItem{ProductID: 1, Quantity: 2})

	_, err := f.uc.AdvanceOrder(context.Background(), 1, o)
	require.Error(t, err)
	assert.True(t, domain.IsTransient(err))
	stored := f.reload(t, o.ID)
	assert.Equal(t, domain.StatusPendingDeliveryPayment, stored.Status)
	recorded := stored.Delivery

	f.bank.fail = nil
	moves, err := f.uc.AdvanceOrder(context.Background(), 2, stored)
	require.NoError(t, err)
	assert.Equal(t, 1, moves)

	require.Len(t, f.bank.payments, 1)
	assert.Equal(t, recorded.Reference, f.bank.payments[0].Reference)
	assert.True(t, recorded.Cost.Equal(f.bank.payments[0].Amount))
	assert.Len(t, f.consumer.requests, 1, "delivery is not requested twice")
}

func TestJournalPreventsDoublePaymentAfterCrash(t *testing.T) {
	f := newFixture(t)
	flaky := &flakyOrders{OrderRepository: f.repos.Orders}
	f.repos.Orders = flaky
	f.build()

	o := f.order(t, domain.StatusPendingDeliveryPayment, 1000, 1, domain.OrderItem{ProductID: 1, Quantity: 1})
	o.Delivery = domain.Delivery{Reference: "pickup-9", Cost: decimal.NewFromInt(40), Account: "carrier-acc"}
	require.NoError(t, f.repos.Orders.Transition(context.Background(), o, o.Status))

	flaky.failNext = true
	_, err := f.uc.AdvanceOrder(context.Background(), 1, o)
	require.Error(t, err)
	assert.Len(t, f.bank.payments, 1)
	assert.Equal(t, domain.StatusPendingDeliveryPayment, f.reload(t, o.ID).Status)

	moves, err := f.uc.AdvanceOrder(context.Background(), 2, f.reload(t, o.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, moves)
	assert.Len(t, f.bank.payments, 1, "replayed from the journal")
	assert.Equal(t, domain.StatusPendingDeliveryCollection, f.reload(t, o.ID).Status)
}

// --- purchases ---

func (f *fixture) partsPurchase(t *testing.T, status domain.Status) *domain.PartsPurchase {
	t.Helper()
	p := &domain.PartsPurchase{
		Part:      domain.PartScreen,
		Quantity:  1000,
		Cost:      decimal.NewFromInt(5000),
		Reference: "supplier-order-1",
		Account:   "supplier-acc",
		Status:    status,
	}
	require.NoError(t, f.repos.PartsPurchases.Create(context.Background(), p))
	return p
}

func TestPartsPurchaseCascadesToDropOff(t *testing.T) {
	f := newFixture(t)
	f.partsPurchase(t, domain.StatusPendingPayment)

	res, err := f.uc.PartsPurchases(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Advanced)

	purchases, err := f.repos.PartsPurchases.List(context.Background(), repository.PurchaseFilter{})
	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, domain.StatusPendingDeliveryDropOff, purchases[0].Status)

	require.Len(t, f.bank.payments, 2)
	assert.Equal(t, "supplier-acc", f.bank.payments[0].ToAccount)
	assert.True(t, decimal.NewFromInt(5000).Equal(f.bank.payments[0].Amount))
	assert.Equal(t, "carrier-acc", f.bank.payments[1].ToAccount)

	require.Len(t, f.bulk.requests, 1)
	assert.Equal(t, "screen-supplier", f.bulk.requests[0].Origin)
	assert.Equal(t, 1000, f.bulk.requests[0].Quantity)
}

func TestPartsPurchaseCancelledWhenSupplierDropsOrder(t *testing.T) {
	for name, supplier := range map[string]*fakeSupplier{
		"closed": {open: false},
		"gone":   {openErr: domain.ErrSupplierOrderGone},
	} {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t)
			f.supplier = supplier
			f.build()
			p := f.partsPurchase(t, domain.StatusPendingPayment)

			moves, err := f.uc.AdvancePartsPurchase(context.Background(), 1, p)
			require.NoError(t, err)
			assert.Equal(t, 1, moves)
			assert.Equal(t, domain.StatusCancelled, p.Status)
			assert.Empty(t, f.bank.payments)
		})
	}
}

func TestPartsPurchaseStaysWhenSupplierUnreachable(t *testing.T) {
	f := newFixture(t)
	f.supplier.openErr = domain.ErrCounterpartyUnavailable
	p := f.partsPurchase(t, domain.StatusPendingPayment)

	moves, err := f.uc.AdvancePartsPurchase(context.Background(), 1, p)
	require.Error(t, err)
	assert.Zero(t, moves)
	assert.Equal(t, domain.StatusPendingPayment, p.Status)
	assert.Empty(t, f.bank.payments)
}

func TestMachinePurchaseIncompleteDeliveryStays(t *testing.T) {
	f := newFixture(t)
	f.bulk.incomplete = true
	p := &domain.MachinePurchase{
		ProductID:    1,
		MachineCount: 2,
		RatePerDay:   50,
		Cost:         decimal.NewFromInt(100000),
		Reference:    "machine-order-1",
		Account:      "machine-acc",
		Status:       domain.StatusPendingPayment,
	}
	require.NoError(t, f.repos.MachinePurchases.Create(context.Background(), p))

	moves, err := f.uc.AdvanceMachinePurchase(context.Background(), 1, p)
	require.Error(t, err)
	assert.True(t, domain.IsDomainError(err, domain.ErrCodeInvalid))
	assert.Equal(t, 1, moves)
	assert.Equal(t, domain.StatusPendingDeliveryRequest, p.Status)
	require.Len(t, f.bank.payments, 1)

	f.bulk.incomplete = false
	moves, err = f.uc.AdvanceMachinePurchase(context.Background(), 2, p)
	require.NoError(t, err)
	assert.Equal(t, 2, moves)
	assert.Equal(t, domain.StatusPendingDeliveryDropOff, p.Status)
	assert.Len(t, f.bank.payments, 2)
}

func TestStatusEventsAreMonotonic(t *testing.T) {
	f := newFixture(t)
	f.mem.SetStock(1, domain.StockLevel{Available: 100})
	for i := 0; i < 4; i++ {
		f.order(t, domain.StatusPendingPayment, int64(i%2)*1000, 1, domain.OrderItem{ProductID: 1, Quantity: 5})
	}
	f.partsPurchase(t, domain.StatusPendingPayment)

	for day := 1; day <= 4; day++ {
		if day == 2 {
			f.bank.fail = domain.ErrCounterpartyUnavailable
		} else {
			f.bank.fail = nil
		}
		_, _ = f.uc.All(context.Background(), day)
	}

	events, err := f.repos.Events.List(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.NotEmpty(t, events)
	for _, e := range events {
		pipeline := domain.PipelineFor(e.Kind)
		assert.Greater(t, pipeline.Rank(e.To), pipeline.Rank(e.From), "%s %d: %s -> %s", e.Kind, e.TransactionID, e.From, e.To)
		assert.NoError(t, pipeline.CanTransition(e.From, e.To))
	}
}

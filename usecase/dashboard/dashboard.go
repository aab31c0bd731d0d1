// Package dashboard answers read-only questions about the running simulation.
package dashboard

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

// DefaultEventLimit caps event listings without an explicit limit.
const DefaultEventLimit = 100

// Overview is the clock plus a status census of every transaction kind.
type Overview struct {
	Clock   domain.Clock                          `json:"clock"`
	Day     int                                   `json:"day"`
	Account string                                `json:"account_number,omitempty"`
	Loan    string                                `json:"loan_number,omitempty"`
	Counts  map[domain.Kind]map[domain.Status]int `json:"counts"`
}

// ProductStock is the inventory view of one product.
type ProductStock struct {
	Product  domain.Product    `json:"product"`
	Stock    domain.StockLevel `json:"stock"`
	Free     int               `json:"free"`
	Capacity int               `json:"capacity"`
	Machines int               `json:"machines"`
}

// Inventory combines parts, phone stock and machine capacity.
type Inventory struct {
	Day      int                   `json:"day"`
	Parts    domain.PartsInventory `json:"parts"`
	Products []ProductStock        `json:"products"`
}

// Listing holds the transactions of one kind. Only the field matching Kind is set.
type Listing struct {
	Kind             domain.Kind              `json:"kind"`
	Orders           []domain.Order           `json:"orders,omitempty"`
	PartsPurchases   []domain.PartsPurchase   `json:"parts_purchases,omitempty"`
	MachinePurchases []domain.MachinePurchase `json:"machine_purchases,omitempty"`
}

// Len is the number of transactions in the listing.
func (l Listing) Len() int {
	return len(l.Orders) + len(l.PartsPurchases) + len(l.MachinePurchases)
}

// Page selects a window of a listing. A non-positive Limit lists everything
// and a negative Offset starts at the first item.
type Page struct {
	Limit  int
	Offset int
}

func (p Page) normalize() Page {
	if p.Limit < 0 {
		p.Limit = 0
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

type UseCase struct {
	store     repository.Store
	dayLength time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

func New(store repository.Store, dayLength time.Duration, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{store: store, dayLength: dayLength, now: time.Now, logger: logger}
}

// Overview reports the clock, the bank references and status counts.
func (uc *UseCase) Overview(ctx context.Context) (Overview, error) {
	clock, day, err := uc.clock(ctx)
	if err != nil {
		return Overview{}, err
	}
	out := Overview{Clock: clock, Day: day, Counts: make(map[domain.Kind]map[domain.Status]int, 3)}
	out.Account, _ = uc.setting(ctx, domain.SettingAccountNumber)
	out.Loan, _ = uc.setting(ctx, domain.SettingLoanNumber)

	orders, err := uc.store.Orders.List(ctx, repository.OrderFilter{})
	if err != nil {
		return Overview{}, err
	}
	counts := make(map[domain.Status]int)
	for _, o := range orders {
		counts[o.Status]++
	}
	out.Counts[domain.KindOrder] = counts

	parts, err := uc.store.PartsPurchases.List(ctx, repository.PurchaseFilter{})
	if err != nil {
		return Overview{}, err
	}
	counts = make(map[domain.Status]int)
	for _, p := range parts {
		counts[p.Status]++
	}
	out.Counts[domain.KindPartsPurchase] = counts

	machines, err := uc.store.MachinePurchases.List(ctx, repository.PurchaseFilter{})
	if err != nil {
		return Overview{}, err
	}
	counts = make(map[domain.Status]int)
	for _, m := range machines {
		counts[m.Status]++
	}
	out.Counts[domain.KindMachinePurchase] = counts

	return out, nil
}

// Inventory reports parts on hand, phone stock and active capacity per product.
func (uc *UseCase) Inventory(ctx context.Context) (Inventory, error) {
	_, day, err := uc.clock(ctx)
	if err != nil {
		return Inventory{}, err
	}
	parts, err := uc.store.Inventory.Parts(ctx)
	if err != nil {
		return Inventory{}, err
	}
	stock, err := uc.store.Inventory.Stock(ctx)
	if err != nil {
		return Inventory{}, err
	}
	products, err := uc.store.Catalog.Products(ctx)
	if err != nil {
		return Inventory{}, err
	}
	fleet, err := uc.store.Machines.Machines(ctx)
	if err != nil {
		return Inventory{}, err
	}

	capacity := domain.Capacity(fleet, day)
	active := make(map[int64]int)
	for _, m := range fleet {
		if m.ActiveOn(day) {
			active[m.ProductID]++
		}
	}

	out := Inventory{Day: day, Parts: parts, Products: make([]ProductStock, 0, len(products))}
	for _, p := range products {
		level := stock[p.ID]
		out.Products = append(out.Products, ProductStock{
			Product:  p,
			Stock:    level,
			Free:     level.Free(),
			Capacity: capacity[p.ID],
			Machines: active[p.ID],
		})
	}
	return out, nil
}

// Transactions lists one kind, optionally restricted to a status.
func (uc *UseCase) Transactions(ctx context.Context, kind domain.Kind, status domain.Status, page Page) (Listing, error) {
	var statuses []domain.Status
	if status != "" {
		pipeline := domain.PipelineFor(kind)
		if status != domain.StatusCancelled && pipeline.Rank(status) < 0 {
			return Listing{}, domain.WrapError(domain.ErrCodeInvalid, "unknown status", errors.New(string(status)))
		}
		statuses = []domain.Status{status}
	}

	page = page.normalize()
	out := Listing{Kind: kind}
	var err error
	switch kind {
	case domain.KindOrder:
		out.Orders, err = uc.store.Orders.List(ctx, repository.OrderFilter{Statuses: statuses, Limit: page.Limit, Offset: page.Offset})
	case domain.KindPartsPurchase:
		out.PartsPurchases, err = uc.store.PartsPurchases.List(ctx, repository.PurchaseFilter{Statuses: statuses, Limit: page.Limit, Offset: page.Offset})
	case domain.KindMachinePurchase:
		out.MachinePurchases, err = uc.store.MachinePurchases.List(ctx, repository.PurchaseFilter{Statuses: statuses, Limit: page.Limit, Offset: page.Offset})
	default:
		_, err = domain.ParseKind(string(kind))
	}
	return out, err
}

// Events lists recent status transitions, newest first.
func (uc *UseCase) Events(ctx context.Context, kind domain.Kind, transactionID int64, limit int) ([]domain.StatusEvent, error) {
	if limit <= 0 {
		limit = DefaultEventLimit
	}
	return uc.store.Events.List(ctx, kind, transactionID, limit)
}

func (uc *UseCase) clock(ctx context.Context) (domain.Clock, int, error) {
	clock, err := uc.store.Simulation.Clock(ctx)
	if errors.Is(err, domain.ErrSimulationNotStarted) {
		return domain.Clock{}, 0, nil
	}
	if err != nil {
		return domain.Clock{}, 0, err
	}
	day := clock.CurrentDay
	if clock.Running {
		if d := clock.DayAt(uc.now(), uc.dayLength); d > day {
			day = d
		}
	}
	return clock, day, nil
}

func (uc *UseCase) setting(ctx context.Context, key string) (string, error) {
	v, err := uc.store.Simulation.Setting(ctx, key)
	if err != nil && !errors.Is(err, domain.ErrSettingNotFound) {
		uc.logger.Warn("setting lookup failed", zap.String("key", key), zap.Error(err))
	}
	return v, err
}

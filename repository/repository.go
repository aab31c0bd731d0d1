package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
)

// SimulationRepository persists the clock and the small settings map.
type SimulationRepository interface {
	Clock(ctx context.Context) (domain.Clock, error)
	// Reset wipes transactions, inventory, fleet and events and restarts the
	// clock at day 0 from epoch.
	Reset(ctx context.Context, epoch time.Time) error
	// AdvanceDay stores day only when it exceeds the persisted counter and the
	// simulation is running. It reports whether the counter moved.
	AdvanceDay(ctx context.Context, day int) (bool, error)
	SetRunning(ctx context.Context, running bool) error
	Setting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
}

type CatalogRepository interface {
	Products(ctx context.Context) ([]domain.Product, error)
	Product(ctx context.Context, id int64) (*domain.Product, error)
}

type InventoryRepository interface {
	Parts(ctx context.Context) (domain.PartsInventory, error)
	Stock(ctx context.Context) (map[int64]domain.StockLevel, error)
	// CommitProduction deducts consumption and credits units of product in one
	// atomic unit, failing with domain.ErrInsufficientParts without changes.
	CommitProduction(ctx context.Context, productID int64, units int, consumption map[domain.Part]int) error
}

type MachineRepository interface {
	Machines(ctx context.Context) ([]domain.Machine, error)
}

type OrderFilter struct {
	Statuses []domain.Status
	Limit    int
	Offset   int
}

type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	Get(ctx context.Context, id int64) (*domain.Order, error)
	List(ctx context.Context, filter OrderFilter) ([]domain.Order, error)
	// Transition writes order.Status and order.Delivery when the stored status
	// still equals from, otherwise domain.ErrStatusConflict.
	Transition(ctx context.Context, order *domain.Order, from domain.Status) error
	// Reserve reserves every line of the order and moves it to order.Status
	// atomically, or fails with domain.ErrInsufficientStock.
	Reserve(ctx context.Context, order *domain.Order, from domain.Status) error
	RecordPayment(ctx context.Context, id int64, amount decimal.Decimal) (*domain.Order, error)
	// Ship marks the order collected, releasing its reservation and deducting stock.
	Ship(ctx context.Context, deliveryReference string) (*domain.Order, error)
}

type PurchaseFilter struct {
	Statuses []domain.Status
	Limit    int
	Offset   int
}

type PartsPurchaseRepository interface {
	Create(ctx context.Context, purchase *domain.PartsPurchase) error
	List(ctx context.Context, filter PurchaseFilter) ([]domain.PartsPurchase, error)
	Transition(ctx context.Context, purchase *domain.PartsPurchase, from domain.Status) error
	// OpenQuantities sums quantities of non-terminal purchases per part.
	OpenQuantities(ctx context.Context) (map[domain.Part]int, error)
	// Receive marks the purchase received and credits its parts atomically.
	Receive(ctx context.Context, deliveryReference string) (*domain.PartsPurchase, error)
}

type MachinePurchaseRepository interface {
	Create(ctx context.Context, purchase *domain.MachinePurchase) error
	List(ctx context.Context, filter PurchaseFilter) ([]domain.MachinePurchase, error)
	Transition(ctx context.Context, purchase *domain.MachinePurchase, from domain.Status) error
	// Receive marks the purchase received, installs its machines from day and
	// sets the product recipe atomically.
	Receive(ctx context.Context, deliveryReference string, day int) (*domain.MachinePurchase, error)
}

type EventRepository interface {
	Append(ctx context.Context, event domain.StatusEvent) error
	List(ctx context.Context, kind domain.Kind, transactionID int64, limit int) ([]domain.StatusEvent, error)
}

// Store groups every repository behind one persistence boundary.
type Store struct {
	Simulation       SimulationRepository
	Catalog          CatalogRepository
	Inventory        InventoryRepository
	Machines         MachineRepository
	Orders           OrderRepository
	PartsPurchases   PartsPurchaseRepository
	MachinePurchases MachinePurchaseRepository
	Events           EventRepository
}

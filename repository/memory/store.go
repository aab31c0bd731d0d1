// Package memory is an in-process implementation of the repository
// interfaces. It backs the local storage driver and the package tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

// Store keeps all simulation state behind a single mutex, which makes every
// method one atomic unit.
type Store struct {
	mu sync.Mutex

	clock    domain.Clock
	settings map[string]string

	products map[int64]domain.Product
	parts    domain.PartsInventory
	stock    map[int64]domain.StockLevel
	machines []domain.Machine

	orders           map[int64]domain.Order
	partsPurchases   map[int64]domain.PartsPurchase
	machinePurchases map[int64]domain.MachinePurchase
	events           []domain.StatusEvent

	nextID int64
}

// DefaultCatalog is the product line seeded by the initial migration.
func DefaultCatalog() []domain.Product {
	return []domain.Product{
		{ID: 1, Name: "Cosmos Z25", Price: decimal.NewFromInt(1200)},
		{ID: 2, Name: "Cosmos Z25 Ultra", Price: decimal.NewFromInt(2100)},
		{ID: 3, Name: "Cosmos Z25 FE", Price: decimal.NewFromInt(800)},
	}
}

// NewStore returns an empty store holding the given catalog.
func NewStore(products ...domain.Product) *Store {
	s := &Store{
		settings:         make(map[string]string),
		products:         make(map[int64]domain.Product),
		parts:            make(domain.PartsInventory),
		stock:            make(map[int64]domain.StockLevel),
		orders:           make(map[int64]domain.Order),
		partsPurchases:   make(map[int64]domain.PartsPurchase),
		machinePurchases: make(map[int64]domain.MachinePurchase),
	}
	for _, p := range products {
		p.Recipe = copyRecipe(p.Recipe)
		s.products[p.ID] = p
	}
	return s
}

// Repositories exposes the store through the repository interfaces.
func (s *Store) Repositories() repository.Store {
	return repository.Store{
		Simulation:       simulationRepo{s},
		Catalog:          catalogRepo{s},
		Inventory:        inventoryRepo{s},
		Machines:         machineRepo{s},
		Orders:           orderRepo{s},
		PartsPurchases:   partsRepo{s},
		MachinePurchases: machinePurchaseRepo{s},
		Events:           eventRepo{s},
	}
}

// SetParts overwrites the on-hand quantity of a part.
func (s *Store) SetParts(part domain.Part, qty int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.parts[part] = qty
}

// SetStock overwrites the stock level of a product.
func (s *Store) SetStock(productID int64, level domain.StockLevel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stock[productID] = level
}

// AddMachine installs a machine directly into the fleet.
func (s *Store) AddMachine(m domain.Machine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	m.ID = s.nextID
	s.machines = append(s.machines, m)
}

func (s *Store) id() int64 {
	s.nextID++
	return s.nextID
}

func copyRecipe(r domain.Recipe) domain.Recipe {
	if r == nil {
		return nil
	}
	out := make(domain.Recipe, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

func containsStatus(statuses []domain.Status, s domain.Status) bool {
	if len(statuses) == 0 {
		return true
	}
	for _, candidate := range statuses {
		if candidate == s {
			return true
		}
	}
	return false
}

func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

func sortedIDs[T any](m map[int64]T) []int64 {
	ids := make([]int64, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// --- simulation ---

type simulationRepo struct{ s *Store }

func (r simulationRepo) Clock(_ context.Context) (domain.Clock, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.s.clock, nil
}

func (r simulationRepo) Reset(_ context.Context, epoch time.Time) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clock = domain.Clock{Epoch: epoch, CurrentDay: 0, Running: true}
	s.parts = make(domain.PartsInventory)
	s.stock = make(map[int64]domain.StockLevel)
	s.machines = nil
	s.orders = make(map[int64]domain.Order)
	s.partsPurchases = make(map[int64]domain.PartsPurchase)
	s.machinePurchases = make(map[int64]domain.MachinePurchase)
	s.events = nil
	delete(s.settings, domain.SettingAccountNumber)
	delete(s.settings, domain.SettingLoanNumber)
	return nil
}

func (r simulationRepo) AdvanceDay(_ context.Context, day int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if !r.s.clock.Running || day <= r.s.clock.CurrentDay {
		return false, nil
	}
	r.s.clock.CurrentDay = day
	return true, nil
}

func (r simulationRepo) SetRunning(_ context.Context, running bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.clock.Running = running
	return nil
}

func (r simulationRepo) Setting(_ context.Context, key string) (string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	v, ok := r.s.settings[key]
	if !ok {
		return "", domain.ErrSettingNotFound
	}
	return v, nil
}

func (r simulationRepo) SetSetting(_ context.Context, key, value string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.settings[key] = value
	return nil
}

// --- catalog, inventory, fleet ---

type catalogRepo struct{ s *Store }

func (r catalogRepo) Products(_ context.Context) ([]domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]domain.Product, 0, len(r.s.products))
	for _, id := range sortedIDs(r.s.products) {
		p := r.s.products[id]
		p.Recipe = copyRecipe(p.Recipe)
		out = append(out, p)
	}
	return out, nil
}

func (r catalogRepo) Product(_ context.Context, id int64) (*domain.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.products[id]
	if !ok {
		return nil, domain.ErrProductNotFound
	}
	p.Recipe = copyRecipe(p.Recipe)
	return &p, nil
}

type inventoryRepo struct{ s *Store }

func (r inventoryRepo) Parts(_ context.Context) (domain.PartsInventory, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(domain.PartsInventory, len(r.s.parts))
	for k, v := range r.s.parts {
		out[k] = v
	}
	return out, nil
}

func (r inventoryRepo) Stock(_ context.Context) (map[int64]domain.StockLevel, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[int64]domain.StockLevel, len(r.s.stock))
	for k, v := range r.s.stock {
		out[k] = v
	}
	return out, nil
}

func (r inventoryRepo) CommitProduction(_ context.Context, productID int64, units int, consumption map[domain.Part]int) error {
	if units <= 0 {
		return domain.ErrInvalidPayload
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.parts.Covers(consumption) {
		return domain.ErrInsufficientParts
	}
	for part, qty := range consumption {
		s.parts[part] -= qty
	}
	level := s.stock[productID]
	level.Available += units
	s.stock[productID] = level
	return nil
}

type machineRepo struct{ s *Store }

func (r machineRepo) Machines(_ context.Context) ([]domain.Machine, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]domain.Machine(nil), r.s.machines...), nil
}

// --- orders ---

type orderRepo struct{ s *Store }

func copyOrder(o domain.Order) domain.Order {
	o.Items = append([]domain.OrderItem(nil), o.Items...)
	return o
}

func (r orderRepo) Create(_ context.Context, order *domain.Order) error {
	if order == nil {
		return domain.ErrInvalidPayload
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	order.ID = s.id()
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	s.orders[order.ID] = copyOrder(*order)
	return nil
}

func (r orderRepo) Get(_ context.Context, id int64) (*domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	o, ok := r.s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	o = copyOrder(o)
	return &o, nil
}

func (r orderRepo) List(_ context.Context, filter repository.OrderFilter) ([]domain.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.Order
	for _, id := range sortedIDs(r.s.orders) {
		o := r.s.orders[id]
		if containsStatus(filter.Statuses, o.Status) {
			out = append(out, copyOrder(o))
		}
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (r orderRepo) Transition(_ context.Context, order *domain.Order, from domain.Status) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Status != from {
		return domain.ErrStatusConflict
	}
	stored.Status = order.Status
	stored.Delivery = order.Delivery
	stored.UpdatedAt = time.Now()
	s.orders[order.ID] = stored
	return nil
}

func (r orderRepo) Reserve(_ context.Context, order *domain.Order, from domain.Status) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[order.ID]
	if !ok {
		return domain.ErrOrderNotFound
	}
	if stored.Status != from {
		return domain.ErrStatusConflict
	}
	need := make(map[int64]int)
	for _, item := range stored.Items {
		need[item.ProductID] += item.Quantity
	}
	for productID, qty := range need {
		if s.stock[productID].Free() < qty {
			return domain.ErrInsufficientStock
		}
	}
	for productID, qty := range need {
		level := s.stock[productID]
		level.Reserved += qty
		s.stock[productID] = level
	}
	stored.Status = order.Status
	stored.UpdatedAt = time.Now()
	s.orders[order.ID] = stored
	return nil
}

func (r orderRepo) RecordPayment(_ context.Context, id int64, amount decimal.Decimal) (*domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	stored.AmountPaid = stored.AmountPaid.Add(amount)
	stored.UpdatedAt = time.Now()
	s.orders[id] = stored
	o := copyOrder(stored)
	return &o, nil
}

func (r orderRepo) Ship(_ context.Context, deliveryReference string) (*domain.Order, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sortedIDs(s.orders) {
		stored := s.orders[id]
		if stored.Delivery.Reference != deliveryReference {
			continue
		}
		if stored.Status != domain.StatusPendingDeliveryCollection {
			return nil, domain.ErrStatusConflict
		}
		for _, item := range stored.Items {
			level := s.stock[item.ProductID]
			level.Reserved -= item.Quantity
			level.Available -= item.Quantity
			if level.Reserved < 0 {
				level.Reserved = 0
			}
			if level.Available < 0 {
				level.Available = 0
			}
			s.stock[item.ProductID] = level
		}
		stored.Status = domain.StatusShipped
		stored.UpdatedAt = time.Now()
		s.orders[id] = stored
		o := copyOrder(stored)
		return &o, nil
	}
	return nil, domain.ErrDeliveryNotFound
}

// --- parts purchases ---

type partsRepo struct{ s *Store }

func (r partsRepo) Create(_ context.Context, p *domain.PartsPurchase) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.partsPurchases[p.ID] = *p
	return nil
}

func (r partsRepo) List(_ context.Context, filter repository.PurchaseFilter) ([]domain.PartsPurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.PartsPurchase
	for _, id := range sortedIDs(r.s.partsPurchases) {
		p := r.s.partsPurchases[id]
		if containsStatus(filter.Statuses, p.Status) {
			out = append(out, p)
		}
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (r partsRepo) Transition(_ context.Context, p *domain.PartsPurchase, from domain.Status) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.partsPurchases[p.ID]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	if stored.Status != from {
		return domain.ErrStatusConflict
	}
	stored.Status = p.Status
	stored.Delivery = p.Delivery
	stored.UpdatedAt = time.Now()
	s.partsPurchases[p.ID] = stored
	return nil
}

func (r partsRepo) OpenQuantities(_ context.Context) (map[domain.Part]int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[domain.Part]int)
	for _, p := range r.s.partsPurchases {
		if domain.PartsPurchasePipeline.IsOpen(p.Status) {
			out[p.Part] += p.Quantity
		}
	}
	return out, nil
}

func (r partsRepo) Receive(_ context.Context, deliveryReference string) (*domain.PartsPurchase, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sortedIDs(s.partsPurchases) {
		stored := s.partsPurchases[id]
		if stored.Delivery.Reference != deliveryReference {
			continue
		}
		if stored.Status != domain.StatusPendingDeliveryDropOff {
			return nil, domain.ErrStatusConflict
		}
		s.parts[stored.Part] += stored.Quantity
		stored.Status = domain.StatusReceived
		stored.UpdatedAt = time.Now()
		s.partsPurchases[id] = stored
		return &stored, nil
	}
	return nil, domain.ErrDeliveryNotFound
}

// --- machine purchases ---

type machinePurchaseRepo struct{ s *Store }

func copyMachinePurchase(p domain.MachinePurchase) domain.MachinePurchase {
	p.Ratios = copyRecipe(p.Ratios)
	return p
}

func (r machinePurchaseRepo) Create(_ context.Context, p *domain.MachinePurchase) error {
	if p == nil {
		return domain.ErrInvalidPayload
	}
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	p.ID = s.id()
	p.CreatedAt = time.Now()
	p.UpdatedAt = p.CreatedAt
	s.machinePurchases[p.ID] = copyMachinePurchase(*p)
	return nil
}

func (r machinePurchaseRepo) List(_ context.Context, filter repository.PurchaseFilter) ([]domain.MachinePurchase, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.MachinePurchase
	for _, id := range sortedIDs(r.s.machinePurchases) {
		p := r.s.machinePurchases[id]
		if containsStatus(filter.Statuses, p.Status) {
			out = append(out, copyMachinePurchase(p))
		}
	}
	return page(out, filter.Limit, filter.Offset), nil
}

func (r machinePurchaseRepo) Transition(_ context.Context, p *domain.MachinePurchase, from domain.Status) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.machinePurchases[p.ID]
	if !ok {
		return domain.ErrPurchaseNotFound
	}
	if stored.Status != from {
		return domain.ErrStatusConflict
	}
	stored.Status = p.Status
	stored.Delivery = p.Delivery
	stored.UpdatedAt = time.Now()
	s.machinePurchases[p.ID] = stored
	return nil
}

func (r machinePurchaseRepo) Receive(_ context.Context, deliveryReference string, day int) (*domain.MachinePurchase, error) {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range sortedIDs(s.machinePurchases) {
		stored := s.machinePurchases[id]
		if stored.Delivery.Reference != deliveryReference {
			continue
		}
		if stored.Status != domain.StatusPendingDeliveryDropOff {
			return nil, domain.ErrStatusConflict
		}
		for i := 0; i < stored.MachineCount; i++ {
			s.machines = append(s.machines, domain.Machine{
				ID:          s.id(),
				ProductID:   stored.ProductID,
				RatePerDay:  stored.RatePerDay,
				AcquiredDay: day,
			})
		}
		if product, ok := s.products[stored.ProductID]; ok && len(stored.Ratios) > 0 {
			product.Recipe = copyRecipe(stored.Ratios)
			s.products[stored.ProductID] = product
		}
		stored.Status = domain.StatusReceived
		stored.UpdatedAt = time.Now()
		s.machinePurchases[id] = stored
		out := copyMachinePurchase(stored)
		return &out, nil
	}
	return nil, domain.ErrDeliveryNotFound
}

// --- events ---

type eventRepo struct{ s *Store }

func (r eventRepo) Append(_ context.Context, event domain.StatusEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now()
	}
	r.s.events = append(r.s.events, event)
	return nil
}

func (r eventRepo) List(_ context.Context, kind domain.Kind, transactionID int64, limit int) ([]domain.StatusEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []domain.StatusEvent
	for i := len(r.s.events) - 1; i >= 0; i-- {
		e := r.s.events[i]
		if kind != "" && e.Kind != kind {
			continue
		}
		if transactionID != 0 && e.TransactionID != transactionID {
			continue
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

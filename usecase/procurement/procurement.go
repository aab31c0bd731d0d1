// Package procurement keeps part inventory above a rolling safety stock by
// placing bulk purchases with the part suppliers.
package procurement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// Policy holds the reorder constants.
type Policy struct {
	Utilization  float64
	MinStockDays int
	ReorderDays  int
	BatchSize    int
	MinOrder     int
}

func DefaultPolicy() Policy {
	return Policy{Utilization: 0.7, MinStockDays: 7, ReorderDays: 30, BatchSize: 1000, MinOrder: 100}
}

// Split breaks a shortfall into whole batches plus a final remainder. A
// remainder below the minimum order is rounded up to it so a small shortfall
// still restocks.
func (p Policy) Split(shortfall int) []int {
	if shortfall <= 0 || p.BatchSize <= 0 {
		return nil
	}
	var out []int
	for i := 0; i < shortfall/p.BatchSize; i++ {
		out = append(out, p.BatchSize)
	}
	if rest := shortfall % p.BatchSize; rest > 0 {
		if rest < p.MinOrder {
			rest = min(p.MinOrder, p.BatchSize)
		}
		out = append(out, rest)
	}
	return out
}

// Shrink returns the next size to try after a supplier rejected qty: one batch
// smaller while above one batch, then half. ok is false once below MinOrder.
func (p Policy) Shrink(qty int) (int, bool) {
	if qty > p.BatchSize {
		qty -= p.BatchSize
	} else {
		qty /= 2
	}
	return qty, qty >= p.MinOrder && qty > 0
}

// Need is the assessment of one part type.
type Need struct {
	Part      domain.Part `json:"part"`
	Usage     float64     `json:"usage"`
	Inventory int         `json:"inventory"`
	Open      int         `json:"open"`
	Effective int         `json:"effective"`
	Target    int         `json:"target"`
	Shortfall int         `json:"shortfall"`
	Placed    int         `json:"placed"`
}

// Assess fills the reorder fields of n from its usage and stock.
func (p Policy) Assess(n Need) Need {
	n.Effective = n.Inventory + n.Open
	if n.Usage <= 0 || float64(n.Effective) >= n.Usage*float64(p.MinStockDays) {
		return n
	}
	n.Target = int(math.Ceil(n.Usage * float64(p.ReorderDays)))
	if s := n.Target - n.Effective; s > 0 {
		n.Shortfall = s
	}
	return n
}

// Suppliers resolves the supplier of a part type.
type Suppliers interface {
	Supplier(part domain.Part) (gateway.Supplier, error)
}

type UseCase struct {
	catalog   repository.CatalogRepository
	inventory repository.InventoryRepository
	machines  repository.MachineRepository
	purchases repository.PartsPurchaseRepository
	events    repository.EventRepository
	suppliers Suppliers
	journal   usecase.CallJournal
	policy    Policy
	logger    *zap.Logger
}

func New(store repository.Store, suppliers Suppliers, journal usecase.CallJournal, policy Policy, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = usecase.NopJournal{}
	}
	return &UseCase{
		catalog:   store.Catalog,
		inventory: store.Inventory,
		machines:  store.Machines,
		purchases: store.PartsPurchases,
		events:    store.Events,
		suppliers: suppliers,
		journal:   journal,
		policy:    policy,
		logger:    logger,
	}
}

// Assess computes the need of every part type on day without ordering.
func (uc *UseCase) Assess(ctx context.Context, day int) ([]Need, error) {
	products, err := uc.catalog.Products(ctx)
	if err != nil {
		return nil, err
	}
	machines, err := uc.machines.Machines(ctx)
	if err != nil {
		return nil, err
	}
	inv, err := uc.inventory.Parts(ctx)
	if err != nil {
		return nil, err
	}
	open, err := uc.purchases.OpenQuantities(ctx)
	if err != nil {
		return nil, err
	}

	capacity := domain.Capacity(machines, day)
	usage := make(map[domain.Part]float64)
	for _, product := range products {
		rate := capacity[product.ID]
		if rate <= 0 {
			continue
		}
		for part, ratio := range product.Recipe {
			usage[part] += float64(rate) * uc.policy.Utilization * float64(ratio)
		}
	}

	needs := make([]Need, 0, len(domain.Parts))
	for _, part := range domain.Parts {
		needs = append(needs, uc.policy.Assess(Need{
			Part:      part,
			Usage:     usage[part],
			Inventory: inv[part],
			Open:      open[part],
		}))
	}
	return needs, nil
}

// Run assesses every part and orders the shortfalls. A failing supplier only
// affects its own part.
func (uc *UseCase) Run(ctx context.Context, day int) ([]Need, error) {
	needs, err := uc.Assess(ctx, day)
	if err != nil {
		return nil, err
	}

	var errs []error
	for i := range needs {
		need := &needs[i]
		if need.Shortfall <= 0 {
			continue
		}
		placed, err := uc.Order(ctx, day, need.Part, need.Shortfall)
		for _, p := range placed {
			need.Placed += p.Quantity
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", need.Part, err))
		}
	}
	return needs, errors.Join(errs...)
}

// Order places shortfall units of part as batches, shrinking rejected
// attempts. Every accepted supplier order becomes a purchase awaiting payment.
func (uc *UseCase) Order(ctx context.Context, day int, part domain.Part, shortfall int) ([]domain.PartsPurchase, error) {
	log := logger.FromContext(ctx, uc.logger).With(zap.Stringer("part", part))

	supplier, err := uc.suppliers.Supplier(part)
	if err != nil {
		return nil, err
	}

	var (
		placed []domain.PartsPurchase
		// limit caps later batches once the supplier rejected a size.
		limit = math.MaxInt
	)
	for slot, qty := range uc.policy.Split(shortfall) {
		if qty > limit {
			qty = limit
		}
		for {
			purchase, err := uc.place(ctx, day, supplier, part, slot, qty)
			if err == nil {
				placed = append(placed, *purchase)
				log.Info("parts purchase placed",
					zap.Int64("purchase_id", purchase.ID),
					zap.Int("quantity", qty),
					zap.String("reference", purchase.Reference))
				break
			}
			if !domain.IsDomainError(err, domain.ErrCodeRejected) {
				log.Warn("parts purchase failed", zap.Int("quantity", qty), zap.Error(err))
				return placed, err
			}
			next, ok := uc.policy.Shrink(qty)
			log.Info("parts purchase rejected", zap.Int("quantity", qty), zap.Int("next", next))
			if !ok {
				return placed, err
			}
			qty = next
			limit = next
		}
	}
	return placed, nil
}

type placement struct {
	Order      gateway.SupplierOrder `json:"order"`
	PurchaseID int64                 `json:"purchase_id,omitempty"`
}

func (uc *UseCase) place(ctx context.Context, day int, supplier gateway.Supplier, part domain.Part, slot, qty int) (*domain.PartsPurchase, error) {
	key := usecase.CallKey{
		Kind:    domain.KindPartsPurchase,
		Subject: fmt.Sprintf("day-%d/%s/%d/%d", day, part, slot, qty),
		Stage:   domain.StatusPendingPayment,
	}

	var rec placement
	if prior, found, err := uc.journal.Recall(ctx, key); err != nil {
		return nil, err
	} else if found {
		if err := json.Unmarshal(prior.Result, &rec); err != nil {
			return nil, err
		}
		if rec.PurchaseID != 0 {
			return nil, domain.WrapError(domain.ErrCodeConflict, "purchase already placed", fmt.Errorf("slot %s", key.Subject))
		}
	} else {
		order, err := supplier.Purchase(ctx, qty)
		if err != nil {
			return nil, err
		}
		rec.Order = order
		if err := uc.remember(ctx, key, day, rec); err != nil {
			return nil, err
		}
	}

	purchase := &domain.PartsPurchase{
		Part:       part,
		Quantity:   qty,
		Cost:       rec.Order.Cost,
		Reference:  rec.Order.Reference,
		Account:    rec.Order.Account,
		Status:     domain.PartsPurchasePipeline.Initial(),
		CreatedDay: day,
	}
	if err := uc.purchases.Create(ctx, purchase); err != nil {
		return nil, err
	}
	rec.PurchaseID = purchase.ID
	if err := uc.remember(ctx, key, day, rec); err != nil {
		uc.logger.Warn("journal update failed", zap.String("subject", key.Subject), zap.Error(err))
	}
	if uc.events != nil {
		if err := uc.events.Append(ctx, domain.StatusEvent{
			Kind:          domain.KindPartsPurchase,
			TransactionID: purchase.ID,
			To:            purchase.Status,
			Day:           day,
			CreatedAt:     time.Now(),
		}); err != nil {
			uc.logger.Warn("status event append failed", zap.Int64("purchase_id", purchase.ID), zap.Error(err))
		}
	}
	return purchase, nil
}

func (uc *UseCase) remember(ctx context.Context, key usecase.CallKey, day int, rec placement) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return uc.journal.Remember(ctx, usecase.CallRecord{Key: key, Day: day, Result: payload})
}

// Package production decides how many phones of each product to build on a
// simulated day and commits the build against the parts inventory.
package production

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
)

// Policy holds the demand heuristic constants.
type Policy struct {
	// MinBuffer is the smallest stock target while orders are pending.
	MinBuffer int
	// BufferRatio is the extra fraction of pending units kept in stock.
	BufferRatio float64
	// StockFloor is the free stock kept when nothing is pending.
	StockFloor int
}

func DefaultPolicy() Policy {
	return Policy{MinBuffer: 10, BufferRatio: 0.5, StockFloor: 20}
}

// Demand is the number of units to build given pending order units and free stock.
func (p Policy) Demand(pending, free int) int {
	if pending <= 0 {
		if free < p.StockFloor {
			return p.StockFloor - free
		}
		return 0
	}
	target := pending + int(math.Ceil(float64(pending)*p.BufferRatio))
	if target < p.MinBuffer {
		target = p.MinBuffer
	}
	if d := target - free; d > 0 {
		return d
	}
	return 0
}

// Plan is the production decision for one product.
type Plan struct {
	ProductID int64 `json:"product_id"`
	Pending   int   `json:"pending"`
	Free      int   `json:"free"`
	Demand    int   `json:"demand"`
	Capacity  int   `json:"capacity"`
	Ceiling   int   `json:"ceiling"`
	Quantity  int   `json:"quantity"`
}

type UseCase struct {
	catalog   repository.CatalogRepository
	inventory repository.InventoryRepository
	machines  repository.MachineRepository
	orders    repository.OrderRepository
	policy    Policy
	logger    *zap.Logger
}

func New(store repository.Store, policy Policy, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		catalog:   store.Catalog,
		inventory: store.Inventory,
		machines:  store.Machines,
		orders:    store.Orders,
		policy:    policy,
		logger:    logger,
	}
}

// PendingUnits sums order line quantities per product over orders that still
// wait for payment or stock.
func (uc *UseCase) PendingUnits(ctx context.Context) (map[int64]int, error) {
	orders, err := uc.orders.List(ctx, repository.OrderFilter{
		Statuses: []domain.Status{domain.StatusPendingPayment, domain.StatusPendingStock},
	})
	if err != nil {
		return nil, err
	}
	pending := make(map[int64]int)
	for _, o := range orders {
		for _, item := range o.Items {
			pending[item.ProductID] += item.Quantity
		}
	}
	return pending, nil
}

// Plan computes the build quantity of every product with active machines on
// day. Nothing is persisted.
func (uc *UseCase) Plan(ctx context.Context, day int) ([]Plan, error) {
	plans, _, _, err := uc.plan(ctx, day)
	return plans, err
}

func (uc *UseCase) plan(ctx context.Context, day int) ([]Plan, domain.PartsInventory, map[int64]domain.Recipe, error) {
	products, err := uc.catalog.Products(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	machines, err := uc.machines.Machines(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	stock, err := uc.inventory.Stock(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	parts, err := uc.inventory.Parts(ctx)
	if err != nil {
		return nil, nil, nil, err
	}
	pending, err := uc.PendingUnits(ctx)
	if err != nil {
		return nil, nil, nil, err
	}

	capacity := domain.Capacity(machines, day)
	sort.Slice(products, func(i, j int) bool { return products[i].ID < products[j].ID })

	recipes := make(map[int64]domain.Recipe, len(products))
	var plans []Plan
	for _, product := range products {
		recipes[product.ID] = product.Recipe
		rate := capacity[product.ID]
		if rate <= 0 {
			continue
		}
		plan := Plan{
			ProductID: product.ID,
			Pending:   pending[product.ID],
			Free:      stock[product.ID].Free(),
			Capacity:  rate,
			Ceiling:   product.Recipe.Ceiling(parts),
		}
		plan.Demand = uc.policy.Demand(plan.Pending, plan.Free)
		plan.Quantity = minInt(plan.Demand, plan.Capacity, plan.Ceiling)
		plans = append(plans, plan)
	}
	return plans, parts, recipes, nil
}

// Run plans and commits production for day. Products are built in id order
// against a running parts balance; a failed commit aborts that product only.
func (uc *UseCase) Run(ctx context.Context, day int) ([]Plan, error) {
	log := logger.FromContext(ctx, uc.logger)

	plans, parts, recipes, err := uc.plan(ctx, day)
	if err != nil {
		return nil, err
	}

	var errs []error
	for i := range plans {
		plan := &plans[i]
		recipe := recipes[plan.ProductID]
		// Earlier products may have consumed shared parts.
		if ceiling := recipe.Ceiling(parts); ceiling < plan.Quantity {
			plan.Ceiling = ceiling
			plan.Quantity = ceiling
		}
		if plan.Quantity <= 0 {
			continue
		}

		consumption := recipe.Consumption(plan.Quantity)
		if err := uc.inventory.CommitProduction(ctx, plan.ProductID, plan.Quantity, consumption); err != nil {
			log.Warn("production commit failed",
				zap.Int64("product_id", plan.ProductID),
				zap.Int("quantity", plan.Quantity),
				zap.Error(err))
			errs = append(errs, fmt.Errorf("product %d: %w", plan.ProductID, err))
			plan.Quantity = 0
			continue
		}
		for part, qty := range consumption {
			parts[part] -= qty
		}
		log.Info("production committed",
			zap.Int64("product_id", plan.ProductID),
			zap.Int("quantity", plan.Quantity),
			zap.Int("demand", plan.Demand),
			zap.Int("capacity", plan.Capacity))
	}
	return plans, errors.Join(errs...)
}

func minInt(first int, rest ...int) int {
	m := first
	for _, v := range rest {
		if v < m {
			m = v
		}
	}
	return m
}

// Package orders accepts customer orders and the bank's payment notices for them.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

type UseCase struct {
	settings repository.SimulationRepository
	catalog  repository.CatalogRepository
	orders   repository.OrderRepository
	events   repository.EventRepository
	calendar usecase.Calendar
	logger   *zap.Logger
}

func New(store repository.Store, calendar usecase.Calendar, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		settings: store.Simulation,
		catalog:  store.Catalog,
		orders:   store.Orders,
		events:   store.Events,
		calendar: calendar,
		logger:   logger,
	}
}

// Create validates items against the catalog and stores a new order awaiting
// payment.
func (uc *UseCase) Create(ctx context.Context, items []domain.OrderItem) (*domain.Order, error) {
	if len(items) == 0 {
		return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, fmt.Errorf("order has no items"))
	}

	total := decimal.Zero
	lines := make([]domain.OrderItem, 0, len(items))
	for _, item := range items {
		if item.Quantity <= 0 {
			return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message,
				fmt.Errorf("product %d: quantity must be positive", item.ProductID))
		}
		product, err := uc.catalog.Product(ctx, item.ProductID)
		if err != nil {
			return nil, err
		}
		total = total.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		lines = append(lines, item)
	}

	day, err := uc.calendar.Today(ctx)
	if err != nil {
		return nil, err
	}

	order := &domain.Order{
		Items:      lines,
		Total:      total,
		AmountPaid: decimal.Zero,
		Status:     domain.OrderPipeline.Initial(),
		CreatedDay: day,
	}
	if err := uc.orders.Create(ctx, order); err != nil {
		return nil, err
	}
	uc.appendEvent(ctx, domain.StatusEvent{
		Kind:          domain.KindOrder,
		TransactionID: order.ID,
		To:            order.Status,
		Day:           day,
		CreatedAt:     time.Now(),
	})

	logger.FromContext(ctx, uc.logger).Info("order created",
		zap.Int64("id", order.ID),
		zap.Int("units", order.Units()),
		zap.String("total", total.String()))
	return order, nil
}

func (uc *UseCase) Get(ctx context.Context, id int64) (*domain.Order, error) {
	return uc.orders.Get(ctx, id)
}

// PaymentAccount is the bank account customers pay into. It is empty until
// the simulation opened one.
func (uc *UseCase) PaymentAccount(ctx context.Context) string {
	account, err := uc.settings.Setting(ctx, domain.SettingAccountNumber)
	if err != nil {
		if !errors.Is(err, domain.ErrSettingNotFound) {
			uc.logger.Warn("account lookup failed", zap.Error(err))
		}
		return ""
	}
	return account
}

// RecordPayment credits a bank transfer to the order named by reference.
// The advancer picks the order up on the next tick.
func (uc *UseCase) RecordPayment(ctx context.Context, reference string, amount decimal.Decimal) (*domain.Order, error) {
	id, err := ParseReference(reference)
	if err != nil {
		return nil, err
	}
	if !amount.IsPositive() {
		return nil, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message,
			fmt.Errorf("payment amount %s", amount))
	}
	order, err := uc.orders.RecordPayment(ctx, id, amount)
	if err != nil {
		return nil, err
	}
	logger.FromContext(ctx, uc.logger).Info("order payment recorded",
		zap.Int64("id", id),
		zap.String("amount", amount.String()),
		zap.String("paid", order.AmountPaid.String()),
		zap.Bool("settled", order.IsPaid()))
	return order, nil
}

// ParseReference accepts "42" and "order-42".
func ParseReference(reference string) (int64, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(reference), "order-")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.WrapError(domain.ErrCodeInvalid, "invalid order reference", fmt.Errorf("%q", reference))
	}
	return id, nil
}

func (uc *UseCase) appendEvent(ctx context.Context, event domain.StatusEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Append(ctx, event); err != nil {
		uc.logger.Warn("status event append failed", zap.Int64("id", event.TransactionID), zap.Error(err))
	}
}

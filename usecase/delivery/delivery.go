// Package delivery applies carrier notifications: collected customer orders
// ship, dropped-off purchases are received into inventory or the fleet.
package delivery

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// Outcome names the transaction a notification completed.
type Outcome struct {
	Kind   domain.Kind   `json:"kind"`
	ID     int64         `json:"id"`
	Status domain.Status `json:"status"`
}

type UseCase struct {
	orders           repository.OrderRepository
	partsPurchases   repository.PartsPurchaseRepository
	machinePurchases repository.MachinePurchaseRepository
	events           repository.EventRepository
	calendar         usecase.Calendar
	logger           *zap.Logger
}

func New(store repository.Store, calendar usecase.Calendar, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UseCase{
		orders:           store.Orders,
		partsPurchases:   store.PartsPurchases,
		machinePurchases: store.MachinePurchases,
		events:           store.Events,
		calendar:         calendar,
		logger:           logger,
	}
}

type completer struct {
	from domain.Status
	run  func(ctx context.Context, reference string, day int) (int64, domain.Status, error)
}

// Complete resolves reference among the transactions carried by carrier and
// applies the matching completion atomically. References are only unique per
// carrier, so a bulk drop-off never touches a customer order and vice versa.
// A repeated notification fails with domain.ErrStatusConflict and changes nothing.
func (uc *UseCase) Complete(ctx context.Context, carrier domain.Carrier, reference string) (Outcome, error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return Outcome{}, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidPayload.Message, errors.New("delivery reference is required"))
	}
	kinds := carrier.Kinds()
	if len(kinds) == 0 {
		return Outcome{}, domain.WrapError(domain.ErrCodeInvalid, "unknown carrier", errors.New(string(carrier)))
	}
	day, err := uc.calendar.Today(ctx)
	if err != nil {
		return Outcome{}, err
	}

	completers := uc.completers()
	for _, kind := range kinds {
		c := completers[kind]
		id, status, err := c.run(ctx, reference, day)
		if errors.Is(err, domain.ErrDeliveryNotFound) {
			continue
		}
		if err != nil {
			return Outcome{Kind: kind}, err
		}
		uc.appendEvent(ctx, domain.StatusEvent{
			Kind:          kind,
			TransactionID: id,
			From:          c.from,
			To:            status,
			Day:           day,
			CreatedAt:     time.Now(),
		})
		logger.FromContext(ctx, uc.logger).Info("delivery completed",
			zap.String("carrier", string(carrier)),
			zap.String("kind", string(kind)),
			zap.Int64("id", id),
			zap.String("reference", reference),
			zap.String("status", string(status)))
		return Outcome{Kind: kind, ID: id, Status: status}, nil
	}
	return Outcome{}, domain.ErrDeliveryNotFound
}

func (uc *UseCase) completers() map[domain.Kind]completer {
	return map[domain.Kind]completer{
		domain.KindOrder: {
			from: domain.StatusPendingDeliveryCollection,
			run: func(ctx context.Context, reference string, _ int) (int64, domain.Status, error) {
				o, err := uc.orders.Ship(ctx, reference)
				if err != nil {
					return 0, "", err
				}
				return o.ID, o.Status, nil
			},
		},
		domain.KindPartsPurchase: {
			from: domain.StatusPendingDeliveryDropOff,
			run: func(ctx context.Context, reference string, _ int) (int64, domain.Status, error) {
				p, err := uc.partsPurchases.Receive(ctx, reference)
				if err != nil {
					return 0, "", err
				}
				return p.ID, p.Status, nil
			},
		},
		domain.KindMachinePurchase: {
			from: domain.StatusPendingDeliveryDropOff,
			run: func(ctx context.Context, reference string, day int) (int64, domain.Status, error) {
				p, err := uc.machinePurchases.Receive(ctx, reference, day)
				if err != nil {
					return 0, "", err
				}
				return p.ID, p.Status, nil
			},
		},
	}
}

func (uc *UseCase) appendEvent(ctx context.Context, event domain.StatusEvent) {
	if uc.events == nil {
		return
	}
	if err := uc.events.Append(ctx, event); err != nil {
		uc.logger.Warn("status event append failed", zap.Int64("id", event.TransactionID), zap.Error(err))
	}
}

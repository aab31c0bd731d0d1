// Package advance moves in-flight orders and purchases through their
// pipelines, one externally gated stage at a time.
package advance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/pkg/logger"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// Policy holds the advancement settings.
type Policy struct {
	// PaymentTimeoutDays cancels unpaid orders at this age.
	PaymentTimeoutDays int
	// Company is our name in delivery requests.
	Company string
}

func DefaultPolicy() Policy {
	return Policy{PaymentTimeoutDays: 2, Company: "sumsang-company"}
}

// Result summarises one advancement pass over a transaction kind.
type Result struct {
	Kind      domain.Kind `json:"kind"`
	Examined  int         `json:"examined"`
	Advanced  int         `json:"advanced"`
	Cancelled int         `json:"cancelled"`
	Failed    int         `json:"failed"`
}

type UseCase struct {
	orders           repository.OrderRepository
	partsPurchases   repository.PartsPurchaseRepository
	machinePurchases repository.MachinePurchaseRepository
	events           repository.EventRepository
	gateway          *gateway.Gateway
	journal          usecase.CallJournal
	policy           Policy
	logger           *zap.Logger
}

func New(store repository.Store, gw *gateway.Gateway, journal usecase.CallJournal, policy Policy, logger *zap.Logger) *UseCase {
	if logger == nil {
		logger = zap.NewNop()
	}
	if journal == nil {
		journal = usecase.NopJournal{}
	}
	return &UseCase{
		orders:           store.Orders,
		partsPurchases:   store.PartsPurchases,
		machinePurchases: store.MachinePurchases,
		events:           store.Events,
		gateway:          gw,
		journal:          journal,
		policy:           policy,
		logger:           logger,
	}
}

// stepFunc performs the action of the current stage. It reports whether the
// transaction moved; false with a nil error means the precondition does not
// hold yet.
type stepFunc func(ctx context.Context, day int) (bool, error)

// cascade repeats step until it stops moving. Every move is strictly forward,
// so each stage action runs at most once per call.
func cascade(ctx context.Context, day int, step stepFunc) (int, error) {
	var moves int
	for {
		moved, err := step(ctx, day)
		if err != nil {
			return moves, err
		}
		if !moved {
			return moves, nil
		}
		moves++
	}
}

func (r *Result) observe(moves int, cancelled bool, err error) {
	r.Advanced += moves
	if cancelled {
		r.Cancelled++
	}
	if err != nil {
		r.Failed++
	}
}

// transition validates and persists one move, then records the audit event.
// A concurrent change of the stored status stops the cascade without error.
func (uc *UseCase) transition(ctx context.Context, kind domain.Kind, id int64, from, to domain.Status, day int, write func(context.Context) error) (bool, error) {
	if err := domain.PipelineFor(kind).CanTransition(from, to); err != nil {
		return false, err
	}
	if err := write(ctx); err != nil {
		if errors.Is(err, domain.ErrStatusConflict) {
			logger.FromContext(ctx, uc.logger).Debug("status changed concurrently",
				zap.String("kind", string(kind)), zap.Int64("id", id), zap.String("from", string(from)))
			return false, nil
		}
		return false, err
	}
	if uc.events != nil {
		event := domain.StatusEvent{Kind: kind, TransactionID: id, From: from, To: to, Day: day, CreatedAt: time.Now()}
		if err := uc.events.Append(ctx, event); err != nil {
			uc.logger.Warn("status event append failed", zap.Int64("id", id), zap.Error(err))
		}
	}
	logger.FromContext(ctx, uc.logger).Info("transaction advanced",
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	return true, nil
}

// journaled runs call once per key. A recorded result is replayed instead of
// calling the counterparty again.
func journaled[T any](ctx context.Context, uc *UseCase, key usecase.CallKey, day int, call func(context.Context) (T, error)) (T, error) {
	var out T
	prior, found, err := uc.journal.Recall(ctx, key)
	if err != nil {
		return out, err
	}
	if found {
		if err := json.Unmarshal(prior.Result, &out); err != nil {
			return out, fmt.Errorf("journal replay %s/%s/%s: %w", key.Kind, key.Subject, key.Stage, err)
		}
		logger.FromContext(ctx, uc.logger).Info("replaying journaled call",
			zap.String("kind", string(key.Kind)),
			zap.String("subject", key.Subject),
			zap.String("stage", string(key.Stage)))
		return out, nil
	}

	out, err = call(ctx)
	if err != nil {
		return out, err
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return out, err
	}
	if err := uc.journal.Remember(ctx, usecase.CallRecord{Key: key, Day: day, Result: payload}); err != nil {
		uc.logger.Error("journal write failed after counterparty call",
			zap.String("kind", string(key.Kind)),
			zap.String("subject", key.Subject),
			zap.Error(err))
	}
	return out, nil
}

type paymentReceipt struct {
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
}

func (uc *UseCase) pay(ctx context.Context, key usecase.CallKey, day int, payment gateway.Payment) error {
	if uc.gateway == nil || uc.gateway.Bank == nil {
		return domain.ErrCounterpartyUnavailable
	}
	_, err := journaled(ctx, uc, key, day, func(ctx context.Context) (paymentReceipt, error) {
		if err := uc.gateway.Bank.MakePayment(ctx, payment); err != nil {
			return paymentReceipt{}, err
		}
		return paymentReceipt{Reference: payment.Reference, Amount: payment.Amount.String()}, nil
	})
	return err
}

func (uc *UseCase) requestDelivery(ctx context.Context, key usecase.CallKey, day int, carrier gateway.Logistics, req gateway.DeliveryRequest) (domain.Delivery, error) {
	if carrier == nil {
		return domain.Delivery{}, domain.ErrCounterpartyUnavailable
	}
	delivery, err := journaled(ctx, uc, key, day, func(ctx context.Context) (domain.Delivery, error) {
		d, err := carrier.RequestDelivery(ctx, req)
		if err != nil {
			return domain.Delivery{}, err
		}
		if !d.IsComplete() {
			return domain.Delivery{}, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidResponse.Message,
				fmt.Errorf("incomplete delivery for %s", req.Reference))
		}
		return d, nil
	})
	if err != nil {
		return domain.Delivery{}, err
	}
	return delivery, nil
}

func (uc *UseCase) payDelivery(ctx context.Context, key usecase.CallKey, day int, delivery domain.Delivery) error {
	if !delivery.IsComplete() {
		return domain.WrapError(domain.ErrCodeInvalid, "delivery details missing", fmt.Errorf("%s %s", key.Kind, key.Subject))
	}
	return uc.pay(ctx, key, day, gateway.Payment{
		Reference: delivery.Reference,
		Amount:    delivery.Cost,
		ToAccount: delivery.Account,
	})
}

// All advances orders, parts purchases and machine purchases in that order.
func (uc *UseCase) All(ctx context.Context, day int) ([]Result, error) {
	var errs []error
	results := make([]Result, 0, 3)

	orders, err := uc.Orders(ctx, day)
	results = append(results, orders)
	errs = append(errs, err)

	parts, err := uc.PartsPurchases(ctx, day)
	results = append(results, parts)
	errs = append(errs, err)

	machines, err := uc.MachinePurchases(ctx, day)
	results = append(results, machines)
	errs = append(errs, err)

	return results, errors.Join(errs...)
}

func (uc *UseCase) fail(ctx context.Context, kind domain.Kind, id int64, status domain.Status, err error) error {
	logger.FromContext(ctx, uc.logger).Warn("stage failed, retrying next day",
		zap.String("kind", string(kind)),
		zap.Int64("id", id),
		zap.String("status", string(status)),
		zap.Bool("transient", domain.IsTransient(err)),
		zap.Error(err))
	return fmt.Errorf("%s %d at %s: %w", kind, id, status, err)
}

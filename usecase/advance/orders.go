package advance

import (
	"context"
	"errors"
	"strconv"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// Orders advances every open customer order.
func (uc *UseCase) Orders(ctx context.Context, day int) (Result, error) {
	result := Result{Kind: domain.KindOrder}
	orders, err := uc.orders.List(ctx, repository.OrderFilter{Statuses: domain.OrderPipeline.OpenStatuses()})
	if err != nil {
		return result, err
	}

	var errs []error
	for i := range orders {
		order := &orders[i]
		result.Examined++
		moves, err := uc.AdvanceOrder(ctx, day, order)
		result.observe(moves, order.Status == domain.StatusCancelled, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// AdvanceOrder cascades one order through every stage whose precondition
// currently holds. order is updated in place.
func (uc *UseCase) AdvanceOrder(ctx context.Context, day int, order *domain.Order) (int, error) {
	return cascade(ctx, day, func(ctx context.Context, day int) (bool, error) {
		from := order.Status
		moved, err := uc.stepOrder(ctx, day, order)
		if err != nil {
			return false, uc.fail(ctx, domain.KindOrder, order.ID, from, err)
		}
		return moved, nil
	})
}

func (uc *UseCase) stepOrder(ctx context.Context, day int, order *domain.Order) (bool, error) {
	switch order.Status {
	case domain.StatusPendingPayment:
		switch {
		case order.IsPaid():
			return uc.moveOrder(ctx, day, order, domain.StatusPendingStock)
		case order.PaymentExpired(day, uc.policy.PaymentTimeoutDays):
			return uc.moveOrder(ctx, day, order, domain.StatusCancelled)
		}
		return false, nil

	case domain.StatusPendingStock:
		from := order.Status
		next := *order
		next.Status = domain.StatusPendingDeliveryRequest
		moved, err := uc.transition(ctx, domain.KindOrder, order.ID, from, next.Status, day, func(ctx context.Context) error {
			return uc.orders.Reserve(ctx, &next, from)
		})
		if errors.Is(err, domain.ErrInsufficientStock) {
			// Waits for the next production run.
			return false, nil
		}
		if moved {
			order.Status = next.Status
		}
		return moved, err

	case domain.StatusPendingDeliveryRequest:
		carrier := gateway.Logistics(nil)
		if uc.gateway != nil {
			carrier = uc.gateway.ConsumerLogistics
		}
		key := usecase.TransactionKey(domain.KindOrder, order.ID, order.Status)
		delivery, err := uc.requestDelivery(ctx, key, day, carrier, gateway.DeliveryRequest{
			Reference:   "order-" + strconv.FormatInt(order.ID, 10),
			Quantity:    order.Units(),
			Origin:      uc.policy.Company,
			Destination: "consumer",
		})
		if err != nil {
			return false, err
		}
		next := *order
		next.Delivery = delivery
		return uc.moveOrderWith(ctx, day, order, &next, domain.StatusPendingDeliveryPayment)

	case domain.StatusPendingDeliveryPayment:
		key := usecase.TransactionKey(domain.KindOrder, order.ID, order.Status)
		if err := uc.payDelivery(ctx, key, day, order.Delivery); err != nil {
			return false, err
		}
		return uc.moveOrder(ctx, day, order, domain.StatusPendingDeliveryCollection)
	}
	// Collection is confirmed by the carrier notification.
	return false, nil
}

func (uc *UseCase) moveOrder(ctx context.Context, day int, order *domain.Order, to domain.Status) (bool, error) {
	next := *order
	return uc.moveOrderWith(ctx, day, order, &next, to)
}

func (uc *UseCase) moveOrderWith(ctx context.Context, day int, order, next *domain.Order, to domain.Status) (bool, error) {
	from := order.Status
	next.Status = to
	moved, err := uc.transition(ctx, domain.KindOrder, order.ID, from, to, day, func(ctx context.Context) error {
		return uc.orders.Transition(ctx, next, from)
	})
	if moved {
		*order = *next
	}
	return moved, err
}

package advance

import (
	"context"
	"errors"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
	"github.com/miniconomy2025/sumsang-phones/repository"
	"github.com/miniconomy2025/sumsang-phones/usecase"
)

// PartsPurchases advances every open parts purchase.
func (uc *UseCase) PartsPurchases(ctx context.Context, day int) (Result, error) {
	result := Result{Kind: domain.KindPartsPurchase}
	purchases, err := uc.partsPurchases.List(ctx, repository.PurchaseFilter{Statuses: domain.PartsPurchasePipeline.OpenStatuses()})
	if err != nil {
		return result, err
	}

	var errs []error
	for i := range purchases {
		purchase := &purchases[i]
		result.Examined++
		moves, err := uc.AdvancePartsPurchase(ctx, day, purchase)
		result.observe(moves, purchase.Status == domain.StatusCancelled, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// AdvancePartsPurchase cascades one parts purchase. purchase is updated in place.
func (uc *UseCase) AdvancePartsPurchase(ctx context.Context, day int, purchase *domain.PartsPurchase) (int, error) {
	return cascade(ctx, day, func(ctx context.Context, day int) (bool, error) {
		from := purchase.Status
		moved, err := uc.stepPartsPurchase(ctx, day, purchase)
		if err != nil {
			return false, uc.fail(ctx, domain.KindPartsPurchase, purchase.ID, from, err)
		}
		return moved, nil
	})
}

func (uc *UseCase) stepPartsPurchase(ctx context.Context, day int, p *domain.PartsPurchase) (bool, error) {
	key := usecase.TransactionKey(domain.KindPartsPurchase, p.ID, p.Status)

	switch p.Status {
	case domain.StatusPendingPayment:
		_, paid, err := uc.journal.Recall(ctx, key)
		if err != nil {
			return false, err
		}
		if !paid {
			open, err := uc.supplierOrderOpen(ctx, p)
			if err != nil {
				return false, err
			}
			if !open {
				return uc.movePartsPurchase(ctx, day, p, p, domain.StatusCancelled)
			}
		}
		if err := uc.pay(ctx, key, day, gateway.Payment{Reference: p.Reference, Amount: p.Cost, ToAccount: p.Account}); err != nil {
			return false, err
		}
		return uc.movePartsPurchase(ctx, day, p, p, domain.StatusPendingDeliveryRequest)

	case domain.StatusPendingDeliveryRequest:
		origin := p.Part.String()
		if supplier, err := uc.supplier(p.Part); err == nil {
			origin = supplier.Name()
		}
		delivery, err := uc.requestDelivery(ctx, key, day, uc.bulkLogistics(), gateway.DeliveryRequest{
			Reference:   p.Reference,
			Quantity:    p.Quantity,
			Origin:      origin,
			Destination: uc.policy.Company,
		})
		if err != nil {
			return false, err
		}
		next := *p
		next.Delivery = delivery
		return uc.movePartsPurchase(ctx, day, p, &next, domain.StatusPendingDeliveryPayment)

	case domain.StatusPendingDeliveryPayment:
		if err := uc.payDelivery(ctx, key, day, p.Delivery); err != nil {
			return false, err
		}
		return uc.movePartsPurchase(ctx, day, p, p, domain.StatusPendingDeliveryDropOff)
	}
	// Drop-off is confirmed by the carrier notification.
	return false, nil
}

// supplierOrderOpen treats a terminal supplier answer as a closed order.
func (uc *UseCase) supplierOrderOpen(ctx context.Context, p *domain.PartsPurchase) (bool, error) {
	supplier, err := uc.supplier(p.Part)
	if err != nil {
		return false, err
	}
	open, err := supplier.OrderOpen(ctx, p.Reference)
	if err != nil {
		if domain.IsDomainError(err, domain.ErrCodeTerminal) {
			return false, nil
		}
		return false, err
	}
	return open, nil
}

func (uc *UseCase) supplier(part domain.Part) (gateway.Supplier, error) {
	if uc.gateway == nil {
		return nil, domain.ErrCounterpartyUnavailable
	}
	return uc.gateway.Supplier(part)
}

func (uc *UseCase) bulkLogistics() gateway.Logistics {
	if uc.gateway == nil {
		return nil
	}
	return uc.gateway.BulkLogistics
}

func (uc *UseCase) movePartsPurchase(ctx context.Context, day int, p, next *domain.PartsPurchase, to domain.Status) (bool, error) {
	from := p.Status
	updated := *next
	updated.Status = to
	moved, err := uc.transition(ctx, domain.KindPartsPurchase, p.ID, from, to, day, func(ctx context.Context) error {
		return uc.partsPurchases.Transition(ctx, &updated, from)
	})
	if moved {
		*p = updated
	}
	return moved, err
}

// MachinePurchases advances every open machine purchase.
func (uc *UseCase) MachinePurchases(ctx context.Context, day int) (Result, error) {
	result := Result{Kind: domain.KindMachinePurchase}
	purchases, err := uc.machinePurchases.List(ctx, repository.PurchaseFilter{Statuses: domain.MachinePurchasePipeline.OpenStatuses()})
	if err != nil {
		return result, err
	}

	var errs []error
	for i := range purchases {
		purchase := &purchases[i]
		result.Examined++
		moves, err := uc.AdvanceMachinePurchase(ctx, day, purchase)
		result.observe(moves, false, err)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return result, errors.Join(errs...)
}

// AdvanceMachinePurchase cascades one machine purchase. purchase is updated in place.
func (uc *UseCase) AdvanceMachinePurchase(ctx context.Context, day int, purchase *domain.MachinePurchase) (int, error) {
	return cascade(ctx, day, func(ctx context.Context, day int) (bool, error) {
		from := purchase.Status
		moved, err := uc.stepMachinePurchase(ctx, day, purchase)
		if err != nil {
			return false, uc.fail(ctx, domain.KindMachinePurchase, purchase.ID, from, err)
		}
		return moved, nil
	})
}

func (uc *UseCase) stepMachinePurchase(ctx context.Context, day int, p *domain.MachinePurchase) (bool, error) {
	key := usecase.TransactionKey(domain.KindMachinePurchase, p.ID, p.Status)

	switch p.Status {
	case domain.StatusPendingPayment:
		if err := uc.pay(ctx, key, day, gateway.Payment{Reference: p.Reference, Amount: p.Cost, ToAccount: p.Account}); err != nil {
			return false, err
		}
		return uc.moveMachinePurchase(ctx, day, p, p, domain.StatusPendingDeliveryRequest)

	case domain.StatusPendingDeliveryRequest:
		origin := "machine-supplier"
		if uc.gateway != nil && uc.gateway.MachineSupplier != nil {
			origin = uc.gateway.MachineSupplier.Name()
		}
		delivery, err := uc.requestDelivery(ctx, key, day, uc.bulkLogistics(), gateway.DeliveryRequest{
			Reference:   p.Reference,
			Quantity:    p.MachineCount,
			Origin:      origin,
			Destination: uc.policy.Company,
		})
		if err != nil {
			return false, err
		}
		next := *p
		next.Delivery = delivery
		return uc.moveMachinePurchase(ctx, day, p, &next, domain.StatusPendingDeliveryPayment)

	case domain.StatusPendingDeliveryPayment:
		if err := uc.payDelivery(ctx, key, day, p.Delivery); err != nil {
			return false, err
		}
		return uc.moveMachinePurchase(ctx, day, p, p, domain.StatusPendingDeliveryDropOff)
	}
	return false, nil
}

func (uc *UseCase) moveMachinePurchase(ctx context.Context, day int, p, next *domain.MachinePurchase, to domain.Status) (bool, error) {
	from := p.Status
	updated := *next
	updated.Status = to
	moved, err := uc.transition(ctx, domain.KindMachinePurchase, p.ID, from, to, day, func(ctx context.Context) error {
		return uc.machinePurchases.Transition(ctx, &updated, from)
	})
	if moved {
		*p = updated
	}
	return moved, err
}

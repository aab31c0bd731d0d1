// Package gateway declares the counterparties the simulation core talks to.
// The core depends on these interfaces only; transport lives in gateway/httpapi.
package gateway

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
)

// Loan is the outcome of a successful loan application.
type Loan struct {
	Number string
	Amount decimal.Decimal
}

// Payment moves money from our account to a counterparty account.
type Payment struct {
	Reference string
	Amount    decimal.Decimal
	ToAccount string
}

// Bank is the settlement counterparty.
type Bank interface {
	OpenAccount(ctx context.Context) (string, error)
	ApplyForLoan(ctx context.Context, amount decimal.Decimal) (Loan, error)
	MakePayment(ctx context.Context, payment Payment) error
	// LoanBalance returns the outstanding amount on a loan.
	LoanBalance(ctx context.Context, loanNumber string) (decimal.Decimal, error)
	// RepayLoan returns the amount the bank actually applied.
	RepayLoan(ctx context.Context, loanNumber string, amount decimal.Decimal) (decimal.Decimal, error)
}

// DeliveryRequest asks a carrier to move goods between two parties.
type DeliveryRequest struct {
	Reference   string
	Quantity    int
	Origin      string
	Destination string
}

// Logistics is implemented by both the bulk and the consumer carrier.
type Logistics interface {
	RequestDelivery(ctx context.Context, req DeliveryRequest) (domain.Delivery, error)
}

// SupplierOrder is what a supplier returns when it accepts a purchase.
type SupplierOrder struct {
	Reference string
	Cost      decimal.Decimal
	Account   string
}

// Supplier sells one part type in bulk.
type Supplier interface {
	Name() string
	Purchase(ctx context.Context, quantity int) (SupplierOrder, error)
	// OrderOpen reports whether the supplier still holds the order.
	OrderOpen(ctx context.Context, reference string) (bool, error)
}

// MachineOrder extends SupplierOrder with the machine specification.
type MachineOrder struct {
	SupplierOrder
	RatePerDay int
	Ratios     domain.Recipe
}

// MachineSupplier sells production machines.
type MachineSupplier interface {
	Name() string
	PurchaseMachines(ctx context.Context, product domain.Product, count int) (MachineOrder, error)
}

// Gateway bundles every counterparty. Suppliers are resolved by part type once,
// at the boundary.
type Gateway struct {
	Bank              Bank
	BulkLogistics     Logistics
	ConsumerLogistics Logistics
	PartSuppliers     map[domain.Part]Supplier
	MachineSupplier   MachineSupplier
}

// Supplier returns the supplier of part.
func (g *Gateway) Supplier(part domain.Part) (Supplier, error) {
	if g == nil {
		return nil, domain.ErrCounterpartyUnavailable
	}
	s, ok := g.PartSuppliers[part]
	if !ok || s == nil {
		return nil, domain.WrapError(domain.ErrCodeInvalid, "no supplier configured", fmt.Errorf("part %s", part))
	}
	return s, nil
}

package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem is one (product, quantity) line of a customer order.
type OrderItem struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// Delivery holds what a logistics provider returned for a pickup request.
type Delivery struct {
	Reference string          `json:"reference,omitempty"`
	Cost      decimal.Decimal `json:"cost"`
	Account   string          `json:"account,omitempty"`
}

// IsComplete reports whether the delivery carries everything needed to pay for it.
func (d Delivery) IsComplete() bool {
	return d.Reference != "" && d.Account != "" && d.Cost.IsPositive()
}

// Carrier names the logistics provider a delivery reference belongs to.
// Customer orders travel with the consumer carrier, purchases with the bulk one,
// and each carrier numbers its references independently.
type Carrier string

const (
	CarrierBulk     Carrier = "bulk"
	CarrierConsumer Carrier = "consumer"
)

// ParseCarrier accepts a carrier name in any case.
func ParseCarrier(s string) (Carrier, error) {
	switch c := Carrier(strings.ToLower(strings.TrimSpace(s))); c {
	case CarrierBulk, CarrierConsumer:
		return c, nil
	}
	return "", WrapError(ErrCodeInvalid, "unknown carrier", fmt.Errorf("%q", s))
}

// Kinds lists the transaction kinds whose deliveries the carrier handles.
func (c Carrier) Kinds() []Kind {
	switch c {
	case CarrierBulk:
		return []Kind{KindPartsPurchase, KindMachinePurchase}
	case CarrierConsumer:
		return []Kind{KindOrder}
	}
	return nil
}

// Order is a customer purchase of phones.
type Order struct {
	ID         int64           `json:"id"`
	Items      []OrderItem     `json:"items"`
	Total      decimal.Decimal `json:"total"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	Status     Status          `json:"status"`
	Delivery   Delivery        `json:"delivery"`
	CreatedDay int             `json:"created_day"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Units is the total phone count across all lines.
func (o *Order) Units() int {
	var n int
	for _, item := range o.Items {
		n += item.Quantity
	}
	return n
}

func (o *Order) IsPaid() bool {
	return o != nil && o.AmountPaid.GreaterThanOrEqual(o.Total)
}

// PaymentExpired applies the payment timeout policy: unpaid for at least
// timeoutDays simulated days.
func (o *Order) PaymentExpired(today, timeoutDays int) bool {
	return !o.IsPaid() && today-o.CreatedDay >= timeoutDays
}

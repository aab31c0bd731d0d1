package transport

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
)

// StartSimulationRequest optionally pins the simulation epoch. EpochStartTime
// is in unix milliseconds; zero starts the clock now.
type StartSimulationRequest struct {
	EpochStartTime int64 `json:"epoch_start_time"`
}

// Epoch resolves the requested epoch against now.
func (r StartSimulationRequest) Epoch(now time.Time) time.Time {
	if r.EpochStartTime <= 0 {
		return now.UTC()
	}
	return time.UnixMilli(r.EpochStartTime).UTC()
}

type OrderItemRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

type CreateOrderRequest struct {
	Items []OrderItemRequest `json:"items"`
}

// Lines converts the request into order lines.
func (r CreateOrderRequest) Lines() []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(r.Items))
	for _, item := range r.Items {
		out = append(out, domain.OrderItem{ProductID: item.ProductID, Quantity: item.Quantity})
	}
	return out
}

// CreateOrderResponse tells the customer where and how much to pay.
type CreateOrderResponse struct {
	OrderID       int64           `json:"order_id"`
	Reference     string          `json:"reference"`
	Total         decimal.Decimal `json:"total"`
	AccountNumber string          `json:"account_number,omitempty"`
	Status        domain.Status   `json:"status"`
}

// BankNotificationRequest is a settled transfer. Reference is the order id.
type BankNotificationRequest struct {
	Reference string          `json:"reference"`
	Amount    decimal.Decimal `json:"amount"`
}

// LogisticsNotificationRequest reports a completed pickup or drop-off.
// Carrier is "bulk" for purchases and "consumer" for customer orders.
type LogisticsNotificationRequest struct {
	Carrier   string `json:"carrier"`
	Reference string `json:"delivery_reference"`
}

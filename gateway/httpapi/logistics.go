package httpapi

import (
	"context"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
)

// Logistics is a carrier; the same adapter serves bulk and consumer deliveries.
type Logistics struct {
	*Client
}

func NewLogistics(c *Client) *Logistics {
	return &Logistics{Client: c}
}

type pickupRequest struct {
	Reference   string `json:"original_external_order_id"`
	Origin      string `json:"origin_company"`
	Destination string `json:"destination_company"`
	Quantity    int    `json:"quantity"`
}

type pickupResponse struct {
	PickupRequestID string          `json:"pickup_request_id"`
	Cost            decimal.Decimal `json:"cost"`
	AccountNumber   string          `json:"bank_account_number"`
}

func (l *Logistics) RequestDelivery(ctx context.Context, req gateway.DeliveryRequest) (domain.Delivery, error) {
	if req.Quantity <= 0 {
		return domain.Delivery{}, domain.ErrInvalidPayload
	}
	var resp pickupResponse
	body := pickupRequest{
		Reference:   req.Reference,
		Origin:      req.Origin,
		Destination: req.Destination,
		Quantity:    req.Quantity,
	}
	if err := l.do(ctx, http.MethodPost, "/pickup-requests", body, &resp); err != nil {
		return domain.Delivery{}, err
	}
	delivery := domain.Delivery{
		Reference: resp.PickupRequestID,
		Cost:      resp.Cost,
		Account:   resp.AccountNumber,
	}
	if !delivery.IsComplete() {
		return domain.Delivery{}, invalid(l.name, "pickup_request_id, cost or bank_account_number")
	}
	return delivery, nil
}

var _ gateway.Logistics = (*Logistics)(nil)

package httpapi

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/miniconomy2025/sumsang-phones/domain"
	"github.com/miniconomy2025/sumsang-phones/gateway"
)

// closedOrderStates are supplier order states that will never ship.
var closedOrderStates = map[string]struct{}{
	"cancelled": {},
	"canceled":  {},
	"expired":   {},
	"rejected":  {},
}

type purchaseRequest struct {
	Quantity int `json:"quantity"`
}

type orderResponse struct {
	OrderID     string          `json:"order_id"`
	TotalPrice  decimal.Decimal `json:"total_price"`
	BankAccount string          `json:"bank_account"`
}

func (o orderResponse) supplierOrder() gateway.SupplierOrder {
	return gateway.SupplierOrder{Reference: o.OrderID, Cost: o.TotalPrice, Account: o.BankAccount}
}

type orderStatusResponse struct {
	Status string `json:"status"`
}

// orderOpen asks path for the state of an order. A 404 means the supplier no
// longer holds it.
func orderOpen(ctx context.Context, c *Client, path string) (bool, error) {
	var resp orderStatusResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		if domain.IsDomainError(err, domain.ErrCodeNotFound) {
			return false, nil
		}
		return false, err
	}
	_, closed := closedOrderStates[strings.ToLower(resp.Status)]
	return !closed, nil
}

// Supplier sells one part type.
type Supplier struct {
	*Client
	part domain.Part
}

func NewSupplier(c *Client, part domain.Part) *Supplier {
	return &Supplier{Client: c, part: part}
}

func (s *Supplier) Purchase(ctx context.Context, quantity int) (gateway.SupplierOrder, error) {
	if quantity <= 0 {
		return gateway.SupplierOrder{}, domain.ErrInvalidPayload
	}
	var resp orderResponse
	path := "/" + s.part.String() + "/orders"
	if err := s.do(ctx, http.MethodPost, path, purchaseRequest{Quantity: quantity}, &resp); err != nil {
		return gateway.SupplierOrder{}, err
	}
	if resp.OrderID == "" || resp.BankAccount == "" || !resp.TotalPrice.IsPositive() {
		return gateway.SupplierOrder{}, invalid(s.name, "order_id, total_price or bank_account")
	}
	return resp.supplierOrder(), nil
}

func (s *Supplier) OrderOpen(ctx context.Context, reference string) (bool, error) {
	return orderOpen(ctx, s.Client, "/"+s.part.String()+"/orders/"+url.PathEscape(reference))
}

// MachineSupplier sells production machines.
type MachineSupplier struct {
	*Client
}

func NewMachineSupplier(c *Client) *MachineSupplier {
	return &MachineSupplier{Client: c}
}

type machinePurchaseRequest struct {
	MachineName string `json:"machine_name"`
	Quantity    int    `json:"quantity"`
}

type machineDetails struct {
	ProductionRate int            `json:"production_rate"`
	Ratios         map[string]int `json:"ratios"`
}

type machineOrderResponse struct {
	orderResponse
	Details machineDetails `json:"machine_details"`
}

func (m *MachineSupplier) PurchaseMachines(ctx context.Context, product domain.Product, count int) (gateway.MachineOrder, error) {
	if count <= 0 {
		return gateway.MachineOrder{}, domain.ErrInvalidPayload
	}
	var resp machineOrderResponse
	req := machinePurchaseRequest{MachineName: machineName(product), Quantity: count}
	if err := m.do(ctx, http.MethodPost, "/machines", req, &resp); err != nil {
		return gateway.MachineOrder{}, err
	}
	if resp.OrderID == "" || resp.BankAccount == "" || !resp.TotalPrice.IsPositive() {
		return gateway.MachineOrder{}, invalid(m.name, "order_id, total_price or bank_account")
	}
	if resp.Details.ProductionRate <= 0 {
		return gateway.MachineOrder{}, invalid(m.name, "machine_details.production_rate")
	}

	ratios := make(domain.Recipe, len(resp.Details.Ratios))
	for name, qty := range resp.Details.Ratios {
		part, err := domain.ParsePart(name)
		if err != nil {
			return gateway.MachineOrder{}, domain.WrapError(domain.ErrCodeInvalid, domain.ErrInvalidResponse.Message, err)
		}
		if qty > 0 {
			ratios[part] = qty
		}
	}
	if len(ratios) == 0 {
		return gateway.MachineOrder{}, invalid(m.name, "machine_details.ratios")
	}

	return gateway.MachineOrder{
		SupplierOrder: resp.supplierOrder(),
		RatePerDay:    resp.Details.ProductionRate,
		Ratios:        ratios,
	}, nil
}

// machineName is the supplier's catalogue key, e.g. "cosmos_z25_ultra_machine".
func machineName(p domain.Product) string {
	name := strings.ToLower(strings.TrimSpace(p.Name))
	name = strings.Join(strings.Fields(name), "_")
	return name + "_machine"
}

var (
	_ gateway.Supplier        = (*Supplier)(nil)
	_ gateway.MachineSupplier = (*MachineSupplier)(nil)
)

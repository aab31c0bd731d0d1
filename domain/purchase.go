package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PartsPurchase is a bulk order of one part type from its supplier.
type PartsPurchase struct {
	ID         int64           `json:"id"`
	Part       Part            `json:"part"`
	Quantity   int             `json:"quantity"`
	Cost       decimal.Decimal `json:"cost"`
	Reference  string          `json:"reference"`
	Account    string          `json:"account"`
	Status     Status          `json:"status"`
	Delivery   Delivery        `json:"delivery"`
	CreatedDay int             `json:"created_day"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// MachinePurchase is an order of production machines for one product.
type MachinePurchase struct {
	ID           int64           `json:"id"`
	ProductID    int64           `json:"product_id"`
	MachineCount int             `json:"machine_count"`
	RatePerDay   int             `json:"rate_per_day"`
	Ratios       Recipe          `json:"ratios"`
	Cost         decimal.Decimal `json:"cost"`
	Reference    string          `json:"reference"`
	Account      string          `json:"account"`
	Status       Status          `json:"status"`
	Delivery     Delivery        `json:"delivery"`
	CreatedDay   int             `json:"created_day"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

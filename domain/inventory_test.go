package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestDayAt(t *testing.T) {
	epoch := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := Clock{Epoch: epoch}

	assert.Equal(t, 0, c.DayAt(epoch.Add(-time.Second), time.Minute))
	assert.Equal(t, 1, c.DayAt(epoch, time.Minute))
	assert.Equal(t, 1, c.DayAt(epoch.Add(59*time.Second), time.Minute))
	assert.Equal(t, 2, c.DayAt(epoch.Add(time.Minute), time.Minute))
	assert.Equal(t, 0, c.DayAt(epoch.Add(time.Hour), 0))
}

func TestRecipeCeilingAndConsumption(t *testing.T) {
	r := Recipe{PartScreen: 1, PartCase: 1, PartElectronics: 2}
	inv := PartsInventory{PartScreen: 10, PartCase: 7, PartElectronics: 9}

	assert.Equal(t, 4, r.Ceiling(inv))
	assert.Equal(t, map[Part]int{PartScreen: 4, PartCase: 4, PartElectronics: 8}, r.Consumption(4))
	assert.True(t, inv.Covers(r.Consumption(4)))
	assert.False(t, inv.Covers(r.Consumption(5)))

	assert.Equal(t, Unlimited, Recipe{}.Ceiling(inv))
	assert.Equal(t, 0, r.Ceiling(PartsInventory{}))
}

func TestStockFree(t *testing.T) {
	assert.Equal(t, 3, StockLevel{Available: 5, Reserved: 2}.Free())
	assert.Equal(t, 0, StockLevel{Available: 1, Reserved: 2}.Free())
}

func TestMachineCapacity(t *testing.T) {
	retired := 5
	fleet := []Machine{
		{ProductID: 1, RatePerDay: 10, AcquiredDay: 1},
		{ProductID: 1, RatePerDay: 5, AcquiredDay: 3},
		{ProductID: 2, RatePerDay: 8, AcquiredDay: 1, RetiredDay: &retired},
	}

	assert.Equal(t, map[int64]int{1: 10, 2: 8}, Capacity(fleet, 2))
	assert.Equal(t, map[int64]int{1: 15, 2: 8}, Capacity(fleet, 4))
	assert.Equal(t, map[int64]int{1: 15}, Capacity(fleet, 5))
}

func TestOrderPayment(t *testing.T) {
	o := &Order{
		Items:      []OrderItem{{ProductID: 1, Quantity: 2}, {ProductID: 2, Quantity: 3}},
		Total:      decimal.NewFromInt(500),
		AmountPaid: decimal.NewFromInt(499),
		CreatedDay: 3,
	}
	assert.Equal(t, 5, o.Units())
	assert.False(t, o.IsPaid())
	assert.False(t, o.PaymentExpired(4, 2))
	assert.True(t, o.PaymentExpired(5, 2))

	o.AmountPaid = decimal.NewFromInt(500)
	assert.True(t, o.IsPaid())
	assert.False(t, o.PaymentExpired(10, 2))

	var missing *Order
	assert.False(t, missing.IsPaid())
}

func TestDeliveryComplete(t *testing.T) {
	assert.True(t, Delivery{Reference: "p-1", Account: "acc", Cost: decimal.NewFromInt(5)}.IsComplete())
	assert.False(t, Delivery{Reference: "p-1", Account: "acc"}.IsComplete())
	assert.False(t, Delivery{Reference: "p-1", Cost: decimal.NewFromInt(5)}.IsComplete())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(ErrCounterpartyUnavailable))
	assert.False(t, IsTransient(ErrSupplierOrderGone))
	assert.False(t, IsTransient(nil))
}

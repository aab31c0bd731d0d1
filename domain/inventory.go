package domain

import "math"

// StockLevel is the phone stock of one product. Reserved units belong to
// orders waiting for collection and are still physically available.
type StockLevel struct {
	Available int `json:"available"`
	Reserved  int `json:"reserved"`
}

// Free is the quantity that can still be promised to new orders.
func (s StockLevel) Free() int {
	if free := s.Available - s.Reserved; free > 0 {
		return free
	}
	return 0
}

// PartsInventory is the on-hand quantity per part type.
type PartsInventory map[Part]int

// Unlimited is the production ceiling of a product that needs no parts.
const Unlimited = math.MaxInt

// Ceiling is the maximum number of units producible from inv with recipe.
func (r Recipe) Ceiling(inv PartsInventory) int {
	ceiling := Unlimited
	for part, ratio := range r {
		if ratio <= 0 {
			continue
		}
		if n := inv[part] / ratio; n < ceiling {
			ceiling = n
		}
	}
	return ceiling
}

// Consumption is the parts deducted when producing units.
func (r Recipe) Consumption(units int) map[Part]int {
	out := make(map[Part]int, len(r))
	for part, ratio := range r {
		if ratio > 0 {
			out[part] = ratio * units
		}
	}
	return out
}

// Covers reports whether inv holds every part in need.
func (inv PartsInventory) Covers(need map[Part]int) bool {
	for part, qty := range need {
		if inv[part] < qty {
			return false
		}
	}
	return true
}

package domain

// Machine is one production machine dedicated to a product.
type Machine struct {
	ID          int64 `json:"id"`
	ProductID   int64 `json:"product_id"`
	RatePerDay  int   `json:"rate_per_day"`
	AcquiredDay int   `json:"acquired_day"`
	RetiredDay  *int  `json:"retired_day,omitempty"`
}

// ActiveOn reports whether the machine contributes capacity on day.
func (m Machine) ActiveOn(day int) bool {
	if m.AcquiredDay > day {
		return false
	}
	return m.RetiredDay == nil || day < *m.RetiredDay
}

// Capacity sums the daily rate of machines active on day, per product.
func Capacity(machines []Machine, day int) map[int64]int {
	out := make(map[int64]int)
	for _, m := range machines {
		if m.ActiveOn(day) {
			out[m.ProductID] += m.RatePerDay
		}
	}
	return out
}

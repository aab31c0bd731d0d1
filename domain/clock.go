package domain

import "time"

// Clock is the persisted simulation clock.
type Clock struct {
	Epoch      time.Time `json:"epoch"`
	CurrentDay int       `json:"current_day"`
	Running    bool      `json:"running"`
}

// DayAt computes the simulated day for now. Day 1 starts at the epoch.
func (c Clock) DayAt(now time.Time, dayLength time.Duration) int {
	if dayLength <= 0 || now.Before(c.Epoch) {
		return 0
	}
	return int(now.Sub(c.Epoch)/dayLength) + 1
}

// Setting keys persisted next to the clock.
const (
	SettingAccountNumber = "account_number"
	SettingLoanNumber    = "loan_number"
	SettingInitialLoan   = "initial_loan"
)

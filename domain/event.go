package domain

import "time"

// StatusEvent records one persisted status transition.
type StatusEvent struct {
	Kind          Kind      `json:"kind"`
	TransactionID int64     `json:"transaction_id"`
	From          Status    `json:"from"`
	To            Status    `json:"to"`
	Day           int       `json:"day"`
	CreatedAt     time.Time `json:"created_at"`
}

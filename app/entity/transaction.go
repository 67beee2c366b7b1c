package entity

import "time"

const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// Transaction is an append-only ledger row. Several rows share a TransactionID,
// one per observed state.
type Transaction struct {
	ID uint64

	TransactionID string
	OrderID       string
	Provider      string

	Status      string
	AmountMinor int64
	Currency    string

	CreatedAt time.Time
}

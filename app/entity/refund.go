package entity

import "time"

const (
	RefundStatusPending   = "PENDING"
	RefundStatusCompleted = "COMPLETED"
	RefundStatusFailed    = "FAILED"
	RefundStatusRejected  = "REJECTED"
)

type Refund struct {
	ID uint64

	PaymentID uint64
	Reference string

	AmountMinor int64
	Currency    string
	Reason      *string

	Status string

	CreatedAt time.Time
	UpdatedAt time.Time
}

package entity

import (
	"encoding/json"
	"time"
)

const (
	PaymentStatusPending   = "PENDING"
	PaymentStatusCompleted = "COMPLETED"
	PaymentStatusFailed    = "FAILED"
)

const (
	ProviderFlutterwave = "flutterwave"
	ProviderPaystack    = "paystack"
)

// Payment is one initiated attempt with a provider. TransactionID is the locally
// generated reference and is unique across attempts.
type Payment struct {
	ID uint64

	OrderID string

	AmountMinor int64
	Currency    string

	Provider      string
	PaymentMethod string

	TransactionID         string
	ProviderTransactionID *string
	CheckoutURL           *string
	CustomerEmail         string

	Status string

	Metadata json.RawMessage

	CreatedAt time.Time
	UpdatedAt time.Time
}

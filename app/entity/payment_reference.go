package entity

import "time"

// PaymentReference maps a generated reference to its order. It is written before
// the provider is contacted so a crash between the provider call and the payment
// insert can still be reconciled.
type PaymentReference struct {
	Reference string
	OrderID   string
	Provider  string
	CreatedAt time.Time
}

package entity

import "time"

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
)

type OrderItem struct {
	ProductID      string
	Quantity       int32
	UnitPriceMinor int64
	Size           *string
	Color          *string
}

// Order is owned by the checkout flow. This service reads it and requests the
// PENDING -> PROCESSING transition only.
type Order struct {
	ID     string
	UserID *string

	Status string

	TotalMinor        int64
	ShippingCostMinor int64

	Email           string
	Phone           string
	ShippingAddress string
	BillingAddress  string

	Items []OrderItem

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ReachedProcessing reports whether the order has already left PENDING through
// the forward fulfillment sequence.
func (o *Order) ReachedProcessing() bool {
	switch o.Status {
	case OrderStatusProcessing, OrderStatusShipped, OrderStatusDelivered:
		return true
	default:
		return false
	}
}

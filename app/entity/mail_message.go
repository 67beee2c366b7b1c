package entity

import "time"

const (
	MailDeliveryPending int32 = 1
	MailDeliverySuccess int32 = 10
	MailDeliveryFailed  int32 = 20
)

const MailKindOrderConfirmation = "order_confirmation"

// MailMessage is an outbox row. (OrderID, Kind) is unique so an order can never
// queue the same mail twice.
type MailMessage struct {
	ID uint64

	OrderID   string
	Kind      string
	Recipient string
	Subject   string
	Body      string

	DeliveryStatus   int32
	DeliveryAttempts int32
	DeliveryNextAt   *time.Time
	DeliveryLastErr  *string

	CreatedAt time.Time
	UpdatedAt time.Time
}

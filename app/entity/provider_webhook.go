package entity

import "time"

const (
	ProviderWebhookProcessed int32 = 10
	ProviderWebhookIgnored   int32 = 15
	ProviderWebhookRejected  int32 = 20
)

// ProviderWebhook keeps the raw body of every inbound provider webhook.
type ProviderWebhook struct {
	ID uint64

	Provider  string
	EventType string
	Reference *string
	Signature string
	Payload   string
	Status    int32
	Error     *string

	CreatedAt time.Time
}

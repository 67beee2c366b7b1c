package provider

import (
	"context"
	"encoding/json"
	"strings"
)

type VerificationStatus string

const (
	StatusSucceeded VerificationStatus = "succeeded"
	StatusPending   VerificationStatus = "pending"
	StatusFailed    VerificationStatus = "failed"
)

type InitializeInput struct {
	OrderID       string
	Reference     string
	AmountMinor   int64
	Currency      string
	Email         string
	PaymentMethod string
	CallbackURL   string
	Metadata      map[string]string
}

type InitializeOutput struct {
	Reference             string
	AuthorizationURL      string
	AccessCode            *string
	ProviderTransactionID *string
	RawPayload            json.RawMessage
}

// VerificationResult is the normalized answer of a provider verify call.
type VerificationResult struct {
	Success               bool
	Status                VerificationStatus
	ProviderStatus        string
	Reference             string
	ProviderTransactionID *string
	AmountMinor           int64
	Currency              string
	CustomerEmail         string
	RawPayload            json.RawMessage
}

// WebhookEvent is a verified, parsed provider notification. Status is empty for
// event types that do not settle a charge.
//
// NeedsConfirmation is set when the delivery was authenticated by a shared
// secret that does not cover the body. Result is then only a hint and must be
// confirmed with Verify before anything is settled.
type WebhookEvent struct {
	EventType         string
	Result            VerificationResult
	NeedsConfirmation bool
}

// ConfirmationKey is what Verify should be called with for an event that needs
// confirmation: the provider's own transaction id when present, else the
// reference.
func (e *WebhookEvent) ConfirmationKey() string {
	if e == nil {
		return ""
	}
	if id := e.Result.ProviderTransactionID; id != nil && strings.TrimSpace(*id) != "" {
		return strings.TrimSpace(*id)
	}
	return strings.TrimSpace(e.Result.Reference)
}

func (e *WebhookEvent) Settles() bool {
	return e != nil && e.Result.Status != "" && e.Result.Status != StatusPending
}

// Headers is satisfied by http.Header.
type Headers interface {
	Get(key string) string
}

type Provider interface {
	Code() string
	Enabled() bool
	Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error)
	Verify(ctx context.Context, reference string) (*VerificationResult, error)
	// SignatureHeader returns the signature value to store alongside a webhook.
	// Shared secrets are returned as a fingerprint, never in clear.
	SignatureHeader(headers Headers) string
	VerifyAndParseWebhook(ctx context.Context, payload []byte, headers Headers) (*WebhookEvent, error)
}

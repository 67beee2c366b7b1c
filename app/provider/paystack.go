package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/webhook"
)

const (
	paystackDefaultBaseURL   = "https://api.paystack.co"
	paystackSignatureHeader  = "x-paystack-signature"
	paystackEventChargeOK    = "charge.success"
	paystackEventChargeError = "charge.failed"
)

type PaystackConfig struct {
	PublicKey string
	SecretKey string
	// WebhookSecret defaults to SecretKey, which is what Paystack signs with.
	WebhookSecret string
	BaseURL       string
	HTTPTimeout   time.Duration
}

type PaystackProvider struct {
	cfg PaystackConfig
	api *apiClient
}

func NewPaystackProvider(cfg PaystackConfig) *PaystackProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = paystackDefaultBaseURL
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		cfg.WebhookSecret = cfg.SecretKey
	}

	return &PaystackProvider{
		cfg: cfg,
		api: newAPIClient(entity.ProviderPaystack, cfg.BaseURL, cfg.SecretKey, cfg.HTTPTimeout),
	}
}

func (p *PaystackProvider) Code() string {
	return entity.ProviderPaystack
}

func (p *PaystackProvider) Enabled() bool {
	return strings.TrimSpace(p.cfg.SecretKey) != ""
}

type paystackTransaction struct {
	ID              int64  `json:"id"`
	Status          string `json:"status"`
	Reference       string `json:"reference"`
	Amount          int64  `json:"amount"`
	Currency        string `json:"currency"`
	GatewayResponse string `json:"gateway_response"`
	Customer        struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (p *PaystackProvider) Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: paystack secret key is not set", ErrProviderUnavailable)
	}

	payload := map[string]interface{}{
		"email":     input.Email,
		"amount":    strconv.FormatInt(input.AmountMinor, 10),
		"reference": input.Reference,
	}
	if input.Currency != "" {
		payload["currency"] = input.Currency
	}
	if input.CallbackURL != "" {
		payload["callback_url"] = input.CallbackURL
	}
	if channels := paystackChannels(input.PaymentMethod); len(channels) > 0 {
		payload["channels"] = channels
	}
	metadata := map[string]string{"order_id": input.OrderID}
	for k, v := range input.Metadata {
		metadata[k] = v
	}
	payload["metadata"] = metadata

	body, err := p.api.do(ctx, http.MethodPost, "/transaction/initialize", payload)
	if err != nil {
		return nil, err
	}

	envelope, err := decodePaystackEnvelope(body)
	if err != nil {
		return nil, err
	}

	var data struct {
		AuthorizationURL string `json:"authorization_url"`
		AccessCode       string `json:"access_code"`
		Reference        string `json:"reference"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(data.AuthorizationURL) == "" {
		return nil, &GatewayError{Provider: p.Code(), Message: "missing authorization_url"}
	}

	ref := strings.TrimSpace(data.Reference)
	if ref == "" {
		ref = input.Reference
	}

	return &InitializeOutput{
		Reference:        ref,
		AuthorizationURL: data.AuthorizationURL,
		AccessCode:       stringPtr(data.AccessCode),
		RawPayload:       body,
	}, nil
}

// Verify accepts either the local reference or Paystack's numeric transaction id.
func (p *PaystackProvider) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: paystack secret key is not set", ErrProviderUnavailable)
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrTransactionNotFound
	}

	if isNumeric(reference) {
		result, err := p.fetch(ctx, "/transaction/"+url.PathEscape(reference))
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
	}

	return p.fetch(ctx, "/transaction/verify/"+url.PathEscape(reference))
}

func (p *PaystackProvider) fetch(ctx context.Context, path string) (*VerificationResult, error) {
	body, err := p.api.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	envelope, err := decodePaystackEnvelope(body)
	if err != nil {
		return nil, err
	}

	var tx paystackTransaction
	if err := json.Unmarshal(envelope.Data, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tx.ID == 0 && tx.Reference == "" {
		return nil, ErrTransactionNotFound
	}

	return paystackResult(&tx, body), nil
}

func (p *PaystackProvider) SignatureHeader(headers Headers) string {
	return strings.TrimSpace(headers.Get(paystackSignatureHeader))
}

func (p *PaystackProvider) VerifyAndParseWebhook(_ context.Context, payload []byte, headers Headers) (*WebhookEvent, error) {
	if !webhook.VerifyHMACSHA512(payload, p.SignatureHeader(headers), p.cfg.WebhookSecret) {
		return nil, ErrInvalidSignature
	}

	var event struct {
		Event string              `json:"event"`
		Data  paystackTransaction `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	result := paystackResult(&event.Data, payload)
	switch event.Event {
	case paystackEventChargeOK:
		if result.Status != StatusSucceeded {
			result.Status = StatusPending
			result.Success = false
		}
	case paystackEventChargeError:
		result.Status = StatusFailed
		result.Success = false
	default:
		result.Status = ""
		result.Success = false
	}

	return &WebhookEvent{EventType: event.Event, Result: *result}, nil
}

func decodePaystackEnvelope(body []byte) (*paystackEnvelope, error) {
	var envelope paystackEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !envelope.Status {
		return nil, &GatewayError{Provider: entity.ProviderPaystack, Message: envelope.Message}
	}
	return &envelope, nil
}

func paystackResult(tx *paystackTransaction, raw []byte) *VerificationResult {
	result := &VerificationResult{
		ProviderStatus: tx.Status,
		Reference:      tx.Reference,
		AmountMinor:    tx.Amount,
		Currency:       strings.ToUpper(tx.Currency),
		CustomerEmail:  tx.Customer.Email,
		RawPayload:     raw,
	}
	if tx.ID > 0 {
		result.ProviderTransactionID = stringPtr(strconv.FormatInt(tx.ID, 10))
	}

	switch strings.ToLower(tx.Status) {
	case "success":
		result.Success = true
		result.Status = StatusSucceeded
	case "failed", "abandoned", "reversed":
		result.Status = StatusFailed
	default:
		result.Status = StatusPending
	}

	return result
}

func paystackChannels(method string) []string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "":
		return nil
	case "card":
		return []string{"card"}
	case "bank_transfer", "banktransfer", "transfer":
		return []string{"bank_transfer"}
	case "bank":
		return []string{"bank"}
	case "ussd":
		return []string{"ussd"}
	case "mobile_money":
		return []string{"mobile_money"}
	default:
		return nil
	}
}

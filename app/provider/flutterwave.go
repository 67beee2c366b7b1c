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

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/webhook"
)

const (
	flutterwaveDefaultBaseURL     = "https://api.flutterwave.com"
	flutterwaveHashHeader         = "verif-hash"
	flutterwaveSignatureHeader    = "flutterwave-signature"
	flutterwaveEventChargeDone    = "charge.completed"
	flutterwaveResponseSuccessful = "success"
)

type FlutterwaveConfig struct {
	PublicKey   string
	SecretKey   string
	SecretHash  string
	BaseURL     string
	HTTPTimeout time.Duration
}

type FlutterwaveProvider struct {
	cfg FlutterwaveConfig
	api *apiClient
}

func NewFlutterwaveProvider(cfg FlutterwaveConfig) *FlutterwaveProvider {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		cfg.BaseURL = flutterwaveDefaultBaseURL
	}

	return &FlutterwaveProvider{
		cfg: cfg,
		api: newAPIClient(entity.ProviderFlutterwave, cfg.BaseURL, cfg.SecretKey, cfg.HTTPTimeout),
	}
}

func (p *FlutterwaveProvider) Code() string {
	return entity.ProviderFlutterwave
}

func (p *FlutterwaveProvider) Enabled() bool {
	return strings.TrimSpace(p.cfg.SecretKey) != ""
}

type flutterwaveTransaction struct {
	ID       int64           `json:"id"`
	TxRef    string          `json:"tx_ref"`
	FlwRef   string          `json:"flw_ref"`
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
	Status   string          `json:"status"`
	Customer struct {
		Email string `json:"email"`
	} `json:"customer"`
}

type flutterwaveEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize sends the amount in major units, which is what the hosted payment
// endpoint expects.
func (p *FlutterwaveProvider) Initialize(ctx context.Context, input *InitializeInput) (*InitializeOutput, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: flutterwave secret key is not set", ErrProviderUnavailable)
	}

	meta := map[string]string{"order_id": input.OrderID}
	for k, v := range input.Metadata {
		meta[k] = v
	}

	payload := map[string]interface{}{
		"tx_ref":   input.Reference,
		"amount":   json.Number(money.ToMajor(input.AmountMinor).String()),
		"currency": input.Currency,
		"customer": map[string]string{"email": input.Email},
		"meta":     meta,
	}
	if input.CallbackURL != "" {
		payload["redirect_url"] = input.CallbackURL
	}
	if options := flutterwavePaymentOptions(input.PaymentMethod); options != "" {
		payload["payment_options"] = options
	}

	body, err := p.api.do(ctx, http.MethodPost, "/v3/payments", payload)
	if err != nil {
		return nil, err
	}

	envelope, err := decodeFlutterwaveEnvelope(body)
	if err != nil {
		return nil, err
	}

	var data struct {
		Link string `json:"link"`
	}
	if err := json.Unmarshal(envelope.Data, &data); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if strings.TrimSpace(data.Link) == "" {
		return nil, &GatewayError{Provider: p.Code(), Message: "missing payment link"}
	}

	return &InitializeOutput{
		Reference:        input.Reference,
		AuthorizationURL: data.Link,
		RawPayload:       body,
	}, nil
}

// Verify tries the numeric transaction id endpoint first when the reference looks
// like one, then falls back to lookup by tx_ref.
func (p *FlutterwaveProvider) Verify(ctx context.Context, reference string) (*VerificationResult, error) {
	if !p.Enabled() {
		return nil, fmt.Errorf("%w: flutterwave secret key is not set", ErrProviderUnavailable)
	}

	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, ErrTransactionNotFound
	}

	if isNumeric(reference) {
		result, err := p.fetch(ctx, "/v3/transactions/"+url.PathEscape(reference)+"/verify")
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, ErrTransactionNotFound) {
			return nil, err
		}
	}

	return p.fetch(ctx, "/v3/transactions/verify_by_reference?tx_ref="+url.QueryEscape(reference))
}

func (p *FlutterwaveProvider) fetch(ctx context.Context, path string) (*VerificationResult, error) {
	body, err := p.api.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	envelope, err := decodeFlutterwaveEnvelope(body)
	if err != nil {
		return nil, err
	}

	var tx flutterwaveTransaction
	if err := json.Unmarshal(envelope.Data, &tx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if tx.ID == 0 && tx.TxRef == "" {
		return nil, ErrTransactionNotFound
	}

	return flutterwaveResult(&tx, body)
}

// SignatureHeader returns the body signature as sent. The verif-hash header
// carries the shared secret itself, so only its fingerprint is returned.
func (p *FlutterwaveProvider) SignatureHeader(headers Headers) string {
	if sig := strings.TrimSpace(headers.Get(flutterwaveSignatureHeader)); sig != "" {
		return sig
	}
	return webhook.Fingerprint(headers.Get(flutterwaveHashHeader))
}

// VerifyAndParseWebhook accepts either the HMAC flutterwave-signature header or
// the legacy verif-hash header. The signature header wins when both are sent.
// verif-hash does not cover the body, so such events need confirmation.
func (p *FlutterwaveProvider) VerifyAndParseWebhook(_ context.Context, payload []byte, headers Headers) (*WebhookEvent, error) {
	secret := p.cfg.SecretHash
	needsConfirmation := false
	if sig := strings.TrimSpace(headers.Get(flutterwaveSignatureHeader)); sig != "" {
		if !webhook.VerifyHMACSHA256Base64(payload, sig, secret) {
			return nil, ErrInvalidSignature
		}
	} else if webhook.VerifySecretHash(headers.Get(flutterwaveHashHeader), secret) {
		needsConfirmation = true
	} else {
		return nil, ErrInvalidSignature
	}

	var event struct {
		Event string                 `json:"event"`
		Data  flutterwaveTransaction `json:"data"`
	}
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	result, err := flutterwaveResult(&event.Data, payload)
	if err != nil {
		return nil, err
	}
	if event.Event != flutterwaveEventChargeDone {
		result.Status = ""
		result.Success = false
	}

	return &WebhookEvent{EventType: event.Event, Result: *result, NeedsConfirmation: needsConfirmation}, nil
}

func decodeFlutterwaveEnvelope(body []byte) (*flutterwaveEnvelope, error) {
	var envelope flutterwaveEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if !strings.EqualFold(envelope.Status, flutterwaveResponseSuccessful) {
		return nil, &GatewayError{Provider: entity.ProviderFlutterwave, Message: envelope.Message}
	}
	return &envelope, nil
}

func flutterwaveResult(tx *flutterwaveTransaction, raw []byte) (*VerificationResult, error) {
	amount, err := money.RoundToMinor(tx.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %s", ErrMalformedPayload, tx.Amount.String())
	}

	result := &VerificationResult{
		ProviderStatus: tx.Status,
		Reference:      tx.TxRef,
		AmountMinor:    amount,
		Currency:       strings.ToUpper(tx.Currency),
		CustomerEmail:  tx.Customer.Email,
		RawPayload:     raw,
	}
	if tx.ID > 0 {
		result.ProviderTransactionID = stringPtr(strconv.FormatInt(tx.ID, 10))
	}

	switch strings.ToLower(tx.Status) {
	case "successful":
		result.Success = true
		result.Status = StatusSucceeded
	case "failed", "cancelled":
		result.Status = StatusFailed
	default:
		result.Status = StatusPending
	}

	return result, nil
}

func flutterwavePaymentOptions(method string) string {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "card":
		return "card"
	case "bank_transfer", "banktransfer", "transfer":
		return "banktransfer"
	case "ussd":
		return "ussd"
	case "account", "bank":
		return "account"
	case "mobile_money":
		return "mobilemoney"
	default:
		return ""
	}
}

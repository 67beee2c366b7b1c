package types

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

const (
	defaultListLimit = int32(100)
	maxListLimit     = int32(500)
	maxWebhookBody   = 1 << 20
)

func NewInitializePaymentRequestFromContext(ctx echo.Context) (*InitializePaymentRequest, error) {
	var body InitializePaymentRequest
	if err := ctx.Bind(&body); err != nil {
		return nil, err
	}

	body.Provider = strings.ToLower(strings.TrimSpace(ctx.Param("provider")))
	body.OrderId = strings.TrimSpace(body.OrderId)
	body.Email = strings.TrimSpace(body.Email)
	body.PaymentMethod = strings.ToLower(strings.TrimSpace(body.PaymentMethod))
	body.Currency = strings.ToUpper(strings.TrimSpace(body.Currency))

	return &body, nil
}

func (r *InitializePaymentRequest) Validate() error {
	if !isKnownProvider(r.GetProvider()) {
		return errors.New("provider must be flutterwave or paystack")
	}
	if strings.TrimSpace(r.GetOrderId()) == "" {
		return errors.New("orderId is required")
	}
	if !r.Amount.IsPositive() || r.GetAmountMinor() <= 0 {
		return errors.New("amount must be > 0 with at most two decimals")
	}
	if email := strings.TrimSpace(r.GetEmail()); email == "" || !strings.Contains(email, "@") {
		return errors.New("email is invalid")
	}
	if c := r.GetCurrency(); c != "" && len(c) != 3 {
		return errors.New("currency must be 3 letters")
	}
	return nil
}

func NewVerifyPaymentRequestFromContext(ctx echo.Context) (*VerifyPaymentRequest, error) {
	return &VerifyPaymentRequest{
		Provider:  strings.ToLower(strings.TrimSpace(ctx.Param("provider"))),
		Reference: strings.TrimSpace(ctx.Param("reference")),
	}, nil
}

func (r *VerifyPaymentRequest) Validate() error {
	if !isKnownProvider(r.GetProvider()) {
		return errors.New("provider must be flutterwave or paystack")
	}
	if strings.TrimSpace(r.GetReference()) == "" {
		return errors.New("reference is required")
	}
	return nil
}

// NewWebhookRequestFromContext keeps the body byte for byte; signatures are
// computed over the raw payload.
func NewWebhookRequestFromContext(ctx echo.Context, provider string) (*WebhookRequest, error) {
	rawBody, err := io.ReadAll(io.LimitReader(ctx.Request().Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}

	headers := ctx.Request().Header.Clone()
	if headers == nil {
		headers = http.Header{}
	}

	return &WebhookRequest{
		Provider: provider,
		Payload:  rawBody,
		Headers:  headers,
	}, nil
}

func (r *WebhookRequest) Validate() error {
	if !isKnownProvider(r.GetProvider()) {
		return errors.New("unknown provider")
	}
	if len(r.GetPayload()) == 0 {
		return errors.New("payload is required")
	}
	return nil
}

func NewInitiateRefundRequestFromContext(ctx echo.Context) (*InitiateRefundRequest, error) {
	var body InitiateRefundRequest
	if err := ctx.Bind(&body); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	body.TransactionId = strings.TrimSpace(ctx.Param("transactionId"))
	body.Reason = strings.TrimSpace(body.Reason)

	return &body, nil
}

func (r *InitiateRefundRequest) Validate() error {
	if strings.TrimSpace(r.GetTransactionId()) == "" {
		return errors.New("transactionId is required")
	}
	if r.Amount != nil && (!r.Amount.IsPositive() || r.GetAmountMinor() <= 0) {
		return errors.New("amount must be > 0 with at most two decimals")
	}
	if len(r.GetReason()) > 512 {
		return errors.New("reason must be at most 512 characters")
	}
	return nil
}

func NewGetPaymentRequestFromContext(ctx echo.Context) (*GetPaymentRequest, error) {
	return &GetPaymentRequest{Reference: strings.TrimSpace(ctx.Param("reference"))}, nil
}

func (r *GetPaymentRequest) Validate() error {
	if strings.TrimSpace(r.GetReference()) == "" {
		return errors.New("reference is required")
	}
	return nil
}

func NewListTransactionsRequestFromContext(ctx echo.Context) (*ListTransactionsRequest, error) {
	req := &ListTransactionsRequest{
		From:    strings.TrimSpace(ctx.QueryParam("from")),
		To:      strings.TrimSpace(ctx.QueryParam("to")),
		Status:  strings.ToUpper(strings.TrimSpace(ctx.QueryParam("status"))),
		OrderId: strings.TrimSpace(ctx.QueryParam("orderId")),
		Limit:   defaultListLimit,
	}

	if limitRaw := strings.TrimSpace(ctx.QueryParam("limit")); limitRaw != "" {
		limit, err := strconv.ParseInt(limitRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Limit = int32(limit)
	}

	if offsetRaw := strings.TrimSpace(ctx.QueryParam("offset")); offsetRaw != "" {
		offset, err := strconv.ParseInt(offsetRaw, 10, 32)
		if err != nil {
			return nil, err
		}
		req.Offset = int32(offset)
	}

	return req, nil
}

// Validate also parses the date bounds. Both RFC 3339 timestamps and plain dates
// are accepted; a plain date in To covers the whole day.
func (r *ListTransactionsRequest) Validate() error {
	if r.Limit == 0 {
		r.Limit = defaultListLimit
	}
	if r.GetLimit() <= 0 || r.GetLimit() > maxListLimit {
		return errors.New("limit must be between 1 and 500")
	}
	if r.GetOffset() < 0 {
		return errors.New("offset must be >= 0")
	}

	r.Status = strings.ToUpper(strings.TrimSpace(r.Status))
	switch r.Status {
	case "", entity.TransactionStatusPending, entity.TransactionStatusCompleted, entity.TransactionStatusFailed:
	default:
		return errors.New("status must be PENDING, COMPLETED or FAILED")
	}

	from, err := parseBound(r.From, false)
	if err != nil {
		return errors.New("from must be a date or RFC3339 timestamp")
	}
	to, err := parseBound(r.To, true)
	if err != nil {
		return errors.New("to must be a date or RFC3339 timestamp")
	}
	if from != nil && to != nil && to.Before(*from) {
		return errors.New("to must not be before from")
	}
	r.from, r.to = from, to

	return nil
}

func (r *ListTransactionsRequest) GetFrom() *time.Time { return r.from }
func (r *ListTransactionsRequest) GetTo() *time.Time { return r.to }

func parseBound(raw string, endOfDay bool) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		t = t.UTC()
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func isKnownProvider(code string) bool {
	switch code {
	case entity.ProviderFlutterwave, entity.ProviderPaystack:
		return true
	default:
		return false
	}
}

package types

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
)

// Messages shared by the HTTP and gRPC transports. Field names follow the
// public JSON contract.

type InitializePaymentRequest struct {
	Provider      string          `json:"provider,omitempty"`
	OrderId       string          `json:"orderId"`
	Amount        decimal.Decimal `json:"amount"`
	Email         string          `json:"email"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`
	Currency      string          `json:"currency,omitempty"`
}

func (r *InitializePaymentRequest) GetProvider() string { return r.Provider }
func (r *InitializePaymentRequest) GetOrderId() string { return r.OrderId }
func (r *InitializePaymentRequest) GetEmail() string { return r.Email }
func (r *InitializePaymentRequest) GetPaymentMethod() string { return r.PaymentMethod }
func (r *InitializePaymentRequest) GetCurrency() string { return r.Currency }

// GetAmountMinor returns 0 for amounts that cannot be expressed in minor units.
func (r *InitializePaymentRequest) GetAmountMinor() int64 {
	minor, err := money.ToMinor(r.Amount)
	if err != nil {
		return 0
	}
	return minor
}

type InitializePaymentResponse struct {
	Provider          string `json:"provider"`
	RedirectUrl       string `json:"redirectUrl,omitempty"`
	AuthorizationUrl  string `json:"authorizationUrl,omitempty"`
	ProviderReference string `json:"providerReference"`
	AccessCode        string `json:"accessCode,omitempty"`
}

type VerifyPaymentRequest struct {
	Provider  string `json:"provider"`
	Reference string `json:"reference"`
}

func (r *VerifyPaymentRequest) GetProvider() string { return r.Provider }
func (r *VerifyPaymentRequest) GetReference() string { return r.Reference }

type RecoveryIssue struct {
	Stage  string `json:"stage"`
	Reason string `json:"reason"`
}

type VerifyPaymentResponse struct {
	Success        bool           `json:"success"`
	Status         string         `json:"status"`
	Message        string         `json:"message,omitempty"`
	OrderId        string         `json:"orderId,omitempty"`
	Reference      string         `json:"reference"`
	Provider       string         `json:"provider"`
	ProviderStatus string         `json:"providerStatus,omitempty"`
	Amount         string         `json:"amount,omitempty"`
	Currency       string         `json:"currency,omitempty"`
	CustomerEmail  string         `json:"customerEmail,omitempty"`
	Duplicate      bool           `json:"duplicate,omitempty"`
	RecoveryIssue  *RecoveryIssue `json:"recoveryIssue,omitempty"`
}

type WebhookRequest struct {
	Provider string
	Payload  []byte
	Headers  http.Header
}

func (r *WebhookRequest) GetProvider() string { return r.Provider }
func (r *WebhookRequest) GetPayload() []byte { return r.Payload }
func (r *WebhookRequest) GetHeaders() http.Header { return r.Headers }

type WebhookResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type InitiateRefundRequest struct {
	TransactionId string           `json:"transactionId"`
	Amount        *decimal.Decimal `json:"amount,omitempty"`
	Reason        string           `json:"reason,omitempty"`
}

func (r *InitiateRefundRequest) GetTransactionId() string { return r.TransactionId }
func (r *InitiateRefundRequest) GetReason() string { return r.Reason }

// GetAmountMinor returns 0 when no amount was given, meaning a full refund, and
// -1 for amounts that cannot be expressed in minor units.
func (r *InitiateRefundRequest) GetAmountMinor() int64 {
	if r.Amount == nil {
		return 0
	}
	minor, err := money.ToMinor(*r.Amount)
	if err != nil {
		return -1
	}
	return minor
}

type Refund struct {
	Id        uint64 `json:"id"`
	PaymentId uint64 `json:"paymentId"`
	Reference string `json:"reference"`
	Amount    string `json:"amount"`
	Currency  string `json:"currency"`
	Reason    string `json:"reason,omitempty"`
	Status    string `json:"status"`
	CreatedAt string `json:"createdAt"`
}

type RefundResponse struct {
	Refund *Refund `json:"refund"`
}

type GetPaymentRequest struct {
	Reference string `json:"reference"`
}

func (r *GetPaymentRequest) GetReference() string { return r.Reference }

type Payment struct {
	Id                    uint64 `json:"id"`
	OrderId               string `json:"orderId"`
	Amount                string `json:"amount"`
	Currency              string `json:"currency"`
	Provider              string `json:"provider"`
	PaymentMethod         string `json:"paymentMethod,omitempty"`
	TransactionId         string `json:"transactionId"`
	ProviderTransactionId string `json:"providerTransactionId,omitempty"`
	CheckoutUrl           string `json:"checkoutUrl,omitempty"`
	CustomerEmail         string `json:"customerEmail,omitempty"`
	Status                string `json:"status"`
	CreatedAt             string `json:"createdAt"`
	UpdatedAt             string `json:"updatedAt"`
}

type PaymentResponse struct {
	Payment *Payment `json:"payment"`
}

type ListTransactionsRequest struct {
	From    string `json:"from,omitempty"`
	To      string `json:"to,omitempty"`
	Status  string `json:"status,omitempty"`
	OrderId string `json:"orderId,omitempty"`
	Limit   int32  `json:"limit,omitempty"`
	Offset  int32  `json:"offset,omitempty"`

	from *time.Time
	to   *time.Time
}

func (r *ListTransactionsRequest) GetStatus() string { return r.Status }
func (r *ListTransactionsRequest) GetOrderId() string { return r.OrderId }
func (r *ListTransactionsRequest) GetLimit() int32 { return r.Limit }
func (r *ListTransactionsRequest) GetOffset() int32 { return r.Offset }

type Transaction struct {
	Id            uint64 `json:"id"`
	TransactionId string `json:"transactionId"`
	OrderId       string `json:"orderId"`
	Provider      string `json:"provider"`
	Status        string `json:"status"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	CreatedAt     string `json:"createdAt"`
}

type ListTransactionsResponse struct {
	Transactions []*Transaction `json:"transactions"`
	Limit        int32          `json:"limit"`
	Offset       int32          `json:"offset"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type HealthResponse struct {
	Status    string   `json:"status"`
	Providers []string `json:"providers"`
}

package mapper

import (
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/service"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/types"
)

func PaymentToProto(item *entity.Payment) *types.Payment {
	if item == nil {
		return nil
	}

	return &types.Payment{
		Id:                    item.ID,
		OrderId:               item.OrderID,
		Amount:                money.FormatMajor(item.AmountMinor),
		Currency:              item.Currency,
		Provider:              item.Provider,
		PaymentMethod:         item.PaymentMethod,
		TransactionId:         item.TransactionID,
		ProviderTransactionId: derefString(item.ProviderTransactionID),
		CheckoutUrl:           derefString(item.CheckoutURL),
		CustomerEmail:         item.CustomerEmail,
		Status:                item.Status,
		CreatedAt:             formatTime(item.CreatedAt),
		UpdatedAt:             formatTime(item.UpdatedAt),
	}
}

// InitializeResponse picks the field each provider's frontend flow expects:
// Flutterwave redirects to a hosted link, Paystack opens an authorization URL.
func InitializeResponse(item *entity.Payment) *types.InitializePaymentResponse {
	if item == nil {
		return nil
	}

	resp := &types.InitializePaymentResponse{
		Provider:          item.Provider,
		ProviderReference: item.TransactionID,
	}
	target := derefString(item.CheckoutURL)
	switch item.Provider {
	case entity.ProviderFlutterwave:
		resp.RedirectUrl = target
	default:
		resp.AuthorizationUrl = target
	}

	return resp
}

func RefundToProto(item *entity.Refund) *types.Refund {
	if item == nil {
		return nil
	}

	return &types.Refund{
		Id:        item.ID,
		PaymentId: item.PaymentID,
		Reference: item.Reference,
		Amount:    money.FormatMajor(item.AmountMinor),
		Currency:  item.Currency,
		Reason:    derefString(item.Reason),
		Status:    item.Status,
		CreatedAt: formatTime(item.CreatedAt),
	}
}

func TransactionToProto(item *entity.Transaction) *types.Transaction {
	if item == nil {
		return nil
	}

	return &types.Transaction{
		Id:            item.ID,
		TransactionId: item.TransactionID,
		OrderId:       item.OrderID,
		Provider:      item.Provider,
		Status:        item.Status,
		Amount:        money.FormatMajor(item.AmountMinor),
		Currency:      item.Currency,
		CreatedAt:     formatTime(item.CreatedAt),
	}
}

func TransactionsToProto(items []*entity.Transaction) []*types.Transaction {
	result := make([]*types.Transaction, 0, len(items))
	for _, item := range items {
		result = append(result, TransactionToProto(item))
	}
	return result
}

func VerificationToProto(outcome *service.VerificationOutcome) *types.VerifyPaymentResponse {
	if outcome == nil {
		return nil
	}

	resp := &types.VerifyPaymentResponse{
		Status:    string(outcome.Status()),
		Reference: outcome.Reference,
		Provider:  outcome.Provider,
	}

	if result := outcome.Result; result != nil {
		resp.Success = result.Status == provider.StatusSucceeded
		resp.ProviderStatus = result.ProviderStatus
		resp.Currency = result.Currency
		resp.CustomerEmail = result.CustomerEmail
		if result.AmountMinor > 0 {
			resp.Amount = money.FormatMajor(result.AmountMinor)
		}
	}

	if settled := outcome.Settlement; settled != nil {
		resp.OrderId = settled.OrderID
		resp.Duplicate = settled.Duplicate
		if settled.RecoveryIssue != nil {
			resp.RecoveryIssue = &types.RecoveryIssue{
				Stage:  settled.RecoveryIssue.Stage,
				Reason: settled.RecoveryIssue.Reason,
			}
		}
	}

	switch outcome.Status() {
	case provider.StatusSucceeded:
		resp.Message = "payment verified"
		if resp.Duplicate {
			resp.Message = "payment already processed"
		}
	case provider.StatusFailed:
		resp.Message = "payment failed"
	default:
		resp.Message = "payment pending"
	}

	return resp
}

func WebhookToProto(outcome *service.WebhookOutcome) *types.WebhookResponse {
	if outcome == nil {
		return &types.WebhookResponse{Success: false, Message: "webhook not processed"}
	}
	if outcome.Ignored {
		return &types.WebhookResponse{Success: true, Message: "event ignored"}
	}
	if outcome.Settlement != nil && outcome.Settlement.Duplicate {
		return &types.WebhookResponse{Success: true, Message: "already processed"}
	}
	return &types.WebhookResponse{Success: true, Message: "webhook processed"}
}

func derefString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

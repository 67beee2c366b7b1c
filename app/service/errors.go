package service

import (
	"errors"
	"fmt"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
)

var (
	ErrInvalidRequest          = errors.New("invalid request")
	ErrProviderUnsupported     = errors.New("provider is not supported")
	ErrProviderUnavailable     = errors.New("provider is not available")
	ErrGatewayRejected         = errors.New("payment gateway rejected the request")
	ErrTransientNetwork        = errors.New("payment provider is temporarily unreachable")
	ErrOrderNotFound           = errors.New("order not found")
	ErrOrderNotPayable         = errors.New("order is not awaiting payment")
	ErrPaymentNotFound         = errors.New("payment not found")
	ErrPaymentNotRefundable    = errors.New("payment is not completed")
	ErrTransactionNotFound     = errors.New("transaction not found")
	ErrUnauthorized            = errors.New("webhook signature rejected")
	ErrReconciliationAmbiguous = errors.New("payment could not be matched to an order")
	ErrAmountMismatch          = errors.New("paid amount does not match the payment")
	ErrRefundExceedsPayment    = errors.New("refund exceeds the refundable amount")
)

// translateProviderError maps adapter errors onto service errors, keeping the
// provider's message for gateway rejections.
func translateProviderError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrProviderUnavailable):
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	case errors.Is(err, provider.ErrTransactionNotFound):
		return fmt.Errorf("%w: %v", ErrTransactionNotFound, err)
	case errors.Is(err, provider.ErrTransientNetwork):
		return fmt.Errorf("%w: %v", ErrTransientNetwork, err)
	case errors.Is(err, provider.ErrGatewayRejected):
		if msg := provider.GatewayMessage(err); msg != "" {
			return fmt.Errorf("%w: %s", ErrGatewayRejected, msg)
		}
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	case errors.Is(err, provider.ErrMalformedPayload):
		return fmt.Errorf("%w: %v", ErrGatewayRejected, err)
	default:
		return err
	}
}

package provider

import (
	"errors"
	"fmt"
)

var (
	ErrProviderNotSupported = errors.New("provider is not supported")
	ErrProviderUnavailable  = errors.New("provider is not configured")
	ErrGatewayRejected      = errors.New("gateway rejected the request")
	ErrTransactionNotFound  = errors.New("transaction not found at provider")
	ErrTransientNetwork     = errors.New("provider is temporarily unreachable")
	ErrInvalidSignature     = errors.New("invalid webhook signature")
	ErrMalformedPayload     = errors.New("malformed provider payload")
)

// GatewayError carries the provider's own message for a rejected call.
type GatewayError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *GatewayError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s (status=%d): %s", e.Provider, ErrGatewayRejected.Error(), e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", e.Provider, ErrGatewayRejected.Error(), e.Message)
}

func (e *GatewayError) Unwrap() error {
	return ErrGatewayRejected
}

// GatewayMessage returns the provider message carried by err, if any.
func GatewayMessage(err error) string {
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr.Message
	}
	return ""
}

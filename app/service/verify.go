package service

import (
	"context"
	"strings"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
)

type verifyPaymentRequest interface {
	GetProvider() string
	GetReference() string
}

type VerificationOutcome struct {
	Provider   string
	Reference  string
	Result     *provider.VerificationResult
	Settlement *SettlementResult
}

func (o *VerificationOutcome) Status() provider.VerificationStatus {
	if o == nil || o.Result == nil {
		return ""
	}
	return o.Result.Status
}

// VerifyPayment asks the provider for the state of a charge and drives the shared
// success or failure path. A pending charge changes nothing.
func (s *PaymentService) VerifyPayment(ctx context.Context, req verifyPaymentRequest) (*VerificationOutcome, error) {
	ref := strings.TrimSpace(req.GetReference())
	if ref == "" {
		return nil, ErrInvalidRequest
	}

	providerClient, err := s.enabledProvider(req.GetProvider())
	if err != nil {
		return nil, err
	}

	result, err := providerClient.Verify(ctx, ref)
	if err != nil {
		s.logger.WithError(err).WithField("provider", providerClient.Code()).WithField("reference", ref).Warn("provider verification failed")
		return nil, translateProviderError(err)
	}

	return s.settleVerification(ctx, providerClient.Code(), "verify", ref, result)
}

func (s *PaymentService) settleVerification(
	ctx context.Context,
	providerCode string,
	source string,
	ref string,
	result *provider.VerificationResult,
) (*VerificationOutcome, error) {
	outcome := &VerificationOutcome{Provider: providerCode, Reference: ref, Result: result}

	existing, err := s.findPayment(ctx, providerCode, result, ref)
	if err != nil {
		return nil, err
	}

	in := &settlement{
		provider:   providerCode,
		source:     source,
		payment:    existing,
		result:     result,
		references: []string{ref},
	}

	switch result.Status {
	case provider.StatusSucceeded:
		if amountShortfall(existing, result) {
			return nil, s.rejectShortfall(existing, result, source)
		}
		settled, err := s.onPaymentSucceeded(ctx, in)
		if err != nil {
			return nil, err
		}
		outcome.Settlement = settled
	case provider.StatusFailed:
		settled, err := s.onPaymentFailed(ctx, in)
		if err != nil {
			return nil, err
		}
		outcome.Settlement = settled
	default:
		if existing != nil {
			outcome.Settlement = &SettlementResult{OrderID: existing.OrderID, Payment: existing}
		}
	}

	return outcome, nil
}

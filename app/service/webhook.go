package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
)

const maxWebhookEventType = 64

type handleWebhookRequest interface {
	GetProvider() string
	GetPayload() []byte
	GetHeaders() http.Header
}

type WebhookOutcome struct {
	Provider   string
	EventType  string
	Reference  string
	Ignored    bool
	Settlement *SettlementResult
}

// HandleWebhook authenticates a provider notification against the raw body before
// anything in it is trusted. Redelivered events are absorbed by the same
// idempotency gate as client verification.
func (s *PaymentService) HandleWebhook(ctx context.Context, req handleWebhookRequest) (*WebhookOutcome, error) {
	providerClient, err := s.resolveProvider(req.GetProvider())
	if err != nil {
		return nil, err
	}
	code := providerClient.Code()

	payload := req.GetPayload()
	headers := req.GetHeaders()
	if headers == nil {
		headers = http.Header{}
	}
	signature := providerClient.SignatureHeader(headers)

	event, err := providerClient.VerifyAndParseWebhook(ctx, payload, headers)
	if err != nil {
		if errors.Is(err, provider.ErrInvalidSignature) {
			s.logger.WithFields(logrus.Fields{
				"security":      true,
				"provider":      code,
				"has_signature": signature != "",
			}).Warn("webhook signature rejected")
			s.recordWebhook(ctx, code, "", "", signature, payload, entity.ProviderWebhookRejected, "invalid signature")
			return nil, ErrUnauthorized
		}
		s.recordWebhook(ctx, code, "", "", signature, payload, entity.ProviderWebhookRejected, err.Error())
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	ref := strings.TrimSpace(event.Result.Reference)
	outcome := &WebhookOutcome{Provider: code, EventType: event.EventType, Reference: ref}

	if !event.Settles() {
		outcome.Ignored = true
		s.recordWebhook(ctx, code, event.EventType, ref, signature, payload, entity.ProviderWebhookIgnored, "")
		return outcome, nil
	}

	result := &event.Result
	if event.NeedsConfirmation {
		confirmed, err := s.confirmWebhookEvent(ctx, providerClient, event)
		if err != nil {
			s.recordWebhook(ctx, code, event.EventType, ref, signature, payload, entity.ProviderWebhookRejected, err.Error())
			return nil, err
		}
		result = confirmed
		if confirmedRef := strings.TrimSpace(confirmed.Reference); confirmedRef != "" {
			ref = confirmedRef
			outcome.Reference = ref
		}
	}

	verified, err := s.settleVerification(ctx, code, "webhook", ref, result)
	if err != nil {
		s.recordWebhook(ctx, code, event.EventType, ref, signature, payload, entity.ProviderWebhookRejected, err.Error())
		return nil, err
	}
	outcome.Settlement = verified.Settlement

	s.recordWebhook(ctx, code, event.EventType, ref, signature, payload, entity.ProviderWebhookProcessed, "")
	return outcome, nil
}

// confirmWebhookEvent replaces an unauthenticated webhook body with the
// provider's own answer for the same charge.
func (s *PaymentService) confirmWebhookEvent(ctx context.Context, providerClient provider.Provider, event *provider.WebhookEvent) (*provider.VerificationResult, error) {
	key := event.ConfirmationKey()
	if key == "" {
		return nil, fmt.Errorf("%w: webhook names no transaction", ErrInvalidRequest)
	}

	confirmed, err := providerClient.Verify(ctx, key)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"provider": providerClient.Code(),
			"key":      key,
		}).Warn("webhook could not be confirmed with the provider")
		return nil, translateProviderError(err)
	}

	if confirmed.Status != event.Result.Status || confirmed.AmountMinor != event.Result.AmountMinor {
		s.logger.WithFields(logrus.Fields{
			"security":       true,
			"provider":       providerClient.Code(),
			"key":            key,
			"claimed_status": event.Result.Status,
			"status":         confirmed.Status,
			"claimed_amount": event.Result.AmountMinor,
			"amount":         confirmed.AmountMinor,
		}).Warn("webhook body disagrees with the provider")
	}

	return confirmed, nil
}

func (s *PaymentService) recordWebhook(
	ctx context.Context,
	providerCode string,
	eventType string,
	ref string,
	signature string,
	payload []byte,
	status int32,
	reason string,
) {
	hook := &entity.ProviderWebhook{
		Provider:  providerCode,
		EventType: truncate(eventType, maxWebhookEventType),
		Signature: truncate(signature, 512),
		Payload:   string(payload),
		Status:    status,
		CreatedAt: s.now(),
	}
	if ref != "" {
		hook.Reference = &ref
	}
	if reason = strings.TrimSpace(reason); reason != "" {
		trimmed := truncate(reason, 1024)
		hook.Error = &trimmed
	}

	if err := s.webhookRepo.Create(ctx, hook); err != nil {
		s.logger.WithError(err).WithField("provider", providerCode).Warn("failed to persist provider webhook")
	}
}

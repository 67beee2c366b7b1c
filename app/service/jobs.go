package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
)

// RunReconcileBatch re-verifies payments that stayed PENDING longer than the
// stale threshold, covering lost webhooks and abandoned client redirects.
func (s *PaymentService) RunReconcileBatch(ctx context.Context) error {
	before := s.now().Add(-s.paymentsCfg.ReconcileStaleAfter)
	items, err := s.paymentRepo.ListPendingBefore(ctx, before, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil {
			continue
		}

		providerClient, err := s.providerReg.Get(payment.Provider)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !providerClient.Enabled() {
			continue
		}

		result, err := providerClient.Verify(ctx, payment.TransactionID)
		if err != nil {
			if !errors.Is(err, provider.ErrTransactionNotFound) {
				firstErr = keepFirstErr(firstErr, translateProviderError(err))
			}
			s.touchReconciled(ctx, payment)
			continue
		}

		if _, err := s.settleVerification(ctx, payment.Provider, "reconcile", payment.TransactionID, result); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
		s.touchReconciled(ctx, payment)
	}

	return firstErr
}

// touchReconciled moves a payment that is still PENDING to the back of the
// reconcile queue. Settled payments are left alone by the status condition.
func (s *PaymentService) touchReconciled(ctx context.Context, payment *entity.Payment) {
	touched := *payment
	touched.Status = entity.PaymentStatusPending
	touched.UpdatedAt = s.now()

	if _, err := s.paymentRepo.TransitionStatus(ctx, &touched, entity.PaymentStatusPending); err != nil {
		s.logger.WithError(err).WithField("transaction_id", payment.TransactionID).Warn("failed to requeue pending payment")
	}
}

// RunExpirePendingBatch fails attempts that never settled. A late success still
// converges through the success path, which accepts FAILED payments.
func (s *PaymentService) RunExpirePendingBatch(ctx context.Context) error {
	now := s.now()
	cutoff := now.Add(-s.paymentsCfg.PendingTimeout)
	items, err := s.paymentRepo.ListPendingBefore(ctx, cutoff, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, payment := range items {
		if payment == nil || payment.Status != entity.PaymentStatusPending {
			continue
		}

		payment.Status = entity.PaymentStatusFailed
		payment.UpdatedAt = now

		changed, err := s.paymentRepo.TransitionStatus(ctx, payment, entity.PaymentStatusPending)
		if err != nil {
			firstErr = keepFirstErr(firstErr, err)
			continue
		}
		if !changed {
			continue
		}

		s.appendLedger(ctx, payment, entity.TransactionStatusFailed)
		s.logger.WithField("transaction_id", payment.TransactionID).Info("pending payment expired")
	}

	return firstErr
}

func (s *PaymentService) RunMailDispatchBatch(ctx context.Context) error {
	now := s.now()
	items, err := s.mailRepo.ListDue(ctx, now, s.batchSize())
	if err != nil {
		return err
	}

	var firstErr error
	for _, msg := range items {
		if msg == nil {
			continue
		}
		if err := s.dispatchMail(ctx, msg, now); err != nil {
			firstErr = keepFirstErr(firstErr, err)
		}
	}

	return firstErr
}

type mailRelayPayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
	Tag     string `json:"tag"`
}

func (s *PaymentService) dispatchMail(ctx context.Context, msg *entity.MailMessage, now time.Time) error {
	relayURL := strings.TrimSpace(s.mailCfg.RelayURL)
	if relayURL == "" {
		errMsg := "mail relay url is empty"
		msg.DeliveryStatus = entity.MailDeliveryFailed
		msg.DeliveryNextAt = nil
		msg.DeliveryLastErr = &errMsg
		msg.UpdatedAt = now
		return s.mailRepo.Update(ctx, msg)
	}

	body, err := json.Marshal(&mailRelayPayload{
		From:    s.mailCfg.From,
		To:      msg.Recipient,
		Subject: msg.Subject,
		Text:    msg.Body,
		Tag:     msg.Kind,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, relayURL, bytes.NewReader(body))
	if err != nil {
		return s.recordMailFailure(ctx, msg, now, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", fmt.Sprintf("%s:%s", msg.Kind, msg.OrderID))
	if key := strings.TrimSpace(s.mailCfg.APIKey); key != "" {
		req.Header.Set("X-API-Key", key)
	}

	resp, err := s.mailHTTP.Do(req)
	if err != nil {
		return s.recordMailFailure(ctx, msg, now, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return s.recordMailFailure(ctx, msg, now, fmt.Errorf("mail relay returned status=%d", resp.StatusCode))
	}

	msg.DeliveryStatus = entity.MailDeliverySuccess
	msg.DeliveryAttempts++
	msg.DeliveryNextAt = nil
	msg.DeliveryLastErr = nil
	msg.UpdatedAt = now

	return s.mailRepo.Update(ctx, msg)
}

func (s *PaymentService) recordMailFailure(ctx context.Context, msg *entity.MailMessage, now time.Time, dispatchErr error) error {
	msg.DeliveryAttempts++
	trimmed := truncate(dispatchErr.Error(), 1024)
	msg.DeliveryLastErr = &trimmed

	maxAttempts := s.mailCfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}

	if msg.DeliveryAttempts >= maxAttempts {
		msg.DeliveryStatus = entity.MailDeliveryFailed
		msg.DeliveryNextAt = nil
		s.logger.WithError(dispatchErr).WithFields(logrus.Fields{
			"order_id": msg.OrderID,
			"kind":     msg.Kind,
			"attempts": msg.DeliveryAttempts,
		}).Error("mail delivery gave up")
	} else {
		retryInterval := s.mailCfg.RetryInterval
		if retryInterval <= 0 {
			retryInterval = 5 * time.Minute
		}
		next := now.Add(retryInterval)
		msg.DeliveryStatus = entity.MailDeliveryPending
		msg.DeliveryNextAt = &next
	}
	msg.UpdatedAt = now

	if err := s.mailRepo.Update(ctx, msg); err != nil {
		return err
	}

	return dispatchErr
}

func keepFirstErr(current error, candidate error) error {
	if current != nil {
		return current
	}
	return candidate
}

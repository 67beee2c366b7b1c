package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/reference"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/repository"
)

const recoveryStagePaymentRecord = "payment_record"

// RecoveryIssue describes a recovery step that could not be completed. The order
// state is still correct when one is reported; the issue needs manual follow-up.
type RecoveryIssue struct {
	Stage  string
	Reason string
}

// SettlementResult is the outcome of the shared success and failure paths.
type SettlementResult struct {
	OrderID string
	Payment *entity.Payment

	// Transitioned is true only for the caller that moved the order to PROCESSING.
	Transitioned bool
	// Duplicate is true when the order had already been settled.
	Duplicate bool
	// OrderCancelled is true when a charge succeeded for a cancelled order.
	OrderCancelled bool

	RecoveryIssue *RecoveryIssue
}

type settlement struct {
	provider   string
	source     string
	payment    *entity.Payment
	result     *provider.VerificationResult
	references []string
}

// findPayment looks the payment up by every reference the provider gave us, local
// reference first.
func (s *PaymentService) findPayment(ctx context.Context, providerCode string, result *provider.VerificationResult, refs ...string) (*entity.Payment, error) {
	candidates := make([]string, 0, len(refs)+1)
	if result != nil && strings.TrimSpace(result.Reference) != "" {
		candidates = append(candidates, strings.TrimSpace(result.Reference))
	}
	for _, ref := range refs {
		if ref = strings.TrimSpace(ref); ref != "" {
			candidates = append(candidates, ref)
		}
	}

	for _, ref := range candidates {
		payment, err := s.paymentRepo.FindByTransactionID(ctx, ref)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}

	if result != nil && result.ProviderTransactionID != nil {
		payment, err := s.paymentRepo.FindByProviderTransactionID(ctx, providerCode, *result.ProviderTransactionID)
		if err != nil {
			return nil, err
		}
		if payment != nil {
			return payment, nil
		}
	}

	return nil, nil
}

// resolveOrderID recovers the order for a payment. The payment record wins, then
// the reference side table, then parsing the reference itself.
func (s *PaymentService) resolveOrderID(ctx context.Context, in *settlement) (string, error) {
	if in.payment != nil {
		return in.payment.OrderID, nil
	}

	refs := in.candidateReferences()
	for _, ref := range refs {
		row, err := s.referenceRepo.FindByReference(ctx, ref)
		if err != nil {
			return "", err
		}
		if row != nil {
			return row.OrderID, nil
		}
	}

	for _, ref := range refs {
		if orderID, err := reference.ParseOrderID(ref); err == nil {
			return orderID, nil
		}
	}

	return "", ErrReconciliationAmbiguous
}

func (in *settlement) candidateReferences() []string {
	seen := make(map[string]struct{})
	refs := make([]string, 0, len(in.references)+1)
	add := func(ref string) {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			return
		}
		if _, ok := seen[ref]; ok {
			return
		}
		seen[ref] = struct{}{}
		refs = append(refs, ref)
	}
	if in.result != nil {
		add(in.result.Reference)
	}
	for _, ref := range in.references {
		add(ref)
	}
	return refs
}

// onPaymentSucceeded is the single path every confirmed charge goes through. The
// conditional PENDING -> PROCESSING update is the idempotency gate; only the
// caller that wins it emits the notification and the confirmation mail.
func (s *PaymentService) onPaymentSucceeded(ctx context.Context, in *settlement) (*SettlementResult, error) {
	logger := s.logger.WithFields(logrus.Fields{
		"provider": in.provider,
		"source":   in.source,
	})

	orderID, err := s.resolveOrderID(ctx, in)
	if err != nil {
		if errors.Is(err, ErrReconciliationAmbiguous) {
			logger.WithFields(logrus.Fields{
				"alarm":      true,
				"references": in.candidateReferences(),
			}).Error("successful payment could not be matched to an order")
		}
		return nil, err
	}
	logger = logger.WithField("order_id", orderID)

	release, lockErr := s.locker.Lock(ctx, "order:"+orderID)
	if lockErr != nil {
		logger.WithError(lockErr).Warn("order lock unavailable, relying on conditional update")
	} else {
		defer release()
	}

	if in.payment == nil {
		payment, err := s.findPayment(ctx, in.provider, in.result, in.references...)
		if err != nil {
			return nil, err
		}
		in.payment = payment
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		logger.WithField("alarm", true).Error("successful payment references an unknown order")
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}

	if order.Status == entity.OrderStatusPending && underpaysOrder(order, in, s.paymentsCfg.DefaultCurrency) {
		return nil, s.rejectUnderpayment(logger, order, in)
	}

	result := &SettlementResult{OrderID: orderID}

	switch {
	case order.Status == entity.OrderStatusPending:
		changed, err := s.orderRepo.TransitionStatus(ctx, orderID, entity.OrderStatusPending, entity.OrderStatusProcessing, s.now())
		if err != nil {
			return nil, err
		}
		result.Transitioned = changed
		result.Duplicate = !changed
	case order.ReachedProcessing():
		result.Duplicate = true
	case order.Status == entity.OrderStatusCancelled:
		result.OrderCancelled = true
		logger.WithField("alarm", true).Error("payment succeeded for a cancelled order")
	}

	payment, issue := s.completePaymentRecord(ctx, in, order)
	result.Payment = payment
	result.RecoveryIssue = issue
	if issue != nil {
		logger.WithFields(logrus.Fields{
			"alarm": true,
			"stage": issue.Stage,
		}).Error("payment record recovery failed: " + issue.Reason)
	}

	if result.Transitioned {
		logger.Info("order moved to processing")
		s.notifyOrderPaid(ctx, order)
		s.enqueueOrderConfirmation(ctx, order)
	}

	return result, nil
}

// completePaymentRecord converges the Payment row to COMPLETED, creating it when
// the charge arrived without one.
func (s *PaymentService) completePaymentRecord(ctx context.Context, in *settlement, order *entity.Order) (*entity.Payment, *RecoveryIssue) {
	payment := in.payment
	if payment == nil {
		created, err := s.createRecoveredPayment(ctx, in, order)
		if err == nil {
			s.appendLedger(ctx, created, entity.TransactionStatusCompleted)
			return created, nil
		}
		if !errors.Is(err, repository.ErrPaymentAlreadyExists) {
			return nil, &RecoveryIssue{Stage: recoveryStagePaymentRecord, Reason: err.Error()}
		}
		existing, findErr := s.findPayment(ctx, in.provider, in.result, in.references...)
		if findErr != nil || existing == nil {
			return nil, &RecoveryIssue{Stage: recoveryStagePaymentRecord, Reason: err.Error()}
		}
		payment = existing
	}

	if payment.Status == entity.PaymentStatusCompleted {
		return payment, nil
	}

	from := payment.Status
	payment.Status = entity.PaymentStatusCompleted
	payment.UpdatedAt = s.now()
	if in.result != nil {
		if in.result.ProviderTransactionID != nil {
			payment.ProviderTransactionID = in.result.ProviderTransactionID
		}
		if len(in.result.RawPayload) > 0 {
			payment.Metadata = in.result.RawPayload
		}
	}

	changed, err := s.paymentRepo.TransitionStatus(ctx, payment, from)
	if err != nil {
		return payment, &RecoveryIssue{Stage: recoveryStagePaymentRecord, Reason: err.Error()}
	}
	if changed {
		s.appendLedger(ctx, payment, entity.TransactionStatusCompleted)
	}

	return payment, nil
}

func (s *PaymentService) createRecoveredPayment(ctx context.Context, in *settlement, order *entity.Order) (*entity.Payment, error) {
	refs := in.candidateReferences()
	if len(refs) == 0 {
		return nil, ErrReconciliationAmbiguous
	}

	now := s.now()
	payment := &entity.Payment{
		OrderID:       order.ID,
		AmountMinor:   order.TotalMinor,
		Currency:      s.paymentsCfg.DefaultCurrency,
		Provider:      in.provider,
		TransactionID: refs[0],
		CustomerEmail: order.Email,
		Status:        entity.PaymentStatusCompleted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.result != nil {
		if in.result.AmountMinor > 0 {
			payment.AmountMinor = in.result.AmountMinor
		}
		if in.result.Currency != "" {
			payment.Currency = in.result.Currency
		}
		if in.result.CustomerEmail != "" {
			payment.CustomerEmail = in.result.CustomerEmail
		}
		payment.ProviderTransactionID = in.result.ProviderTransactionID
		payment.Metadata = in.result.RawPayload
	}

	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"order_id":       order.ID,
		"transaction_id": payment.TransactionID,
	}).Warn("payment record recovered from provider data")

	return payment, nil
}

// onPaymentFailed marks a pending attempt FAILED. The order is never touched, so
// the customer can retry with a new attempt.
func (s *PaymentService) onPaymentFailed(ctx context.Context, in *settlement) (*SettlementResult, error) {
	payment := in.payment
	if payment == nil {
		found, err := s.findPayment(ctx, in.provider, in.result, in.references...)
		if err != nil {
			return nil, err
		}
		payment = found
	}

	result := &SettlementResult{Payment: payment}
	if payment == nil {
		orderID, err := s.resolveOrderID(ctx, in)
		if err == nil {
			result.OrderID = orderID
		}
		s.logger.WithFields(logrus.Fields{
			"provider":   in.provider,
			"references": in.candidateReferences(),
		}).Info("failed charge has no local payment record")
		return result, nil
	}

	result.OrderID = payment.OrderID
	if payment.Status != entity.PaymentStatusPending {
		result.Duplicate = true
		return result, nil
	}

	payment.Status = entity.PaymentStatusFailed
	payment.UpdatedAt = s.now()
	if in.result != nil && len(in.result.RawPayload) > 0 {
		payment.Metadata = in.result.RawPayload
	}

	changed, err := s.paymentRepo.TransitionStatus(ctx, payment, entity.PaymentStatusPending)
	if err != nil {
		return nil, err
	}
	if !changed {
		result.Duplicate = true
		return result, nil
	}

	s.appendLedger(ctx, payment, entity.TransactionStatusFailed)
	s.notifyPaymentFailed(ctx, payment)

	return result, nil
}

// amountShortfall reports whether the provider confirmed less than was asked for,
// or a different currency.
func amountShortfall(payment *entity.Payment, result *provider.VerificationResult) bool {
	if payment == nil || result == nil {
		return false
	}
	if result.Currency != "" && payment.Currency != "" && !strings.EqualFold(result.Currency, payment.Currency) {
		return true
	}
	return result.AmountMinor > 0 && result.AmountMinor < payment.AmountMinor
}

// underpaysOrder reports whether the confirmed charge fails to cover the order
// total. Without a payment record the currency is checked against the default
// checkout currency.
func underpaysOrder(order *entity.Order, in *settlement, defaultCurrency string) bool {
	if in.result == nil {
		return true
	}
	if in.result.AmountMinor < order.TotalMinor {
		return true
	}
	expectedCurrency := defaultCurrency
	if in.payment != nil && in.payment.Currency != "" {
		expectedCurrency = in.payment.Currency
	}
	return in.result.Currency != "" && expectedCurrency != "" && !strings.EqualFold(in.result.Currency, expectedCurrency)
}

func (s *PaymentService) rejectUnderpayment(logger logrus.FieldLogger, order *entity.Order, in *settlement) error {
	fields := logrus.Fields{
		"alarm":          true,
		"expected_total": money.FormatMajor(order.TotalMinor),
		"has_payment":    in.payment != nil,
	}
	if in.result != nil {
		fields["paid_amount"] = money.FormatMajor(in.result.AmountMinor)
		fields["currency"] = in.result.Currency
	}
	logger.WithFields(fields).Error("confirmed charge does not cover the order total")
	return ErrAmountMismatch
}

func (s *PaymentService) rejectShortfall(payment *entity.Payment, result *provider.VerificationResult, source string) error {
	s.logger.WithFields(logrus.Fields{
		"alarm":           true,
		"source":          source,
		"transaction_id":  payment.TransactionID,
		"expected_amount": money.FormatMajor(payment.AmountMinor),
		"paid_amount":     money.FormatMajor(result.AmountMinor),
		"currency":        result.Currency,
	}).Error("provider confirmed a different amount than requested")
	return ErrAmountMismatch
}

package service

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

type initiateRefundRequest interface {
	GetTransactionId() string
	GetAmountMinor() int64
	GetReason() string
}

// InitiateRefund records a PENDING refund against a completed payment. No
// provider refund call is made and the order status is left as is.
func (s *PaymentService) InitiateRefund(ctx context.Context, req initiateRefundRequest) (*entity.Refund, error) {
	transactionID := strings.TrimSpace(req.GetTransactionId())
	if transactionID == "" || req.GetAmountMinor() < 0 {
		return nil, ErrInvalidRequest
	}

	ledgerRow, err := s.transactionRepo.FindLatestByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if ledgerRow == nil {
		return nil, ErrTransactionNotFound
	}

	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	if payment.Status != entity.PaymentStatusCompleted {
		return nil, ErrPaymentNotRefundable
	}

	amount := req.GetAmountMinor()
	if amount == 0 {
		amount = ledgerRow.AmountMinor
	}

	release, err := s.locker.Lock(ctx, paymentLockKey(payment.ID))
	if err != nil {
		s.logger.WithError(err).WithField("transaction_id", transactionID).Warn("payment lock unavailable, refund not recorded")
		return nil, err
	}
	defer release()

	alreadyRefunded, err := s.refundRepo.SumOpenByPaymentID(ctx, payment.ID)
	if err != nil {
		return nil, err
	}
	if amount+alreadyRefunded > payment.AmountMinor {
		return nil, ErrRefundExceedsPayment
	}

	now := s.now()
	refund := &entity.Refund{
		PaymentID:   payment.ID,
		Reference:   "RF-" + uuid.NewString(),
		AmountMinor: amount,
		Currency:    payment.Currency,
		Status:      entity.RefundStatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if reason := strings.TrimSpace(req.GetReason()); reason != "" {
		refund.Reason = &reason
	}

	if err := s.refundRepo.Create(ctx, refund); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"transaction_id": transactionID,
		"refund":         refund.Reference,
		"amount_minor":   refund.AmountMinor,
	}).Info("refund initiated")
	s.notifyRefundInitiated(ctx, payment, refund)

	return refund, nil
}

// paymentLockKey serializes refund bookkeeping for one payment so the open
// refund total is read and extended by one caller at a time.
func paymentLockKey(paymentID uint64) string {
	return "payment:" + strconv.FormatUint(paymentID, 10)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/repository"
)

// Notifications and mails are best-effort: failures are logged and never roll
// back payment or order state.

func (s *PaymentService) notifyOrderPaid(ctx context.Context, order *entity.Order) {
	if order.UserID == nil || strings.TrimSpace(*order.UserID) == "" {
		return
	}
	s.createNotification(ctx, *order.UserID,
		"Payment received",
		fmt.Sprintf("We received your payment for order %s. It is now being processed.", order.ID),
	)
}

func (s *PaymentService) notifyPaymentFailed(ctx context.Context, payment *entity.Payment) {
	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil || order == nil || order.UserID == nil {
		return
	}
	s.createNotification(ctx, *order.UserID,
		"Payment failed",
		fmt.Sprintf("Your payment for order %s did not go through. You can try again from your order page.", order.ID),
	)
}

func (s *PaymentService) notifyRefundInitiated(ctx context.Context, payment *entity.Payment, refund *entity.Refund) {
	order, err := s.orderRepo.FindByID(ctx, payment.OrderID)
	if err != nil || order == nil || order.UserID == nil {
		return
	}
	s.createNotification(ctx, *order.UserID,
		"Refund initiated",
		fmt.Sprintf("A refund of %s %s for order %s has been initiated.", money.FormatMajor(refund.AmountMinor), refund.Currency, order.ID),
	)
}

func (s *PaymentService) createNotification(ctx context.Context, userID, title, message string) {
	err := s.notificationRepo.Create(ctx, &entity.Notification{
		UserID:    userID,
		Title:     title,
		Message:   message,
		Status:    entity.NotificationStatusUnread,
		CreatedAt: s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("failed to create notification")
	}
}

// enqueueOrderConfirmation queues the confirmation mail in the outbox. The outbox
// key (order_id, kind) makes a second enqueue for the same order a no-op.
func (s *PaymentService) enqueueOrderConfirmation(ctx context.Context, order *entity.Order) {
	recipient := strings.TrimSpace(order.Email)
	if recipient == "" {
		return
	}

	now := s.now()
	msg := &entity.MailMessage{
		OrderID:        order.ID,
		Kind:           entity.MailKindOrderConfirmation,
		Recipient:      recipient,
		Subject:        fmt.Sprintf("Order %s confirmed", order.ID),
		Body:           orderConfirmationBody(order),
		DeliveryStatus: entity.MailDeliveryPending,
		DeliveryNextAt: &now,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err := s.mailRepo.Create(ctx, msg)
	switch {
	case err == nil:
	case errors.Is(err, repository.ErrMailAlreadyQueued):
		s.logger.WithField("order_id", order.ID).Debug("order confirmation already queued")
	default:
		s.logger.WithError(err).WithFields(logrus.Fields{
			"order_id": order.ID,
		}).Warn("failed to queue order confirmation mail")
	}
}

func orderConfirmationBody(order *entity.Order) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you for your order %s.\n\n", order.ID)
	for _, item := range order.Items {
		fmt.Fprintf(&b, "%d x %s @ %s\n", item.Quantity, item.ProductID, money.FormatMajor(item.UnitPriceMinor))
	}
	fmt.Fprintf(&b, "\nShipping: %s\n", money.FormatMajor(order.ShippingCostMinor))
	fmt.Fprintf(&b, "Total: %s\n", money.FormatMajor(order.TotalMinor))
	if order.ShippingAddress != "" {
		fmt.Fprintf(&b, "\nShipping to: %s\n", order.ShippingAddress)
	}
	return b.String()
}

package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

func completedPayment(t *testing.T, env *testEnv, stub *paystackStub, orderID string) *entity.Payment {
	t.Helper()
	env.orders.put(pendingOrder(orderID))
	payment := initializePaystack(t, env, orderID, 500000)
	stub.set("success", 500000)
	if _, err := env.svc.VerifyPayment(context.Background(), &verifyRequest{provider: "paystack", reference: payment.TransactionID}); err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	return payment
}

func TestInitiateRefundUnknownTransaction(t *testing.T) {
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, &paystackStub{}))

	_, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: "TX-nope-1"})
	if !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if len(env.refunds.refunds) != 0 {
		t.Fatal("no refund row may be created for an unknown transaction")
	}
}

func TestInitiateRefundDefaultsToFullAmount(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	payment := completedPayment(t, env, stub, "order-1")
	notificationsBefore := env.notifications.count()

	refund, err := env.svc.InitiateRefund(context.Background(), &refundRequest{
		transactionID: payment.TransactionID,
		reason:        "damaged item",
	})
	if err != nil {
		t.Fatalf("InitiateRefund failed: %v", err)
	}
	if refund.Status != entity.RefundStatusPending {
		t.Fatalf("expected PENDING refund, got %s", refund.Status)
	}
	if refund.AmountMinor != 500000 {
		t.Fatalf("expected full amount, got %d", refund.AmountMinor)
	}
	if refund.Reason == nil || *refund.Reason != "damaged item" {
		t.Fatalf("unexpected reason: %v", refund.Reason)
	}
	if !strings.HasPrefix(refund.Reference, "RF-") {
		t.Fatalf("unexpected refund reference: %s", refund.Reference)
	}
	if env.orders.status("order-1") != entity.OrderStatusProcessing {
		t.Fatal("refund must not change the order status")
	}
	if env.notifications.count() != notificationsBefore+1 {
		t.Fatal("expected a refund notification")
	}
}

func TestInitiateRefundBounds(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	payment := completedPayment(t, env, stub, "order-1")

	if _, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: payment.TransactionID, amount: 300000}); err != nil {
		t.Fatalf("partial refund failed: %v", err)
	}

	_, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: payment.TransactionID, amount: 300000})
	if !errors.Is(err, ErrRefundExceedsPayment) {
		t.Fatalf("expected ErrRefundExceedsPayment, got %v", err)
	}

	if _, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: payment.TransactionID, amount: 200000}); err != nil {
		t.Fatalf("refund of the remainder failed: %v", err)
	}
	if len(env.refunds.refunds) != 2 {
		t.Fatalf("expected two refunds, got %d", len(env.refunds.refunds))
	}
}

func TestInitiateRefundRequiresCompletedPayment(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	env.orders.put(pendingOrder("order-1"))
	payment := initializePaystack(t, env, "order-1", 500000)

	_, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: payment.TransactionID})
	if !errors.Is(err, ErrPaymentNotRefundable) {
		t.Fatalf("expected ErrPaymentNotRefundable, got %v", err)
	}
	if len(env.refunds.refunds) != 0 {
		t.Fatal("no refund row expected")
	}
}

func TestConcurrentFullRefundsRecordOnce(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	payment := completedPayment(t, env, stub, "order-1")
	env.refunds.afterSum = func() { time.Sleep(5 * time.Millisecond) }

	const callers = 8
	errs := make(chan error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.InitiateRefund(context.Background(), &refundRequest{transactionID: payment.TransactionID})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	var succeeded, exceeded int
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, ErrRefundExceedsPayment):
			exceeded++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || exceeded != callers-1 {
		t.Fatalf("expected one refund and %d rejections, got %d and %d", callers-1, succeeded, exceeded)
	}

	total, _ := env.refunds.SumOpenByPaymentID(context.Background(), payment.ID)
	if total != payment.AmountMinor {
		t.Fatalf("open refunds must not exceed the payment, got %d of %d", total, payment.AmountMinor)
	}
}

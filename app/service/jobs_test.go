package service

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

type mailRelayStub struct {
	mu       sync.Mutex
	status   int
	received []mailRelayPayload
	keys     []string
}

func (m *mailRelayStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.mu.Lock()
		defer m.mu.Unlock()

		var payload mailRelayPayload
		_ = json.NewDecoder(r.Body).Decode(&payload)
		m.received = append(m.received, payload)
		m.keys = append(m.keys, r.Header.Get("Idempotency-Key"))
		if m.status != 0 {
			w.WriteHeader(m.status)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRunReconcileBatchSettlesStalePayments(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	env.orders.put(pendingOrder("order-1"))
	payment := initializePaystack(t, env, "order-1", 500000)
	stub.set("success", 500000)

	if err := env.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch failed: %v", err)
	}
	if env.orders.status("order-1") != entity.OrderStatusPending {
		t.Fatal("fresh payments must not be reconciled")
	}

	later := time.Now().UTC().Add(20 * time.Minute)
	env.svc.now = func() time.Time { return later }

	if err := env.svc.RunReconcileBatch(context.Background()); err != nil {
		t.Fatalf("RunReconcileBatch failed: %v", err)
	}
	if env.orders.status("order-1") != entity.OrderStatusProcessing {
		t.Fatal("stale successful payment should settle the order")
	}
	stored, _ := env.payments.FindByTransactionID(context.Background(), payment.TransactionID)
	if stored.Status != entity.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED payment, got %s", stored.Status)
	}
}

func TestRunReconcileBatchRotatesStillPendingPayments(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	env.svc.paymentsCfg.JobBatchSize = 1
	env.orders.put(pendingOrder("order-1"))
	env.orders.put(pendingOrder("order-2"))
	first := initializePaystack(t, env, "order-1", 500000)
	second := initializePaystack(t, env, "order-2", 500000)
	stub.set("pending", 500000)

	later := time.Now().UTC().Add(20 * time.Minute)
	env.svc.now = func() time.Time { return later }

	for i := 0; i < 2; i++ {
		if err := env.svc.RunReconcileBatch(context.Background()); err != nil {
			t.Fatalf("RunReconcileBatch failed: %v", err)
		}
		later = later.Add(time.Minute)
	}

	stub.mu.Lock()
	verified := append([]string(nil), stub.verified...)
	stub.mu.Unlock()
	if len(verified) != 2 || verified[0] != first.TransactionID || verified[1] != second.TransactionID {
		t.Fatalf("expected both stale payments to be checked in turn, got %v", verified)
	}

	stored, _ := env.payments.FindByTransactionID(context.Background(), first.TransactionID)
	if stored.Status != entity.PaymentStatusPending {
		t.Fatalf("an unsettled charge stays PENDING, got %s", stored.Status)
	}
	if env.orders.transitions != 0 {
		t.Fatal("no order may move while the provider still reports pending")
	}
}

func TestRunExpirePendingBatch(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	env.orders.put(pendingOrder("order-1"))
	payment := initializePaystack(t, env, "order-1", 500000)

	later := time.Now().UTC().Add(2 * time.Hour)
	env.svc.now = func() time.Time { return later }

	if err := env.svc.RunExpirePendingBatch(context.Background()); err != nil {
		t.Fatalf("RunExpirePendingBatch failed: %v", err)
	}

	stored, _ := env.payments.FindByTransactionID(context.Background(), payment.TransactionID)
	if stored.Status != entity.PaymentStatusFailed {
		t.Fatalf("expected FAILED payment, got %s", stored.Status)
	}
	if env.orders.status("order-1") != entity.OrderStatusPending {
		t.Fatal("expiry must not touch the order")
	}
	if n := env.ledger.countByStatus(payment.TransactionID, entity.TransactionStatusFailed); n != 1 {
		t.Fatalf("expected one FAILED ledger row, got %d", n)
	}

	// A late success still converges.
	stub.set("success", 500000)
	out, err := env.svc.VerifyPayment(context.Background(), &verifyRequest{provider: "paystack", reference: payment.TransactionID})
	if err != nil {
		t.Fatalf("VerifyPayment failed: %v", err)
	}
	if !out.Settlement.Transitioned {
		t.Fatal("late success should still transition the order")
	}
	stored, _ = env.payments.FindByTransactionID(context.Background(), payment.TransactionID)
	if stored.Status != entity.PaymentStatusCompleted {
		t.Fatalf("expected COMPLETED payment after late success, got %s", stored.Status)
	}
}

func TestRunMailDispatchBatchDelivers(t *testing.T) {
	relay := &mailRelayStub{}
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{
		RelayURL:    relay.server(t).URL,
		From:        "shop@example.com",
		MaxAttempts: 3,
	}, newPaystack(t, stub))
	completedPayment(t, env, stub, "order-1")

	if err := env.svc.RunMailDispatchBatch(context.Background()); err != nil {
		t.Fatalf("RunMailDispatchBatch failed: %v", err)
	}

	if len(relay.received) != 1 {
		t.Fatalf("expected one relay call, got %d", len(relay.received))
	}
	if relay.received[0].To != "buyer@example.com" || relay.received[0].From != "shop@example.com" {
		t.Fatalf("unexpected relay payload: %+v", relay.received[0])
	}
	if relay.keys[0] != entity.MailKindOrderConfirmation+":order-1" {
		t.Fatalf("unexpected idempotency key: %s", relay.keys[0])
	}

	msgs := env.mail.all()
	if msgs[0].DeliveryStatus != entity.MailDeliverySuccess || msgs[0].DeliveryAttempts != 1 {
		t.Fatalf("unexpected mail state: %+v", msgs[0])
	}

	if err := env.svc.RunMailDispatchBatch(context.Background()); err != nil {
		t.Fatalf("second dispatch failed: %v", err)
	}
	if len(relay.received) != 1 {
		t.Fatal("delivered mail must not be sent again")
	}
}

func TestRunMailDispatchBatchRetriesThenGivesUp(t *testing.T) {
	relay := &mailRelayStub{status: http.StatusBadGateway}
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{
		RelayURL:      relay.server(t).URL,
		MaxAttempts:   2,
		RetryInterval: time.Minute,
	}, newPaystack(t, stub))
	completedPayment(t, env, stub, "order-1")

	if err := env.svc.RunMailDispatchBatch(context.Background()); err == nil {
		t.Fatal("expected relay failure to be reported")
	}
	msg := env.mail.all()[0]
	if msg.DeliveryStatus != entity.MailDeliveryPending || msg.DeliveryAttempts != 1 || msg.DeliveryNextAt == nil {
		t.Fatalf("expected a scheduled retry, got %+v", msg)
	}
	if env.orders.status("order-1") != entity.OrderStatusProcessing {
		t.Fatal("mail failures must not roll back the order")
	}

	later := time.Now().UTC().Add(2 * time.Minute)
	env.svc.now = func() time.Time { return later }

	if err := env.svc.RunMailDispatchBatch(context.Background()); err == nil {
		t.Fatal("expected relay failure to be reported")
	}
	msg = env.mail.all()[0]
	if msg.DeliveryStatus != entity.MailDeliveryFailed || msg.DeliveryAttempts != 2 || msg.DeliveryLastErr == nil {
		t.Fatalf("expected mail to be given up, got %+v", msg)
	}
}

func TestEnqueueFailureDoesNotRollBackSettlement(t *testing.T) {
	stub := &paystackStub{}
	env := newTestEnv(t, config.MailConfig{}, newPaystack(t, stub))
	env.mail.err = context.DeadlineExceeded
	env.notifications.err = context.DeadlineExceeded

	completedPayment(t, env, stub, "order-1")

	if env.orders.status("order-1") != entity.OrderStatusProcessing {
		t.Fatal("order should be PROCESSING despite mail failures")
	}
}

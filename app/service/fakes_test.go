package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/lock"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/repository"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

type fakeOrderRepo struct {
	mu          sync.Mutex
	orders      map[string]*entity.Order
	transitions int
}

func newFakeOrderRepo() *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*entity.Order{}}
}

func (r *fakeOrderRepo) put(order *entity.Order) {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *order
	r.orders[order.ID] = &copyItem
}

func (r *fakeOrderRepo) status(id string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.orders[id].Status
}

func (r *fakeOrderRepo) FindByID(_ context.Context, id string) (*entity.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.orders[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (r *fakeOrderRepo) TransitionStatus(_ context.Context, id, from, to string, now time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.orders[id]
	if !ok || item.Status != from {
		return false, nil
	}
	item.Status = to
	item.UpdatedAt = now
	r.transitions++
	return true, nil
}

type fakePaymentRepo struct {
	mu       sync.Mutex
	payments map[uint64]*entity.Payment
	nextID   uint64
	createFn func(*entity.Payment) error
}

func newFakePaymentRepo() *fakePaymentRepo {
	return &fakePaymentRepo{payments: map[uint64]*entity.Payment{}, nextID: 1}
}

func (r *fakePaymentRepo) Create(_ context.Context, payment *entity.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createFn != nil {
		if err := r.createFn(payment); err != nil {
			return err
		}
	}
	for _, item := range r.payments {
		if item.TransactionID == payment.TransactionID {
			return repository.ErrPaymentAlreadyExists
		}
	}
	id := r.nextID
	r.nextID++
	copyItem := *payment
	copyItem.ID = id
	r.payments[id] = &copyItem
	payment.ID = id
	return nil
}

func (r *fakePaymentRepo) TransitionStatus(_ context.Context, payment *entity.Payment, from string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.payments[payment.ID]
	if !ok || item.Status != from {
		return false, nil
	}
	copyItem := *payment
	if copyItem.ProviderTransactionID == nil {
		copyItem.ProviderTransactionID = item.ProviderTransactionID
	}
	r.payments[payment.ID] = &copyItem
	return true, nil
}

func (r *fakePaymentRepo) FindByTransactionID(_ context.Context, transactionID string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.payments {
		if item.TransactionID == transactionID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) FindByProviderTransactionID(_ context.Context, providerCode, providerTransactionID string) (*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, item := range r.payments {
		if item.Provider == providerCode && item.ProviderTransactionID != nil && *item.ProviderTransactionID == providerTransactionID {
			copyItem := *item
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakePaymentRepo) ListPendingBefore(_ context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0)
	for _, item := range r.payments {
		if item.Status == entity.PaymentStatusPending && !item.CreatedAt.After(before) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if !items[i].UpdatedAt.Equal(items[j].UpdatedAt) {
			return items[i].UpdatedAt.Before(items[j].UpdatedAt)
		}
		return items[i].ID < items[j].ID
	})
	if int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakePaymentRepo) all() []*entity.Payment {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Payment, 0, len(r.payments))
	for _, item := range r.payments {
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type fakeReferenceRepo struct {
	mu   sync.Mutex
	refs map[string]*entity.PaymentReference
}

func newFakeReferenceRepo() *fakeReferenceRepo {
	return &fakeReferenceRepo{refs: map[string]*entity.PaymentReference{}}
}

func (r *fakeReferenceRepo) Create(_ context.Context, ref *entity.PaymentReference) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.refs[ref.Reference]; ok {
		return repository.ErrPaymentReferenceExists
	}
	copyItem := *ref
	r.refs[ref.Reference] = &copyItem
	return nil
}

func (r *fakeReferenceRepo) FindByReference(_ context.Context, reference string) (*entity.PaymentReference, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	item, ok := r.refs[reference]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type fakeTransactionRepo struct {
	mu   sync.Mutex
	rows []*entity.Transaction
}

func (r *fakeTransactionRepo) Create(_ context.Context, tx *entity.Transaction) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *tx
	copyItem.ID = uint64(len(r.rows) + 1)
	r.rows = append(r.rows, &copyItem)
	tx.ID = copyItem.ID
	return nil
}

func (r *fakeTransactionRepo) FindLatestByTransactionID(_ context.Context, transactionID string) (*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.rows) - 1; i >= 0; i-- {
		if r.rows[i].TransactionID == transactionID {
			copyItem := *r.rows[i]
			return &copyItem, nil
		}
	}
	return nil, nil
}

func (r *fakeTransactionRepo) List(_ context.Context, filter repository.TransactionFilter) ([]*entity.Transaction, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.Transaction, 0)
	for i := len(r.rows) - 1; i >= 0; i-- {
		row := r.rows[i]
		if filter.Status != "" && row.Status != filter.Status {
			continue
		}
		if filter.From != nil && row.CreatedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && row.CreatedAt.After(*filter.To) {
			continue
		}
		copyItem := *row
		items = append(items, &copyItem)
	}
	return items, nil
}

func (r *fakeTransactionRepo) countByStatus(transactionID, status string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, row := range r.rows {
		if row.TransactionID == transactionID && row.Status == status {
			n++
		}
	}
	return n
}

type fakeRefundRepo struct {
	mu      sync.Mutex
	refunds []*entity.Refund
	// afterSum runs between reading the open total and returning it.
	afterSum func()
}

func (r *fakeRefundRepo) Create(_ context.Context, refund *entity.Refund) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *refund
	copyItem.ID = uint64(len(r.refunds) + 1)
	r.refunds = append(r.refunds, &copyItem)
	refund.ID = copyItem.ID
	return nil
}

func (r *fakeRefundRepo) SumOpenByPaymentID(_ context.Context, paymentID uint64) (int64, error) {
	r.mu.Lock()
	var total int64
	for _, item := range r.refunds {
		if item.PaymentID == paymentID && (item.Status == entity.RefundStatusPending || item.Status == entity.RefundStatusCompleted) {
			total += item.AmountMinor
		}
	}
	hook := r.afterSum
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return total, nil
}

type fakeNotificationRepo struct {
	mu    sync.Mutex
	items []*entity.Notification
	err   error
}

func (r *fakeNotificationRepo) Create(_ context.Context, n *entity.Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	copyItem := *n
	r.items = append(r.items, &copyItem)
	return nil
}

func (r *fakeNotificationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.items)
}

type fakeMailRepo struct {
	mu       sync.Mutex
	messages map[uint64]*entity.MailMessage
	nextID   uint64
	err      error
}

func newFakeMailRepo() *fakeMailRepo {
	return &fakeMailRepo{messages: map[uint64]*entity.MailMessage{}, nextID: 1}
}

func (r *fakeMailRepo) Create(_ context.Context, msg *entity.MailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	for _, item := range r.messages {
		if item.OrderID == msg.OrderID && item.Kind == msg.Kind {
			return repository.ErrMailAlreadyQueued
		}
	}
	copyItem := *msg
	copyItem.ID = r.nextID
	r.nextID++
	r.messages[copyItem.ID] = &copyItem
	msg.ID = copyItem.ID
	return nil
}

func (r *fakeMailRepo) Update(_ context.Context, msg *entity.MailMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.messages[msg.ID]; !ok {
		return repository.ErrMailNotFound
	}
	copyItem := *msg
	r.messages[msg.ID] = &copyItem
	return nil
}

func (r *fakeMailRepo) ListDue(_ context.Context, now time.Time, limit int32) ([]*entity.MailMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.MailMessage, 0)
	for _, item := range r.messages {
		if item.DeliveryStatus == entity.MailDeliveryPending && item.DeliveryNextAt != nil && !item.DeliveryNextAt.After(now) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	if int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (r *fakeMailRepo) all() []*entity.MailMessage {
	r.mu.Lock()
	defer r.mu.Unlock()
	items := make([]*entity.MailMessage, 0, len(r.messages))
	for _, item := range r.messages {
		copyItem := *item
		items = append(items, &copyItem)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items
}

type fakeWebhookRepo struct {
	mu    sync.Mutex
	hooks []*entity.ProviderWebhook
}

func (r *fakeWebhookRepo) Create(_ context.Context, hook *entity.ProviderWebhook) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copyItem := *hook
	r.hooks = append(r.hooks, &copyItem)
	return nil
}

func (r *fakeWebhookRepo) last() *entity.ProviderWebhook {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.hooks) == 0 {
		return nil
	}
	copyItem := *r.hooks[len(r.hooks)-1]
	return &copyItem
}

type testEnv struct {
	svc           *PaymentService
	orders        *fakeOrderRepo
	payments      *fakePaymentRepo
	refs          *fakeReferenceRepo
	ledger        *fakeTransactionRepo
	refunds       *fakeRefundRepo
	notifications *fakeNotificationRepo
	mail          *fakeMailRepo
	webhooks      *fakeWebhookRepo
}

func newTestEnv(t *testing.T, mailCfg config.MailConfig, providers ...provider.Provider) *testEnv {
	t.Helper()

	env := &testEnv{
		orders:        newFakeOrderRepo(),
		payments:      newFakePaymentRepo(),
		refs:          newFakeReferenceRepo(),
		ledger:        &fakeTransactionRepo{},
		refunds:       &fakeRefundRepo{},
		notifications: &fakeNotificationRepo{},
		mail:          newFakeMailRepo(),
		webhooks:      &fakeWebhookRepo{},
	}

	env.svc = NewPaymentService(
		Repositories{
			Orders:        env.orders,
			Payments:      env.payments,
			References:    env.refs,
			Transactions:  env.ledger,
			Refunds:       env.refunds,
			Notifications: env.notifications,
			Mail:          env.mail,
			Webhooks:      env.webhooks,
		},
		provider.NewRegistry(providers...),
		lock.NewMemoryLocker(),
		config.PaymentsConfig{
			DefaultCurrency:     "NGN",
			PendingTimeout:      time.Hour,
			ReconcileStaleAfter: 15 * time.Minute,
			JobBatchSize:        50,
		},
		config.FrontendConfig{BaseURL: "https://shop.example.com"},
		mailCfg,
	)

	return env
}

func pendingOrder(id string) *entity.Order {
	userID := "user-1"
	return &entity.Order{
		ID:                id,
		UserID:            &userID,
		Status:            entity.OrderStatusPending,
		TotalMinor:        500000,
		ShippingCostMinor: 2500,
		Email:             "buyer@example.com",
		ShippingAddress:   "1 Marina, Lagos",
		Items: []entity.OrderItem{
			{ProductID: "prod-1", Quantity: 2, UnitPriceMinor: 248750},
		},
	}
}

// paystackStub answers Paystack initialize and verify calls. Verify echoes the
// requested reference back with the configured status and amount.
type paystackStub struct {
	mu          sync.Mutex
	status      string
	amountMinor int64
	initStatus  int
	initCalls   int
	verifyCalls int
	verified    []string
}

func (p *paystackStub) set(status string, amountMinor int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status = status
	p.amountMinor = amountMinor
}

func (p *paystackStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p.mu.Lock()
		defer p.mu.Unlock()

		switch {
		case r.URL.Path == "/transaction/initialize":
			p.initCalls++
			if p.initStatus >= 400 {
				w.WriteHeader(p.initStatus)
				_, _ = w.Write([]byte(`{"status":false,"message":"Duplicate Transaction Reference"}`))
				return
			}
			var body struct {
				Reference string `json:"reference"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  true,
				"message": "Authorization URL created",
				"data": map[string]string{
					"authorization_url": "https://checkout.paystack.com/" + body.Reference,
					"access_code":       "code-" + body.Reference,
					"reference":         body.Reference,
				},
			})
		case strings.HasPrefix(r.URL.Path, "/transaction/verify/"):
			p.verifyCalls++
			ref := strings.TrimPrefix(r.URL.Path, "/transaction/verify/")
			p.verified = append(p.verified, ref)
			_ = json.NewEncoder(w).Encode(map[string]interface{}{
				"status":  true,
				"message": "Verification successful",
				"data": map[string]interface{}{
					"id":        4242,
					"status":    p.status,
					"reference": ref,
					"amount":    p.amountMinor,
					"currency":  "NGN",
					"customer":  map[string]string{"email": "buyer@example.com"},
				},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newPaystack(t *testing.T, stub *paystackStub) *provider.PaystackProvider {
	t.Helper()
	return provider.NewPaystackProvider(provider.PaystackConfig{
		SecretKey: "sk_test_secret",
		BaseURL:   stub.server(t).URL,
	})
}

// flutterwaveStub answers Flutterwave verify calls, by transaction id or by
// tx_ref, with the configured charge. An empty txRef answers 404.
type flutterwaveStub struct {
	mu          sync.Mutex
	id          int64
	txRef       string
	status      string
	amountMajor string
	verifyKeys  []string
}

func (f *flutterwaveStub) set(id int64, txRef, status, amountMajor string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.id = id
	f.txRef = txRef
	f.status = status
	f.amountMajor = amountMajor
}

func (f *flutterwaveStub) keys() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.verifyKeys...)
}

func (f *flutterwaveStub) server(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		switch {
		case r.URL.Path == "/v3/transactions/verify_by_reference":
			f.verifyKeys = append(f.verifyKeys, r.URL.Query().Get("tx_ref"))
		case strings.HasPrefix(r.URL.Path, "/v3/transactions/") && strings.HasSuffix(r.URL.Path, "/verify"):
			f.verifyKeys = append(f.verifyKeys, strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v3/transactions/"), "/verify"))
		default:
			w.WriteHeader(http.StatusNotFound)
			return
		}

		if f.txRef == "" {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":"error","message":"No transaction was found for this id"}`))
			return
		}
		_, _ = fmt.Fprintf(w,
			`{"status":"success","message":"Transaction fetched successfully","data":{"id":%d,"tx_ref":%q,"amount":%s,"currency":"NGN","status":%q,"customer":{"email":"buyer@example.com"}}}`,
			f.id, f.txRef, f.amountMajor, f.status,
		)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newFlutterwave(t *testing.T, stub *flutterwaveStub) *provider.FlutterwaveProvider {
	t.Helper()
	return provider.NewFlutterwaveProvider(provider.FlutterwaveConfig{
		SecretKey:  "FLWSECK_TEST",
		SecretHash: "my-hash",
		BaseURL:    stub.server(t).URL,
	})
}

type initRequest struct {
	provider string
	orderID  string
	amount   int64
	email    string
	method   string
	currency string
}

func (r *initRequest) GetProvider() string { return r.provider }
func (r *initRequest) GetOrderId() string { return r.orderID }
func (r *initRequest) GetAmountMinor() int64 { return r.amount }
func (r *initRequest) GetEmail() string { return r.email }
func (r *initRequest) GetPaymentMethod() string { return r.method }
func (r *initRequest) GetCurrency() string { return r.currency }

type verifyRequest struct {
	provider  string
	reference string
}

func (r *verifyRequest) GetProvider() string { return r.provider }
func (r *verifyRequest) GetReference() string { return r.reference }

type webhookRequest struct {
	provider string
	payload  []byte
	headers  http.Header
}

func (r *webhookRequest) GetProvider() string { return r.provider }
func (r *webhookRequest) GetPayload() []byte { return r.payload }
func (r *webhookRequest) GetHeaders() http.Header { return r.headers }

type refundRequest struct {
	transactionID string
	amount        int64
	reason        string
}

func (r *refundRequest) GetTransactionId() string { return r.transactionID }
func (r *refundRequest) GetAmountMinor() int64 { return r.amount }
func (r *refundRequest) GetReason() string { return r.reason }

type listRequest struct {
	status string
}

func (r *listRequest) GetFrom() *time.Time { return nil }
func (r *listRequest) GetTo() *time.Time { return nil }
func (r *listRequest) GetStatus() string { return r.status }
func (r *listRequest) GetOrderId() string { return "" }
func (r *listRequest) GetLimit() int32 { return 0 }
func (r *listRequest) GetOffset() int32 { return 0 }

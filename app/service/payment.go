package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/factory"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/lock"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/money"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/provider"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/reference"
	"github.com/vibast-solutions/ms-go-checkout-payments/app/repository"
	"github.com/vibast-solutions/ms-go-checkout-payments/config"
)

const (
	defaultListLimit = int32(100)
	defaultBatchSize = int32(100)
)

type initializePaymentRequest interface {
	GetProvider() string
	GetOrderId() string
	GetAmountMinor() int64
	GetEmail() string
	GetPaymentMethod() string
	GetCurrency() string
}

type listTransactionsRequest interface {
	GetFrom() *time.Time
	GetTo() *time.Time
	GetStatus() string
	GetOrderId() string
	GetLimit() int32
	GetOffset() int32
}

type orderRepository interface {
	FindByID(ctx context.Context, id string) (*entity.Order, error)
	TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error)
}

type paymentRepository interface {
	Create(ctx context.Context, payment *entity.Payment) error
	TransitionStatus(ctx context.Context, payment *entity.Payment, from string) (bool, error)
	FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error)
	FindByProviderTransactionID(ctx context.Context, provider, providerTransactionID string) (*entity.Payment, error)
	ListPendingBefore(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error)
}

type paymentReferenceRepository interface {
	Create(ctx context.Context, ref *entity.PaymentReference) error
	FindByReference(ctx context.Context, reference string) (*entity.PaymentReference, error)
}

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.Transaction) error
	FindLatestByTransactionID(ctx context.Context, transactionID string) (*entity.Transaction, error)
	List(ctx context.Context, filter repository.TransactionFilter) ([]*entity.Transaction, error)
}

type refundRepository interface {
	Create(ctx context.Context, refund *entity.Refund) error
	SumOpenByPaymentID(ctx context.Context, paymentID uint64) (int64, error)
}

type notificationRepository interface {
	Create(ctx context.Context, n *entity.Notification) error
}

type mailMessageRepository interface {
	Create(ctx context.Context, msg *entity.MailMessage) error
	Update(ctx context.Context, msg *entity.MailMessage) error
	ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.MailMessage, error)
}

type providerWebhookRepository interface {
	Create(ctx context.Context, hook *entity.ProviderWebhook) error
}

// Repositories groups the stores the payment service depends on.
type Repositories struct {
	Orders        orderRepository
	Payments      paymentRepository
	References    paymentReferenceRepository
	Transactions  transactionRepository
	Refunds       refundRepository
	Notifications notificationRepository
	Mail          mailMessageRepository
	Webhooks      providerWebhookRepository
}

type PaymentService struct {
	orderRepo        orderRepository
	paymentRepo      paymentRepository
	referenceRepo    paymentReferenceRepository
	transactionRepo  transactionRepository
	refundRepo       refundRepository
	notificationRepo notificationRepository
	mailRepo         mailMessageRepository
	webhookRepo      providerWebhookRepository

	providerReg *provider.Registry
	locker      lock.Locker

	paymentsCfg config.PaymentsConfig
	frontendCfg config.FrontendConfig
	mailCfg     config.MailConfig
	mailHTTP    *http.Client

	logger logrus.FieldLogger
	now    func() time.Time
}

func NewPaymentService(
	repos Repositories,
	providerReg *provider.Registry,
	locker lock.Locker,
	paymentsCfg config.PaymentsConfig,
	frontendCfg config.FrontendConfig,
	mailCfg config.MailConfig,
) *PaymentService {
	if locker == nil {
		locker = lock.NewMemoryLocker()
	}
	timeout := mailCfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if strings.TrimSpace(paymentsCfg.DefaultCurrency) == "" {
		paymentsCfg.DefaultCurrency = "NGN"
	}

	return &PaymentService{
		orderRepo:        repos.Orders,
		paymentRepo:      repos.Payments,
		referenceRepo:    repos.References,
		transactionRepo:  repos.Transactions,
		refundRepo:       repos.Refunds,
		notificationRepo: repos.Notifications,
		mailRepo:         repos.Mail,
		webhookRepo:      repos.Webhooks,
		providerReg:      providerReg,
		locker:           locker,
		paymentsCfg:      paymentsCfg,
		frontendCfg:      frontendCfg,
		mailCfg:          mailCfg,
		mailHTTP:         &http.Client{Timeout: timeout},
		logger:           factory.NewModuleLogger("payments-service"),
		now:              func() time.Time { return time.Now().UTC() },
	}
}

// InitializePayment starts a payment attempt with the chosen provider. The
// reference is recorded before the provider is called and the Payment row is
// persisted PENDING before returning. The order itself is not modified.
func (s *PaymentService) InitializePayment(ctx context.Context, req initializePaymentRequest) (*entity.Payment, error) {
	orderID := strings.TrimSpace(req.GetOrderId())
	email := strings.TrimSpace(req.GetEmail())
	amount := req.GetAmountMinor()
	if orderID == "" || email == "" || amount <= 0 {
		return nil, ErrInvalidRequest
	}

	providerClient, err := s.enabledProvider(req.GetProvider())
	if err != nil {
		return nil, err
	}

	order, err := s.orderRepo.FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	if order.Status != entity.OrderStatusPending {
		return nil, ErrOrderNotPayable
	}
	if amount != order.TotalMinor {
		s.logger.WithFields(logrus.Fields{
			"order_id":        orderID,
			"requested_minor": amount,
			"order_minor":     order.TotalMinor,
		}).Warn("initialize amount does not match the order total")
		return nil, fmt.Errorf("%w: order total is %s", ErrAmountMismatch, money.FormatMajor(order.TotalMinor))
	}

	currency := strings.ToUpper(strings.TrimSpace(req.GetCurrency()))
	if currency == "" {
		currency = s.paymentsCfg.DefaultCurrency
	}
	method := strings.ToLower(strings.TrimSpace(req.GetPaymentMethod()))

	now := s.now()
	ref := reference.New(orderID, now)
	if err := s.referenceRepo.Create(ctx, &entity.PaymentReference{
		Reference: ref,
		OrderID:   orderID,
		Provider:  providerClient.Code(),
		CreatedAt: now,
	}); err != nil {
		return nil, err
	}

	out, err := providerClient.Initialize(ctx, &provider.InitializeInput{
		OrderID:       orderID,
		Reference:     ref,
		AmountMinor:   amount,
		Currency:      currency,
		Email:         email,
		PaymentMethod: method,
		CallbackURL:   s.callbackURL(providerClient.Code()),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"provider":  providerClient.Code(),
			"order_id":  orderID,
			"reference": ref,
		}).Warn("payment initialization failed")
		return nil, translateProviderError(err)
	}

	transactionID := ref
	if strings.TrimSpace(out.Reference) != "" {
		transactionID = out.Reference
	}
	checkoutURL := out.AuthorizationURL

	payment := &entity.Payment{
		OrderID:               orderID,
		AmountMinor:           amount,
		Currency:              currency,
		Provider:              providerClient.Code(),
		PaymentMethod:         method,
		TransactionID:         transactionID,
		ProviderTransactionID: out.ProviderTransactionID,
		CheckoutURL:           &checkoutURL,
		CustomerEmail:         email,
		Status:                entity.PaymentStatusPending,
		Metadata:              out.RawPayload,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := s.paymentRepo.Create(ctx, payment); err != nil {
		if errors.Is(err, repository.ErrPaymentAlreadyExists) {
			existing, findErr := s.paymentRepo.FindByTransactionID(ctx, transactionID)
			if findErr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.appendLedger(ctx, payment, entity.TransactionStatusPending)

	return payment, nil
}

func (s *PaymentService) GetPayment(ctx context.Context, transactionID string) (*entity.Payment, error) {
	transactionID = strings.TrimSpace(transactionID)
	if transactionID == "" {
		return nil, ErrInvalidRequest
	}

	payment, err := s.paymentRepo.FindByTransactionID(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ErrPaymentNotFound
	}
	return payment, nil
}

func (s *PaymentService) ListTransactions(ctx context.Context, req listTransactionsRequest) ([]*entity.Transaction, error) {
	limit := req.GetLimit()
	if limit <= 0 {
		limit = defaultListLimit
	}

	filter := repository.TransactionFilter{
		From:    req.GetFrom(),
		To:      req.GetTo(),
		Status:  strings.ToUpper(strings.TrimSpace(req.GetStatus())),
		OrderID: strings.TrimSpace(req.GetOrderId()),
		Limit:   limit,
		Offset:  req.GetOffset(),
	}

	return s.transactionRepo.List(ctx, filter)
}

// EnabledProviders lists the provider codes that have credentials configured.
func (s *PaymentService) EnabledProviders() []string {
	return s.providerReg.Enabled()
}

func (s *PaymentService) resolveProvider(code string) (provider.Provider, error) {
	providerClient, err := s.providerReg.Get(code)
	if err != nil {
		if errors.Is(err, provider.ErrProviderNotSupported) {
			return nil, ErrProviderUnsupported
		}
		return nil, err
	}
	return providerClient, nil
}

func (s *PaymentService) enabledProvider(code string) (provider.Provider, error) {
	providerClient, err := s.resolveProvider(code)
	if err != nil {
		return nil, err
	}
	if !providerClient.Enabled() {
		return nil, ErrProviderUnavailable
	}
	return providerClient, nil
}

func (s *PaymentService) callbackURL(providerCode string) string {
	base := strings.TrimRight(strings.TrimSpace(s.frontendCfg.BaseURL), "/")
	if base == "" {
		return ""
	}
	return base + "/payment/callback/" + providerCode
}

// appendLedger writes an audit row. Ledger failures are logged and never undo the
// state change they describe.
func (s *PaymentService) appendLedger(ctx context.Context, payment *entity.Payment, status string) {
	err := s.transactionRepo.Create(ctx, &entity.Transaction{
		TransactionID: payment.TransactionID,
		OrderID:       payment.OrderID,
		Provider:      payment.Provider,
		Status:        status,
		AmountMinor:   payment.AmountMinor,
		Currency:      payment.Currency,
		CreatedAt:     s.now(),
	})
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"transaction_id": payment.TransactionID,
			"status":         status,
		}).Error("failed to append transaction ledger row")
	}
}

func (s *PaymentService) batchSize() int32 {
	if s.paymentsCfg.JobBatchSize > 0 {
		return s.paymentsCfg.JobBatchSize
	}
	return defaultBatchSize
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	return value[:max]
}

package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

var (
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrPaymentAlreadyExists = errors.New("payment already exists")
)

const paymentColumns = `
	id, order_id, amount_minor, currency, provider, payment_method,
	transaction_id, provider_transaction_id, checkout_url, customer_email,
	status, metadata_json, created_at, updated_at
`

type PaymentRepository struct {
	db DBTX
}

func NewPaymentRepository(db DBTX) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, payment *entity.Payment) error {
	query := `
		INSERT INTO payments (
			order_id, amount_minor, currency, provider, payment_method,
			transaction_id, provider_transaction_id, checkout_url, customer_email,
			status, metadata_json, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.OrderID,
		payment.AmountMinor,
		payment.Currency,
		payment.Provider,
		payment.PaymentMethod,
		payment.TransactionID,
		nullableStringValue(payment.ProviderTransactionID),
		nullableStringValue(payment.CheckoutURL),
		payment.CustomerEmail,
		payment.Status,
		serializeMetadata(payment.Metadata),
		payment.CreatedAt,
		payment.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentAlreadyExists
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	payment.ID = uint64(id)
	return nil
}

// TransitionStatus applies a status change guarded by the current status, so
// concurrent completions collapse into a single winner.
func (r *PaymentRepository) TransitionStatus(ctx context.Context, payment *entity.Payment, from string) (bool, error) {
	query := `
		UPDATE payments SET
			status = ?,
			provider_transaction_id = COALESCE(?, provider_transaction_id),
			metadata_json = ?,
			updated_at = ?
		WHERE id = ? AND status = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		payment.Status,
		nullableStringValue(payment.ProviderTransactionID),
		serializeMetadata(payment.Metadata),
		payment.UpdatedAt,
		payment.ID,
		from,
	)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

func (r *PaymentRepository) FindByTransactionID(ctx context.Context, transactionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE transaction_id = ? LIMIT 1`
	return r.findOne(ctx, query, transactionID)
}

func (r *PaymentRepository) FindByProviderTransactionID(ctx context.Context, provider, providerTransactionID string) (*entity.Payment, error) {
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE provider = ? AND provider_transaction_id = ? LIMIT 1`
	return r.findOne(ctx, query, provider, providerTransactionID)
}

func (r *PaymentRepository) ListPendingBefore(ctx context.Context, before time.Time, limit int32) ([]*entity.Payment, error) {
	query := `
		SELECT ` + paymentColumns + `
		FROM payments
		WHERE status = ?
		  AND created_at <= ?
		ORDER BY updated_at ASC, id ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.PaymentStatusPending, before, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := make([]*entity.Payment, 0)
	for rows.Next() {
		item := &entity.Payment{}
		if err := scanPayment(rows, item); err != nil {
			return nil, err
		}
		payments = append(payments, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return payments, nil
}

func (r *PaymentRepository) findOne(ctx context.Context, query string, args ...interface{}) (*entity.Payment, error) {
	payment := &entity.Payment{}
	if err := scanPayment(r.db.QueryRowContext(ctx, query, args...), payment); err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, err
	}
	return payment, nil
}

func scanPayment(scan rowScanner, payment *entity.Payment) error {
	var providerTransactionID sql.NullString
	var checkoutURL sql.NullString
	var metadataJSON sql.NullString

	err := scan.Scan(
		&payment.ID,
		&payment.OrderID,
		&payment.AmountMinor,
		&payment.Currency,
		&payment.Provider,
		&payment.PaymentMethod,
		&payment.TransactionID,
		&providerTransactionID,
		&checkoutURL,
		&payment.CustomerEmail,
		&payment.Status,
		&metadataJSON,
		&payment.CreatedAt,
		&payment.UpdatedAt,
	)
	if err != nil {
		return err
	}

	payment.ProviderTransactionID = stringPtrFromNull(providerTransactionID)
	payment.CheckoutURL = stringPtrFromNull(checkoutURL)
	payment.Metadata = parseMetadata(metadataJSON)

	return nil
}

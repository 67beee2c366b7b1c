package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

type RefundRepository struct {
	db DBTX
}

func NewRefundRepository(db DBTX) *RefundRepository {
	return &RefundRepository{db: db}
}

func (r *RefundRepository) Create(ctx context.Context, refund *entity.Refund) error {
	query := `
		INSERT INTO refunds (payment_id, reference, amount_minor, currency, reason, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		refund.PaymentID,
		refund.Reference,
		refund.AmountMinor,
		refund.Currency,
		nullableStringValue(refund.Reason),
		refund.Status,
		refund.CreatedAt,
		refund.UpdatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	refund.ID = uint64(id)

	return nil
}

// SumOpenByPaymentID totals refunds that still count against the payment, i.e.
// everything not FAILED or REJECTED.
func (r *RefundRepository) SumOpenByPaymentID(ctx context.Context, paymentID uint64) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_minor), 0) FROM refunds WHERE payment_id = ? AND status IN (?, ?)`,
		paymentID, entity.RefundStatusPending, entity.RefundStatusCompleted,
	).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

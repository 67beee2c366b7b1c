package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

var ErrPaymentReferenceExists = errors.New("payment reference already exists")

type PaymentReferenceRepository struct {
	db DBTX
}

func NewPaymentReferenceRepository(db DBTX) *PaymentReferenceRepository {
	return &PaymentReferenceRepository{db: db}
}

func (r *PaymentReferenceRepository) Create(ctx context.Context, ref *entity.PaymentReference) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO payment_references (reference, order_id, provider, created_at) VALUES (?, ?, ?, ?)`,
		ref.Reference, ref.OrderID, ref.Provider, ref.CreatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrPaymentReferenceExists
		}
		return err
	}
	return nil
}

func (r *PaymentReferenceRepository) FindByReference(ctx context.Context, reference string) (*entity.PaymentReference, error) {
	ref := &entity.PaymentReference{}
	err := r.db.QueryRowContext(ctx,
		`SELECT reference, order_id, provider, created_at FROM payment_references WHERE reference = ?`,
		reference,
	).Scan(&ref.Reference, &ref.OrderID, &ref.Provider, &ref.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return ref, nil
}

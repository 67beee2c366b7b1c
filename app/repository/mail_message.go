package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

var (
	ErrMailAlreadyQueued = errors.New("mail already queued")
	ErrMailNotFound      = errors.New("mail message not found")
)

const mailMessageColumns = `
	id, order_id, kind, recipient, subject, body,
	delivery_status, delivery_attempts, delivery_next_at, delivery_last_error,
	created_at, updated_at
`

type MailMessageRepository struct {
	db DBTX
}

func NewMailMessageRepository(db DBTX) *MailMessageRepository {
	return &MailMessageRepository{db: db}
}

// Create queues a mail. A second mail of the same kind for the same order yields
// ErrMailAlreadyQueued.
func (r *MailMessageRepository) Create(ctx context.Context, msg *entity.MailMessage) error {
	query := `
		INSERT INTO mail_messages (
			order_id, kind, recipient, subject, body,
			delivery_status, delivery_attempts, delivery_next_at, delivery_last_error,
			created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		msg.OrderID,
		msg.Kind,
		msg.Recipient,
		msg.Subject,
		msg.Body,
		msg.DeliveryStatus,
		msg.DeliveryAttempts,
		nullableTimeValue(msg.DeliveryNextAt),
		nullableStringValue(msg.DeliveryLastErr),
		msg.CreatedAt,
		msg.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntryError(err) {
			return ErrMailAlreadyQueued
		}
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	msg.ID = uint64(id)

	return nil
}

func (r *MailMessageRepository) Update(ctx context.Context, msg *entity.MailMessage) error {
	query := `
		UPDATE mail_messages SET
			delivery_status = ?,
			delivery_attempts = ?,
			delivery_next_at = ?,
			delivery_last_error = ?,
			updated_at = ?
		WHERE id = ?
	`

	result, err := r.db.ExecContext(ctx, query,
		msg.DeliveryStatus,
		msg.DeliveryAttempts,
		nullableTimeValue(msg.DeliveryNextAt),
		nullableStringValue(msg.DeliveryLastErr),
		msg.UpdatedAt,
		msg.ID,
	)
	if err != nil {
		return err
	}

	ok, err := affectedOne(result)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMailNotFound
	}
	return nil
}

func (r *MailMessageRepository) ListDue(ctx context.Context, now time.Time, limit int32) ([]*entity.MailMessage, error) {
	query := `
		SELECT ` + mailMessageColumns + `
		FROM mail_messages
		WHERE delivery_status = ?
		  AND delivery_next_at IS NOT NULL
		  AND delivery_next_at <= ?
		ORDER BY delivery_next_at ASC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, entity.MailDeliveryPending, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]*entity.MailMessage, 0)
	for rows.Next() {
		item := &entity.MailMessage{}
		if err := scanMailMessage(rows, item); err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

func scanMailMessage(scan rowScanner, msg *entity.MailMessage) error {
	var nextAt sql.NullTime
	var lastErr sql.NullString

	err := scan.Scan(
		&msg.ID,
		&msg.OrderID,
		&msg.Kind,
		&msg.Recipient,
		&msg.Subject,
		&msg.Body,
		&msg.DeliveryStatus,
		&msg.DeliveryAttempts,
		&nextAt,
		&lastErr,
		&msg.CreatedAt,
		&msg.UpdatedAt,
	)
	if err != nil {
		return err
	}

	msg.DeliveryNextAt = timePtrFromNull(nextAt)
	msg.DeliveryLastErr = stringPtrFromNull(lastErr)
	return nil
}

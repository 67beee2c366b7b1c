package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

type NotificationRepository struct {
	db DBTX
}

func NewNotificationRepository(db DBTX) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) Create(ctx context.Context, n *entity.Notification) error {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO notifications (user_id, title, message, status, created_at) VALUES (?, ?, ?, ?, ?)`,
		n.UserID, n.Title, n.Message, n.Status, n.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	n.ID = uint64(id)

	return nil
}

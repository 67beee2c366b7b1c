package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// FindByID returns nil, nil when the order does not exist.
func (r *OrderRepository) FindByID(ctx context.Context, id string) (*entity.Order, error) {
	query := `
		SELECT id, user_id, status, total_minor, shipping_cost_minor,
			email, phone, shipping_address, billing_address, created_at, updated_at
		FROM orders
		WHERE id = ?
	`

	order := &entity.Order{}
	var userID sql.NullString
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&order.ID,
		&userID,
		&order.Status,
		&order.TotalMinor,
		&order.ShippingCostMinor,
		&order.Email,
		&order.Phone,
		&order.ShippingAddress,
		&order.BillingAddress,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	order.UserID = stringPtrFromNull(userID)

	items, err := r.findItems(ctx, id)
	if err != nil {
		return nil, err
	}
	order.Items = items

	return order, nil
}

// TransitionStatus moves the order from one status to another only if it still
// holds the expected status. It reports whether this call performed the change.
func (r *OrderRepository) TransitionStatus(ctx context.Context, id, from, to string, now time.Time) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, now, id, from,
	)
	if err != nil {
		return false, err
	}
	return affectedOne(result)
}

func (r *OrderRepository) findItems(ctx context.Context, orderID string) ([]entity.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price_minor, size, color
		FROM order_items
		WHERE order_id = ?
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]entity.OrderItem, 0)
	for rows.Next() {
		var item entity.OrderItem
		var size, color sql.NullString
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPriceMinor, &size, &color); err != nil {
			return nil, err
		}
		item.Size = stringPtrFromNull(size)
		item.Color = stringPtrFromNull(color)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}

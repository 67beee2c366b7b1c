package repository

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var testSchema = []string{
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NULL,
		status TEXT NOT NULL,
		total_minor INTEGER NOT NULL,
		shipping_cost_minor INTEGER NOT NULL,
		email TEXT NOT NULL,
		phone TEXT NOT NULL,
		shipping_address TEXT NOT NULL,
		billing_address TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE order_items (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		product_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price_minor INTEGER NOT NULL,
		size TEXT NULL,
		color TEXT NULL
	)`,
	`CREATE TABLE payments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		provider TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		transaction_id TEXT NOT NULL UNIQUE,
		provider_transaction_id TEXT NULL,
		checkout_url TEXT NULL,
		customer_email TEXT NOT NULL,
		status TEXT NOT NULL,
		metadata_json TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE payment_references (
		reference TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		transaction_id TEXT NOT NULL,
		order_id TEXT NOT NULL,
		provider TEXT NOT NULL,
		status TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE refunds (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		payment_id INTEGER NOT NULL,
		reference TEXT NOT NULL UNIQUE,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		reason TEXT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	)`,
	`CREATE TABLE notifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		status TEXT NOT NULL,
		created_at DATETIME NOT NULL
	)`,
	`CREATE TABLE mail_messages (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		order_id TEXT NOT NULL,
		kind TEXT NOT NULL,
		recipient TEXT NOT NULL,
		subject TEXT NOT NULL,
		body TEXT NOT NULL,
		delivery_status INTEGER NOT NULL,
		delivery_attempts INTEGER NOT NULL,
		delivery_next_at DATETIME NULL,
		delivery_last_error TEXT NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (order_id, kind)
	)`,
	`CREATE TABLE provider_webhooks (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider TEXT NOT NULL,
		event_type TEXT NOT NULL,
		reference TEXT NULL,
		signature TEXT NOT NULL,
		payload_json TEXT NOT NULL,
		status INTEGER NOT NULL,
		error TEXT NULL,
		created_at DATETIME NOT NULL
	)`,
}

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_pragma=foreign_keys(1)", t.Name())
	db, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	for _, stmt := range testSchema {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}

	return db
}

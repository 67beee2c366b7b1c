package repository

import (
	"context"

	"github.com/vibast-solutions/ms-go-checkout-payments/app/entity"
)

type ProviderWebhookRepository struct {
	db DBTX
}

func NewProviderWebhookRepository(db DBTX) *ProviderWebhookRepository {
	return &ProviderWebhookRepository{db: db}
}

func (r *ProviderWebhookRepository) Create(ctx context.Context, hook *entity.ProviderWebhook) error {
	query := `
		INSERT INTO provider_webhooks (provider, event_type, reference, signature, payload_json, status, error, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		hook.Provider,
		hook.EventType,
		nullableStringValue(hook.Reference),
		hook.Signature,
		hook.Payload,
		hook.Status,
		nullableStringValue(hook.Error),
		hook.CreatedAt,
	)
	if err != nil {
		return err
	}

	id, err := result.LastInsertId()
	if err != nil {
		return err
	}
	hook.ID = uint64(id)

	return nil
}

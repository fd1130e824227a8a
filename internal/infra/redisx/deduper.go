package redisx

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// webhookイベントIDの処理済み記録
type WebhookDeduper struct {
	rdb *redis.Client
}

func NewWebhookDeduper(rdb *redis.Client) *WebhookDeduper {
	return &WebhookDeduper{rdb: rdb}
}

func (d *WebhookDeduper) Seen(ctx context.Context, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	return Exists(ctx, d.rdb, DedupKey(ScopePaymentWebhook, eventID))
}

func (d *WebhookDeduper) Mark(ctx context.Context, eventID string) error {
	if eventID == "" {
		return nil
	}
	return d.rdb.Set(ctx, DedupKey(ScopePaymentWebhook, eventID), "1", TTLDedup).Err()
}

package redisx

import (
	"fmt"
	"time"
)

const (
	// 処理済みイベント: dedup:{scope}:{event_id}
	KeyDedup = "dedup:%s:%s"

	ScopePaymentWebhook = "payment-webhook"
)

var (
	TTLDedup = 48 * time.Hour
)

func DedupKey(scope string, id string) string {
	return fmt.Sprintf(KeyDedup, scope, id)
}

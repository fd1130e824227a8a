package usecase

import (
	"context"
	"time"
)

type Clock interface {
	Now() time.Time
}

// 注文入力の検証
type OrderValidator interface {
	ValidatePlaceOrder(ctx context.Context, in PlaceOrderInput) error
}

// commit後の副作用（通知・イベント送出）。
// 戻り値を持たないので、失敗しても注文の結果には影響しない。
type OrderHooks interface {
	OrderPlaced(ctx context.Context, o OrderOutput)
	OrderPaid(ctx context.Context, o OrderOutput)
	OrderCancelled(ctx context.Context, o OrderOutput)
}

// payment intentのmetadataに入れる注文IDのキー
const MetadataOrderID = "orderId"

type CreateIntentParams struct {
	AmountMinor    int64
	Currency       string
	Metadata       map[string]string
	IdempotencyKey string
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// gateway側のintentのステータス
const (
	IntentStatusSucceeded             = "succeeded"
	IntentStatusCanceled              = "canceled"
	IntentStatusRequiresPaymentMethod = "requires_payment_method"
)

// 外部決済サービス
type PaymentGateway interface {
	CreateIntent(ctx context.Context, in CreateIntentParams) (PaymentIntent, error)
	RetrieveIntent(ctx context.Context, id string) (PaymentIntent, error)
}

type PaymentEventType string

const (
	PaymentEventSucceeded PaymentEventType = "payment_intent.succeeded"
	PaymentEventFailed    PaymentEventType = "payment_intent.payment_failed"
	PaymentEventCanceled  PaymentEventType = "payment_intent.canceled"
)

// 署名検証済みのwebhookイベント
type PaymentEvent struct {
	ID       string
	Type     PaymentEventType
	IntentID string
}

// 署名検証はgateway側の責務
type WebhookVerifier interface {
	ParseEvent(payload []byte, signature string) (PaymentEvent, error)
}

// 処理済みwebhookイベントの記録（高速パス。正はDBの条件付きUPDATE）
type EventDeduper interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

type noopHooks struct{}

func (noopHooks) OrderPlaced(context.Context, OrderOutput)    {}
func (noopHooks) OrderPaid(context.Context, OrderOutput)      {}
func (noopHooks) OrderCancelled(context.Context, OrderOutput) {}

type noopDeduper struct{}

func (noopDeduper) Seen(context.Context, string) (bool, error) { return false, nil }
func (noopDeduper) Mark(context.Context, string) error         { return nil }

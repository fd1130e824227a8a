package notify

import (
	"context"

	"smartshop/internal/usecase"
)

// 注文ライフサイクルイベントの種類
const (
	EventOrderCreated    = "OrderCreated"
	EventOrderProcessing = "OrderProcessing"
	EventOrderCancelled  = "OrderCancelled"
)

// 顧客・管理者への通知。失敗は呼び出し側でログに残すだけ
type Notifier interface {
	SendConfirmation(ctx context.Context, o usecase.OrderOutput) error
	SendAdminAlert(ctx context.Context, o usecase.OrderOutput) error
}

type EventPublisher interface {
	PublishOrderEvent(ctx context.Context, eventType string, o usecase.OrderOutput) error
}

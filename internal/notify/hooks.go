package notify

import (
	"context"

	"smartshop/internal/usecase"
)

// usecase.OrderHooksの実装。全部Dispatcherに積むだけ
type OrderHooks struct {
	d      *Dispatcher
	n      Notifier
	events EventPublisher
}

// eventsはnilでもよい（Kafka未設定）
func NewOrderHooks(d *Dispatcher, n Notifier, events EventPublisher) *OrderHooks {
	return &OrderHooks{d: d, n: n, events: events}
}

func (h *OrderHooks) OrderPlaced(ctx context.Context, o usecase.OrderOutput) {
	_ = h.d.Submit(ctx, "confirmation", o.ID, func(ctx context.Context) error {
		return h.n.SendConfirmation(ctx, o)
	})
	_ = h.d.Submit(ctx, "admin_alert", o.ID, func(ctx context.Context) error {
		return h.n.SendAdminAlert(ctx, o)
	})
	h.publish(ctx, EventOrderCreated, o)
}

func (h *OrderHooks) OrderPaid(ctx context.Context, o usecase.OrderOutput) {
	_ = h.d.Submit(ctx, "confirmation", o.ID, func(ctx context.Context) error {
		return h.n.SendConfirmation(ctx, o)
	})
	h.publish(ctx, EventOrderProcessing, o)
}

func (h *OrderHooks) OrderCancelled(ctx context.Context, o usecase.OrderOutput) {
	h.publish(ctx, EventOrderCancelled, o)
}

func (h *OrderHooks) publish(ctx context.Context, eventType string, o usecase.OrderOutput) {
	if h.events == nil {
		return
	}
	_ = h.d.Submit(ctx, "event:"+eventType, o.ID, func(ctx context.Context) error {
		return h.events.PublishOrderEvent(ctx, eventType, o)
	})
}

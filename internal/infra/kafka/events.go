package kafka

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"smartshop/internal/usecase"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order_code
	Payload       json.RawMessage `json:"payload"`
}

type OrderItemPayload struct {
	ProductID int64  `json:"product_id"`
	Quantity  int64  `json:"quantity"`
	Price     string `json:"price"`
}

type OrderPayload struct {
	OrderID   int64              `json:"order_id"`
	OrderCode string             `json:"order_code"`
	UserID    int64              `json:"user_id"`
	Status    string             `json:"status"`
	Total     string             `json:"total"`
	Items     []OrderItemPayload `json:"items"`
}

// 注文のライフサイクルイベントをKafkaに流す
type OrderEventPublisher struct {
	p        *Producer
	producer string
	now      func() time.Time
}

func NewOrderEventPublisher(p *Producer, producer string) *OrderEventPublisher {
	return &OrderEventPublisher{p: p, producer: producer, now: time.Now}
}

func (e *OrderEventPublisher) PublishOrderEvent(ctx context.Context, eventType string, o usecase.OrderOutput) error {
	items := make([]OrderItemPayload, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, OrderItemPayload{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			Price:     it.Price.StringFixed(2),
		})
	}

	payload, err := json.Marshal(OrderPayload{
		OrderID:   o.ID,
		OrderCode: o.OrderCode,
		UserID:    o.UserID,
		Status:    o.Status,
		Total:     o.Total.StringFixed(2),
		Items:     items,
	})
	if err != nil {
		return err
	}

	b, err := json.Marshal(Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    e.now().UTC(),
		Producer:      e.producer,
		CorrelationID: o.OrderCode,
		Payload:       payload,
	})
	if err != nil {
		return err
	}

	//同じ注文のイベントは同じパーティションへ
	e.p.Publish([]byte(strconv.FormatInt(o.ID, 10)), b,
		kafka.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafka.Header{Key: "x-event-version", Value: []byte("1")},
	)
	return nil
}

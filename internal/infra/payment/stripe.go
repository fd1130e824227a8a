package payment

import (
	"context"
	"errors"
	"fmt"

	"smartshop/internal/usecase"

	"github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

var ErrWebhookNotConfigured = errors.New("webhook secret is not configured")

// Stripeのpayment intentを使うgateway
type StripeGateway struct {
	api           *client.API
	webhookSecret string
}

// backendsがnilなら本番のAPIを使う
func NewStripeGateway(secretKey string, webhookSecret string, backends *stripe.Backends) *StripeGateway {
	return &StripeGateway{
		api:           client.New(secretKey, backends),
		webhookSecret: webhookSecret,
	}
}

func (g *StripeGateway) CreateIntent(ctx context.Context, in usecase.CreateIntentParams) (usecase.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(in.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return usecase.PaymentIntent{}, describe(err)
	}
	return toIntent(pi), nil
}

func (g *StripeGateway) RetrieveIntent(ctx context.Context, id string) (usecase.PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(id, params)
	if err != nil {
		return usecase.PaymentIntent{}, describe(err)
	}
	return toIntent(pi), nil
}

// Stripe-Signatureを検証してイベントを取り出す
func (g *StripeGateway) ParseEvent(payload []byte, signature string) (usecase.PaymentEvent, error) {
	if g.webhookSecret == "" {
		return usecase.PaymentEvent{}, ErrWebhookNotConfigured
	}

	ev, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return usecase.PaymentEvent{}, err
	}

	out := usecase.PaymentEvent{
		ID:   ev.ID,
		Type: usecase.PaymentEventType(ev.Type),
	}
	if ev.Data != nil {
		if id, ok := ev.Data.Object["id"].(string); ok {
			out.IntentID = id
		}
	}
	return out, nil
}

func toIntent(pi *stripe.PaymentIntent) usecase.PaymentIntent {
	return usecase.PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}

// APIエラーはメッセージだけ残す（レスポンス全文は出さない）
func describe(err error) error {
	var se *stripe.Error
	if errors.As(err, &se) && se.Msg != "" {
		return fmt.Errorf("stripe: %s", se.Msg)
	}
	return fmt.Errorf("stripe: %w", err)
}

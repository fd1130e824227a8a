package notify

import (
	"context"

	"smartshop/internal/usecase"

	"github.com/rs/zerolog"
)

// SMTP未設定のときの代わり。送ったことにしてログだけ残す
type LogNotifier struct {
	log zerolog.Logger
}

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log}
}

func (n *LogNotifier) SendConfirmation(ctx context.Context, o usecase.OrderOutput) error {
	n.log.Info().
		Int64("order_id", o.ID).
		Str("order_code", o.OrderCode).
		Str("status", o.Status).
		Str("to", o.DeliveryEmail).
		Msg("mail disabled, confirmation skipped")
	return nil
}

func (n *LogNotifier) SendAdminAlert(ctx context.Context, o usecase.OrderOutput) error {
	n.log.Info().
		Int64("order_id", o.ID).
		Str("order_code", o.OrderCode).
		Msg("mail disabled, admin alert skipped")
	return nil
}

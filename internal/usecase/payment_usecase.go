package usecase

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"smartshop/internal/domain/model"
	"smartshop/internal/domain/money"
	repo "smartshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 決済結果の反映結果。no-opもエラーではない
type ReconcileResult string

const (
	ReconcileApplied ReconcileResult = "applied"
	//既に同じステータス（重複イベント）
	ReconcileDuplicate ReconcileResult = "duplicate"
	//PENDING以外からは動かさない
	ReconcileTerminalState ReconcileResult = "terminal_state"
	ReconcileNoOrderID     ReconcileResult = "no_order_metadata"
	ReconcileOrderNotFound ReconcileResult = "order_not_found"
	//成功通知だがintentがsucceededではない
	ReconcileNotSucceeded ReconcileResult = "intent_not_succeeded"
	//失敗通知だがintentはまだ支払われうる/支払済み
	ReconcileIntentNotFailed ReconcileResult = "intent_not_failed"
	//取消済みの注文に入金があった
	ReconcilePaidOnCancelled ReconcileResult = "paid_on_cancelled_order"
	//対象外のwebhookイベント
	ReconcileIgnored ReconcileResult = "ignored"
)

type PaymentUsecase struct {
	tx              repo.TransactionManager
	gateway         PaymentGateway
	webhooks        WebhookVerifier
	dedup           EventDeduper
	hooks           OrderHooks
	clock           Clock
	log             zerolog.Logger
	defaultCurrency string
}

func NewPaymentUsecase(
	tx repo.TransactionManager,
	gateway PaymentGateway,
	webhooks WebhookVerifier,
	dedup EventDeduper,
	hooks OrderHooks,
	clock Clock,
	log zerolog.Logger,
	defaultCurrency string,
) *PaymentUsecase {
	if dedup == nil {
		dedup = noopDeduper{}
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	defaultCurrency = money.NormalizeCurrency(defaultCurrency)
	if defaultCurrency == "" {
		defaultCurrency = "ron"
	}
	return &PaymentUsecase{
		tx:              tx,
		gateway:         gateway,
		webhooks:        webhooks,
		dedup:           dedup,
		hooks:           hooks,
		clock:           clock,
		log:             log,
		defaultCurrency: defaultCurrency,
	}
}

type CreatePaymentIntentInput struct {
	Amount   *decimal.Decimal
	Currency string
	OrderID  *int64
	//X-Idempotency-Key。空ならgatewayに渡さない
	IdempotencyKey string
}

type PaymentIntentOutput struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

func (u *PaymentUsecase) CreatePaymentIntent(ctx context.Context, userID int64, in CreatePaymentIntentInput) (PaymentIntentOutput, error) {
	if userID <= 0 {
		return PaymentIntentOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	currency := money.NormalizeCurrency(in.Currency)
	if currency == "" {
		currency = u.defaultCurrency
	}
	if len(currency) != 3 {
		return PaymentIntentOutput{}, validationError("invalid currency")
	}

	metadata := map[string]string{}
	var amount decimal.Decimal

	if in.OrderID != nil {
		o, err := u.findOwnedOrder(ctx, userID, *in.OrderID)
		if err != nil {
			return PaymentIntentOutput{}, err
		}
		if o.Status != model.OrderStatusPending {
			return PaymentIntentOutput{}, validationError("order is not awaiting payment")
		}
		if in.Amount != nil && !in.Amount.Equal(o.Total) {
			return PaymentIntentOutput{}, validationError("amount does not match order total")
		}
		amount = o.Total
		metadata[MetadataOrderID] = strconv.FormatInt(o.ID, 10)
	} else {
		if in.Amount == nil {
			return PaymentIntentOutput{}, validationError("amount is required")
		}
		amount = *in.Amount
	}

	if !amount.IsPositive() {
		return PaymentIntentOutput{}, validationError("amount must be positive")
	}
	minor, err := money.ToMinorUnits(amount, currency)
	if err != nil {
		return PaymentIntentOutput{}, validationError(err.Error())
	}

	pi, err := u.gateway.CreateIntent(ctx, CreateIntentParams{
		AmountMinor:    minor,
		Currency:       currency,
		Metadata:       metadata,
		IdempotencyKey: strings.TrimSpace(in.IdempotencyKey),
	})
	if err != nil {
		u.log.Error().Err(err).Int64("user_id", userID).Int64("amount_minor", minor).Msg("create payment intent failed")
		return PaymentIntentOutput{}, gatewayError(http.StatusBadRequest, err)
	}

	u.log.Info().
		Str("payment_intent_id", pi.ID).
		Int64("amount_minor", minor).
		Str("currency", currency).
		Str("order_id", metadata[MetadataOrderID]).
		Msg("payment intent created")

	return PaymentIntentOutput{ClientSecret: pi.ClientSecret, PaymentIntentID: pi.ID}, nil
}

func (u *PaymentUsecase) findOwnedOrder(ctx context.Context, userID int64, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, validationError("invalid order id")
	}

	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		found, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("not found")
		}
		if err != nil {
			return dbError()
		}
		if found.UserID != userID {
			return notFoundError("not found")
		}
		o = found
		return nil
	})
	return o, err
}

// 決済成功: PENDING -> PROCESSING。注文の持ち主だけが呼べる
func (u *PaymentUsecase) HandlePaymentSuccess(ctx context.Context, userID int64, intentID string) (ReconcileResult, error) {
	if userID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.reconcile(ctx, intentID, model.OrderStatusProcessing, userID)
}

// 決済失敗: PENDING -> CANCELLED。注文の持ち主だけが呼べる
func (u *PaymentUsecase) HandlePaymentFailure(ctx context.Context, userID int64, intentID string) (ReconcileResult, error) {
	if userID <= 0 {
		return "", NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	return u.reconcile(ctx, intentID, model.OrderStatusCancelled, userID)
}

// 運用コマンドからの再反映。持ち主チェックはしない
func (u *PaymentUsecase) ReplayPayment(ctx context.Context, intentID string, succeeded bool) (ReconcileResult, error) {
	target := model.OrderStatusCancelled
	if succeeded {
		target = model.OrderStatusProcessing
	}
	return u.reconcile(ctx, intentID, target, 0)
}

// 署名付きwebhook。同じイベントIDは一度だけ処理する
func (u *PaymentUsecase) HandleWebhook(ctx context.Context, payload []byte, signature string) (ReconcileResult, error) {
	ev, err := u.webhooks.ParseEvent(payload, signature)
	if err != nil {
		u.log.Warn().Err(err).Msg("webhook signature verification failed")
		return "", validationError("invalid webhook signature")
	}

	logger := u.log.With().Str("event_id", ev.ID).Str("event_type", string(ev.Type)).Logger()

	var target model.OrderStatus
	switch ev.Type {
	case PaymentEventSucceeded:
		target = model.OrderStatusProcessing
	case PaymentEventCanceled:
		target = model.OrderStatusCancelled
	case PaymentEventFailed:
		//1回の失敗ではintentは終わらない（別の手段で払い直せる）
		logger.Info().Str("payment_intent_id", ev.IntentID).Msg("payment attempt failed, order stays pending")
		return ReconcileIgnored, nil
	default:
		logger.Debug().Msg("webhook event ignored")
		return ReconcileIgnored, nil
	}

	//Redisが落ちていてもDBの条件付きUPDATEで二重反映は防げる
	seen, err := u.dedup.Seen(ctx, ev.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("dedup lookup failed")
	}
	if seen {
		logger.Info().Msg("webhook event already processed")
		return ReconcileDuplicate, nil
	}

	res, err := u.reconcile(ctx, ev.IntentID, target, 0)
	if err != nil {
		return "", err
	}

	if err := u.dedup.Mark(ctx, ev.ID); err != nil {
		logger.Warn().Err(err).Msg("dedup mark failed")
	}
	return res, nil
}

// 取消してよいintentの状態（まだ支払われていない）
func intentCancellable(status string) bool {
	return status == IntentStatusCanceled || status == IntentStatusRequiresPaymentMethod
}

// ownerIDが0なら持ち主チェックをしない（webhook・運用コマンド）
func (u *PaymentUsecase) reconcile(ctx context.Context, intentID string, target model.OrderStatus, ownerID int64) (ReconcileResult, error) {
	intentID = strings.TrimSpace(intentID)
	if intentID == "" {
		return "", validationError("payment intent id is required")
	}

	logger := u.log.With().
		Str("payment_intent_id", intentID).
		Str("target_status", string(target)).
		Logger()

	pi, err := u.gateway.RetrieveIntent(ctx, intentID)
	if err != nil {
		//送り手に再送させるため5xxで返す
		logger.Error().Err(err).Msg("retrieve payment intent failed")
		return "", gatewayError(http.StatusBadGateway, err)
	}

	orderID, err := strconv.ParseInt(pi.Metadata[MetadataOrderID], 10, 64)
	if err != nil || orderID <= 0 {
		logger.Warn().Msg("payment intent has no order id")
		return ReconcileNoOrderID, nil
	}
	logger = logger.With().Int64("order_id", orderID).Str("intent_status", pi.Status).Logger()

	now := u.clock.Now()
	result := ReconcileApplied
	var current model.OrderStatus
	var out OrderOutput

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			if ownerID > 0 {
				return notFoundError("not found")
			}
			result = ReconcileOrderNotFound
			return nil
		}
		if err != nil {
			return err
		}
		//他人の注文は存在しない扱い
		if ownerID > 0 && o.UserID != ownerID {
			return notFoundError("not found")
		}
		current = o.Status

		//gatewayの状態と食い違う通知は反映しない
		if target == model.OrderStatusProcessing && pi.Status != IntentStatusSucceeded {
			result = ReconcileNotSucceeded
			return nil
		}
		if target == model.OrderStatusCancelled && !intentCancellable(pi.Status) {
			result = ReconcileIntentNotFailed
			return nil
		}

		if o.Status == target {
			result = ReconcileDuplicate
			return nil
		}
		if o.Status == model.OrderStatusCancelled && target == model.OrderStatusProcessing {
			result = ReconcilePaidOnCancelled
			return nil
		}
		if o.Status != model.OrderStatusPending {
			result = ReconcileTerminalState
			return nil
		}

		applied, err := r.Orders().TransitionStatus(ctx, orderID, model.OrderStatusPending, target)
		if err != nil {
			return err
		}
		if !applied {
			//並行する別イベントが先に反映した
			result = ReconcileDuplicate
			return nil
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    model.AuditActorPaymentGateway,
			ActorRef:     intentID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(model.OrderStatusPending),
			AfterJSON:    statusJSON(target),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		o.Status = target
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return "", err
		}
		logger.Error().Err(err).Msg("reconcile payment failed")
		return "", dbError()
	}

	switch result {
	case ReconcileApplied:
		logger.Info().Str("order_code", out.OrderCode).Msg("order status updated from payment")
	case ReconcileOrderNotFound:
		logger.Warn().Msg("order for payment intent not found")
	case ReconcilePaidOnCancelled:
		//返金など人の対応が要る
		logger.Error().Msg("payment succeeded for a cancelled order")
	case ReconcileNotSucceeded, ReconcileIntentNotFailed:
		logger.Warn().Str("current_status", string(current)).Msg("payment event does not match intent status")
	default:
		logger.Info().Str("result", string(result)).Str("current_status", string(current)).Msg("payment event had no effect")
	}

	if result != ReconcileApplied {
		return result, nil
	}

	u.warnOnAmountMismatch(logger, pi, out)

	if target == model.OrderStatusProcessing {
		u.hooks.OrderPaid(ctx, out)
	} else {
		u.hooks.OrderCancelled(ctx, out)
	}
	return result, nil
}

// 金額の不一致は記録だけして止めない
func (u *PaymentUsecase) warnOnAmountMismatch(logger zerolog.Logger, pi PaymentIntent, o OrderOutput) {
	if pi.AmountMinor == 0 || pi.Currency == "" {
		return
	}
	expected, err := money.ToMinorUnits(o.Total, pi.Currency)
	if err != nil || expected != pi.AmountMinor {
		logger.Warn().
			Int64("intent_amount_minor", pi.AmountMinor).
			Str("order_total", o.Total.StringFixed(2)).
			Str("currency", pi.Currency).
			Msg("payment amount differs from order total")
	}
}

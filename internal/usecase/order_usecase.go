package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"smartshop/internal/domain/model"
	repo "smartshop/internal/repository"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// 明細の単価をどこから取るか
type PriceSource string

const (
	//クライアントが送った価格をそのまま凍結する（既定）
	PriceSourceSubmitted PriceSource = "submitted"
	//注文時点の商品マスタの価格を使う
	PriceSourceCatalog PriceSource = "catalog"
)

type OrderOptions struct {
	//注文コードの日付を決めるタイムゾーン
	Location        *time.Location
	PriceSource     PriceSource
	MaxCodeAttempts int
}

type OrderUsecase struct {
	tx        repo.TransactionManager
	validator OrderValidator
	hooks     OrderHooks
	clock     Clock
	log       zerolog.Logger
	opts      OrderOptions
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	validator OrderValidator,
	hooks OrderHooks,
	clock Clock,
	log zerolog.Logger,
	opts OrderOptions,
) *OrderUsecase {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.PriceSource == "" {
		opts.PriceSource = PriceSourceSubmitted
	}
	if opts.MaxCodeAttempts <= 0 {
		opts.MaxCodeAttempts = 3
	}
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &OrderUsecase{
		tx:        tx,
		validator: validator,
		hooks:     hooks,
		clock:     clock,
		log:       log,
		opts:      opts,
	}
}

type PlaceOrderItemInput struct {
	ProductID int64
	Quantity  int64
	Price     decimal.Decimal
}

type DeliveryInput struct {
	Name       string
	Email      string
	Phone      string
	Address    string
	City       string
	County     string
	PostalCode string
	Country    string
	Notes      string
}

type PlaceOrderInput struct {
	Items []PlaceOrderItemInput
	//任意。送られてきた場合は明細の合計と一致しなければならない
	Total    *decimal.Decimal
	Delivery DeliveryInput
}

type OrderItemOutput struct {
	ID        int64           `json:"id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"product_name"`
	Quantity  int64           `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Subtotal  decimal.Decimal `json:"subtotal"`
}

type OrderOutput struct {
	ID        int64           `json:"id"`
	OrderCode string          `json:"order_code"`
	UserID    int64           `json:"user_id"`
	Status    string          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	CreatedAt time.Time       `json:"created_at"`

	DeliveryName       string `json:"delivery_name"`
	DeliveryEmail      string `json:"delivery_email"`
	DeliveryPhone      string `json:"delivery_phone"`
	DeliveryAddress    string `json:"delivery_address"`
	DeliveryCity       string `json:"delivery_city"`
	DeliveryCounty     string `json:"delivery_county"`
	DeliveryPostalCode string `json:"delivery_postal_code"`
	DeliveryCountry    string `json:"delivery_country"`
	DeliveryNotes      string `json:"delivery_notes"`

	Items []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, userID int64, in PlaceOrderInput) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if err := u.validator.ValidatePlaceOrder(ctx, in); err != nil {
		return OrderOutput{}, validationError(err.Error())
	}

	now := u.clock.Now()

	//採番が衝突したらトランザクションごとやり直す
	var out OrderOutput
	var err error
	for attempt := 1; attempt <= u.opts.MaxCodeAttempts; attempt++ {
		out, err = u.placeOnce(ctx, userID, in, now)
		if !errors.Is(err, repo.ErrDuplicateOrderCode) {
			break
		}
		u.log.Warn().Err(err).Int("attempt", attempt).Msg("order code conflict")
	}

	if errors.Is(err, repo.ErrDuplicateOrderCode) {
		return OrderOutput{}, NewHTTPError(http.StatusConflict, "order code conflict, retry later")
	}
	if err != nil {
		if _, ok := AsHTTPError(err); ok {
			return OrderOutput{}, err
		}
		u.log.Error().Err(err).Int64("user_id", userID).Msg("place order failed")
		return OrderOutput{}, dbError()
	}

	u.log.Info().
		Int64("order_id", out.ID).
		Str("order_code", out.OrderCode).
		Int64("user_id", userID).
		Str("total", out.Total.StringFixed(2)).
		Msg("order created")

	u.hooks.OrderPlaced(ctx, out)
	return out, nil
}

func (u *OrderUsecase) placeOnce(ctx context.Context, userID int64, in PlaceOrderInput, now time.Time) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		items := make([]model.OrderItem, 0, len(in.Items))
		total := decimal.Zero

		for i, line := range in.Items {
			p, err := r.Products().FindByID(ctx, line.ProductID)
			if errors.Is(err, repo.ErrNotFound) {
				return notFoundError(fmt.Sprintf("product %d not found", line.ProductID))
			}
			if err != nil {
				return err
			}

			price := line.Price
			if u.opts.PriceSource == PriceSourceCatalog {
				price = p.Price
			}

			//スナップショット
			item := model.OrderItem{
				Position:            i,
				ProductID:           p.ID,
				ProductNameSnapshot: p.Name,
				UnitPrice:           price,
				Quantity:            line.Quantity,
				CreatedAt:           now,
			}
			items = append(items, item)
			total = total.Add(item.Subtotal())
		}

		if in.Total != nil && !in.Total.Equal(total) {
			return validationError("total does not match items")
		}

		//採番（同じトランザクション内）
		day := now.In(u.opts.Location)
		seq, err := r.OrderCodes().Next(ctx, day.Format(orderCodeDayLayout), OrderCodePrefix(day))
		if err != nil {
			return err
		}

		d := normalizeDelivery(in.Delivery)
		order := model.Order{
			OrderCode:          FormatOrderCode(day, seq),
			UserID:             userID,
			Status:             model.OrderStatusPending,
			Total:              total,
			DeliveryName:       d.Name,
			DeliveryEmail:      d.Email,
			DeliveryPhone:      d.Phone,
			DeliveryAddress:    d.Address,
			DeliveryCity:       d.City,
			DeliveryCounty:     d.County,
			DeliveryPostalCode: d.PostalCode,
			DeliveryCountry:    d.Country,
			DeliveryNotes:      d.Notes,
			CreatedAt:          now,
			UpdatedAt:          now,
		}

		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			return err
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, items); err != nil {
			return err
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    model.AuditActorUser,
			ActorUserID:  &userID,
			Action:       model.AuditActionCreateOrder,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			AfterJSON:    statusJSON(order.Status),
			CreatedAt:    now,
		}); err != nil {
			return err
		}

		out = toOrderOutput(order, items)
		return nil
	})

	return out, err
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, userID int64) ([]OrderOutput, error) {
	if userID <= 0 {
		return []OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}

	//ページングでまずは固定で取る
	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByUserID(ctx, userID, 1, 50)
		if err != nil {
			return dbError()
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return dbError()
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})

	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) GetMyOrderDetail(ctx context.Context, userID int64, orderID int64) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return OrderOutput{}, validationError("invalid id")
	}

	return u.getMine(ctx, userID, func(r repo.TxRepos) (model.Order, error) {
		return r.Orders().FindByID(ctx, orderID)
	})
}

func (u *OrderUsecase) GetMyOrderByCode(ctx context.Context, userID int64, code string) (OrderOutput, error) {
	if userID <= 0 {
		return OrderOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return OrderOutput{}, validationError("invalid order code")
	}

	return u.getMine(ctx, userID, func(r repo.TxRepos) (model.Order, error) {
		return r.Orders().FindByOrderCode(ctx, code)
	})
}

func (u *OrderUsecase) getMine(ctx context.Context, userID int64, find func(r repo.TxRepos) (model.Order, error)) (OrderOutput, error) {
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := find(r)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("not found")
		}
		if err != nil {
			return dbError()
		}
		if o.UserID != userID {
			//他人の注文は「存在しない扱い」にする
			return notFoundError("not found")
		}

		items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
		if err != nil {
			return dbError()
		}

		out = toOrderOutput(o, items)
		return nil
	})

	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func normalizeDelivery(d DeliveryInput) DeliveryInput {
	return DeliveryInput{
		Name:       strings.TrimSpace(d.Name),
		Email:      strings.TrimSpace(d.Email),
		Phone:      strings.TrimSpace(d.Phone),
		Address:    strings.TrimSpace(d.Address),
		City:       strings.TrimSpace(d.City),
		County:     strings.TrimSpace(d.County),
		PostalCode: strings.TrimSpace(d.PostalCode),
		Country:    strings.TrimSpace(d.Country),
		Notes:      strings.TrimSpace(d.Notes),
	}
}

func statusJSON(s model.OrderStatus) string {
	return `{"status":"` + string(s) + `"}`
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			ID:        it.ID,
			ProductID: it.ProductID,
			Name:      it.ProductNameSnapshot,
			Quantity:  it.Quantity,
			Price:     it.UnitPrice,
			Subtotal:  it.Subtotal(),
		})
	}

	return OrderOutput{
		ID:                 o.ID,
		OrderCode:          o.OrderCode,
		UserID:             o.UserID,
		Status:             string(o.Status),
		Total:              o.Total,
		CreatedAt:          o.CreatedAt,
		DeliveryName:       o.DeliveryName,
		DeliveryEmail:      o.DeliveryEmail,
		DeliveryPhone:      o.DeliveryPhone,
		DeliveryAddress:    o.DeliveryAddress,
		DeliveryCity:       o.DeliveryCity,
		DeliveryCounty:     o.DeliveryCounty,
		DeliveryPostalCode: o.DeliveryPostalCode,
		DeliveryCountry:    o.DeliveryCountry,
		DeliveryNotes:      o.DeliveryNotes,
		Items:              outItems,
	}
}

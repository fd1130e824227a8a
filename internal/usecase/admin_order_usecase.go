package usecase

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"smartshop/internal/domain/model"
	repo "smartshop/internal/repository"

	"github.com/rs/zerolog"
)

type AdminOrderUsecase struct {
	tx    repo.TransactionManager
	hooks OrderHooks
	clock Clock
	log   zerolog.Logger
}

func NewAdminOrderUsecase(tx repo.TransactionManager, hooks OrderHooks, clock Clock, log zerolog.Logger) *AdminOrderUsecase {
	if hooks == nil {
		hooks = noopHooks{}
	}
	return &AdminOrderUsecase{tx: tx, hooks: hooks, clock: clock, log: log}
}

type AdminUpdateOrderStatusInput struct {
	Status string
}

// 注文一覧
func (u *AdminOrderUsecase) List(ctx context.Context, f repo.AdminOrderListFilter) ([]OrderOutput, error) {
	// page/limitの最低限チェック
	if f.Page < 1 {
		return []OrderOutput{}, validationError("invalid page")
	}
	if f.Limit < 1 || f.Limit > 100 {
		return []OrderOutput{}, validationError("invalid limit")
	}
	if f.Status != "" {
		if _, ok := model.ParseOrderStatus(f.Status); !ok {
			return []OrderOutput{}, validationError("invalid status")
		}
	}

	var outs []OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListAdmin(ctx, f)
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

// 注文の監査履歴（古い順）
func (u *AdminOrderUsecase) History(ctx context.Context, orderID int64) ([]model.AuditLog, error) {
	if orderID <= 0 {
		return []model.AuditLog{}, validationError("invalid id")
	}

	var logs []model.AuditLog

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		if _, err := r.Orders().FindByID(ctx, orderID); err != nil {
			if errors.Is(err, repo.ErrNotFound) {
				return notFoundError("not found")
			}
			return dbError()
		}

		rt := model.AuditResourceOrder
		found, err := r.AuditLogs().List(ctx, repo.AuditLogFilter{
			ResourceType: &rt,
			ResourceID:   &orderID,
			Limit:        100,
		})
		if err != nil {
			return dbError()
		}
		logs = found
		return nil
	})

	if err != nil {
		return []model.AuditLog{}, err
	}
	return logs, nil
}

// ステータス更新。PROCESSINGへは決済イベント経由でしか進めない
func (u *AdminOrderUsecase) UpdateStatus(ctx context.Context, actorAdminUserID int64, orderID int64, in AdminUpdateOrderStatusInput) error {
	if actorAdminUserID <= 0 {
		return NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if orderID <= 0 {
		return validationError("invalid id")
	}

	newStatus, ok := model.ParseOrderStatus(strings.TrimSpace(in.Status))
	if !ok {
		return validationError("invalid status")
	}

	now := u.clock.Now()
	var changed bool
	var out OrderOutput

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return notFoundError("not found")
		}
		if err != nil {
			return dbError()
		}

		// すでに同じなら何もしない（200）
		if o.Status == newStatus {
			return nil
		}
		if newStatus == model.OrderStatusProcessing || !model.CanTransition(o.Status, newStatus) {
			return validationError("cannot change " + string(o.Status) + " order to " + string(newStatus))
		}

		applied, err := r.Orders().TransitionStatus(ctx, orderID, o.Status, newStatus)
		if err != nil {
			return dbError()
		}
		if !applied {
			//読んでから更新するまでの間に決済イベントが先に反映された
			return NewHTTPError(http.StatusConflict, "order status changed concurrently")
		}

		if err := r.AuditLogs().Create(ctx, model.AuditLog{
			ActorType:    model.AuditActorAdmin,
			ActorUserID:  &actorAdminUserID,
			Action:       model.AuditActionUpdateOrderStatus,
			ResourceType: model.AuditResourceOrder,
			ResourceID:   orderID,
			BeforeJSON:   statusJSON(o.Status),
			AfterJSON:    statusJSON(newStatus),
			CreatedAt:    now,
		}); err != nil {
			return dbError()
		}

		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return dbError()
		}
		o.Status = newStatus
		out = toOrderOutput(o, items)
		changed = true
		return nil
	})
	if err != nil {
		return err
	}

	if changed {
		u.log.Info().
			Int64("order_id", orderID).
			Int64("admin_user_id", actorAdminUserID).
			Str("status", string(newStatus)).
			Msg("order status updated")
		if newStatus == model.OrderStatusCancelled {
			u.hooks.OrderCancelled(ctx, out)
		}
	}
	return nil
}

// 期間パラメータ。handlerで使う
func ParseDateTimeRFC3339(s string) (*time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, false
	}
	return &t, true
}

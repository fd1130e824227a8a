package repository

import (
	"context"

	"smartshop/internal/domain/model"
)

type OrderItemRepository interface {
	CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error
	//カートの並び順で返す
	ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error)
}

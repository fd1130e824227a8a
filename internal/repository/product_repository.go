package repository

import (
	"context"
	"errors"

	"smartshop/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

// 注文確定時の商品解決だけを約束。
type ProductRepository interface {
	FindByID(ctx context.Context, id int64) (model.Product, error)
}

package repository

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type OrderCodeSequenceGormRepository struct {
	db *gorm.DB
}

func NewOrderCodeSequenceGormRepository(db *gorm.DB) *OrderCodeSequenceGormRepository {
	return &OrderCodeSequenceGormRepository{db: db}
}

// 初回は既存注文の件数から始め、以降は行ロック付きでインクリメントする。
// 同じトランザクションで注文をINSERTするので、commitされなかった番号は再利用される。
const nextOrderCodeSQL = `
INSERT INTO order_code_sequences (day, last_value, updated_at)
SELECT ?, COUNT(*) + 1, ? FROM orders WHERE order_code LIKE ?
ON CONFLICT (day) DO UPDATE
SET last_value = order_code_sequences.last_value + 1,
    updated_at = EXCLUDED.updated_at
RETURNING last_value`

func (r *OrderCodeSequenceGormRepository) Next(ctx context.Context, day string, codePrefix string) (int64, error) {
	var next int64
	err := r.db.WithContext(ctx).
		Raw(nextOrderCodeSQL, day, time.Now(), codePrefix+"%").
		Scan(&next).Error
	if err != nil {
		return 0, err
	}
	return next, nil
}

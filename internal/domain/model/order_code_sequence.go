package model

import "time"

// 日付ごとの注文コード採番。注文と同じトランザクションでインクリメントする
type OrderCodeSequence struct {
	Day       string    `gorm:"type:varchar(8);primaryKey" json:"day"`
	LastValue int64     `gorm:"not null" json:"last_value"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

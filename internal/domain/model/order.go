package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// 注文。明細はOrderItem側がorder_idで参照する（逆参照は持たない）
type Order struct {
	ID        int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderCode string      `gorm:"type:varchar(32);not null;uniqueIndex;<-:create" json:"order_code"`
	UserID    int64       `gorm:"not null;index;<-:create" json:"user_id"`
	Status    OrderStatus `gorm:"type:varchar(20);not null;index" json:"status"`

	//作成時に確定、以後は再計算しない
	Total decimal.Decimal `gorm:"type:numeric(12,2);not null;<-:create" json:"total"`

	//配送先（county/postal_code/notesは任意）
	DeliveryName       string `gorm:"type:varchar(255);not null" json:"delivery_name"`
	DeliveryEmail      string `gorm:"type:varchar(255);not null" json:"delivery_email"`
	DeliveryPhone      string `gorm:"type:varchar(30);not null" json:"delivery_phone"`
	DeliveryAddress    string `gorm:"type:varchar(255);not null" json:"delivery_address"`
	DeliveryCity       string `gorm:"type:varchar(100);not null" json:"delivery_city"`
	DeliveryCounty     string `gorm:"type:varchar(100)" json:"delivery_county"`
	DeliveryPostalCode string `gorm:"type:varchar(20)" json:"delivery_postal_code"`
	DeliveryCountry    string `gorm:"type:varchar(100);not null" json:"delivery_country"`
	DeliveryNotes      string `gorm:"type:text" json:"delivery_notes"`

	CreatedAt time.Time `gorm:"not null;<-:create" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

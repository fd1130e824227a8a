package model

import "time"

type AuditAction string

const (
	//注文を作成した操作。
	AuditActionCreateOrder AuditAction = "CREATE_ORDER"
	//注文ステータスを更新した操作。
	AuditActionUpdateOrderStatus AuditAction = "UPDATE_ORDER_STATUS"
)

// 誰が操作したか
type AuditActorType string

const (
	AuditActorUser           AuditActorType = "user"
	AuditActorAdmin          AuditActorType = "admin"
	AuditActorPaymentGateway AuditActorType = "payment_gateway"
)

type AuditResourceType string

const (
	AuditResourceOrder AuditResourceType = "order"
)

// 監査ログ。
// 「誰が」「何を」「どの対象に」「どう変えたか」を残す。
type AuditLog struct {
	ID int64 `gorm:"primaryKey;autoIncrement" json:"id"`

	ActorType AuditActorType `gorm:"type:varchar(30);not null;index" json:"actor_type"`

	//ユーザー/管理者のID。gatewayの場合はnil
	ActorUserID *int64 `gorm:"index" json:"actor_user_id,omitempty"`

	//gatewayの場合はpayment intent idなど
	ActorRef string `gorm:"type:varchar(255)" json:"actor_ref,omitempty"`

	Action       AuditAction       `gorm:"type:varchar(50);not null;index" json:"action"`
	ResourceType AuditResourceType `gorm:"type:varchar(50);not null;index" json:"resource_type"`
	ResourceID   int64             `gorm:"not null;index" json:"resource_id"`

	//JSON文字列で保存する。
	BeforeJSON string `gorm:"type:text" json:"before_json"`
	AfterJSON  string `gorm:"type:text" json:"after_json"`

	CreatedAt time.Time `gorm:"not null;index" json:"created_at"`
}

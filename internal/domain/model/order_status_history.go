package model

import "time"

type ActorRole string

const (
	RoleCustomer   ActorRole = "CUSTOMER"
	RoleRestaurant ActorRole = "RESTAURANT"
	RolePartner    ActorRole = "PARTNER"
	RoleAdmin      ActorRole = "ADMIN"
	RoleSystem     ActorRole = "SYSTEM"
)

// OrderStatusHistory は全遷移の監査証跡
type OrderStatusHistory struct {
	ID         int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID    int64       `gorm:"not null;index" json:"order_id"`
	FromStatus OrderStatus `gorm:"type:varchar(30);not null" json:"from_status"`
	ToStatus   OrderStatus `gorm:"type:varchar(30);not null" json:"to_status"`
	ActorRole  ActorRole   `gorm:"type:varchar(20);not null" json:"actor_role"`
	ActorID    int64       `json:"actor_id"`
	Note       string      `gorm:"type:varchar(255)" json:"note,omitempty"`
	CreatedAt  time.Time   `gorm:"not null;autoCreateTime" json:"created_at"`
}

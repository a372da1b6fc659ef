package model

import "time"

type DiscountType string

const (
	DiscountPercentage DiscountType = "PERCENTAGE"
	DiscountFixed      DiscountType = "FIXED"
)

type PromoCode struct {
	ID           int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	Code         string       `gorm:"type:varchar(50);not null;uniqueIndex" json:"code"`
	DiscountType DiscountType `gorm:"type:varchar(20);not null" json:"discount_type"`
	// PERCENTAGEならパーセント値、FIXEDならパイサ
	Value          int64     `gorm:"not null" json:"value"`
	MaxDiscount    int64     `gorm:"not null;default:0" json:"max_discount"` // 0 = 上限なし
	MinOrderValue  int64     `gorm:"not null;default:0" json:"min_order_value"`
	PerUserLimit   int64     `gorm:"not null;default:1" json:"per_user_limit"`
	StartsAt       time.Time `gorm:"not null" json:"starts_at"`
	EndsAt         time.Time `gorm:"not null" json:"ends_at"`
	IsActive       bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

// PromoCodeUsage は(プロモ, ユーザー, 注文)ごとに1行
type PromoCodeUsage struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PromoCodeID int64     `gorm:"not null;index:idx_promo_user" json:"promo_code_id"`
	UserID      int64     `gorm:"not null;index:idx_promo_user" json:"user_id"`
	OrderID     int64     `gorm:"not null;uniqueIndex" json:"order_id"`
	CreatedAt   time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
}

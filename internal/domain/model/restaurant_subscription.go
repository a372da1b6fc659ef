package model

import "time"

type SubscriptionStatus string

const (
	SubscriptionStatusPending SubscriptionStatus = "PENDING"
	SubscriptionStatusPaid    SubscriptionStatus = "PAID"
	SubscriptionStatusFailed  SubscriptionStatus = "FAILED"
	SubscriptionStatusWaived  SubscriptionStatus = "WAIVED"
)

// RestaurantSubscription は(レストラン, 請求日)ごとに1行
type RestaurantSubscription struct {
	ID             int64              `gorm:"primaryKey;autoIncrement" json:"id"`
	RestaurantID   int64              `gorm:"not null;uniqueIndex:idx_sub_restaurant_date" json:"restaurant_id"`
	BillingDate    time.Time          `gorm:"not null;uniqueIndex:idx_sub_restaurant_date;type:date" json:"billing_date"`
	TierLabel      string             `gorm:"type:varchar(20);not null" json:"tier_label"`
	DailyRate      int64              `gorm:"not null" json:"daily_rate"`
	Amount         int64              `gorm:"not null" json:"amount"`
	DeliveredCount int64              `gorm:"not null" json:"delivered_count"`
	Status         SubscriptionStatus `gorm:"type:varchar(20);not null;index" json:"status"`
	CreatedAt      time.Time          `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time          `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

package model

import "time"

type LoyaltyTxnType string

const (
	LoyaltyTxnEarn   LoyaltyTxnType = "EARN"
	LoyaltyTxnRedeem LoyaltyTxnType = "REDEEM"
	LoyaltyTxnExpire LoyaltyTxnType = "EXPIRE"
)

// LoyaltyTransaction はポイントの追記専用台帳。
// EARN行はExpiresAtを持ち、期限切れ後は残高クエリから除外される。
type LoyaltyTransaction struct {
	ID            int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID    int64          `gorm:"not null;index" json:"customer_id"`
	OrderID       *int64         `gorm:"index" json:"order_id,omitempty"`
	Type          LoyaltyTxnType `gorm:"type:varchar(10);not null" json:"type"`
	Points        int64          `gorm:"not null" json:"points"` // 符号付き（EARN +、REDEEM/EXPIRE −）
	BalanceBefore int64          `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64          `gorm:"not null" json:"balance_after"`
	ExpiresAt     *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	// 期限切れ掃き出し済みマーカー（EARN行のみ）
	SweptAt   *time.Time `json:"swept_at,omitempty"`
	CreatedAt time.Time  `gorm:"not null;autoCreateTime" json:"created_at"`
}

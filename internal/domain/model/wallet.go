package model

import "time"

type WalletOwnerType string

const (
	WalletOwnerCustomer   WalletOwnerType = "CUSTOMER"
	WalletOwnerRestaurant WalletOwnerType = "RESTAURANT"
	WalletOwnerPartner    WalletOwnerType = "PARTNER"
	WalletOwnerPlatform   WalletOwnerType = "PLATFORM"
)

// Wallet はbalance/pendingAmountとも負にならない（条件付きUPDATEで担保）
type Wallet struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	OwnerType     WalletOwnerType `gorm:"type:varchar(20);not null;uniqueIndex:idx_wallet_owner" json:"owner_type"`
	OwnerID       int64           `gorm:"not null;uniqueIndex:idx_wallet_owner" json:"owner_id"`
	Balance       int64           `gorm:"not null;default:0" json:"balance"`
	PendingAmount int64           `gorm:"not null;default:0" json:"pending_amount"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

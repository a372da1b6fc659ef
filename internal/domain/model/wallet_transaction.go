package model

import "time"

type WalletTxnType string

const (
	WalletTxnCredit WalletTxnType = "CREDIT"
	WalletTxnDebit  WalletTxnType = "DEBIT"
)

// WalletTransaction は追記専用。balance_after == balance_before + 符号付き金額
type WalletTransaction struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	WalletID      int64         `gorm:"not null;index" json:"wallet_id"`
	Type          WalletTxnType `gorm:"type:varchar(10);not null" json:"type"`
	Amount        int64         `gorm:"not null" json:"amount"` // 常に正。符号はTypeで決まる
	BalanceBefore int64         `gorm:"not null" json:"balance_before"`
	BalanceAfter  int64         `gorm:"not null" json:"balance_after"`
	Reason        string        `gorm:"type:varchar(255);not null" json:"reason"`
	OrderID       *int64        `gorm:"index" json:"order_id,omitempty"`
	GatewayRef    string        `gorm:"type:varchar(255)" json:"gateway_ref,omitempty"`
	CreatedAt     time.Time     `gorm:"not null;autoCreateTime" json:"created_at"`
}

// SignedAmount はCREDITなら+、DEBITなら−
func (t WalletTransaction) SignedAmount() int64 {
	if t.Type == WalletTxnDebit {
		return -t.Amount
	}
	return t.Amount
}

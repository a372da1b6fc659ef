package usecase

import (
	"time"

	"app/internal/domain/model"
)

// 通知チャネルへのイベント。配信（socket/SMS/メール）は外部責務
type OrderStatusChangedEvent struct {
	OrderID   int64             `json:"order_id"`
	OldStatus model.OrderStatus `json:"old_status"`
	NewStatus model.OrderStatus `json:"new_status"`
	ActorRole model.ActorRole   `json:"actor_role"`
	Timestamp time.Time         `json:"timestamp"`
}

type WalletBalanceChangedEvent struct {
	WalletID   int64  `json:"wallet_id"`
	Delta      int64  `json:"delta"`
	NewBalance int64  `json:"new_balance"`
	Reason     string `json:"reason"`
}

type EventPublisher interface {
	PublishOrderStatusChanged(ev OrderStatusChangedEvent)
	PublishWalletBalanceChanged(ev WalletBalanceChangedEvent)
}

// NopPublisher はテストや配線前の置き換え用
type NopPublisher struct{}

func (NopPublisher) PublishOrderStatusChanged(OrderStatusChangedEvent)   {}
func (NopPublisher) PublishWalletBalanceChanged(WalletBalanceChangedEvent) {}

package model

import "time"

type OrderStatus string

const (
	OrderStatusPlaced                OrderStatus = "PLACED"
	OrderStatusRestaurantAccepted    OrderStatus = "RESTAURANT_ACCEPTED"
	OrderStatusPreparing             OrderStatus = "PREPARING"
	OrderStatusReadyForPickup        OrderStatus = "READY_FOR_PICKUP"
	OrderStatusPartnerAssigned       OrderStatus = "DELIVERY_PARTNER_ASSIGNED"
	OrderStatusPickedUp              OrderStatus = "PICKED_UP"
	OrderStatusOutForDelivery        OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered             OrderStatus = "DELIVERED"
	OrderStatusCancelledByCustomer   OrderStatus = "CANCELLED_BY_CUSTOMER"
	OrderStatusCancelledByRestaurant OrderStatus = "CANCELLED_BY_RESTAURANT"
	OrderStatusCancelledByAdmin      OrderStatus = "CANCELLED_BY_ADMIN"
	OrderStatusRefunded              OrderStatus = "REFUNDED"
	OrderStatusFailed                OrderStatus = "FAILED"
)

// IsTerminal は終端ステータスか
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusDelivered,
		OrderStatusCancelledByCustomer,
		OrderStatusCancelledByRestaurant,
		OrderStatusCancelledByAdmin,
		OrderStatusRefunded,
		OrderStatusFailed:
		return true
	}
	return false
}

func (s OrderStatus) IsCancelled() bool {
	switch s {
	case OrderStatusCancelledByCustomer,
		OrderStatusCancelledByRestaurant,
		OrderStatusCancelledByAdmin:
		return true
	}
	return false
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusPaid     PaymentStatus = "PAID"
	PaymentStatusFailed   PaymentStatus = "FAILED"
	PaymentStatusRefunded PaymentStatus = "REFUNDED"
)

type PaymentMethod string

const (
	PaymentMethodWallet  PaymentMethod = "WALLET"
	PaymentMethodGateway PaymentMethod = "GATEWAY"
)

type SettlementStatus string

const (
	SettlementStatusNone    SettlementStatus = "NONE"
	SettlementStatusSettled SettlementStatus = "SETTLED"
	SettlementStatusFailed  SettlementStatus = "FAILED"
)

// 金額はすべてパイサ（最小単位）のint64
type Order struct {
	ID                int64       `gorm:"primaryKey;autoIncrement" json:"id"`
	CustomerID        int64       `gorm:"not null;index" json:"customer_id"`
	RestaurantID      int64       `gorm:"not null;index" json:"restaurant_id"`
	DeliveryPartnerID *int64      `gorm:"index" json:"delivery_partner_id"`
	Status            OrderStatus `gorm:"type:varchar(30);not null;index" json:"status"`

	ItemTotal   int64 `gorm:"not null" json:"item_total"`
	DeliveryFee int64 `gorm:"not null" json:"delivery_fee"`
	PlatformFee int64 `gorm:"not null" json:"platform_fee"`
	Taxes       int64 `gorm:"not null" json:"taxes"`
	Discount    int64 `gorm:"not null" json:"discount"`
	Total       int64 `gorm:"not null" json:"total"`

	PaymentMethod    PaymentMethod    `gorm:"type:varchar(20);not null" json:"payment_method"`
	PaymentStatus    PaymentStatus    `gorm:"type:varchar(20);not null;index" json:"payment_status"`
	GatewayRef       string           `gorm:"type:varchar(255)" json:"-"`
	SettlementStatus SettlementStatus `gorm:"type:varchar(20);not null;default:'NONE'" json:"settlement_status"`

	PromoCodeID *int64 `json:"promo_code_id"`

	DeliveryAddress string  `gorm:"type:varchar(500);not null" json:"delivery_address"`
	DeliveryLat     float64 `gorm:"not null" json:"delivery_lat"`
	DeliveryLng     float64 `gorm:"not null" json:"delivery_lng"`

	// 遷移タイムスタンプ（各1回だけ設定）
	AcceptedAt       *time.Time `json:"accepted_at"`
	DriverAcceptedAt *time.Time `json:"driver_accepted_at"`
	PickedUpAt       *time.Time `json:"picked_up_at"`
	DeliveredAt      *time.Time `json:"delivered_at"`
	CancelledAt      *time.Time `json:"cancelled_at"`

	// 配達実時間（分）。DELIVEREDのとき設定
	ActualDeliveryMins *int64 `json:"actual_delivery_mins"`

	CancellationReason string `gorm:"type:varchar(255)" json:"cancellation_reason,omitempty"`

	IdempotencyKey string    `gorm:"type:varchar(255);not null;uniqueIndex" json:"-"`
	CreatedAt      time.Time `gorm:"not null;autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null;autoUpdateTime" json:"updated_at"`
}

package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
)

var ErrNotFound = errors.New("not found")

type OrderRepository interface {
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error)
	Create(ctx context.Context, order model.Order) (int64, error)

	// 検索（同じキーなら同じ結果を返す）
	FindByIdempotencyKey(ctx context.Context, customerID int64, key string) (model.Order, bool, error)

	// ステータスのCAS更新。現在値がfromのときだけtoへ。falseなら負け
	UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error)

	// 未割当（delivery_partner_id IS NULL）のときだけ割当
	AssignPartnerIf(ctx context.Context, orderID int64, partnerID int64, at time.Time) (bool, error)

	SetAccepted(ctx context.Context, orderID int64, at time.Time) error
	SetPickedUp(ctx context.Context, orderID int64, at time.Time) error
	SetDelivered(ctx context.Context, orderID int64, at time.Time, actualMins int64) error
	SetCancelled(ctx context.Context, orderID int64, at time.Time, reason string) error
	SetPaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus, gatewayRef string) error

	// 支払ステータスのCAS更新。現在値がfromのときだけtoへ。falseなら負け
	SetPaymentStatusIf(ctx context.Context, orderID int64, from model.PaymentStatus, to model.PaymentStatus, gatewayRef string) (bool, error)
	SetSettlementStatus(ctx context.Context, orderID int64, status model.SettlementStatus) error

	// 再ポーリング用：該当ステータスでolderThanより古い注文
	ListByStatus(ctx context.Context, status model.OrderStatus, olderThan time.Time, limit int) ([]model.Order, error)

	// 請求計算用：期間内のDELIVERED件数
	CountDelivered(ctx context.Context, restaurantID int64, from time.Time, to time.Time) (int64, error)
}

package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type LoyaltyRepository interface {
	// 償還可能残高。未掃き出しの期限切れEARN行は除外
	Balance(ctx context.Context, customerID int64, now time.Time) (int64, error)

	Create(ctx context.Context, txn model.LoyaltyTransaction) (int64, error)

	// 残高がpoints以上のときだけREDEEM行をINSERT（単文でアトミック）。falseならポイント不足
	RedeemIfEnough(ctx context.Context, customerID int64, orderID int64, points int64, now time.Time) (bool, error)

	ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.LoyaltyTransaction, int64, error)

	// 期限切れ掃き出し用
	ListExpiredUnswept(ctx context.Context, now time.Time, limit int) ([]model.LoyaltyTransaction, error)
	MarkSwept(ctx context.Context, txnID int64, at time.Time) error
}

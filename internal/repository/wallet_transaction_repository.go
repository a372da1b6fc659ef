package repository

import (
	"context"

	"app/internal/domain/model"
)

type WalletTransactionRepository interface {
	Create(ctx context.Context, txn model.WalletTransaction) (int64, error)
	ListByWallet(ctx context.Context, walletID int64, page int, limit int) ([]model.WalletTransaction, int64, error)

	// 符号付き合計。残高との突合に使う
	SumSigned(ctx context.Context, walletID int64) (int64, error)
}

package repository

import (
	"context"

	"app/internal/domain/model"
)

type WalletRepository interface {
	FindByID(ctx context.Context, walletID int64) (model.Wallet, error)
	FindByOwner(ctx context.Context, ownerType model.WalletOwnerType, ownerID int64) (model.Wallet, error)
	Create(ctx context.Context, w model.Wallet) (int64, error)

	// 残高が足りるときだけ減算（CAS）。falseなら残高不足
	DebitIfEnough(ctx context.Context, walletID int64, amount int64) (bool, error)

	// 加算。行が存在しなければErrNotFound
	Credit(ctx context.Context, walletID int64, amount int64) error

	Deactivate(ctx context.Context, walletID int64) error
}

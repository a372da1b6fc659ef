package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type WalletGormRepository struct {
	db *gorm.DB
}

func NewWalletGormRepository(db *gorm.DB) *WalletGormRepository {
	return &WalletGormRepository{db: db}
}

func (r *WalletGormRepository) FindByID(ctx context.Context, walletID int64) (model.Wallet, error) {
	var w model.Wallet
	err := r.db.WithContext(ctx).Where("id = ?", walletID).First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Wallet{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Wallet{}, err
	}
	return w, nil
}

func (r *WalletGormRepository) FindByOwner(ctx context.Context, ownerType model.WalletOwnerType, ownerID int64) (model.Wallet, error) {
	var w model.Wallet
	err := r.db.WithContext(ctx).
		Where("owner_type = ? AND owner_id = ?", ownerType, ownerID).
		First(&w).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Wallet{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Wallet{}, err
	}
	return w, nil
}

func (r *WalletGormRepository) Create(ctx context.Context, w model.Wallet) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&w).Error; err != nil {
		return 0, err
	}
	return w.ID, nil
}

// 残高が足りるときだけ減算。同時実行でも残高は負にならない
func (r *WalletGormRepository) DebitIfEnough(ctx context.Context, walletID int64, amount int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ? AND balance >= ?", walletID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *WalletGormRepository) Credit(ctx context.Context, walletID int64, amount int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Update("balance", gorm.Expr("balance + ?", amount))

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *WalletGormRepository) Deactivate(ctx context.Context, walletID int64) error {
	res := r.db.WithContext(ctx).
		Model(&model.Wallet{}).
		Where("id = ?", walletID).
		Update("is_active", false)

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

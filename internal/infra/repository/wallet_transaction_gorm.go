package repository

import (
	"context"

	"app/internal/domain/model"

	"gorm.io/gorm"
)

type WalletTransactionGormRepository struct {
	db *gorm.DB
}

func NewWalletTransactionGormRepository(db *gorm.DB) *WalletTransactionGormRepository {
	return &WalletTransactionGormRepository{db: db}
}

func (r *WalletTransactionGormRepository) Create(ctx context.Context, txn model.WalletTransaction) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return 0, err
	}
	return txn.ID, nil
}

func (r *WalletTransactionGormRepository) ListByWallet(ctx context.Context, walletID int64, page int, limit int) ([]model.WalletTransaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).
		Where("wallet_id = ?", walletID).
		Count(&total).Error; err != nil {
		return []model.WalletTransaction{}, 0, err
	}

	var items []model.WalletTransaction
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.WalletTransaction{}, 0, err
	}

	return items, total, nil
}

// 符号付き合計（CREDIT +、DEBIT −）
func (r *WalletTransactionGormRepository) SumSigned(ctx context.Context, walletID int64) (int64, error) {
	var sum int64
	err := r.db.WithContext(ctx).Model(&model.WalletTransaction{}).
		Select("COALESCE(SUM(CASE WHEN type = ? THEN amount ELSE -amount END), 0)", model.WalletTxnCredit).
		Where("wallet_id = ?", walletID).
		Scan(&sum).Error
	if err != nil {
		return 0, err
	}
	return sum, nil
}

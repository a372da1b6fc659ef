package repository

import (
	"context"
	"time"

	"app/internal/domain/model"

	"gorm.io/gorm"
)

type LoyaltyGormRepository struct {
	db *gorm.DB
}

func NewLoyaltyGormRepository(db *gorm.DB) *LoyaltyGormRepository {
	return &LoyaltyGormRepository{db: db}
}

// 償還可能残高。期限切れで未掃き出しのEARN行は読み取り時点で除外する。
// 掃き出し済みのEARN行はEXPIRE行で相殺済みなので合計に含めてよい
const redeemableWhere = "customer_id = ? AND NOT (type = ? AND swept_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?)"

func (r *LoyaltyGormRepository) Balance(ctx context.Context, customerID int64, now time.Time) (int64, error) {
	var bal int64
	err := r.db.WithContext(ctx).Model(&model.LoyaltyTransaction{}).
		Select("COALESCE(SUM(points), 0)").
		Where(redeemableWhere, customerID, model.LoyaltyTxnEarn, now).
		Scan(&bal).Error
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (r *LoyaltyGormRepository) Create(ctx context.Context, txn model.LoyaltyTransaction) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&txn).Error; err != nil {
		return 0, err
	}
	return txn.ID, nil
}

// 残高チェックとREDEEM行のINSERTを1文で行う。
// 集計ガードは並行兄弟txを見ないため、同一顧客の最新行をロックして償還を直列化する。
// 行が無い顧客は残高0でガードに落ちるのでロック不要
func (r *LoyaltyGormRepository) RedeemIfEnough(ctx context.Context, customerID int64, orderID int64, points int64, now time.Time) (bool, error) {
	var lockID int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT id FROM loyalty_transactions
		WHERE customer_id = ? ORDER BY id DESC LIMIT 1 FOR UPDATE`,
		customerID,
	).Scan(&lockID).Error
	if err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO loyalty_transactions (customer_id, order_id, type, points, balance_before, balance_after, created_at)
		SELECT ?, ?, ?, ?, b.bal, b.bal - ?, ?
		FROM (
			SELECT COALESCE(SUM(points), 0) AS bal FROM loyalty_transactions
			WHERE `+redeemableWhere+`
		) b
		WHERE b.bal >= ?`,
		customerID, orderID, model.LoyaltyTxnRedeem, -points, points, now,
		customerID, model.LoyaltyTxnEarn, now,
		points,
	)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *LoyaltyGormRepository) ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.LoyaltyTransaction, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.LoyaltyTransaction{}).
		Where("customer_id = ?", customerID).
		Count(&total).Error; err != nil {
		return []model.LoyaltyTransaction{}, 0, err
	}

	var items []model.LoyaltyTransaction
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("id desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.LoyaltyTransaction{}, 0, err
	}

	return items, total, nil
}

func (r *LoyaltyGormRepository) ListExpiredUnswept(ctx context.Context, now time.Time, limit int) ([]model.LoyaltyTransaction, error) {
	var items []model.LoyaltyTransaction
	err := r.db.WithContext(ctx).
		Where("type = ? AND swept_at IS NULL AND expires_at IS NOT NULL AND expires_at <= ?",
			model.LoyaltyTxnEarn, now).
		Order("id asc").
		Limit(limit).
		Find(&items).Error
	if err != nil {
		return []model.LoyaltyTransaction{}, err
	}
	return items, nil
}

func (r *LoyaltyGormRepository) MarkSwept(ctx context.Context, txnID int64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&model.LoyaltyTransaction{}).
		Where("id = ? AND swept_at IS NULL", txnID).
		Update("swept_at", at)
	if res.Error != nil {
		return res.Error
	}
	return nil
}

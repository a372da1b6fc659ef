package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type PromoCodeGormRepository struct {
	db *gorm.DB
}

func NewPromoCodeGormRepository(db *gorm.DB) *PromoCodeGormRepository {
	return &PromoCodeGormRepository{db: db}
}

func (r *PromoCodeGormRepository) FindByCode(ctx context.Context, code string) (model.PromoCode, error) {
	var p model.PromoCode
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PromoCode{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PromoCode{}, err
	}
	return p, nil
}

func (r *PromoCodeGormRepository) FindByID(ctx context.Context, promoID int64) (model.PromoCode, error) {
	var p model.PromoCode
	err := r.db.WithContext(ctx).Where("id = ?", promoID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.PromoCode{}, repo.ErrNotFound
	}
	if err != nil {
		return model.PromoCode{}, err
	}
	return p, nil
}

func (r *PromoCodeGormRepository) Create(ctx context.Context, p model.PromoCode) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

type PromoUsageGormRepository struct {
	db *gorm.DB
}

func NewPromoUsageGormRepository(db *gorm.DB) *PromoUsageGormRepository {
	return &PromoUsageGormRepository{db: db}
}

// 利用回数チェックとINSERTを1文で行う（read-then-writeの競合を避ける）。
// READ COMMITTEDでは集計ガードが並行兄弟txのINSERTを見ないため、
// 先にプロモ行をFOR UPDATEでロックして同一プロモの記録を直列化する
func (r *PromoUsageGormRepository) RecordIfBelowLimit(ctx context.Context, promoID int64, userID int64, orderID int64, limit int64) (bool, error) {
	var locked model.PromoCode
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", promoID).
		First(&locked).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, repo.ErrNotFound
	}
	if err != nil {
		return false, err
	}

	res := r.db.WithContext(ctx).Exec(`
		INSERT INTO promo_code_usages (promo_code_id, user_id, order_id, created_at)
		SELECT ?, ?, ?, ?
		WHERE (SELECT COUNT(*) FROM promo_code_usages WHERE promo_code_id = ? AND user_id = ?) < ?`,
		promoID, userID, orderID, time.Now(),
		promoID, userID, limit,
	)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *PromoUsageGormRepository) CountByPromoAndUser(ctx context.Context, promoID int64, userID int64) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.PromoCodeUsage{}).
		Where("promo_code_id = ? AND user_id = ?", promoID, userID).
		Count(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

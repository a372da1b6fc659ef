package repository

import (
	"context"
	"errors"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type DeliveryPartnerGormRepository struct {
	db *gorm.DB
}

func NewDeliveryPartnerGormRepository(db *gorm.DB) *DeliveryPartnerGormRepository {
	return &DeliveryPartnerGormRepository{db: db}
}

func (r *DeliveryPartnerGormRepository) FindByID(ctx context.Context, partnerID int64) (model.DeliveryPartner, error) {
	var p model.DeliveryPartner
	err := r.db.WithContext(ctx).Where("id = ?", partnerID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.DeliveryPartner{}, repo.ErrNotFound
	}
	if err != nil {
		return model.DeliveryPartner{}, err
	}
	return p, nil
}

func (r *DeliveryPartnerGormRepository) Create(ctx context.Context, p model.DeliveryPartner) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&p).Error; err != nil {
		return 0, err
	}
	return p.ID, nil
}

func (r *DeliveryPartnerGormRepository) ListOnlineAvailable(ctx context.Context) ([]model.DeliveryPartner, error) {
	var items []model.DeliveryPartner
	err := r.db.WithContext(ctx).
		Where("is_online = ? AND is_available = ? AND is_active = ? AND current_lat IS NOT NULL AND current_lng IS NOT NULL",
			true, true, true).
		Find(&items).Error
	if err != nil {
		return []model.DeliveryPartner{}, err
	}
	return items, nil
}

// 空いているときだけ確保。2つの割当が同じパートナーを取ることはない
func (r *DeliveryPartnerGormRepository) ClaimIfAvailable(ctx context.Context, partnerID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.DeliveryPartner{}).
		Where("id = ? AND is_available = ? AND is_online = ?", partnerID, true, true).
		Update("is_available", false)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// 確保中のときだけ解放（2重解放防止）
func (r *DeliveryPartnerGormRepository) ReleaseIfHeld(ctx context.Context, partnerID int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&model.DeliveryPartner{}).
		Where("id = ? AND is_available = ?", partnerID, false).
		Update("is_available", true)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *DeliveryPartnerGormRepository) UpdateLocation(ctx context.Context, partnerID int64, lat float64, lng float64, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&model.DeliveryPartner{}).
		Where("id = ?", partnerID).
		Updates(map[string]interface{}{
			"current_lat": lat,
			"current_lng": lng,
			"location_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

func (r *DeliveryPartnerGormRepository) SetOnline(ctx context.Context, partnerID int64, online bool) error {
	values := map[string]interface{}{"is_online": online}
	if online {
		values["is_available"] = true
	} else {
		values["is_available"] = false
	}

	res := r.db.WithContext(ctx).
		Model(&model.DeliveryPartner{}).
		Where("id = ?", partnerID).
		Updates(values)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

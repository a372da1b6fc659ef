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

type SubscriptionGormRepository struct {
	db *gorm.DB
}

func NewSubscriptionGormRepository(db *gorm.DB) *SubscriptionGormRepository {
	return &SubscriptionGormRepository{db: db}
}

// (restaurant, billing_date)のユニーク制約に乗せた冪等INSERT
func (r *SubscriptionGormRepository) CreateIfAbsent(ctx context.Context, sub model.RestaurantSubscription) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "restaurant_id"}, {Name: "billing_date"}},
			DoNothing: true,
		}).
		Create(&sub)

	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *SubscriptionGormRepository) FindByRestaurantAndDate(ctx context.Context, restaurantID int64, date time.Time) (model.RestaurantSubscription, error) {
	var s model.RestaurantSubscription
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ? AND billing_date = ?", restaurantID, date.Format("2006-01-02")).
		First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.RestaurantSubscription{}, repo.ErrNotFound
	}
	if err != nil {
		return model.RestaurantSubscription{}, err
	}
	return s, nil
}

func (r *SubscriptionGormRepository) ListByRestaurant(ctx context.Context, restaurantID int64, page int, limit int) ([]model.RestaurantSubscription, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&model.RestaurantSubscription{}).
		Where("restaurant_id = ?", restaurantID).
		Count(&total).Error; err != nil {
		return []model.RestaurantSubscription{}, 0, err
	}

	var items []model.RestaurantSubscription
	offset := (page - 1) * limit
	err := r.db.WithContext(ctx).
		Where("restaurant_id = ?", restaurantID).
		Order("billing_date desc").
		Limit(limit).
		Offset(offset).
		Find(&items).Error
	if err != nil {
		return []model.RestaurantSubscription{}, 0, err
	}

	return items, total, nil
}

func (r *SubscriptionGormRepository) UpdateStatus(ctx context.Context, subID int64, status model.SubscriptionStatus) error {
	res := r.db.WithContext(ctx).Model(&model.RestaurantSubscription{}).
		Where("id = ?", subID).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

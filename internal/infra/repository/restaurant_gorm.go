package repository

import (
	"context"
	"errors"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"gorm.io/gorm"
)

type RestaurantGormRepository struct {
	db *gorm.DB
}

func NewRestaurantGormRepository(db *gorm.DB) *RestaurantGormRepository {
	return &RestaurantGormRepository{db: db}
}

func (r *RestaurantGormRepository) FindByID(ctx context.Context, restaurantID int64) (model.Restaurant, error) {
	var m model.Restaurant
	err := r.db.WithContext(ctx).Where("id = ?", restaurantID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Restaurant{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Restaurant{}, err
	}
	return m, nil
}

func (r *RestaurantGormRepository) ListActive(ctx context.Context) ([]model.Restaurant, error) {
	var items []model.Restaurant
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&items).Error
	if err != nil {
		return []model.Restaurant{}, err
	}
	return items, nil
}

func (r *RestaurantGormRepository) Create(ctx context.Context, m model.Restaurant) (int64, error) {
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return 0, err
	}
	return m.ID, nil
}

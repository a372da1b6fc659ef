package repository

import (
	"context"

	"app/internal/domain/model"
)

type RestaurantRepository interface {
	FindByID(ctx context.Context, restaurantID int64) (model.Restaurant, error)
	ListActive(ctx context.Context) ([]model.Restaurant, error)
	Create(ctx context.Context, r model.Restaurant) (int64, error)
}

package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type SubscriptionRepository interface {
	// (restaurant, billing_date)が未請求のときだけ作成。falseなら既存（冪等）
	CreateIfAbsent(ctx context.Context, sub model.RestaurantSubscription) (bool, error)

	FindByRestaurantAndDate(ctx context.Context, restaurantID int64, date time.Time) (model.RestaurantSubscription, error)
	ListByRestaurant(ctx context.Context, restaurantID int64, page int, limit int) ([]model.RestaurantSubscription, int64, error)
	UpdateStatus(ctx context.Context, subID int64, status model.SubscriptionStatus) error
}

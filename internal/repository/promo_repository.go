package repository

import (
	"context"

	"app/internal/domain/model"
)

type PromoCodeRepository interface {
	FindByCode(ctx context.Context, code string) (model.PromoCode, error)
	FindByID(ctx context.Context, promoID int64) (model.PromoCode, error)
	Create(ctx context.Context, p model.PromoCode) (int64, error)
}

type PromoUsageRepository interface {
	// 利用回数がlimit未満のときだけ1行INSERT（単文でアトミック）。falseなら上限到達
	RecordIfBelowLimit(ctx context.Context, promoID int64, userID int64, orderID int64, limit int64) (bool, error)

	CountByPromoAndUser(ctx context.Context, promoID int64, userID int64) (int64, error)
}

package repository

import (
	"context"
	"time"

	"app/internal/domain/model"
)

type DeliveryPartnerRepository interface {
	FindByID(ctx context.Context, partnerID int64) (model.DeliveryPartner, error)
	Create(ctx context.Context, p model.DeliveryPartner) (int64, error)

	// オンラインかつ空きで現在地既知のパートナー
	ListOnlineAvailable(ctx context.Context) ([]model.DeliveryPartner, error)

	// is_available=trueのときだけfalseへ（CAS）。falseなら先約あり
	ClaimIfAvailable(ctx context.Context, partnerID int64) (bool, error)

	// is_available=falseのときだけtrueへ戻す。戻すのは1回だけ
	ReleaseIfHeld(ctx context.Context, partnerID int64) (bool, error)

	UpdateLocation(ctx context.Context, partnerID int64, lat float64, lng float64, at time.Time) error
	SetOnline(ctx context.Context, partnerID int64, online bool) error
}

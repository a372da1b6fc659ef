package usecase

import (
	"context"
	"fmt"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// 日額の段階制：平均配達件数10件ごとに+₹100、最低₹99/日
const (
	billingBaseRatePaise = 9900  // ₹99
	billingTierStepPaise = 10000 // ₹100
	billingTierWidth     = 10
)

type TierResult struct {
	Label     string `json:"label"`
	DailyRate int64  `json:"daily_rate"`
	Total     int64  `json:"total"`
}

// CalculateTier は(配達済み件数, 請求日数)の純関数。
// 1日でも任意の期間でも、日平均が段階を決める
func CalculateTier(deliveredCount int64, windowDays int64) TierResult {
	if windowDays <= 0 {
		windowDays = 1
	}
	if deliveredCount < 0 {
		deliveredCount = 0
	}

	perDay := deliveredCount / windowDays
	tier := perDay / billingTierWidth

	rate := int64(billingBaseRatePaise) + tier*billingTierStepPaise

	label := "1-9"
	if tier > 0 {
		label = fmt.Sprintf("%d-%d", tier*billingTierWidth, tier*billingTierWidth+billingTierWidth-1)
	}

	return TierResult{
		Label:     label,
		DailyRate: rate,
		Total:     rate * windowDays,
	}
}

type BillingUsecase struct {
	tx repo.TransactionManager
}

func NewBillingUsecase(tx repo.TransactionManager) *BillingUsecase {
	return &BillingUsecase{tx: tx}
}

// RunDaily は指定日の全アクティブ店舗に請求行を作る。
// (restaurant, billing_date)のユニーク制約に乗るので再実行しても二重請求にならない
func (u *BillingUsecase) RunDaily(ctx context.Context, day time.Time) (int, error) {
	from := day.Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)

	created := 0
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		restaurants, err := r.Restaurants().ListActive(ctx)
		if err != nil {
			return err
		}

		for _, rest := range restaurants {
			count, err := r.Orders().CountDelivered(ctx, rest.ID, from, to)
			if err != nil {
				return err
			}

			tier := CalculateTier(count, 1)

			sub := model.RestaurantSubscription{
				RestaurantID:   rest.ID,
				BillingDate:    from,
				TierLabel:      tier.Label,
				DailyRate:      tier.DailyRate,
				Amount:         tier.Total,
				DeliveredCount: count,
				Status:         model.SubscriptionStatusPending,
			}
			if rest.FeeWaived {
				sub.Amount = 0
				sub.Status = model.SubscriptionStatusWaived
			}

			ok, err := r.Subscriptions().CreateIfAbsent(ctx, sub)
			if err != nil {
				return err
			}
			if ok {
				created++
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// Quote は任意期間の請求見積（履歴レンジでも単日と同じ式）
func (u *BillingUsecase) Quote(ctx context.Context, restaurantID int64, from time.Time, to time.Time) (TierResult, int64, error) {
	if !to.After(from) {
		return TierResult{}, 0, fmt.Errorf("invalid billing window")
	}
	days := int64(to.Sub(from).Hours() / 24)
	if days <= 0 {
		days = 1
	}

	var tier TierResult
	var count int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		rest, err := r.Restaurants().FindByID(ctx, restaurantID)
		if err != nil {
			return err
		}

		count, err = r.Orders().CountDelivered(ctx, restaurantID, from, to)
		if err != nil {
			return err
		}

		tier = CalculateTier(count, days)
		if rest.FeeWaived {
			tier.Total = 0
		}
		return nil
	})
	if err != nil {
		return TierResult{}, 0, err
	}
	return tier, count, nil
}

func (u *BillingUsecase) ListSubscriptions(ctx context.Context, restaurantID int64, page int, limit int) ([]model.RestaurantSubscription, int64, error) {
	var items []model.RestaurantSubscription
	var total int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, total, err = r.Subscriptions().ListByRestaurant(ctx, restaurantID, page, limit)
		return err
	})
	if err != nil {
		return []model.RestaurantSubscription{}, 0, err
	}
	return items, total, nil
}

// MarkPaid は決済結果の反映（ゲートウェイ確認後）
func (u *BillingUsecase) MarkPaid(ctx context.Context, subID int64, ok bool) error {
	status := model.SubscriptionStatusPaid
	if !ok {
		status = model.SubscriptionStatusFailed
	}
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Subscriptions().UpdateStatus(ctx, subID, status)
	})
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type PromoConfig struct {
	PointsPerRupee      int64 // 獲得レート：floor(注文額 × rate)
	RedeemPaisePerPoint int64 // 1ポイントの償還価値（パイサ）
	ExpiryDays          int   // 獲得ポイントの有効日数
}

// PromoUsecase は割引検証とポイント台帳。金銭の移動はしない
type PromoUsecase struct {
	tx  repo.TransactionManager
	cfg PromoConfig
}

func NewPromoUsecase(tx repo.TransactionManager, cfg PromoConfig) *PromoUsecase {
	return &PromoUsecase{tx: tx, cfg: cfg}
}

type PromoQuote struct {
	PromoID  int64 `json:"promo_id"`
	Discount int64 `json:"discount"`
}

// ApplyPromo は検証と割引額の計算のみ。利用記録は注文作成後（同一tx内）に行う
func (u *PromoUsecase) ApplyPromo(ctx context.Context, code string, userID int64, subtotal int64) (PromoQuote, error) {
	if subtotal <= 0 {
		return PromoQuote{}, fmt.Errorf("invalid subtotal")
	}

	var out PromoQuote
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.PromoCodes().FindByCode(ctx, code)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrPromoNotFound
		}
		if err != nil {
			return err
		}

		now := time.Now()
		if !p.IsActive || now.Before(p.StartsAt) || !now.Before(p.EndsAt) {
			return ErrPromoExpired
		}
		if subtotal < p.MinOrderValue {
			return ErrPromoMinOrderNotMet
		}

		// 事前チェック。正式な上限判定はRecordIfBelowLimit側
		used, err := r.PromoUsages().CountByPromoAndUser(ctx, p.ID, userID)
		if err != nil {
			return err
		}
		if used >= p.PerUserLimit {
			return ErrPromoUsageLimitReached
		}

		out = PromoQuote{PromoID: p.ID, Discount: DiscountFor(p, subtotal)}
		return nil
	})
	if err != nil {
		return PromoQuote{}, err
	}
	return out, nil
}

// DiscountFor は割引額の純関数。
// パーセント型は上限額でキャップ、固定型は小計でキャップ
func DiscountFor(p model.PromoCode, subtotal int64) int64 {
	var d int64
	switch p.DiscountType {
	case model.DiscountPercentage:
		d = subtotal * p.Value / 100
		if p.MaxDiscount > 0 && d > p.MaxDiscount {
			d = p.MaxDiscount
		}
	case model.DiscountFixed:
		d = p.Value
	}
	if d > subtotal {
		d = subtotal
	}
	if d < 0 {
		d = 0
	}
	return d
}

// PointsForAmount は付与ポイント：floor(支払額（ルピー） × レート)
func (u *PromoUsecase) PointsForAmount(amount int64) int64 {
	return amount * u.cfg.PointsPerRupee / 100
}

// RedemptionValue は償還ポイントの割引額換算
func (u *PromoUsecase) RedemptionValue(points int64) int64 {
	return points * u.cfg.RedeemPaisePerPoint
}

func (u *PromoUsecase) PointsBalance(ctx context.Context, customerID int64) (int64, error) {
	var bal int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		bal, err = r.Loyalty().Balance(ctx, customerID, time.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return bal, nil
}

func (u *PromoUsecase) ListLoyalty(ctx context.Context, customerID int64, page int, limit int) ([]model.LoyaltyTransaction, int64, error) {
	var items []model.LoyaltyTransaction
	var total int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, total, err = r.Loyalty().ListByCustomer(ctx, customerID, page, limit)
		return err
	})
	if err != nil {
		return []model.LoyaltyTransaction{}, 0, err
	}
	return items, total, nil
}

func (u *PromoUsecase) RedeemPoints(ctx context.Context, customerID int64, orderID int64, points int64) (int64, error) {
	if points <= 0 {
		return 0, fmt.Errorf("points must be positive")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return redeemWithinTx(ctx, r, customerID, orderID, points)
	})
	if err != nil {
		return 0, err
	}
	return u.RedemptionValue(points), nil
}

func (u *PromoUsecase) AwardPoints(ctx context.Context, customerID int64, orderID int64, amount int64) (int64, error) {
	var points int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		points, err = u.awardWithinTx(ctx, r, customerID, orderID, amount, time.Now())
		return err
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

// SweepExpired は期限切れEARN行の掃き出し。
// 残高クエリは未掃き出しの期限切れ行を既に除外しているので、
// ここでは履歴上の相殺（EXPIRE行）を入れてマークするだけでよい
func (u *PromoUsecase) SweepExpired(ctx context.Context, batchSize int) (int, error) {
	if batchSize <= 0 {
		batchSize = 100
	}

	swept := 0
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		now := time.Now()
		expired, err := r.Loyalty().ListExpiredUnswept(ctx, now, batchSize)
		if err != nil {
			return err
		}

		for _, e := range expired {
			bal, err := r.Loyalty().Balance(ctx, e.CustomerID, now)
			if err != nil {
				return err
			}
			if err := r.Loyalty().MarkSwept(ctx, e.ID, now); err != nil {
				return err
			}
			// EXPIRE行でちょうど相殺：残高は変わらない
			_, err = r.Loyalty().Create(ctx, model.LoyaltyTransaction{
				CustomerID:    e.CustomerID,
				OrderID:       e.OrderID,
				Type:          model.LoyaltyTxnExpire,
				Points:        -e.Points,
				BalanceBefore: bal + e.Points,
				BalanceAfter:  bal,
			})
			if err != nil {
				return err
			}
			swept++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return swept, nil
}

// ---- トランザクション内部品 ----

func redeemWithinTx(ctx context.Context, r repo.TxRepos, customerID int64, orderID int64, points int64) error {
	ok, err := r.Loyalty().RedeemIfEnough(ctx, customerID, orderID, points, time.Now())
	if err != nil {
		return err
	}
	if !ok {
		return ErrInsufficientPoints
	}
	return nil
}

func (u *PromoUsecase) awardWithinTx(ctx context.Context, r repo.TxRepos, customerID int64, orderID int64, amount int64, now time.Time) (int64, error) {
	points := u.PointsForAmount(amount)
	if points <= 0 {
		return 0, nil
	}

	bal, err := r.Loyalty().Balance(ctx, customerID, now)
	if err != nil {
		return 0, err
	}

	expiry := now.AddDate(0, 0, u.cfg.ExpiryDays)
	_, err = r.Loyalty().Create(ctx, model.LoyaltyTransaction{
		CustomerID:    customerID,
		OrderID:       &orderID,
		Type:          model.LoyaltyTxnEarn,
		Points:        points,
		BalanceBefore: bal,
		BalanceAfter:  bal + points,
		ExpiresAt:     &expiry,
	})
	if err != nil {
		return 0, err
	}
	return points, nil
}

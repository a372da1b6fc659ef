package usecase

import (
	"context"
	"errors"
	"fmt"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type LedgerConfig struct {
	CommissionBps int64 // プラットフォーム手数料（basis points）
	PartnerBonus  int64 // 配達1件あたりのボーナス（パイサ）
}

// LedgerUsecase は金銭移動の唯一の入り口。
// すべての移動はWalletTransactionとして追記され、監査可能になる
type LedgerUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
	cfg    LedgerConfig
}

func NewLedgerUsecase(tx repo.TransactionManager, events EventPublisher, cfg LedgerConfig) *LedgerUsecase {
	return &LedgerUsecase{tx: tx, events: events, cfg: cfg}
}

type LedgerEntryInput struct {
	WalletID   int64
	Amount     int64
	Reason     string
	OrderID    *int64
	GatewayRef string
}

func (u *LedgerUsecase) Credit(ctx context.Context, in LedgerEntryInput) (model.WalletTransaction, error) {
	var txn model.WalletTransaction
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		txn, err = creditWithinTx(ctx, r, in)
		return err
	})
	if err != nil {
		return model.WalletTransaction{}, err
	}

	u.events.PublishWalletBalanceChanged(walletEvent(txn))
	return txn, nil
}

func (u *LedgerUsecase) Debit(ctx context.Context, in LedgerEntryInput) (model.WalletTransaction, error) {
	var txn model.WalletTransaction
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		txn, err = debitWithinTx(ctx, r, in)
		return err
	})
	if err != nil {
		return model.WalletTransaction{}, err
	}

	u.events.PublishWalletBalanceChanged(walletEvent(txn))
	return txn, nil
}

// Onboard は当事者登録時のウォレット作成。削除はせず、退会時は無効化のみ
func (u *LedgerUsecase) Onboard(ctx context.Context, ownerType model.WalletOwnerType, ownerID int64) (model.Wallet, error) {
	if ownerID <= 0 {
		return model.Wallet{}, fmt.Errorf("invalid owner id")
	}

	var out model.Wallet
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		existing, err := r.Wallets().FindByOwner(ctx, ownerType, ownerID)
		if err == nil {
			out = existing
			return nil
		}
		if !errors.Is(err, repo.ErrNotFound) {
			return err
		}

		w := model.Wallet{OwnerType: ownerType, OwnerID: ownerID, IsActive: true}
		id, err := r.Wallets().Create(ctx, w)
		if err != nil {
			return err
		}
		w.ID = id
		out = w
		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}
	return out, nil
}

func (u *LedgerUsecase) WalletByOwner(ctx context.Context, ownerType model.WalletOwnerType, ownerID int64) (model.Wallet, error) {
	var out model.Wallet
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		w, err := r.Wallets().FindByOwner(ctx, ownerType, ownerID)
		if err != nil {
			return err
		}
		out = w
		return nil
	})
	if err != nil {
		return model.Wallet{}, err
	}
	return out, nil
}

func (u *LedgerUsecase) ListTransactions(ctx context.Context, walletID int64, page int, limit int) ([]model.WalletTransaction, int64, error) {
	var items []model.WalletTransaction
	var total int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, total, err = r.WalletTxns().ListByWallet(ctx, walletID, page, limit)
		return err
	})
	if err != nil {
		return []model.WalletTransaction{}, 0, err
	}
	return items, total, nil
}

// Audit は台帳不変条件の検査：残高 == 取引の符号付き合計
func (u *LedgerUsecase) Audit(ctx context.Context, walletID int64) (bool, error) {
	consistent := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		w, err := r.Wallets().FindByID(ctx, walletID)
		if err != nil {
			return err
		}
		sum, err := r.WalletTxns().SumSigned(ctx, walletID)
		if err != nil {
			return err
		}
		consistent = w.Balance == sum
		return nil
	})
	if err != nil {
		return false, err
	}
	return consistent, nil
}

// ---- トランザクション内部品（OrderUsecaseが配達/キャンセルのtxから呼ぶ）----

// creditWithinTx は加算＋取引追記を同一tx内で行う
func creditWithinTx(ctx context.Context, r repo.TxRepos, in LedgerEntryInput) (model.WalletTransaction, error) {
	if in.Amount <= 0 {
		return model.WalletTransaction{}, fmt.Errorf("credit amount must be positive: %d", in.Amount)
	}

	if err := r.Wallets().Credit(ctx, in.WalletID, in.Amount); err != nil {
		return model.WalletTransaction{}, err
	}

	// 更新後の残高を読み直してbefore/afterを確定
	w, err := r.Wallets().FindByID(ctx, in.WalletID)
	if err != nil {
		return model.WalletTransaction{}, err
	}

	txn := model.WalletTransaction{
		WalletID:      in.WalletID,
		Type:          model.WalletTxnCredit,
		Amount:        in.Amount,
		BalanceBefore: w.Balance - in.Amount,
		BalanceAfter:  w.Balance,
		Reason:        in.Reason,
		OrderID:       in.OrderID,
		GatewayRef:    in.GatewayRef,
	}
	id, err := r.WalletTxns().Create(ctx, txn)
	if err != nil {
		return model.WalletTransaction{}, err
	}
	txn.ID = id
	return txn, nil
}

// debitWithinTx は残高ガード付き減算＋取引追記
func debitWithinTx(ctx context.Context, r repo.TxRepos, in LedgerEntryInput) (model.WalletTransaction, error) {
	if in.Amount <= 0 {
		return model.WalletTransaction{}, fmt.Errorf("debit amount must be positive: %d", in.Amount)
	}

	ok, err := r.Wallets().DebitIfEnough(ctx, in.WalletID, in.Amount)
	if err != nil {
		return model.WalletTransaction{}, err
	}
	if !ok {
		// ウォレット自体が無いのか残高不足なのかを区別
		if _, err := r.Wallets().FindByID(ctx, in.WalletID); err != nil {
			return model.WalletTransaction{}, err
		}
		return model.WalletTransaction{}, ErrInsufficientBalance
	}

	w, err := r.Wallets().FindByID(ctx, in.WalletID)
	if err != nil {
		return model.WalletTransaction{}, err
	}

	txn := model.WalletTransaction{
		WalletID:      in.WalletID,
		Type:          model.WalletTxnDebit,
		Amount:        in.Amount,
		BalanceBefore: w.Balance + in.Amount,
		BalanceAfter:  w.Balance,
		Reason:        in.Reason,
		OrderID:       in.OrderID,
		GatewayRef:    in.GatewayRef,
	}
	id, err := r.WalletTxns().Create(ctx, txn)
	if err != nil {
		return model.WalletTransaction{}, err
	}
	txn.ID = id
	return txn, nil
}

// settleDeliveryWithinTx は配達完了の精算：店舗入金・パートナー入金・手数料。
// 3本すべて成功しなければtxごとロールバックされる（部分精算は許さない）
func (u *LedgerUsecase) settleDeliveryWithinTx(ctx context.Context, r repo.TxRepos, o model.Order) ([]model.WalletTransaction, error) {
	commission := o.Total * u.cfg.CommissionBps / 10000
	restaurantAmount := o.Total - commission - o.DeliveryFee
	partnerAmount := o.DeliveryFee + u.cfg.PartnerBonus

	if restaurantAmount < 0 {
		return nil, fmt.Errorf("%w: commission exceeds order total (order %d)", ErrSettlementFailed, o.ID)
	}
	if o.DeliveryPartnerID == nil {
		return nil, fmt.Errorf("%w: order %d has no delivery partner", ErrSettlementFailed, o.ID)
	}

	platform, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerPlatform, platformOwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	restaurant, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerRestaurant, o.RestaurantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	partner, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerPartner, *o.DeliveryPartnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	txns := make([]model.WalletTransaction, 0, 3)

	// 顧客支払はプラットフォームが預かっている。払い出して手数料だけ残す
	t, err := debitWithinTx(ctx, r, LedgerEntryInput{
		WalletID: platform.ID,
		Amount:   restaurantAmount + partnerAmount,
		Reason:   "order settlement payout (commission retained)",
		OrderID:  &o.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: platform payout: %v", ErrSettlementFailed, err)
	}
	txns = append(txns, t)

	t, err = creditWithinTx(ctx, r, LedgerEntryInput{
		WalletID: restaurant.ID,
		Amount:   restaurantAmount,
		Reason:   "order settlement: restaurant payout",
		OrderID:  &o.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: restaurant credit: %v", ErrSettlementFailed, err)
	}
	txns = append(txns, t)

	t, err = creditWithinTx(ctx, r, LedgerEntryInput{
		WalletID: partner.ID,
		Amount:   partnerAmount,
		Reason:   "order settlement: delivery partner payout",
		OrderID:  &o.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: partner credit: %v", ErrSettlementFailed, err)
	}
	txns = append(txns, t)

	return txns, nil
}

// refundWithinTx は全額返金。ウォレット払いなら同じウォレットへ、
// ゲートウェイ払いなら返金取引を記録して外部で非同期照合される
func refundWithinTx(ctx context.Context, r repo.TxRepos, o model.Order) ([]model.WalletTransaction, error) {
	txns := make([]model.WalletTransaction, 0, 2)

	platform, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerPlatform, platformOwnerID)
	if err != nil {
		return nil, err
	}

	t, err := debitWithinTx(ctx, r, LedgerEntryInput{
		WalletID:   platform.ID,
		Amount:     o.Total,
		Reason:     refundReason(o),
		OrderID:    &o.ID,
		GatewayRef: o.GatewayRef,
	})
	if err != nil {
		return nil, err
	}
	txns = append(txns, t)

	if o.PaymentMethod == model.PaymentMethodWallet {
		customer, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerCustomer, o.CustomerID)
		if err != nil {
			return nil, err
		}
		t, err = creditWithinTx(ctx, r, LedgerEntryInput{
			WalletID: customer.ID,
			Amount:   o.Total,
			Reason:   "order refund",
			OrderID:  &o.ID,
		})
		if err != nil {
			return nil, err
		}
		txns = append(txns, t)
	}

	if err := r.Orders().SetPaymentStatus(ctx, o.ID, model.PaymentStatusRefunded, ""); err != nil {
		return nil, err
	}

	return txns, nil
}

func refundReason(o model.Order) string {
	if o.PaymentMethod == model.PaymentMethodGateway {
		return "gateway refund (async reconciliation)"
	}
	return "wallet refund"
}

// プラットフォームウォレットのowner_id（1つしかない）
const platformOwnerID int64 = 1

func walletEvent(txn model.WalletTransaction) WalletBalanceChangedEvent {
	return WalletBalanceChangedEvent{
		WalletID:   txn.WalletID,
		Delta:      txn.SignedAmount(),
		NewBalance: txn.BalanceAfter,
		Reason:     txn.Reason,
	}
}

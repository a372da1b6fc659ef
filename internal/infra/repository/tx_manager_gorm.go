package repository

import (
	"context"

	repo "app/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	orders        repo.OrderRepository
	orderItems    repo.OrderItemRepository
	statusHistory repo.OrderStatusHistoryRepository
	wallets       repo.WalletRepository
	walletTxns    repo.WalletTransactionRepository
	promoCodes    repo.PromoCodeRepository
	promoUsages   repo.PromoUsageRepository
	loyalty       repo.LoyaltyRepository
	partners      repo.DeliveryPartnerRepository
	restaurants   repo.RestaurantRepository
	subscriptions repo.SubscriptionRepository
}

func (r *txReposGorm) Orders() repo.OrderRepository                     { return r.orders }
func (r *txReposGorm) OrderItems() repo.OrderItemRepository             { return r.orderItems }
func (r *txReposGorm) StatusHistory() repo.OrderStatusHistoryRepository { return r.statusHistory }
func (r *txReposGorm) Wallets() repo.WalletRepository                   { return r.wallets }
func (r *txReposGorm) WalletTxns() repo.WalletTransactionRepository    { return r.walletTxns }
func (r *txReposGorm) PromoCodes() repo.PromoCodeRepository             { return r.promoCodes }
func (r *txReposGorm) PromoUsages() repo.PromoUsageRepository           { return r.promoUsages }
func (r *txReposGorm) Loyalty() repo.LoyaltyRepository                  { return r.loyalty }
func (r *txReposGorm) Partners() repo.DeliveryPartnerRepository         { return r.partners }
func (r *txReposGorm) Restaurants() repo.RestaurantRepository           { return r.restaurants }
func (r *txReposGorm) Subscriptions() repo.SubscriptionRepository       { return r.subscriptions }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		r := &txReposGorm{
			orders:        NewOrderGormRepository(tx),
			orderItems:    NewOrderItemGormRepository(tx),
			statusHistory: NewOrderStatusHistoryGormRepository(tx),
			wallets:       NewWalletGormRepository(tx),
			walletTxns:    NewWalletTransactionGormRepository(tx),
			promoCodes:    NewPromoCodeGormRepository(tx),
			promoUsages:   NewPromoUsageGormRepository(tx),
			loyalty:       NewLoyaltyGormRepository(tx),
			partners:      NewDeliveryPartnerGormRepository(tx),
			restaurants:   NewRestaurantGormRepository(tx),
			subscriptions: NewSubscriptionGormRepository(tx),
		}
		return fn(r)
	})
}

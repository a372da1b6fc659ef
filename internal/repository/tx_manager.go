package repository

import "context"

// トランザクション内で使う約束
type TxRepos interface {
	Orders() OrderRepository
	OrderItems() OrderItemRepository
	StatusHistory() OrderStatusHistoryRepository
	Wallets() WalletRepository
	WalletTxns() WalletTransactionRepository
	PromoCodes() PromoCodeRepository
	PromoUsages() PromoUsageRepository
	Loyalty() LoyaltyRepository
	Partners() DeliveryPartnerRepository
	Restaurants() RestaurantRepository
	Subscriptions() SubscriptionRepository
}

// UsecaseからTxの開始/commit/rollbackを隠す。
type TransactionManager interface {
	WithinTx(ctx context.Context, fn func(r TxRepos) error) error
}

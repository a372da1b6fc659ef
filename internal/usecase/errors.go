package usecase

import "errors"

// 検証系エラーは決定的で、呼び出し元へ同期的に返す
var (
	ErrOrderNotFound          = errors.New("order not found")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrInsufficientPoints     = errors.New("insufficient loyalty points")

	ErrPromoNotFound          = errors.New("promo code not found")
	ErrPromoExpired           = errors.New("promo code expired")
	ErrPromoMinOrderNotMet    = errors.New("order below promo minimum value")
	ErrPromoUsageLimitReached = errors.New("promo usage limit reached")

	ErrPaymentVerificationFailed = errors.New("payment verification failed")

	// 内部専用。クライアントへは返さず、注文をsettlement_status=FAILEDにして照合に回す
	ErrSettlementFailed = errors.New("settlement failed")
)

package usecase

import (
	"context"
	"sync"
	"testing"

	"app/internal/domain/model"
	repo "app/internal/repository"

	"github.com/stretchr/testify/assert"
)

type orderFixture struct {
	s        *memStore
	tm       *memTxManager
	uc       *OrderUsecase
	ledger   *LedgerUsecase
	promo    *PromoUsecase
	dispatch *DispatchUsecase

	customerID   int64
	restaurantID int64
	partnerID    int64

	platformWalletID int64
	customerWalletID int64
}

func newOrderFixture(t *testing.T) *orderFixture {
	t.Helper()

	s := newMemStore()
	tm := newMemTxManager(s)

	ledger := NewLedgerUsecase(tm, NopPublisher{}, LedgerConfig{CommissionBps: 2000})
	promo := NewPromoUsecase(tm, PromoConfig{PointsPerRupee: 1, RedeemPaisePerPoint: 25, ExpiryDays: 365})
	dispatch := NewDispatchUsecase(tm, nil, NopPublisher{}, DefaultDispatchConfig())
	uc := NewOrderUsecase(tm, ledger, promo, dispatch, NopPublisher{}, OrderConfig{
		DeliveryFee: 4000,
		PlatformFee: 500,
		TaxBps:      500,
	})

	f := &orderFixture{
		s: s, tm: tm, uc: uc, ledger: ledger, promo: promo, dispatch: dispatch,
		customerID: 1,
	}
	f.restaurantID = seedRestaurant(s, 12.97, 77.59, false)
	f.partnerID = seedPartner(s, 12.975, 77.595, 4.5)
	f.platformWalletID = seedWallet(s, model.WalletOwnerPlatform, platformOwnerID, 0)
	f.customerWalletID = seedWallet(s, model.WalletOwnerCustomer, f.customerID, 1000000)
	seedWallet(s, model.WalletOwnerRestaurant, f.restaurantID, 0)
	seedWallet(s, model.WalletOwnerPartner, f.partnerID, 0)
	return f
}

func (f *orderFixture) placeOrder(t *testing.T, key string) OrderOutput {
	t.Helper()
	out, err := f.uc.PlaceOrder(context.Background(), f.customerID, PlaceOrderInput{
		RestaurantID: f.restaurantID,
		Items: []PlaceOrderItemInput{
			{MenuItemID: 1, Name: "dosa", UnitPrice: 12000, Quantity: 2},
			{MenuItemID: 2, Name: "chai", UnitPrice: 2000, Quantity: 3},
		},
		DeliveryAddress: "12 MG Road",
		DeliveryLat:     12.98,
		DeliveryLng:     77.60,
		PaymentMethod:   model.PaymentMethodWallet,
		IdempotencyKey:  key,
	})
	assert.NoError(t, err)
	return out
}

func TestPlaceOrderTotals(t *testing.T) {
	f := newOrderFixture(t)

	out := f.placeOrder(t, "key-1")

	// 小計 = 2×12000 + 3×2000 = 30000
	assert.Equal(t, int64(30000), out.ItemTotal)
	assert.Equal(t, int64(4000), out.DeliveryFee)
	assert.Equal(t, int64(500), out.PlatformFee)
	// 税 = 30000×5% = 1500
	assert.Equal(t, int64(1500), out.Taxes)
	assert.Equal(t, int64(30000+4000+500+1500), out.Total)
	assert.Equal(t, model.OrderStatusPlaced, out.Status)
	assert.Len(t, out.Items, 2)
}

func TestPlaceOrderIdempotent(t *testing.T) {
	f := newOrderFixture(t)

	first := f.placeOrder(t, "same-key")
	second := f.placeOrder(t, "same-key")

	assert.Equal(t, first.ID, second.ID)

	// 注文は1件しか作られていない
	orders, err := f.uc.ListMyOrders(context.Background(), f.customerID, 1, 10)
	assert.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPlaceOrderWithPromoAndPoints(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	percentPromo(f.s, "SAVE10", 10, 4000, 0, 1)
	_, err := f.promo.AwardPoints(ctx, f.customerID, 900, 20000) // 200ポイント付与
	assert.NoError(t, err)

	out, err := f.uc.PlaceOrder(ctx, f.customerID, PlaceOrderInput{
		RestaurantID: f.restaurantID,
		Items: []PlaceOrderItemInput{
			{MenuItemID: 1, Name: "thali", UnitPrice: 50000, Quantity: 1},
		},
		DeliveryAddress: "12 MG Road",
		PromoCode:       "SAVE10",
		RedeemPoints:    200,
		PaymentMethod:   model.PaymentMethodWallet,
		IdempotencyKey:  "promo-key",
	})
	assert.NoError(t, err)

	// プロモ：50000×10%=5000だが上限4000。ポイント：200×25=5000
	assert.Equal(t, int64(4000+5000), out.Discount)

	// ポイントは消費済み
	bal, err := f.promo.PointsBalance(ctx, f.customerID)
	assert.NoError(t, err)
	assert.Equal(t, int64(0), bal)
}

func TestPlaceOrderInsufficientPointsRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	_, err := f.uc.PlaceOrder(ctx, f.customerID, PlaceOrderInput{
		RestaurantID: f.restaurantID,
		Items: []PlaceOrderItemInput{
			{MenuItemID: 1, Name: "thali", UnitPrice: 50000, Quantity: 1},
		},
		DeliveryAddress: "12 MG Road",
		RedeemPoints:    500, // 持っていない
		PaymentMethod:   model.PaymentMethodWallet,
		IdempotencyKey:  "points-key",
	})
	assert.ErrorIs(t, err, ErrInsufficientPoints)

	// 注文ごとロールバックされている
	orders, err := f.uc.ListMyOrders(ctx, f.customerID, 1, 10)
	assert.NoError(t, err)
	assert.Empty(t, orders)
}

// 配達までの正常系。各遷移のロール制約と最終精算を確認する
func TestOrderHappyPath(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "happy-key")
	orderID := out.ID

	_, err := f.uc.ConfirmPayment(ctx, orderID, "", true)
	assert.NoError(t, err)

	// ウォレット払い：顧客から引かれ、プラットフォームが預かる
	assert.Equal(t, int64(1000000-out.Total), f.s.wallets[f.customerWalletID].Balance)
	assert.Equal(t, out.Total, f.s.wallets[f.platformWalletID].Balance)

	restaurant := Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}
	partner := Actor{Role: model.RolePartner, UserID: f.partnerID}

	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusRestaurantAccepted, restaurant, TransitionMeta{})
	assert.NoError(t, err)
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusPreparing, restaurant, TransitionMeta{})
	assert.NoError(t, err)

	// READY_FOR_PICKUPへの遷移で配車まで走る
	o, err := f.uc.Transition(ctx, orderID, model.OrderStatusReadyForPickup, restaurant, TransitionMeta{})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusPartnerAssigned, o.Status)
	assert.NotNil(t, o.DeliveryPartnerID)
	assert.Equal(t, f.partnerID, *o.DeliveryPartnerID)
	assert.False(t, f.s.partners[f.partnerID].IsAvailable)

	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusPickedUp, partner, TransitionMeta{})
	assert.NoError(t, err)
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusOutForDelivery, partner, TransitionMeta{})
	assert.NoError(t, err)

	o, err = f.uc.Transition(ctx, orderID, model.OrderStatusDelivered, partner, TransitionMeta{})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, o.Status)
	assert.Equal(t, model.SettlementStatusSettled, f.s.orders[orderID].SettlementStatus)

	// パートナーは空きに戻り、精算が済んでいる
	assert.True(t, f.s.partners[f.partnerID].IsAvailable)

	commission := out.Total * 2000 / 10000
	restWallet, err := f.ledger.WalletByOwner(ctx, model.WalletOwnerRestaurant, f.restaurantID)
	assert.NoError(t, err)
	assert.Equal(t, out.Total-commission-out.DeliveryFee, restWallet.Balance)

	partnerWallet, err := f.ledger.WalletByOwner(ctx, model.WalletOwnerPartner, f.partnerID)
	assert.NoError(t, err)
	assert.Equal(t, out.DeliveryFee, partnerWallet.Balance)

	// 手数料だけがプラットフォームに残る
	assert.Equal(t, commission, f.s.wallets[f.platformWalletID].Balance)

	// ポイントが付与されている
	bal, err := f.promo.PointsBalance(ctx, f.customerID)
	assert.NoError(t, err)
	assert.Equal(t, out.Total/100, bal)

	// 全遷移が履歴に残る
	history, err := f.uc.History(ctx, orderID)
	assert.NoError(t, err)
	assert.Len(t, history, 8) // placed + 6遷移 + 配車
}

func TestCustomerCannotCancelAfterPickup(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "late-cancel")
	orderID := out.ID

	_, err := f.uc.ConfirmPayment(ctx, orderID, "", true)
	assert.NoError(t, err)

	restaurant := Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}
	partner := Actor{Role: model.RolePartner, UserID: f.partnerID}
	customer := Actor{Role: model.RoleCustomer, UserID: f.customerID}

	for _, target := range []model.OrderStatus{
		model.OrderStatusRestaurantAccepted,
		model.OrderStatusPreparing,
		model.OrderStatusReadyForPickup,
	} {
		_, err = f.uc.Transition(ctx, orderID, target, restaurant, TransitionMeta{})
		assert.NoError(t, err)
	}
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusPickedUp, partner, TransitionMeta{})
	assert.NoError(t, err)

	// 集荷後の顧客キャンセルは拒否
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusCancelledByCustomer, customer, TransitionMeta{Reason: "changed my mind"})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// 管理者キャンセルは通り、支払済みなので全額返金される
	o, err := f.uc.Transition(ctx, orderID, model.OrderStatusCancelledByAdmin, Actor{Role: model.RoleAdmin, UserID: 999}, TransitionMeta{Reason: "restaurant issue"})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelledByAdmin, o.Status)
	assert.Equal(t, model.PaymentStatusRefunded, f.s.orders[orderID].PaymentStatus)
	assert.Equal(t, int64(1000000), f.s.wallets[f.customerWalletID].Balance)

	// パートナーも解放されている
	assert.True(t, f.s.partners[f.partnerID].IsAvailable)
}

func TestRestaurantRejectRefundsPayment(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "reject-key")
	orderID := out.ID

	_, err := f.uc.ConfirmPayment(ctx, orderID, "", true)
	assert.NoError(t, err)

	// 店舗却下 → 返金必須
	o, err := f.uc.Transition(ctx, orderID, model.OrderStatusCancelledByRestaurant,
		Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}, TransitionMeta{Reason: "out of stock"})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusCancelledByRestaurant, o.Status)
	assert.Equal(t, int64(1000000), f.s.wallets[f.customerWalletID].Balance)
	assert.Equal(t, int64(0), f.s.wallets[f.platformWalletID].Balance)
}

func TestTransitionIdempotentNoop(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "noop-key")
	restaurant := Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}

	_, err := f.uc.Transition(ctx, out.ID, model.OrderStatusRestaurantAccepted, restaurant, TransitionMeta{})
	assert.NoError(t, err)

	// 同じ遷移の再送はno-op成功（履歴も増えない）
	before, _ := f.uc.History(ctx, out.ID)
	o, err := f.uc.Transition(ctx, out.ID, model.OrderStatusRestaurantAccepted, restaurant, TransitionMeta{})
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusRestaurantAccepted, o.Status)
	after, _ := f.uc.History(ctx, out.ID)
	assert.Equal(t, len(before), len(after))
}

func TestTransitionWrongRole(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "role-key")

	// 顧客は受注できない
	_, err := f.uc.Transition(ctx, out.ID, model.OrderStatusRestaurantAccepted,
		Actor{Role: model.RoleCustomer, UserID: f.customerID}, TransitionMeta{})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)

	// 他店のロールでも受注できない
	_, err = f.uc.Transition(ctx, out.ID, model.OrderStatusRestaurantAccepted,
		Actor{Role: model.RoleRestaurant, UserID: f.restaurantID + 100}, TransitionMeta{})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
}

func TestConfirmPaymentFailureMarksOrderFailed(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "fail-key")

	o, err := f.uc.ConfirmPayment(ctx, out.ID, "", false)
	assert.NoError(t, err)
	assert.Equal(t, model.OrderStatusFailed, o.Status)
	assert.Equal(t, model.PaymentStatusFailed, o.PaymentStatus)

	// 金銭は動いていない
	assert.Equal(t, int64(1000000), f.s.wallets[f.customerWalletID].Balance)
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "pay-twice")

	_, err := f.uc.ConfirmPayment(ctx, out.ID, "", true)
	assert.NoError(t, err)
	balAfterFirst := f.s.wallets[f.customerWalletID].Balance

	// 再送しても二重引き落としされない
	_, err = f.uc.ConfirmPayment(ctx, out.ID, "", true)
	assert.NoError(t, err)
	assert.Equal(t, balAfterFirst, f.s.wallets[f.customerWalletID].Balance)
}

// 最初の2txの完了後に合流させる。両goroutineが事前チェックの読み取りを
// 終えてから本処理へ進む（ゲートウェイ再送が同時に届いた形）
type rendezvousTxManager struct {
	inner *memTxManager
	mu    sync.Mutex
	seen  int
	gate  chan struct{}
}

func (m *rendezvousTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	err := m.inner.WithinTx(ctx, fn)
	m.mu.Lock()
	m.seen++
	n := m.seen
	m.mu.Unlock()
	if n == 2 {
		close(m.gate)
	}
	if n <= 2 {
		<-m.gate
	}
	return err
}

func TestConfirmPaymentConcurrentRetries(t *testing.T) {
	f := newOrderFixture(t)

	out := f.placeOrder(t, "pay-race")

	rtm := &rendezvousTxManager{inner: f.tm, gate: make(chan struct{})}
	uc := NewOrderUsecase(rtm, f.ledger, f.promo, f.dispatch, NopPublisher{}, OrderConfig{
		DeliveryFee: 4000,
		PlatformFee: 500,
		TaxBps:      500,
	})

	// 両方がPENDINGを観測してから確定処理に入る
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o, err := uc.ConfirmPayment(context.Background(), out.ID, "", true)
			assert.NoError(t, err)
			assert.Equal(t, model.PaymentStatusPaid, o.PaymentStatus)
		}()
	}
	wg.Wait()

	// 引き落としも入金も1回ずつ
	assert.Equal(t, int64(1000000-out.Total), f.s.wallets[f.customerWalletID].Balance)
	assert.Equal(t, out.Total, f.s.wallets[f.platformWalletID].Balance)
	assert.Len(t, f.s.walletTxns, 2)
}

func TestAdminCannotAssignPartnerDirectly(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	// 空きパートナー不在のままREADYまで進める（配車は未割当で戻る）
	p := f.s.partners[f.partnerID]
	p.IsOnline = false
	f.s.partners[f.partnerID] = p

	out := f.placeOrder(t, "direct-assign")
	restaurant := Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}
	for _, target := range []model.OrderStatus{
		model.OrderStatusRestaurantAccepted,
		model.OrderStatusPreparing,
		model.OrderStatusReadyForPickup,
	} {
		_, err := f.uc.Transition(ctx, out.ID, target, restaurant, TransitionMeta{})
		assert.NoError(t, err)
	}
	assert.Equal(t, model.OrderStatusReadyForPickup, f.s.orders[out.ID].Status)

	// ステータス直接指定での割当は拒否（割当は配車経由のみ）
	_, err := f.uc.Transition(ctx, out.ID, model.OrderStatusPartnerAssigned,
		Actor{Role: model.RoleAdmin, UserID: 999}, TransitionMeta{})
	assert.ErrorIs(t, err, ErrInvalidStateTransition)
	assert.Nil(t, f.s.orders[out.ID].DeliveryPartnerID)
	assert.Equal(t, model.OrderStatusReadyForPickup, f.s.orders[out.ID].Status)
}

func TestDeliveredSettlementFailureRollsBackStatus(t *testing.T) {
	f := newOrderFixture(t)
	ctx := context.Background()

	out := f.placeOrder(t, "settle-fail")
	orderID := out.ID

	_, err := f.uc.ConfirmPayment(ctx, orderID, "", true)
	assert.NoError(t, err)

	restaurant := Actor{Role: model.RoleRestaurant, UserID: f.restaurantID}
	partner := Actor{Role: model.RolePartner, UserID: f.partnerID}
	for _, target := range []model.OrderStatus{
		model.OrderStatusRestaurantAccepted,
		model.OrderStatusPreparing,
		model.OrderStatusReadyForPickup,
	} {
		_, err = f.uc.Transition(ctx, orderID, target, restaurant, TransitionMeta{})
		assert.NoError(t, err)
	}
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusPickedUp, partner, TransitionMeta{})
	assert.NoError(t, err)
	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusOutForDelivery, partner, TransitionMeta{})
	assert.NoError(t, err)

	// パートナーのウォレットを消して精算を失敗させる
	for id, w := range f.s.wallets {
		if w.OwnerType == model.WalletOwnerPartner {
			delete(f.s.wallets, id)
		}
	}

	_, err = f.uc.Transition(ctx, orderID, model.OrderStatusDelivered, partner, TransitionMeta{})
	assert.ErrorIs(t, err, ErrSettlementFailed)

	// ステータスは進まず、照合対象としてマークされる
	assert.Equal(t, model.OrderStatusOutForDelivery, f.s.orders[orderID].Status)
	assert.Equal(t, model.SettlementStatusFailed, f.s.orders[orderID].SettlementStatus)
}

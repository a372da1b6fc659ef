package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type OrderConfig struct {
	DeliveryFee int64 // 固定配達料（パイサ）
	PlatformFee int64 // 固定プラットフォーム料（パイサ）
	TaxBps      int64 // 税率（basis points）
}

// FSMテーブル：現在ステータス → 許可される遷移先 → 許可ロール。
// 文字列比較をあちこちに書かず、検証はここ1箇所に集約する
var allowedTransitions = map[model.OrderStatus]map[model.OrderStatus][]model.ActorRole{
	model.OrderStatusPlaced: {
		model.OrderStatusRestaurantAccepted:    {model.RoleRestaurant, model.RoleAdmin},
		model.OrderStatusFailed:                {model.RoleSystem, model.RoleAdmin},
		model.OrderStatusCancelledByCustomer:   {model.RoleCustomer},
		model.OrderStatusCancelledByRestaurant: {model.RoleRestaurant},
		model.OrderStatusCancelledByAdmin:      {model.RoleAdmin},
	},
	model.OrderStatusRestaurantAccepted: {
		model.OrderStatusPreparing:             {model.RoleRestaurant, model.RoleAdmin},
		model.OrderStatusCancelledByCustomer:   {model.RoleCustomer},
		model.OrderStatusCancelledByRestaurant: {model.RoleRestaurant},
		model.OrderStatusCancelledByAdmin:      {model.RoleAdmin},
	},
	model.OrderStatusPreparing: {
		model.OrderStatusReadyForPickup:        {model.RoleRestaurant, model.RoleAdmin},
		model.OrderStatusCancelledByCustomer:   {model.RoleCustomer},
		model.OrderStatusCancelledByRestaurant: {model.RoleRestaurant},
		model.OrderStatusCancelledByAdmin:      {model.RoleAdmin},
	},
	model.OrderStatusReadyForPickup: {
		model.OrderStatusPartnerAssigned:       {model.RoleSystem, model.RoleAdmin},
		model.OrderStatusCancelledByCustomer:   {model.RoleCustomer},
		model.OrderStatusCancelledByRestaurant: {model.RoleRestaurant},
		model.OrderStatusCancelledByAdmin:      {model.RoleAdmin},
	},
	model.OrderStatusPartnerAssigned: {
		model.OrderStatusPickedUp:              {model.RolePartner, model.RoleAdmin},
		model.OrderStatusCancelledByCustomer:   {model.RoleCustomer},
		model.OrderStatusCancelledByRestaurant: {model.RoleRestaurant},
		model.OrderStatusCancelledByAdmin:      {model.RoleAdmin},
	},
	// 集荷後は顧客・店舗キャンセル不可。管理者のみ
	model.OrderStatusPickedUp: {
		model.OrderStatusOutForDelivery:   {model.RolePartner, model.RoleAdmin},
		model.OrderStatusCancelledByAdmin: {model.RoleAdmin},
	},
	model.OrderStatusOutForDelivery: {
		model.OrderStatusDelivered:        {model.RolePartner, model.RoleAdmin},
		model.OrderStatusCancelledByAdmin: {model.RoleAdmin},
	},
	// 返金は配達済み/キャンセル済みかつ支払済みのときだけ（支払条件は遷移時に確認）
	model.OrderStatusDelivered: {
		model.OrderStatusRefunded: {model.RoleAdmin, model.RoleSystem},
	},
	model.OrderStatusCancelledByCustomer: {
		model.OrderStatusRefunded: {model.RoleAdmin, model.RoleSystem},
	},
	model.OrderStatusCancelledByRestaurant: {
		model.OrderStatusRefunded: {model.RoleAdmin, model.RoleSystem},
	},
	model.OrderStatusCancelledByAdmin: {
		model.OrderStatusRefunded: {model.RoleAdmin, model.RoleSystem},
	},
}

func transitionAllowed(from model.OrderStatus, to model.OrderStatus, role model.ActorRole) bool {
	roles, ok := allowedTransitions[from][to]
	if !ok {
		return false
	}
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

type Actor struct {
	Role   model.ActorRole
	UserID int64
}

type TransitionMeta struct {
	Reason string
}

// OrderUsecase は注文の状態機械を所有する。
// 状態はこのTransition経由でしか動かさない
type OrderUsecase struct {
	tx       repo.TransactionManager
	ledger   *LedgerUsecase
	promo    *PromoUsecase
	dispatch *DispatchUsecase
	events   EventPublisher
	cfg      OrderConfig
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	ledger *LedgerUsecase,
	promo *PromoUsecase,
	dispatch *DispatchUsecase,
	events EventPublisher,
	cfg OrderConfig,
) *OrderUsecase {
	return &OrderUsecase{
		tx:       tx,
		ledger:   ledger,
		promo:    promo,
		dispatch: dispatch,
		events:   events,
		cfg:      cfg,
	}
}

type PlaceOrderItemInput struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
}

type PlaceOrderInput struct {
	RestaurantID    int64
	Items           []PlaceOrderItemInput
	DeliveryAddress string
	DeliveryLat     float64
	DeliveryLng     float64
	PromoCode       string
	RedeemPoints    int64
	PaymentMethod   model.PaymentMethod
	IdempotencyKey  string
}

type OrderItemOutput struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	UnitPrice  int64  `json:"unit_price"`
	Quantity   int64  `json:"quantity"`
	Subtotal   int64  `json:"subtotal"`
}

type OrderOutput struct {
	ID                int64             `json:"id"`
	CustomerID        int64             `json:"customer_id"`
	RestaurantID      int64             `json:"restaurant_id"`
	DeliveryPartnerID *int64            `json:"delivery_partner_id"`
	Status            model.OrderStatus `json:"status"`
	ItemTotal         int64             `json:"item_total"`
	DeliveryFee       int64             `json:"delivery_fee"`
	PlatformFee       int64             `json:"platform_fee"`
	Taxes             int64             `json:"taxes"`
	Discount          int64             `json:"discount"`
	Total             int64             `json:"total"`
	PaymentStatus     model.PaymentStatus `json:"payment_status"`
	CreatedAt         time.Time         `json:"created_at"`
	Items             []OrderItemOutput `json:"items"`
}

func (u *OrderUsecase) PlaceOrder(ctx context.Context, customerID int64, in PlaceOrderInput) (OrderOutput, error) {
	if customerID <= 0 {
		return OrderOutput{}, fmt.Errorf("invalid customer id")
	}
	if in.RestaurantID <= 0 {
		return OrderOutput{}, fmt.Errorf("invalid restaurant id")
	}
	if len(in.Items) == 0 {
		return OrderOutput{}, fmt.Errorf("order has no items")
	}
	key := strings.TrimSpace(in.IdempotencyKey)
	if key == "" || len(key) > 255 {
		return OrderOutput{}, fmt.Errorf("invalid idempotency key")
	}
	if in.PaymentMethod != model.PaymentMethodWallet && in.PaymentMethod != model.PaymentMethodGateway {
		return OrderOutput{}, fmt.Errorf("invalid payment method")
	}

	// 明細スナップショットと小計
	var itemTotal int64
	orderItems := make([]model.OrderItem, 0, len(in.Items))
	for _, it := range in.Items {
		if it.Quantity < 1 || it.UnitPrice < 0 {
			return OrderOutput{}, fmt.Errorf("invalid order item")
		}
		orderItems = append(orderItems, model.OrderItem{
			MenuItemID:        it.MenuItemID,
			NameSnapshot:      it.Name,
			UnitPriceSnapshot: it.UnitPrice,
			Quantity:          it.Quantity,
		})
		itemTotal += it.UnitPrice * it.Quantity
	}

	// プロモ検証（計算のみ。利用記録は注文作成後）
	var promoID *int64
	var discount int64
	if in.PromoCode != "" {
		quote, err := u.promo.ApplyPromo(ctx, in.PromoCode, customerID, itemTotal)
		if err != nil {
			return OrderOutput{}, err
		}
		promoID = &quote.PromoID
		discount = quote.Discount
	}

	if in.RedeemPoints < 0 {
		return OrderOutput{}, fmt.Errorf("invalid redeem points")
	}
	if in.RedeemPoints > 0 {
		discount += u.promo.RedemptionValue(in.RedeemPoints)
	}
	if discount > itemTotal {
		discount = itemTotal
	}

	taxes := itemTotal * u.cfg.TaxBps / 10000
	total := itemTotal + u.cfg.DeliveryFee + u.cfg.PlatformFee + taxes - discount

	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		// 同じキーなら同じ結果
		existing, found, err := r.Orders().FindByIdempotencyKey(ctx, customerID, key)
		if err != nil {
			return err
		}
		if found {
			items, err := r.OrderItems().ListByOrderID(ctx, existing.ID)
			if err != nil {
				return err
			}
			out = toOrderOutput(existing, items)
			return nil
		}

		rest, err := r.Restaurants().FindByID(ctx, in.RestaurantID)
		if errors.Is(err, repo.ErrNotFound) {
			return fmt.Errorf("restaurant %d: %w", in.RestaurantID, repo.ErrNotFound)
		}
		if err != nil {
			return err
		}
		if !rest.IsActive {
			return fmt.Errorf("restaurant %d is not accepting orders", in.RestaurantID)
		}

		order := model.Order{
			CustomerID:      customerID,
			RestaurantID:    in.RestaurantID,
			Status:          model.OrderStatusPlaced,
			ItemTotal:       itemTotal,
			DeliveryFee:     u.cfg.DeliveryFee,
			PlatformFee:     u.cfg.PlatformFee,
			Taxes:           taxes,
			Discount:        discount,
			Total:           total,
			PaymentMethod:   in.PaymentMethod,
			PaymentStatus:   model.PaymentStatusPending,
			PromoCodeID:     promoID,
			DeliveryAddress: in.DeliveryAddress,
			DeliveryLat:     in.DeliveryLat,
			DeliveryLng:     in.DeliveryLng,
			IdempotencyKey:  key,
		}
		orderID, err := r.Orders().Create(ctx, order)
		if err != nil {
			// 競合（同時に同じキー）はもう一度検索して同じ結果を返す
			ex2, found2, err2 := r.Orders().FindByIdempotencyKey(ctx, customerID, key)
			if err2 == nil && found2 {
				items2, err3 := r.OrderItems().ListByOrderID(ctx, ex2.ID)
				if err3 != nil {
					return err3
				}
				out = toOrderOutput(ex2, items2)
				return nil
			}
			return err
		}
		order.ID = orderID

		if err := r.OrderItems().CreateBulk(ctx, orderID, orderItems); err != nil {
			return err
		}

		// 利用記録は注文が確定してから（放棄カートで消費しない）。
		// 上限チェックはINSERTと同一文でアトミック
		if promoID != nil {
			p, err := r.PromoCodes().FindByID(ctx, *promoID)
			if err != nil {
				return err
			}
			ok, err := r.PromoUsages().RecordIfBelowLimit(ctx, p.ID, customerID, orderID, p.PerUserLimit)
			if err != nil {
				return err
			}
			if !ok {
				return ErrPromoUsageLimitReached
			}
		}

		if in.RedeemPoints > 0 {
			if err := redeemWithinTx(ctx, r, customerID, orderID, in.RedeemPoints); err != nil {
				return err
			}
		}

		if err := r.StatusHistory().Create(ctx, model.OrderStatusHistory{
			OrderID:   orderID,
			FromStatus: model.OrderStatusPlaced,
			ToStatus:  model.OrderStatusPlaced,
			ActorRole: model.RoleCustomer,
			ActorID:   customerID,
			Note:      "order placed",
		}); err != nil {
			return err
		}

		out = toOrderOutput(order, orderItems)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}

	u.events.PublishOrderStatusChanged(OrderStatusChangedEvent{
		OrderID:   out.ID,
		NewStatus: model.OrderStatusPlaced,
		ActorRole: model.RoleCustomer,
		Timestamp: time.Now(),
	})
	return out, nil
}

// Transition は状態遷移の唯一の入り口。
// 副作用（精算・返金・ポイント付与・パートナー解放）はステータス書き込みと同一txで行い、
// どれかが失敗すれば全体がロールバックされる
func (u *OrderUsecase) Transition(ctx context.Context, orderID int64, target model.OrderStatus, actor Actor, meta TransitionMeta) (model.Order, error) {
	out, err := u.transitionOnce(ctx, orderID, target, actor, meta)
	if errors.Is(err, ErrSettlementFailed) {
		// インフラ起因の可能性があるので同じ操作を1回だけ再試行
		out, err = u.transitionOnce(ctx, orderID, target, actor, meta)
		if errors.Is(err, ErrSettlementFailed) {
			// 部分精算は許さない：全ロールバック済み。照合タスクとしてマークして返す
			_ = u.markSettlementFailed(ctx, orderID)
			return model.Order{}, err
		}
	}
	if err != nil {
		return model.Order{}, err
	}

	// READY_FOR_PICKUPに入ったら配車。未割当でもエラーにはしない（再ポーリング対象）
	if out.Status == model.OrderStatusReadyForPickup && u.dispatch != nil {
		res, derr := u.dispatch.Allocate(ctx, orderID)
		if derr == nil && res.Assigned {
			return u.reload(ctx, orderID)
		}
	}
	return out, nil
}

func (u *OrderUsecase) transitionOnce(ctx context.Context, orderID int64, target model.OrderStatus, actor Actor, meta TransitionMeta) (model.Order, error) {
	now := time.Now()

	var out model.Order
	var walletTxns []model.WalletTransaction
	var statusEvent *OrderStatusChangedEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		walletTxns = nil
		statusEvent = nil

		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		// 冪等：既に目標ステータスならno-op成功（at-least-once配送の再送を許容）
		if o.Status == target {
			out = o
			return nil
		}

		if !transitionAllowed(o.Status, target, actor.Role) {
			return fmt.Errorf("%w: %s -> %s by %s", ErrInvalidStateTransition, o.Status, target, actor.Role)
		}
		if err := checkActorOwnership(o, actor); err != nil {
			return err
		}

		switch target {
		case model.OrderStatusPartnerAssigned:
			// 割当は配車のCAS（パートナー確保＋注文割当）経由のみ。
			// パートナー未確保のまま割当済みステータスを作らない
			return fmt.Errorf("%w: assignment goes through dispatch", ErrInvalidStateTransition)

		case model.OrderStatusRestaurantAccepted:
			if err := r.Orders().SetAccepted(ctx, o.ID, now); err != nil {
				return err
			}

		case model.OrderStatusPickedUp:
			if err := r.Orders().SetPickedUp(ctx, o.ID, now); err != nil {
				return err
			}

		case model.OrderStatusDelivered:
			mins := int64(now.Sub(o.CreatedAt).Minutes())
			if err := r.Orders().SetDelivered(ctx, o.ID, now, mins); err != nil {
				return err
			}

			txns, err := u.ledger.settleDeliveryWithinTx(ctx, r, o)
			if err != nil {
				return err
			}
			walletTxns = append(walletTxns, txns...)

			if _, err := u.promo.awardWithinTx(ctx, r, o.CustomerID, o.ID, o.Total, now); err != nil {
				return err
			}

			if o.DeliveryPartnerID != nil {
				if _, err := r.Partners().ReleaseIfHeld(ctx, *o.DeliveryPartnerID); err != nil {
					return err
				}
			}

			if err := r.Orders().SetSettlementStatus(ctx, o.ID, model.SettlementStatusSettled); err != nil {
				return err
			}

		case model.OrderStatusCancelledByCustomer,
			model.OrderStatusCancelledByRestaurant,
			model.OrderStatusCancelledByAdmin:
			if err := r.Orders().SetCancelled(ctx, o.ID, now, meta.Reason); err != nil {
				return err
			}

			// 支払済みなら全額返金（店舗却下も含めて必須）
			if o.PaymentStatus == model.PaymentStatusPaid {
				txns, err := refundWithinTx(ctx, r, o)
				if err != nil {
					return err
				}
				walletTxns = append(walletTxns, txns...)
				o.PaymentStatus = model.PaymentStatusRefunded
			}

			if o.DeliveryPartnerID != nil {
				if _, err := r.Partners().ReleaseIfHeld(ctx, *o.DeliveryPartnerID); err != nil {
					return err
				}
			}

		case model.OrderStatusRefunded:
			// 支払が完了していた場合にだけ到達できる
			if o.PaymentStatus != model.PaymentStatusPaid && o.PaymentStatus != model.PaymentStatusRefunded {
				return fmt.Errorf("%w: payment not settled for order %d", ErrInvalidStateTransition, o.ID)
			}
			if o.PaymentStatus == model.PaymentStatusPaid {
				txns, err := refundWithinTx(ctx, r, o)
				if err != nil {
					return err
				}
				walletTxns = append(walletTxns, txns...)
				o.PaymentStatus = model.PaymentStatusRefunded
			}

		case model.OrderStatusFailed:
			if err := r.Orders().SetPaymentStatus(ctx, o.ID, model.PaymentStatusFailed, ""); err != nil {
				return err
			}
			o.PaymentStatus = model.PaymentStatusFailed
		}

		// ステータス書き込みは最後：精算が失敗したらステータスも進まない
		moved, err := r.Orders().UpdateStatusIf(ctx, o.ID, o.Status, target)
		if err != nil {
			return err
		}
		if !moved {
			// 楽観チェック負け（同時に別の遷移が先行した）
			return fmt.Errorf("%w: concurrent transition on order %d", ErrInvalidStateTransition, o.ID)
		}

		if err := r.StatusHistory().Create(ctx, model.OrderStatusHistory{
			OrderID:    o.ID,
			FromStatus: o.Status,
			ToStatus:   target,
			ActorRole:  actor.Role,
			ActorID:    actor.UserID,
			Note:       meta.Reason,
		}); err != nil {
			return err
		}

		statusEvent = &OrderStatusChangedEvent{
			OrderID:   o.ID,
			OldStatus: o.Status,
			NewStatus: target,
			ActorRole: actor.Role,
			Timestamp: now,
		}

		o.Status = target
		out = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	// 遷移が適用されたときだけちょうど1回発行
	if statusEvent != nil {
		u.events.PublishOrderStatusChanged(*statusEvent)
	}
	for _, txn := range walletTxns {
		u.events.PublishWalletBalanceChanged(walletEvent(txn))
	}

	return out, nil
}

// ConfirmPayment はゲートウェイ/ウォレットの支払確定フック。
// 確定済みの結果に対してだけ台帳を動かす
func (u *OrderUsecase) ConfirmPayment(ctx context.Context, orderID int64, gatewayRef string, success bool) (model.Order, error) {
	var order model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	// 冪等：確定済みなら現状を返す
	if order.PaymentStatus == model.PaymentStatusPaid && success {
		return order, nil
	}
	if order.PaymentStatus != model.PaymentStatusPending {
		return model.Order{}, fmt.Errorf("%w: order %d payment is %s", ErrPaymentVerificationFailed, orderID, order.PaymentStatus)
	}

	if !success {
		return u.Transition(ctx, orderID, model.OrderStatusFailed, Actor{Role: model.RoleSystem}, TransitionMeta{Reason: "payment failed"})
	}

	var walletTxns []model.WalletTransaction
	raceLost := false
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		walletTxns = nil
		raceLost = false

		o, err := r.Orders().FindByID(ctx, orderID)
		if err != nil {
			return err
		}

		// PENDING→PAIDのCASに勝った方だけが台帳を動かす。
		// 同一txなので、負けた再送は引き落としごとスキップされる
		moved, err := r.Orders().SetPaymentStatusIf(ctx, o.ID, model.PaymentStatusPending, model.PaymentStatusPaid, gatewayRef)
		if err != nil {
			return err
		}
		if !moved {
			raceLost = true
			return nil
		}

		platform, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerPlatform, platformOwnerID)
		if err != nil {
			return err
		}

		if o.PaymentMethod == model.PaymentMethodWallet {
			customer, err := r.Wallets().FindByOwner(ctx, model.WalletOwnerCustomer, o.CustomerID)
			if err != nil {
				return err
			}
			txn, err := debitWithinTx(ctx, r, LedgerEntryInput{
				WalletID: customer.ID,
				Amount:   o.Total,
				Reason:   "order payment",
				OrderID:  &o.ID,
			})
			if err != nil {
				return err
			}
			walletTxns = append(walletTxns, txn)
		}

		// 支払はプラットフォームが精算まで預かる
		txn, err := creditWithinTx(ctx, r, LedgerEntryInput{
			WalletID:   platform.ID,
			Amount:     o.Total,
			Reason:     "order payment received",
			OrderID:    &o.ID,
			GatewayRef: gatewayRef,
		})
		if err != nil {
			return err
		}
		walletTxns = append(walletTxns, txn)

		return nil
	})
	if err != nil {
		return model.Order{}, err
	}

	if raceLost {
		// 先行した確定が書き込み済み。結果だけ合わせる
		o, err := u.reload(ctx, orderID)
		if err != nil {
			return model.Order{}, err
		}
		if o.PaymentStatus == model.PaymentStatusPaid {
			return o, nil
		}
		return model.Order{}, fmt.Errorf("%w: order %d payment is %s", ErrPaymentVerificationFailed, orderID, o.PaymentStatus)
	}

	for _, txn := range walletTxns {
		u.events.PublishWalletBalanceChanged(walletEvent(txn))
	}
	return u.reload(ctx, orderID)
}

func (u *OrderUsecase) GetOrder(ctx context.Context, orderID int64) (OrderOutput, error) {
	var out OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		items, err := r.OrderItems().ListByOrderID(ctx, orderID)
		if err != nil {
			return err
		}
		out = toOrderOutput(o, items)
		return nil
	})
	if err != nil {
		return OrderOutput{}, err
	}
	return out, nil
}

func (u *OrderUsecase) ListMyOrders(ctx context.Context, customerID int64, page int, limit int) ([]OrderOutput, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 100 {
		limit = 50
	}

	var outs []OrderOutput
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		orders, _, err := r.Orders().ListByCustomer(ctx, customerID, page, limit)
		if err != nil {
			return err
		}

		outs = make([]OrderOutput, 0, len(orders))
		for _, o := range orders {
			items, err := r.OrderItems().ListByOrderID(ctx, o.ID)
			if err != nil {
				return err
			}
			outs = append(outs, toOrderOutput(o, items))
		}
		return nil
	})
	if err != nil {
		return []OrderOutput{}, err
	}
	return outs, nil
}

func (u *OrderUsecase) History(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	var items []model.OrderStatusHistory
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		items, err = r.StatusHistory().ListByOrderID(ctx, orderID)
		return err
	})
	if err != nil {
		return []model.OrderStatusHistory{}, err
	}
	return items, nil
}

func (u *OrderUsecase) reload(ctx context.Context, orderID int64) (model.Order, error) {
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return model.Order{}, err
	}
	return o, nil
}

func (u *OrderUsecase) markSettlementFailed(ctx context.Context, orderID int64) error {
	return u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Orders().SetSettlementStatus(ctx, orderID, model.SettlementStatusFailed)
	})
}

// 顧客は自分の注文だけ、店舗は自店の注文だけ、パートナーは担当注文だけ
func checkActorOwnership(o model.Order, actor Actor) error {
	switch actor.Role {
	case model.RoleCustomer:
		if o.CustomerID != actor.UserID {
			return fmt.Errorf("%w: order %d does not belong to customer %d", ErrInvalidStateTransition, o.ID, actor.UserID)
		}
	case model.RoleRestaurant:
		if o.RestaurantID != actor.UserID {
			return fmt.Errorf("%w: order %d does not belong to restaurant %d", ErrInvalidStateTransition, o.ID, actor.UserID)
		}
	case model.RolePartner:
		if o.DeliveryPartnerID == nil || *o.DeliveryPartnerID != actor.UserID {
			return fmt.Errorf("%w: order %d is not assigned to partner %d", ErrInvalidStateTransition, o.ID, actor.UserID)
		}
	}
	return nil
}

func toOrderOutput(o model.Order, items []model.OrderItem) OrderOutput {
	outItems := make([]OrderItemOutput, 0, len(items))
	for _, it := range items {
		outItems = append(outItems, OrderItemOutput{
			MenuItemID: it.MenuItemID,
			Name:       it.NameSnapshot,
			UnitPrice:  it.UnitPriceSnapshot,
			Quantity:   it.Quantity,
			Subtotal:   it.Subtotal(),
		})
	}

	return OrderOutput{
		ID:                o.ID,
		CustomerID:        o.CustomerID,
		RestaurantID:      o.RestaurantID,
		DeliveryPartnerID: o.DeliveryPartnerID,
		Status:            o.Status,
		ItemTotal:         o.ItemTotal,
		DeliveryFee:       o.DeliveryFee,
		PlatformFee:       o.PlatformFee,
		Taxes:             o.Taxes,
		Discount:          o.Discount,
		Total:             o.Total,
		PaymentStatus:     o.PaymentStatus,
		CreatedAt:         o.CreatedAt,
		Items:             outItems,
	}
}

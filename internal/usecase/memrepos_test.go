package usecase

import (
	"context"
	"sync"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

// =====================
// インメモリのTxRepos実装。
// 条件付きUPDATEのCAS意味論とtxロールバックを再現する
// =====================

type memStore struct {
	mu sync.Mutex

	orders      map[int64]model.Order
	orderItems  map[int64][]model.OrderItem
	history     []model.OrderStatusHistory
	wallets     map[int64]model.Wallet
	walletTxns  []model.WalletTransaction
	promos      map[int64]model.PromoCode
	promoUsages []model.PromoCodeUsage
	loyalty     []model.LoyaltyTransaction
	partners    map[int64]model.DeliveryPartner
	restaurants map[int64]model.Restaurant
	subs        map[int64]model.RestaurantSubscription

	nextID int64
}

func newMemStore() *memStore {
	return &memStore{
		orders:      map[int64]model.Order{},
		orderItems:  map[int64][]model.OrderItem{},
		wallets:     map[int64]model.Wallet{},
		promos:      map[int64]model.PromoCode{},
		partners:    map[int64]model.DeliveryPartner{},
		restaurants: map[int64]model.Restaurant{},
		subs:        map[int64]model.RestaurantSubscription{},
		nextID:      0,
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() *memStore {
	c := newMemStore()
	c.nextID = s.nextID
	for k, v := range s.orders {
		c.orders[k] = v
	}
	for k, v := range s.orderItems {
		c.orderItems[k] = append([]model.OrderItem{}, v...)
	}
	c.history = append([]model.OrderStatusHistory{}, s.history...)
	for k, v := range s.wallets {
		c.wallets[k] = v
	}
	c.walletTxns = append([]model.WalletTransaction{}, s.walletTxns...)
	for k, v := range s.promos {
		c.promos[k] = v
	}
	c.promoUsages = append([]model.PromoCodeUsage{}, s.promoUsages...)
	c.loyalty = append([]model.LoyaltyTransaction{}, s.loyalty...)
	for k, v := range s.partners {
		c.partners[k] = v
	}
	for k, v := range s.restaurants {
		c.restaurants[k] = v
	}
	for k, v := range s.subs {
		c.subs[k] = v
	}
	return c
}

func (s *memStore) restore(from *memStore) {
	s.orders = from.orders
	s.orderItems = from.orderItems
	s.history = from.history
	s.wallets = from.wallets
	s.walletTxns = from.walletTxns
	s.promos = from.promos
	s.promoUsages = from.promoUsages
	s.loyalty = from.loyalty
	s.partners = from.partners
	s.restaurants = from.restaurants
	s.subs = from.subs
	s.nextID = from.nextID
}

type memTxManager struct {
	s *memStore
}

func newMemTxManager(s *memStore) *memTxManager {
	return &memTxManager{s: s}
}

// エラー時はスナップショットへ巻き戻す（gormのTransactionと同じ観測結果）
func (m *memTxManager) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	m.s.mu.Lock()
	defer m.s.mu.Unlock()

	snap := m.s.snapshot()
	err := fn(&memTxRepos{s: m.s})
	if err != nil {
		m.s.restore(snap)
	}
	return err
}

type memTxRepos struct{ s *memStore }

func (r *memTxRepos) Orders() repo.OrderRepository                     { return &memOrderRepo{r.s} }
func (r *memTxRepos) OrderItems() repo.OrderItemRepository             { return &memOrderItemRepo{r.s} }
func (r *memTxRepos) StatusHistory() repo.OrderStatusHistoryRepository { return &memHistoryRepo{r.s} }
func (r *memTxRepos) Wallets() repo.WalletRepository                   { return &memWalletRepo{r.s} }
func (r *memTxRepos) WalletTxns() repo.WalletTransactionRepository     { return &memWalletTxnRepo{r.s} }
func (r *memTxRepos) PromoCodes() repo.PromoCodeRepository             { return &memPromoRepo{r.s} }
func (r *memTxRepos) PromoUsages() repo.PromoUsageRepository           { return &memPromoUsageRepo{r.s} }
func (r *memTxRepos) Loyalty() repo.LoyaltyRepository                  { return &memLoyaltyRepo{r.s} }
func (r *memTxRepos) Partners() repo.DeliveryPartnerRepository         { return &memPartnerRepo{r.s} }
func (r *memTxRepos) Restaurants() repo.RestaurantRepository           { return &memRestaurantRepo{r.s} }
func (r *memTxRepos) Subscriptions() repo.SubscriptionRepository       { return &memSubscriptionRepo{r.s} }

// ---- orders ----

type memOrderRepo struct{ s *memStore }

func (m *memOrderRepo) FindByID(ctx context.Context, orderID int64) (model.Order, error) {
	o, ok := m.s.orders[orderID]
	if !ok {
		return model.Order{}, repo.ErrNotFound
	}
	return o, nil
}

func (m *memOrderRepo) ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.Order, int64, error) {
	var out []model.Order
	for _, o := range m.s.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memOrderRepo) Create(ctx context.Context, order model.Order) (int64, error) {
	order.ID = m.s.id()
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	order.UpdatedAt = order.CreatedAt
	m.s.orders[order.ID] = order
	return order.ID, nil
}

func (m *memOrderRepo) FindByIdempotencyKey(ctx context.Context, customerID int64, key string) (model.Order, bool, error) {
	for _, o := range m.s.orders {
		if o.CustomerID == customerID && o.IdempotencyKey == key {
			return o, true, nil
		}
	}
	return model.Order{}, false, nil
}

func (m *memOrderRepo) UpdateStatusIf(ctx context.Context, orderID int64, from model.OrderStatus, to model.OrderStatus) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	m.s.orders[orderID] = o
	return true, nil
}

func (m *memOrderRepo) AssignPartnerIf(ctx context.Context, orderID int64, partnerID int64, at time.Time) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.DeliveryPartnerID != nil {
		return false, nil
	}
	o.DeliveryPartnerID = &partnerID
	o.DriverAcceptedAt = &at
	m.s.orders[orderID] = o
	return true, nil
}

func (m *memOrderRepo) SetAccepted(ctx context.Context, orderID int64, at time.Time) error {
	o := m.s.orders[orderID]
	if o.AcceptedAt == nil {
		o.AcceptedAt = &at
	}
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) SetPickedUp(ctx context.Context, orderID int64, at time.Time) error {
	o := m.s.orders[orderID]
	if o.PickedUpAt == nil {
		o.PickedUpAt = &at
	}
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) SetDelivered(ctx context.Context, orderID int64, at time.Time, actualMins int64) error {
	o := m.s.orders[orderID]
	if o.DeliveredAt == nil {
		o.DeliveredAt = &at
		o.ActualDeliveryMins = &actualMins
	}
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) SetCancelled(ctx context.Context, orderID int64, at time.Time, reason string) error {
	o := m.s.orders[orderID]
	if o.CancelledAt == nil {
		o.CancelledAt = &at
		o.CancellationReason = reason
	}
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) SetPaymentStatus(ctx context.Context, orderID int64, status model.PaymentStatus, gatewayRef string) error {
	o := m.s.orders[orderID]
	o.PaymentStatus = status
	if gatewayRef != "" {
		o.GatewayRef = gatewayRef
	}
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) SetPaymentStatusIf(ctx context.Context, orderID int64, from model.PaymentStatus, to model.PaymentStatus, gatewayRef string) (bool, error) {
	o, ok := m.s.orders[orderID]
	if !ok || o.PaymentStatus != from {
		return false, nil
	}
	o.PaymentStatus = to
	if gatewayRef != "" {
		o.GatewayRef = gatewayRef
	}
	m.s.orders[orderID] = o
	return true, nil
}

func (m *memOrderRepo) SetSettlementStatus(ctx context.Context, orderID int64, status model.SettlementStatus) error {
	o := m.s.orders[orderID]
	o.SettlementStatus = status
	m.s.orders[orderID] = o
	return nil
}

func (m *memOrderRepo) ListByStatus(ctx context.Context, status model.OrderStatus, olderThan time.Time, limit int) ([]model.Order, error) {
	var out []model.Order
	for _, o := range m.s.orders {
		if o.Status == status && o.UpdatedAt.Before(olderThan) {
			out = append(out, o)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memOrderRepo) CountDelivered(ctx context.Context, restaurantID int64, from time.Time, to time.Time) (int64, error) {
	var n int64
	for _, o := range m.s.orders {
		if o.RestaurantID != restaurantID || o.Status != model.OrderStatusDelivered || o.DeliveredAt == nil {
			continue
		}
		if !o.DeliveredAt.Before(from) && o.DeliveredAt.Before(to) {
			n++
		}
	}
	return n, nil
}

// ---- order items ----

type memOrderItemRepo struct{ s *memStore }

func (m *memOrderItemRepo) CreateBulk(ctx context.Context, orderID int64, items []model.OrderItem) error {
	for i := range items {
		items[i].ID = m.s.id()
		items[i].OrderID = orderID
	}
	m.s.orderItems[orderID] = append(m.s.orderItems[orderID], items...)
	return nil
}

func (m *memOrderItemRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderItem, error) {
	return append([]model.OrderItem{}, m.s.orderItems[orderID]...), nil
}

// ---- status history ----

type memHistoryRepo struct{ s *memStore }

func (m *memHistoryRepo) Create(ctx context.Context, h model.OrderStatusHistory) error {
	h.ID = m.s.id()
	h.CreatedAt = time.Now()
	m.s.history = append(m.s.history, h)
	return nil
}

func (m *memHistoryRepo) ListByOrderID(ctx context.Context, orderID int64) ([]model.OrderStatusHistory, error) {
	var out []model.OrderStatusHistory
	for _, h := range m.s.history {
		if h.OrderID == orderID {
			out = append(out, h)
		}
	}
	return out, nil
}

// ---- wallets ----

type memWalletRepo struct{ s *memStore }

func (m *memWalletRepo) FindByID(ctx context.Context, walletID int64) (model.Wallet, error) {
	w, ok := m.s.wallets[walletID]
	if !ok {
		return model.Wallet{}, repo.ErrNotFound
	}
	return w, nil
}

func (m *memWalletRepo) FindByOwner(ctx context.Context, ownerType model.WalletOwnerType, ownerID int64) (model.Wallet, error) {
	for _, w := range m.s.wallets {
		if w.OwnerType == ownerType && w.OwnerID == ownerID {
			return w, nil
		}
	}
	return model.Wallet{}, repo.ErrNotFound
}

func (m *memWalletRepo) Create(ctx context.Context, w model.Wallet) (int64, error) {
	w.ID = m.s.id()
	m.s.wallets[w.ID] = w
	return w.ID, nil
}

func (m *memWalletRepo) DebitIfEnough(ctx context.Context, walletID int64, amount int64) (bool, error) {
	w, ok := m.s.wallets[walletID]
	if !ok || w.Balance < amount {
		return false, nil
	}
	w.Balance -= amount
	m.s.wallets[walletID] = w
	return true, nil
}

func (m *memWalletRepo) Credit(ctx context.Context, walletID int64, amount int64) error {
	w, ok := m.s.wallets[walletID]
	if !ok {
		return repo.ErrNotFound
	}
	w.Balance += amount
	m.s.wallets[walletID] = w
	return nil
}

func (m *memWalletRepo) Deactivate(ctx context.Context, walletID int64) error {
	w, ok := m.s.wallets[walletID]
	if !ok {
		return repo.ErrNotFound
	}
	w.IsActive = false
	m.s.wallets[walletID] = w
	return nil
}

// ---- wallet transactions ----

type memWalletTxnRepo struct{ s *memStore }

func (m *memWalletTxnRepo) Create(ctx context.Context, txn model.WalletTransaction) (int64, error) {
	txn.ID = m.s.id()
	txn.CreatedAt = time.Now()
	m.s.walletTxns = append(m.s.walletTxns, txn)
	return txn.ID, nil
}

func (m *memWalletTxnRepo) ListByWallet(ctx context.Context, walletID int64, page int, limit int) ([]model.WalletTransaction, int64, error) {
	var out []model.WalletTransaction
	for _, t := range m.s.walletTxns {
		if t.WalletID == walletID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memWalletTxnRepo) SumSigned(ctx context.Context, walletID int64) (int64, error) {
	var sum int64
	for _, t := range m.s.walletTxns {
		if t.WalletID == walletID {
			sum += t.SignedAmount()
		}
	}
	return sum, nil
}

// ---- promos ----

type memPromoRepo struct{ s *memStore }

func (m *memPromoRepo) FindByCode(ctx context.Context, code string) (model.PromoCode, error) {
	for _, p := range m.s.promos {
		if p.Code == code {
			return p, nil
		}
	}
	return model.PromoCode{}, repo.ErrNotFound
}

func (m *memPromoRepo) FindByID(ctx context.Context, promoID int64) (model.PromoCode, error) {
	p, ok := m.s.promos[promoID]
	if !ok {
		return model.PromoCode{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memPromoRepo) Create(ctx context.Context, p model.PromoCode) (int64, error) {
	p.ID = m.s.id()
	m.s.promos[p.ID] = p
	return p.ID, nil
}

type memPromoUsageRepo struct{ s *memStore }

func (m *memPromoUsageRepo) RecordIfBelowLimit(ctx context.Context, promoID int64, userID int64, orderID int64, limit int64) (bool, error) {
	n, _ := m.CountByPromoAndUser(ctx, promoID, userID)
	if n >= limit {
		return false, nil
	}
	m.s.promoUsages = append(m.s.promoUsages, model.PromoCodeUsage{
		ID:          m.s.id(),
		PromoCodeID: promoID,
		UserID:      userID,
		OrderID:     orderID,
		CreatedAt:   time.Now(),
	})
	return true, nil
}

func (m *memPromoUsageRepo) CountByPromoAndUser(ctx context.Context, promoID int64, userID int64) (int64, error) {
	var n int64
	for _, u := range m.s.promoUsages {
		if u.PromoCodeID == promoID && u.UserID == userID {
			n++
		}
	}
	return n, nil
}

// ---- loyalty ----

type memLoyaltyRepo struct{ s *memStore }

// 未掃き出しの期限切れEARN行は残高から除外する
func (m *memLoyaltyRepo) Balance(ctx context.Context, customerID int64, now time.Time) (int64, error) {
	var sum int64
	for _, t := range m.s.loyalty {
		if t.CustomerID != customerID {
			continue
		}
		if t.Type == model.LoyaltyTxnEarn && t.SweptAt == nil && t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			continue
		}
		sum += t.Points
	}
	return sum, nil
}

func (m *memLoyaltyRepo) Create(ctx context.Context, txn model.LoyaltyTransaction) (int64, error) {
	txn.ID = m.s.id()
	txn.CreatedAt = time.Now()
	m.s.loyalty = append(m.s.loyalty, txn)
	return txn.ID, nil
}

func (m *memLoyaltyRepo) RedeemIfEnough(ctx context.Context, customerID int64, orderID int64, points int64, now time.Time) (bool, error) {
	bal, _ := m.Balance(ctx, customerID, now)
	if bal < points {
		return false, nil
	}
	m.s.loyalty = append(m.s.loyalty, model.LoyaltyTransaction{
		ID:            m.s.id(),
		CustomerID:    customerID,
		OrderID:       &orderID,
		Type:          model.LoyaltyTxnRedeem,
		Points:        -points,
		BalanceBefore: bal,
		BalanceAfter:  bal - points,
		CreatedAt:     now,
	})
	return true, nil
}

func (m *memLoyaltyRepo) ListByCustomer(ctx context.Context, customerID int64, page int, limit int) ([]model.LoyaltyTransaction, int64, error) {
	var out []model.LoyaltyTransaction
	for _, t := range m.s.loyalty {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memLoyaltyRepo) ListExpiredUnswept(ctx context.Context, now time.Time, limit int) ([]model.LoyaltyTransaction, error) {
	var out []model.LoyaltyTransaction
	for _, t := range m.s.loyalty {
		if t.Type == model.LoyaltyTxnEarn && t.SweptAt == nil && t.ExpiresAt != nil && !t.ExpiresAt.After(now) {
			out = append(out, t)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *memLoyaltyRepo) MarkSwept(ctx context.Context, txnID int64, at time.Time) error {
	for i, t := range m.s.loyalty {
		if t.ID == txnID {
			m.s.loyalty[i].SweptAt = &at
			return nil
		}
	}
	return repo.ErrNotFound
}

// ---- partners ----

type memPartnerRepo struct{ s *memStore }

func (m *memPartnerRepo) FindByID(ctx context.Context, partnerID int64) (model.DeliveryPartner, error) {
	p, ok := m.s.partners[partnerID]
	if !ok {
		return model.DeliveryPartner{}, repo.ErrNotFound
	}
	return p, nil
}

func (m *memPartnerRepo) Create(ctx context.Context, p model.DeliveryPartner) (int64, error) {
	p.ID = m.s.id()
	m.s.partners[p.ID] = p
	return p.ID, nil
}

func (m *memPartnerRepo) ListOnlineAvailable(ctx context.Context) ([]model.DeliveryPartner, error) {
	var out []model.DeliveryPartner
	for _, p := range m.s.partners {
		if p.IsOnline && p.IsAvailable && p.IsActive {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPartnerRepo) ClaimIfAvailable(ctx context.Context, partnerID int64) (bool, error) {
	p, ok := m.s.partners[partnerID]
	if !ok || !p.IsAvailable {
		return false, nil
	}
	p.IsAvailable = false
	m.s.partners[partnerID] = p
	return true, nil
}

func (m *memPartnerRepo) ReleaseIfHeld(ctx context.Context, partnerID int64) (bool, error) {
	p, ok := m.s.partners[partnerID]
	if !ok || p.IsAvailable {
		return false, nil
	}
	p.IsAvailable = true
	m.s.partners[partnerID] = p
	return true, nil
}

func (m *memPartnerRepo) UpdateLocation(ctx context.Context, partnerID int64, lat float64, lng float64, at time.Time) error {
	p, ok := m.s.partners[partnerID]
	if !ok {
		return repo.ErrNotFound
	}
	p.CurrentLat = &lat
	p.CurrentLng = &lng
	p.LocationAt = &at
	m.s.partners[partnerID] = p
	return nil
}

func (m *memPartnerRepo) SetOnline(ctx context.Context, partnerID int64, online bool) error {
	p, ok := m.s.partners[partnerID]
	if !ok {
		return repo.ErrNotFound
	}
	p.IsOnline = online
	p.IsAvailable = online
	m.s.partners[partnerID] = p
	return nil
}

// ---- restaurants ----

type memRestaurantRepo struct{ s *memStore }

func (m *memRestaurantRepo) FindByID(ctx context.Context, restaurantID int64) (model.Restaurant, error) {
	r, ok := m.s.restaurants[restaurantID]
	if !ok {
		return model.Restaurant{}, repo.ErrNotFound
	}
	return r, nil
}

func (m *memRestaurantRepo) ListActive(ctx context.Context) ([]model.Restaurant, error) {
	var out []model.Restaurant
	for _, r := range m.s.restaurants {
		if r.IsActive {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memRestaurantRepo) Create(ctx context.Context, r model.Restaurant) (int64, error) {
	r.ID = m.s.id()
	m.s.restaurants[r.ID] = r
	return r.ID, nil
}

// ---- subscriptions ----

type memSubscriptionRepo struct{ s *memStore }

func (m *memSubscriptionRepo) CreateIfAbsent(ctx context.Context, sub model.RestaurantSubscription) (bool, error) {
	for _, existing := range m.s.subs {
		if existing.RestaurantID == sub.RestaurantID && existing.BillingDate.Equal(sub.BillingDate) {
			return false, nil
		}
	}
	sub.ID = m.s.id()
	m.s.subs[sub.ID] = sub
	return true, nil
}

func (m *memSubscriptionRepo) FindByRestaurantAndDate(ctx context.Context, restaurantID int64, date time.Time) (model.RestaurantSubscription, error) {
	for _, sub := range m.s.subs {
		if sub.RestaurantID == restaurantID && sub.BillingDate.Equal(date) {
			return sub, nil
		}
	}
	return model.RestaurantSubscription{}, repo.ErrNotFound
}

func (m *memSubscriptionRepo) ListByRestaurant(ctx context.Context, restaurantID int64, page int, limit int) ([]model.RestaurantSubscription, int64, error) {
	var out []model.RestaurantSubscription
	for _, sub := range m.s.subs {
		if sub.RestaurantID == restaurantID {
			out = append(out, sub)
		}
	}
	return out, int64(len(out)), nil
}

func (m *memSubscriptionRepo) UpdateStatus(ctx context.Context, subID int64, status model.SubscriptionStatus) error {
	sub, ok := m.s.subs[subID]
	if !ok {
		return repo.ErrNotFound
	}
	sub.Status = status
	m.s.subs[subID] = sub
	return nil
}

// ---- テスト用ヘルパ ----

func seedWallet(s *memStore, ownerType model.WalletOwnerType, ownerID int64, balance int64) int64 {
	id := s.id()
	s.wallets[id] = model.Wallet{ID: id, OwnerType: ownerType, OwnerID: ownerID, Balance: balance, IsActive: true}
	return id
}

func seedRestaurant(s *memStore, lat float64, lng float64, waived bool) int64 {
	id := s.id()
	s.restaurants[id] = model.Restaurant{ID: id, Name: "test restaurant", Lat: lat, Lng: lng, IsActive: true, FeeWaived: waived}
	return id
}

func seedPartner(s *memStore, lat float64, lng float64, rating float64) int64 {
	id := s.id()
	s.partners[id] = model.DeliveryPartner{
		ID: id, Name: "test partner",
		IsOnline: true, IsAvailable: true, IsActive: true,
		CurrentLat: &lat, CurrentLng: &lng,
		Rating: rating, AcceptanceRate: 1,
	}
	return id
}

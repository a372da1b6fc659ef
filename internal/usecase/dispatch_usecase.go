package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"time"

	"app/internal/domain/model"
	repo "app/internal/repository"
)

type DispatchConfig struct {
	RadiusKm    float64       // 店舗からの検索半径
	TopN        int           // 近い順に何人をスコア比較するか
	MaxAttempts int           // 確保リトライ回数
	OpTimeout   time.Duration // これを超えてREADY_FOR_PICKUPのままなら手動対応へ
}

func DefaultDispatchConfig() DispatchConfig {
	return DispatchConfig{
		RadiusKm:    10,
		TopN:        5,
		MaxAttempts: 3,
		OpTimeout:   2 * time.Minute,
	}
}

type NearbyPartner struct {
	PartnerID  int64
	DistanceKm float64
}

// PartnerLocator は近傍検索の advisory キャッシュ。
// 空き状況の正は常にDB側（ClaimIfAvailable）にある
type PartnerLocator interface {
	Update(ctx context.Context, partnerID int64, lat float64, lng float64) error
	Remove(ctx context.Context, partnerID int64) error
	Nearby(ctx context.Context, lat float64, lng float64, radiusKm float64, limit int) ([]NearbyPartner, error)
}

type AllocationResult struct {
	Assigned  bool  `json:"assigned"`
	PartnerID int64 `json:"partner_id,omitempty"`
}

// DispatchUsecase はREADYな注文への配達パートナー割当
type DispatchUsecase struct {
	tx      repo.TransactionManager
	locator PartnerLocator // nil可
	events  EventPublisher
	cfg     DispatchConfig
}

func NewDispatchUsecase(tx repo.TransactionManager, locator PartnerLocator, events EventPublisher, cfg DispatchConfig) *DispatchUsecase {
	if cfg.TopN <= 0 {
		cfg.TopN = 5
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}
	if cfg.RadiusKm <= 0 {
		cfg.RadiusKm = 10
	}
	return &DispatchUsecase{tx: tx, locator: locator, events: events, cfg: cfg}
}

type scoredPartner struct {
	partner    model.DeliveryPartner
	distanceKm float64
}

func (s scoredPartner) score() float64 {
	return s.partner.Rating*10 - s.distanceKm
}

// 確保レースの敗北を表す内部エラー（txロールバック用）
var (
	errClaimLost  = errors.New("partner claim lost")
	errOrderTaken = errors.New("order already taken")
)

// Allocate は空きパートナーを探して条件付きで確保する。
// 見つからない場合はエラーではなくAssigned=falseを返し、注文はREADY_FOR_PICKUPのまま
func (u *DispatchUsecase) Allocate(ctx context.Context, orderID int64) (AllocationResult, error) {
	var order model.Order
	var restaurant model.Restaurant
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		order = o

		rest, err := r.Restaurants().FindByID(ctx, o.RestaurantID)
		if err != nil {
			return err
		}
		restaurant = rest
		return nil
	})
	if err != nil {
		return AllocationResult{}, err
	}

	// 既に割当済みなら冪等成功
	if order.DeliveryPartnerID != nil {
		return AllocationResult{Assigned: true, PartnerID: *order.DeliveryPartnerID}, nil
	}
	if order.Status != model.OrderStatusReadyForPickup {
		return AllocationResult{}, fmt.Errorf("%w: order %d is %s, not %s",
			ErrInvalidStateTransition, orderID, order.Status, model.OrderStatusReadyForPickup)
	}

	candidates, err := u.candidates(ctx, restaurant.Lat, restaurant.Lng)
	if err != nil {
		return AllocationResult{}, err
	}
	if len(candidates) == 0 {
		return AllocationResult{Assigned: false}, nil
	}

	excluded := map[int64]bool{}
	now := time.Now()

	for attempt := 0; attempt < u.cfg.MaxAttempts; attempt++ {
		best, ok := pickBest(candidates, excluded, u.cfg.TopN)
		if !ok {
			break
		}

		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			// 書き込み時点で両方の事実がまだ成り立つときだけ成立する
			claimed, err := r.Partners().ClaimIfAvailable(ctx, best.partner.ID)
			if err != nil {
				return err
			}
			if !claimed {
				return errClaimLost
			}

			assigned, err := r.Orders().AssignPartnerIf(ctx, orderID, best.partner.ID, now)
			if err != nil {
				return err
			}
			if !assigned {
				return errOrderTaken
			}

			moved, err := r.Orders().UpdateStatusIf(ctx, orderID, model.OrderStatusReadyForPickup, model.OrderStatusPartnerAssigned)
			if err != nil {
				return err
			}
			if !moved {
				return errOrderTaken
			}

			return r.StatusHistory().Create(ctx, model.OrderStatusHistory{
				OrderID:    orderID,
				FromStatus: model.OrderStatusReadyForPickup,
				ToStatus:   model.OrderStatusPartnerAssigned,
				ActorRole:  model.RoleSystem,
				Note:       fmt.Sprintf("dispatched partner %d (%.1fkm)", best.partner.ID, best.distanceKm),
			})
		})

		switch {
		case err == nil:
			u.events.PublishOrderStatusChanged(OrderStatusChangedEvent{
				OrderID:   orderID,
				OldStatus: model.OrderStatusReadyForPickup,
				NewStatus: model.OrderStatusPartnerAssigned,
				ActorRole: model.RoleSystem,
				Timestamp: now,
			})
			return AllocationResult{Assigned: true, PartnerID: best.partner.ID}, nil

		case errors.Is(err, errClaimLost):
			// 負けた候補を除いて次の候補から選び直す
			excluded[best.partner.ID] = true

		case errors.Is(err, errOrderTaken):
			// 別の割当が先に注文を取った。冪等に解決する
			res, rerr := u.resolveExisting(ctx, orderID)
			if rerr != nil {
				return AllocationResult{}, rerr
			}
			return res, nil

		default:
			return AllocationResult{}, err
		}
	}

	return AllocationResult{Assigned: false}, nil
}

// UpdateLocation は現在地の更新。DBが正、キャッシュはbest-effort
func (u *DispatchUsecase) UpdateLocation(ctx context.Context, partnerID int64, lat float64, lng float64) error {
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return fmt.Errorf("invalid coordinates: %f, %f", lat, lng)
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Partners().UpdateLocation(ctx, partnerID, lat, lng, time.Now())
	})
	if err != nil {
		return err
	}

	if u.locator != nil {
		if err := u.locator.Update(ctx, partnerID, lat, lng); err != nil {
			log.Printf("location cache update partner %d: %v", partnerID, err)
		}
	}
	return nil
}

// SetOnline はオンライン/オフラインの切替。オフライン時はキャッシュからも外す
func (u *DispatchUsecase) SetOnline(ctx context.Context, partnerID int64, online bool) error {
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		return r.Partners().SetOnline(ctx, partnerID, online)
	})
	if err != nil {
		return err
	}

	if !online && u.locator != nil {
		if err := u.locator.Remove(ctx, partnerID); err != nil {
			log.Printf("location cache remove partner %d: %v", partnerID, err)
		}
	}
	return nil
}

// Release は配達完了/キャンセル時にパートナーを空きに戻す。戻すのは1回だけ
func (u *DispatchUsecase) Release(ctx context.Context, partnerID int64) (bool, error) {
	released := false
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ok, err := r.Partners().ReleaseIfHeld(ctx, partnerID)
		if err != nil {
			return err
		}
		released = ok
		return nil
	})
	if err != nil {
		return false, err
	}
	return released, nil
}

// AllocatePending はREADY_FOR_PICKUPで滞留している注文の再割当。
// スケジューラから定期的に呼ばれる（割当自体は内部でスケジュールしない）
func (u *DispatchUsecase) AllocatePending(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		limit = 50
	}

	var pending []model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		pending, err = r.Orders().ListByStatus(ctx, model.OrderStatusReadyForPickup, time.Now(), limit)
		return err
	})
	if err != nil {
		return 0, err
	}

	assigned := 0
	for _, o := range pending {
		if time.Since(o.UpdatedAt) > u.cfg.OpTimeout {
			// 運用タイムアウト超過：手動対応が必要
			log.Printf("order %d unassigned for %s, needs manual intervention", o.ID, time.Since(o.UpdatedAt).Round(time.Second))
			continue
		}

		res, err := u.Allocate(ctx, o.ID)
		if err != nil {
			log.Printf("allocate order %d: %v", o.ID, err)
			continue
		}
		if res.Assigned {
			assigned++
		}
	}
	return assigned, nil
}

// candidates はオンライン・空き・現在地既知のパートナーを半径内に絞り距離を付ける。
// キャッシュの近傍結果があれば距離はそれを使う（advisory）
func (u *DispatchUsecase) candidates(ctx context.Context, lat float64, lng float64) ([]scoredPartner, error) {
	var partners []model.DeliveryPartner
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		partners, err = r.Partners().ListOnlineAvailable(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	var cached map[int64]float64
	if u.locator != nil {
		if near, err := u.locator.Nearby(ctx, lat, lng, u.cfg.RadiusKm, 100); err == nil {
			cached = make(map[int64]float64, len(near))
			for _, n := range near {
				cached[n.PartnerID] = n.DistanceKm
			}
		}
	}

	out := make([]scoredPartner, 0, len(partners))
	for _, p := range partners {
		if !p.HasLocation() {
			continue
		}
		dist, ok := cached[p.ID]
		if !ok {
			dist = haversineKm(lat, lng, *p.CurrentLat, *p.CurrentLng)
		}
		if dist > u.cfg.RadiusKm {
			continue
		}
		out = append(out, scoredPartner{partner: p, distanceKm: dist})
	}
	return out, nil
}

// pickBest は近い順topNの中からスコア最大を選ぶ
func pickBest(candidates []scoredPartner, excluded map[int64]bool, topN int) (scoredPartner, bool) {
	eligible := make([]scoredPartner, 0, len(candidates))
	for _, c := range candidates {
		if !excluded[c.partner.ID] {
			eligible = append(eligible, c)
		}
	}
	if len(eligible) == 0 {
		return scoredPartner{}, false
	}

	sort.Slice(eligible, func(i, j int) bool {
		return eligible[i].distanceKm < eligible[j].distanceKm
	})
	if len(eligible) > topN {
		eligible = eligible[:topN]
	}

	best := eligible[0]
	for _, c := range eligible[1:] {
		if c.score() > best.score() {
			best = c
		}
	}
	return best, true
}

func (u *DispatchUsecase) resolveExisting(ctx context.Context, orderID int64) (AllocationResult, error) {
	var o model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		var err error
		o, err = r.Orders().FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return AllocationResult{}, err
	}
	if o.DeliveryPartnerID != nil {
		return AllocationResult{Assigned: true, PartnerID: *o.DeliveryPartnerID}, nil
	}
	return AllocationResult{Assigned: false}, nil
}

const earthRadiusKm = 6371.0

// haversineKm は大円距離
func haversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	toRad := func(deg float64) float64 { return deg * math.Pi / 180 }

	dLat := toRad(lat2 - lat1)
	dLng := toRad(lng2 - lng1)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(toRad(lat1))*math.Cos(toRad(lat2))*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

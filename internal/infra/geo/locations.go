package geo

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"app/internal/usecase"
)

// パートナー現在地のGEOインデックスキー
const keyPartnerLocations = "partner:locations"

func NewClient(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

// LocationCache はパートナー現在地の近傍検索用キャッシュ。
// あくまで advisory であり、空き状況の正はDB側にある
type LocationCache struct {
	rdb *redis.Client
}

func NewLocationCache(rdb *redis.Client) *LocationCache {
	return &LocationCache{rdb: rdb}
}

func (c *LocationCache) Update(ctx context.Context, partnerID int64, lat float64, lng float64) error {
	return c.rdb.GeoAdd(ctx, keyPartnerLocations, &redis.GeoLocation{
		Name:      strconv.FormatInt(partnerID, 10),
		Latitude:  lat,
		Longitude: lng,
	}).Err()
}

func (c *LocationCache) Remove(ctx context.Context, partnerID int64) error {
	return c.rdb.ZRem(ctx, keyPartnerLocations, strconv.FormatInt(partnerID, 10)).Err()
}

// Nearby は(lat, lng)からradiusKm以内のパートナーを近い順で返す
func (c *LocationCache) Nearby(ctx context.Context, lat float64, lng float64, radiusKm float64, limit int) ([]usecase.NearbyPartner, error) {
	locs, err := c.rdb.GeoSearchLocation(ctx, keyPartnerLocations, &redis.GeoSearchLocationQuery{
		GeoSearchQuery: redis.GeoSearchQuery{
			Latitude:   lat,
			Longitude:  lng,
			Radius:     radiusKm,
			RadiusUnit: "km",
			Sort:       "ASC",
			Count:      limit,
		},
		WithDist: true,
	}).Result()
	if err != nil {
		return nil, err
	}

	out := make([]usecase.NearbyPartner, 0, len(locs))
	for _, l := range locs {
		id, err := strconv.ParseInt(l.Name, 10, 64)
		if err != nil {
			continue
		}
		out = append(out, usecase.NearbyPartner{PartnerID: id, DistanceKm: l.Dist})
	}
	return out, nil
}

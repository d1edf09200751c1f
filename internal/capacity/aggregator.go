// Package capacity answers "how many of product X still fit on date D".
package capacity

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"batard/internal/models"
)

// Availability is one product's remaining room on one date.
type Availability struct {
	ProductID     int64  `json:"product_id"`
	Name          string `json:"name"`
	DailyCapacity *int64 `json:"daily_capacity,omitempty"`
	Stock         *int64 `json:"stock,omitempty"`
	AlreadyBooked int64  `json:"already_booked"`
	Remaining     *int64 `json:"remaining,omitempty"` // nil means unbounded
}

// Fits reports whether qty more units fit.
func (a Availability) Fits(qty int64) bool {
	return a.Remaining == nil || qty <= *a.Remaining
}

// Store is the slice of the database the aggregator reads.
type Store interface {
	FindProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	BookedQuantities(ctx context.Context, date string) (map[int64]int64, error)
}

// Aggregator computes advisory availability snapshots. The numbers it returns
// are pre-check material for clients; the binding check happens inside the
// booking creation transaction.
type Aggregator struct {
	store    Store
	redis    *redis.Client
	cacheTTL time.Duration
}

func NewAggregator(store Store) *Aggregator {
	return &Aggregator{store: store}
}

// UseRedisCache enables caching of per-date booked quantities.
func (a *Aggregator) UseRedisCache(client *redis.Client, ttl time.Duration) {
	a.redis = client
	a.cacheTTL = ttl
}

// Check returns availability for the requested products on date. Unknown or
// inactive product IDs are simply absent from the result.
func (a *Aggregator) Check(ctx context.Context, date string, productIDs []int64) (map[int64]Availability, error) {
	products, err := a.store.FindProductsByIDs(ctx, productIDs)
	if err != nil {
		return nil, fmt.Errorf("resolve products: %w", err)
	}

	booked, err := a.bookedQuantities(ctx, date)
	if err != nil {
		return nil, err
	}

	out := make(map[int64]Availability, len(products))
	for id, p := range products {
		av := Availability{
			ProductID:     id,
			Name:          p.Name,
			DailyCapacity: p.DailyCapacity,
			Stock:         p.Stock,
			AlreadyBooked: booked[id],
		}
		if cap, bounded := p.EffectiveCap(); bounded {
			remaining := cap - booked[id]
			if remaining < 0 {
				remaining = 0
			}
			av.Remaining = &remaining
		}
		out[id] = av
	}
	return out, nil
}

// Invalidate drops the cached snapshot for a date. Called after every booking
// creation so the advisory numbers lag a committed write by at most one miss.
func (a *Aggregator) Invalidate(ctx context.Context, dates ...string) {
	if a.redis == nil {
		return
	}
	for _, date := range dates {
		_ = a.redis.Del(ctx, bookedCacheKey(date)).Err()
	}
}

func (a *Aggregator) bookedQuantities(ctx context.Context, date string) (map[int64]int64, error) {
	key := bookedCacheKey(date)

	var cached map[int64]int64
	if a.readCache(ctx, key, &cached) {
		return cached, nil
	}

	booked, err := a.store.BookedQuantities(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("aggregate booked quantities: %w", err)
	}
	a.writeCache(ctx, key, booked)
	return booked, nil
}

func (a *Aggregator) readCache(ctx context.Context, key string, out any) bool {
	if a.redis == nil || a.cacheTTL <= 0 {
		return false
	}
	val, err := a.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (a *Aggregator) writeCache(ctx context.Context, key string, val any) {
	if a.redis == nil || a.cacheTTL <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = a.redis.Set(ctx, key, data, a.cacheTTL).Err()
}

func bookedCacheKey(date string) string {
	return "capacity:booked:" + date
}

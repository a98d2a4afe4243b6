package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/xraph/plans"
	"github.com/xraph/plans/plan"
)

// Backend holds cached plans keyed by plan ID. Get returns
// plans.ErrCacheMiss when the key is absent or expired.
type Backend interface {
	Get(ctx context.Context, key string) (*plan.Plan, error)
	Set(ctx context.Context, key string, p *plan.Plan) error
	Delete(ctx context.Context, key string) error
}

// ==================== LRU ====================

// LRUBackend is an in-process, size-bounded cache with per-entry expiry.
type LRUBackend struct {
	cache *lru.LRU[string, *plan.Plan]
}

// NewLRUBackend creates an LRU backend holding at most size plans, each for
// at most ttl. A zero ttl disables expiry.
func NewLRUBackend(size int, ttl time.Duration) *LRUBackend {
	if size <= 0 {
		size = DefaultSize
	}
	return &LRUBackend{
		cache: lru.NewLRU[string, *plan.Plan](size, nil, ttl),
	}
}

func (b *LRUBackend) Get(_ context.Context, key string) (*plan.Plan, error) {
	p, ok := b.cache.Get(key)
	if !ok {
		return nil, plans.ErrCacheMiss
	}
	return p.Clone(), nil
}

func (b *LRUBackend) Set(_ context.Context, key string, p *plan.Plan) error {
	b.cache.Add(key, p.Clone())
	return nil
}

func (b *LRUBackend) Delete(_ context.Context, key string) error {
	b.cache.Remove(key)
	return nil
}

// Len returns the number of live entries.
func (b *LRUBackend) Len() int { return b.cache.Len() }

// ==================== Redis ====================

// RedisClient is the subset of go-redis client methods used by RedisBackend.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisBackend stores plans as JSON documents so several processes can
// share one cache.
type RedisBackend struct {
	client RedisClient
	prefix string
	ttl    time.Duration
}

// NewRedisBackend creates a Redis backend. Keys are written as prefix+key.
func NewRedisBackend(client RedisClient, prefix string, ttl time.Duration) *RedisBackend {
	if prefix == "" {
		prefix = DefaultRedisPrefix
	}
	return &RedisBackend{
		client: client,
		prefix: prefix,
		ttl:    ttl,
	}
}

func (b *RedisBackend) Get(ctx context.Context, key string) (*plan.Plan, error) {
	raw, err := b.client.Get(ctx, b.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, plans.ErrCacheMiss
		}
		return nil, fmt.Errorf("plans/cache: redis get: %w", err)
	}

	var p plan.Plan
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("plans/cache: decode plan: %w", err)
	}
	return &p, nil
}

func (b *RedisBackend) Set(ctx context.Context, key string, p *plan.Plan) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("plans/cache: encode plan: %w", err)
	}
	if err := b.client.Set(ctx, b.prefix+key, raw, b.ttl).Err(); err != nil {
		return fmt.Errorf("plans/cache: redis set: %w", err)
	}
	return nil
}

func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, b.prefix+key).Err(); err != nil {
		return fmt.Errorf("plans/cache: redis del: %w", err)
	}
	return nil
}

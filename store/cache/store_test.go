package cache_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store"
	"github.com/xraph/plans/store/cache"
	"github.com/xraph/plans/store/memory"
)

// countingStore counts GetPlan calls that reach the wrapped store.
type countingStore struct {
	store.Store
	gets int
}

func (c *countingStore) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	c.gets++
	return c.Store.GetPlan(ctx, planID)
}

func seed(t *testing.T, s store.Store) *plan.Plan {
	t.Helper()

	p := &plan.Plan{ID: id.NewPlanID(), Name: "Basic", Duration: 30}
	p.Features = []plan.Feature{
		{ID: id.NewFeatureID(), PlanID: p.ID, Code: "api.calls", Kind: plan.KindLimit, Limit: 10},
	}
	require.NoError(t, s.CreatePlan(context.Background(), p))
	return p
}

func backends(t *testing.T) map[string]cache.Backend {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]cache.Backend{
		"lru":   cache.NewLRUBackend(16, time.Minute),
		"redis": cache.NewRedisBackend(client, "", time.Minute),
	}
}

func TestGetPlanReadsThrough(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inner := &countingStore{Store: memory.New()}
			p := seed(t, inner)

			s := cache.New(inner, backend)

			first, err := s.GetPlan(ctx, p.ID)
			require.NoError(t, err)
			second, err := s.GetPlan(ctx, p.ID)
			require.NoError(t, err)

			assert.Equal(t, 1, inner.gets)
			assert.Equal(t, "Basic", second.Name)
			require.Len(t, second.Features, 1)
			assert.Equal(t, int64(10), second.Features[0].Limit)
			assert.True(t, first.ID.Equal(second.ID))
		})
	}
}

func TestWritesEvict(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			inner := &countingStore{Store: memory.New()}
			p := seed(t, inner)
			s := cache.New(inner, backend)

			_, err := s.GetPlan(ctx, p.ID)
			require.NoError(t, err)

			p.Name = "Basic v2"
			require.NoError(t, s.UpdatePlan(ctx, p))

			got, err := s.GetPlan(ctx, p.ID)
			require.NoError(t, err)
			assert.Equal(t, "Basic v2", got.Name)
			assert.Equal(t, 2, inner.gets)

			f := &plan.Feature{ID: id.NewFeatureID(), PlanID: p.ID, Code: "sso", Kind: plan.KindFeature}
			require.NoError(t, s.CreateFeature(ctx, f))

			got, err = s.GetPlan(ctx, p.ID)
			require.NoError(t, err)
			assert.True(t, got.HasFeature("sso"))
			assert.Equal(t, 3, inner.gets)
		})
	}
}

func TestMissingPlanIsNotCached(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{Store: memory.New()}
	s := cache.New(inner, cache.NewLRUBackend(4, 0))

	missing := id.NewPlanID()
	_, err := s.GetPlan(ctx, missing)
	require.ErrorIs(t, err, plans.ErrPlanNotFound)
	_, err = s.GetPlan(ctx, missing)
	require.ErrorIs(t, err, plans.ErrPlanNotFound)

	assert.Equal(t, 2, inner.gets)
}

func TestLRUBackendReturnsCopies(t *testing.T) {
	ctx := context.Background()
	b := cache.NewLRUBackend(4, time.Minute)

	p := &plan.Plan{ID: id.NewPlanID(), Name: "Pro"}
	require.NoError(t, b.Set(ctx, p.ID.String(), p))

	got, err := b.Get(ctx, p.ID.String())
	require.NoError(t, err)
	got.Name = "mutated"

	again, err := b.Get(ctx, p.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "Pro", again.Name)
	assert.Equal(t, 1, b.Len())
}

func TestRedisBackendExpires(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	b := cache.NewRedisBackend(client, "test:", time.Minute)
	p := &plan.Plan{ID: id.NewPlanID(), Name: "Pro"}
	require.NoError(t, b.Set(ctx, p.ID.String(), p))
	assert.True(t, mr.Exists("test:"+p.ID.String()))

	mr.FastForward(2 * time.Minute)

	_, err := b.Get(ctx, p.ID.String())
	assert.ErrorIs(t, err, plans.ErrCacheMiss)
}

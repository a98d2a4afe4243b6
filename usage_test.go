package plans_test

import (
	"context"
	"math"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/entitlement"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/subscription"
)

func subscribed(t *testing.T, f *fixture) *subscription.Subscription {
	t.Helper()

	sub, err := f.engine.Subscriber(plans.NewRef("team", "acme")).SubscribeTo(context.Background(), f.basic, 30)
	require.NoError(t, err)
	f.clock.Advance(day)

	return sub
}

func TestConsumeUpToLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	_, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 2001)
	require.ErrorIs(t, err, plans.ErrLimitExceeded)
	assert.True(t, plans.IsRefusal(err))

	rec, err := f.store.GetUsageRecord(ctx, sub.ID, "build.minutes")
	require.NoError(t, err, "first refused consumption still creates the counter")
	assert.Zero(t, rec.Used)

	rec, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 2000)
	require.NoError(t, err)
	assert.Equal(t, int64(2000), rec.Used)

	ev, ok := f.events.last().(*event.FeatureConsumed)
	require.True(t, ok)
	assert.Equal(t, int64(2000), ev.Amount)
	assert.Equal(t, int64(2000), ev.Remaining)

	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 1)
	assert.ErrorIs(t, err, plans.ErrLimitExceeded)

	remaining, err := f.engine.RemainingOf(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.Zero(t, remaining)
}

func TestConsumeReportsRemainingBeforeConsumption(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	_, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 500)
	require.NoError(t, err)
	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 300)
	require.NoError(t, err)

	ev, ok := f.events.last().(*event.FeatureConsumed)
	require.True(t, ok)
	assert.Equal(t, int64(300), ev.Amount)
	assert.Equal(t, int64(1500), ev.Remaining)

	used, err := f.engine.UsageOf(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.Equal(t, int64(800), used)
}

func TestConsumeHugeAmountDoesNotOverflow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	_, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 10)
	require.NoError(t, err)

	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", math.MaxInt64)
	require.ErrorIs(t, err, plans.ErrLimitExceeded)

	used, err := f.engine.UsageOf(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.Equal(t, int64(10), used)
}

func TestUsageTimestampsFollowEngineClock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	rec, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 1)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(day), rec.CreatedAt)
	assert.Equal(t, t0.Add(day), rec.UpdatedAt)

	f.clock.Advance(2 * day)
	rec, err = f.engine.UnconsumeFeature(ctx, sub, "build.minutes", 1)
	require.NoError(t, err)
	assert.Equal(t, t0.Add(day), rec.CreatedAt)
	assert.Equal(t, t0.Add(3*day), rec.UpdatedAt)
}

func TestConsumeRefusals(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	tests := []struct {
		name   string
		code   string
		amount int64
		want   error
	}{
		{"boolean feature", "sso", 1, plans.ErrFeatureNotLimit},
		{"unknown feature", "gpu.hours", 1, plans.ErrFeatureNotFound},
		{"negative amount", "build.minutes", -1, plans.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ConsumeFeature(ctx, sub, tt.code, tt.amount)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, plans.IsRefusal(err))
		})
	}

	_, err := f.store.GetUsageRecord(ctx, sub.ID, "sso")
	assert.ErrorIs(t, err, plans.ErrUsageNotFound)
}

func TestConsumeZeroAlwaysFits(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	rec, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 0)
	require.NoError(t, err)
	assert.Zero(t, rec.Used)
}

func TestConcurrentConsumptionNeverOvershoots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	var ok atomic.Int64
	var wg sync.WaitGroup
	for range 60 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.engine.ConsumeFeature(ctx, sub, "build.minutes", 50); err == nil {
				ok.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(40), ok.Load())

	used, err := f.engine.UsageOf(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.Equal(t, int64(2000), used)
}

func TestUnconsumeFloorsAtZero(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	_, err := f.engine.UnconsumeFeature(ctx, sub, "build.minutes", 5)
	assert.ErrorIs(t, err, plans.ErrUsageNotFound)

	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 100)
	require.NoError(t, err)

	rec, err := f.engine.UnconsumeFeature(ctx, sub, "build.minutes", 40)
	require.NoError(t, err)
	assert.Equal(t, int64(60), rec.Used)

	ev, ok := f.events.last().(*event.FeatureUnconsumed)
	require.True(t, ok)
	assert.Equal(t, int64(1940), ev.Remaining)

	rec, err = f.engine.UnconsumeFeature(ctx, sub, "build.minutes", 500)
	require.NoError(t, err)
	assert.Zero(t, rec.Used)
}

func TestUsagesAndFeatures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	used, err := f.engine.UsageOf(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.Zero(t, used)

	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 10)
	require.NoError(t, err)

	recs, err := f.engine.Usages(ctx, sub)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "build.minutes", recs[0].Code)

	features, err := f.engine.Features(ctx, sub)
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestEntitled(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	sub := subscribed(t, f)

	res, err := f.engine.Entitled(ctx, sub, "sso")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, res.Metered)

	res, err = f.engine.Entitled(ctx, sub, "audit.log")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, entitlement.ReasonUnknownFeature, res.Reason)

	_, err = f.engine.ConsumeFeature(ctx, sub, "build.minutes", 2000)
	require.NoError(t, err)

	res, err = f.engine.Entitled(ctx, sub, "build.minutes")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, entitlement.ReasonExhausted, res.Reason)
	assert.Equal(t, int64(2000), res.Used)

	f.clock.Advance(40 * day)
	res, err = f.engine.Entitled(ctx, sub, "sso")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, entitlement.ReasonInactive, res.Reason)
}

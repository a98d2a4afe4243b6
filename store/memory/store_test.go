package memory_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store/memory"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
)

var t0 = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

func seedPlan(t *testing.T, s *memory.Store) *plan.Plan {
	t.Helper()

	p := &plan.Plan{ID: id.NewPlanID(), Name: "Basic", Duration: 30}
	p.Features = []plan.Feature{
		{ID: id.NewFeatureID(), PlanID: p.ID, Code: "api.calls", Kind: plan.KindLimit, Limit: 10},
	}
	require.NoError(t, s.CreatePlan(context.Background(), p))

	return p
}

func TestPlansAreCopied(t *testing.T) {
	s := memory.New()
	p := seedPlan(t, s)

	p.Name = "mutated"
	p.Features[0].Limit = 999

	got, err := s.GetPlan(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Basic", got.Name)
	assert.Equal(t, int64(10), got.Features[0].Limit)

	assert.ErrorIs(t, s.CreatePlan(context.Background(), p), plans.ErrAlreadyExists)

	_, err = s.GetPlan(context.Background(), id.NewPlanID())
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)
}

func TestFeatures(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	p := seedPlan(t, s)

	f := &plan.Feature{ID: id.NewFeatureID(), PlanID: p.ID, Code: "sso", Kind: plan.KindFeature}
	require.NoError(t, s.CreateFeature(ctx, f))
	assert.ErrorIs(t, s.CreateFeature(ctx, f), plans.ErrDuplicateFeature)

	f.Name = "Single sign-on"
	require.NoError(t, s.UpdateFeature(ctx, f))

	features, err := s.ListFeatures(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "Single sign-on", features[1].Name)

	orphan := &plan.Feature{ID: id.NewFeatureID(), PlanID: id.NewPlanID(), Code: "x"}
	assert.ErrorIs(t, s.CreateFeature(ctx, orphan), plans.ErrPlanNotFound)
}

func TestActiveAndLatestSubscription(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	ref := subject.NewRef("user", "1")

	first := &subscription.Subscription{ID: id.NewSubscriptionID(), Subject: ref, StartsOn: t0, ExpiresOn: t0.AddDate(0, 0, 10)}
	second := first.Successor(20, t0)
	require.NoError(t, s.CreateSubscription(ctx, first))
	require.NoError(t, s.CreateSubscription(ctx, second))

	active, err := s.GetActiveSubscription(ctx, ref, t0.AddDate(0, 0, 5))
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	_, err = s.GetActiveSubscription(ctx, ref, t0)
	assert.ErrorIs(t, err, plans.ErrNoActiveSubscription, "window is exclusive at the start")

	latest, err := s.GetLatestSubscription(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	n, err := s.CountSubscriptions(ctx, ref)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := s.ListSubscriptions(ctx, ref, subscription.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, second.ID, list[0].ID)

	_, err = s.GetLatestSubscription(ctx, subject.NewRef("user", "2"))
	assert.ErrorIs(t, err, plans.ErrSubscriptionNotFound)
}

func TestUsageCounters(t *testing.T) {
	s := memory.New()
	ctx := context.Background()
	subID := id.NewSubscriptionID()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	_, err := s.IncrementUsageRecord(ctx, subID, "api.calls", 1, 10, at)
	assert.ErrorIs(t, err, plans.ErrUsageNotFound)

	a, err := s.EnsureUsageRecord(ctx, subID, "api.calls", at)
	require.NoError(t, err)
	b, err := s.EnsureUsageRecord(ctx, subID, "api.calls", at)
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	assert.Equal(t, at, a.CreatedAt)

	later := at.Add(time.Hour)
	rec, err := s.IncrementUsageRecord(ctx, subID, "api.calls", 10, 10, later)
	require.NoError(t, err)
	assert.Equal(t, int64(10), rec.Used)
	assert.Equal(t, later, rec.UpdatedAt)

	_, err = s.IncrementUsageRecord(ctx, subID, "api.calls", 1, 10, later)
	assert.ErrorIs(t, err, plans.ErrLimitExceeded)

	_, err = s.IncrementUsageRecord(ctx, subID, "api.calls", math.MaxInt64, 10, later)
	assert.ErrorIs(t, err, plans.ErrLimitExceeded)

	rec, err = s.DecrementUsageRecord(ctx, subID, "api.calls", 25, later)
	require.NoError(t, err)
	assert.Zero(t, rec.Used)

	recs, err := s.ListUsageRecords(ctx, subID)
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestClose(t *testing.T) {
	s := memory.New()
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Ping(context.Background()), plans.ErrStoreClosed)
}

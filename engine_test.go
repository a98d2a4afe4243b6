package plans_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store/memory"
)

func TestCreatePlanDefaults(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := &plan.Plan{
		Name:     "Starter",
		Features: []plan.Feature{{Code: "projects", Kind: plan.KindLimit, Limit: 3}, {Code: "exports"}},
	}
	require.NoError(t, f.engine.CreatePlan(ctx, p))

	assert.False(t, p.ID.IsNil())
	assert.Equal(t, plan.DefaultDuration, p.Duration)
	assert.Equal(t, "usd", p.Price.Currency)

	got, err := f.engine.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, got.Features, 2)
	assert.Equal(t, plan.KindFeature, got.Features[1].Kind)
	assert.True(t, got.Features[0].PlanID.Equal(p.ID))

	assert.Equal(t, event.NamePlanCreated, f.events.last().Name())
}

func TestCreatePlanValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	tests := []struct {
		name string
		plan *plan.Plan
		want error
	}{
		{"missing name", &plan.Plan{}, plans.ErrInvalidInput},
		{"negative duration", &plan.Plan{Name: "x", Duration: -1}, plans.ErrInvalidInput},
		{"missing code", &plan.Plan{Name: "x", Features: []plan.Feature{{Name: "a"}}}, plans.ErrInvalidInput},
		{"bad kind", &plan.Plan{Name: "x", Features: []plan.Feature{{Code: "a", Kind: "metered"}}}, plans.ErrInvalidInput},
		{"negative limit", &plan.Plan{Name: "x", Features: []plan.Feature{{Code: "a", Kind: plan.KindLimit, Limit: -5}}}, plans.ErrInvalidInput},
		{"duplicate code", &plan.Plan{Name: "x", Features: []plan.Feature{{Code: "a"}, {Code: "a"}}}, plans.ErrDuplicateFeature},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.engine.CreatePlan(ctx, tt.plan)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestAddFeature(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.engine.AddFeature(ctx, f.basic.ID, &plan.Feature{Code: "seats", Kind: plan.KindLimit, Limit: 5}))
	assert.ErrorIs(t, f.engine.AddFeature(ctx, f.basic.ID, &plan.Feature{Code: "sso"}), plans.ErrDuplicateFeature)

	got, err := f.engine.GetPlan(ctx, f.basic.ID)
	require.NoError(t, err)
	seats, ok := got.FeatureByCode("seats")
	require.True(t, ok)
	assert.Equal(t, int64(5), seats.Limit)
}

func TestListPlansOldestFirst(t *testing.T) {
	f := newFixture(t)

	ps, err := f.engine.ListPlans(context.Background(), plan.ListOpts{})
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "Basic", ps[0].Name)
	assert.Equal(t, "Pro", ps[1].Name)
}

func TestIsRefusal(t *testing.T) {
	assert.True(t, plans.IsRefusal(plans.ErrLimitExceeded))
	assert.True(t, plans.IsRefusal(plans.ErrAlreadyCancelled))
	assert.False(t, plans.IsRefusal(errors.New("connection reset")))
	assert.False(t, plans.IsRefusal(plans.ErrStoreClosed))

	assert.True(t, plans.IsNotFound(plans.ErrPlanNotFound))
	assert.False(t, plans.IsNotFound(plans.ErrLimitExceeded))
}

type failingMigrate struct {
	*memory.Store
}

func (failingMigrate) Migrate(context.Context) error { return errors.New("boom") }

func TestStartSkipMigrate(t *testing.T) {
	st := failingMigrate{Store: memory.New()}

	err := plans.New(st, plans.WithLogger(slog.New(slog.DiscardHandler))).Start(context.Background())
	require.Error(t, err)

	eng := plans.New(st, plans.WithLogger(slog.New(slog.DiscardHandler)), plans.WithSkipMigrate())
	require.NoError(t, eng.Start(context.Background()))
}

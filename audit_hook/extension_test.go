package audithook_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	audithook "github.com/xraph/plans/audit_hook"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
)

var at = time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)

func collect() (*[]*audithook.AuditEvent, audithook.RecorderFunc) {
	var got []*audithook.AuditEvent
	return &got, func(_ context.Context, e *audithook.AuditEvent) error {
		got = append(got, e)
		return nil
	}
}

func testSubscription() *subscription.Subscription {
	return &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		PlanID:    id.NewPlanID(),
		Subject:   subject.NewRef("user", "42"),
		StartsOn:  at,
		ExpiresOn: at.AddDate(0, 0, 30),
	}
}

func TestNewSubscriptionIsRecorded(t *testing.T) {
	got, rec := collect()
	ext := audithook.New(rec)

	sub := testSubscription()
	require.NoError(t, ext.OnNewSubscription(context.Background(), &event.NewSubscription{
		Meta:         event.NewMeta(at),
		Subscription: sub,
		Duration:     30,
	}))

	require.Len(t, *got, 1)
	e := (*got)[0]
	assert.Equal(t, audithook.ActionSubscriptionCreated, e.Action)
	assert.Equal(t, audithook.ResourceSubscription, e.Resource)
	assert.Equal(t, sub.ID.String(), e.ResourceID)
	assert.Equal(t, "user:42", e.Metadata["subject"])
	assert.Equal(t, 30, e.Metadata["duration"])
}

func TestRenewalRecordsSuccessor(t *testing.T) {
	got, rec := collect()
	ext := audithook.New(rec)

	sub := testSubscription()
	next := sub.Successor(30, at)
	require.NoError(t, ext.OnSubscriptionExtended(context.Background(), &event.ExtendSubscription{
		Meta:            event.NewMeta(at),
		Subscription:    sub,
		Duration:        30,
		NewSubscription: next,
	}))

	require.Len(t, *got, 2)
	assert.Equal(t, audithook.ActionSubscriptionExtended, (*got)[0].Action)
	assert.Equal(t, audithook.ActionSubscriptionRenewed, (*got)[1].Action)
	assert.Equal(t, next.ID.String(), (*got)[1].ResourceID)
	assert.Equal(t, sub.ID.String(), (*got)[1].Metadata["previous_id"])
}

func TestExhaustingConsumptionRecordsLimitReached(t *testing.T) {
	got, rec := collect()
	ext := audithook.New(rec)

	f := &plan.Feature{Code: "api.calls", Kind: plan.KindLimit, Limit: 10}
	require.NoError(t, ext.OnFeatureConsumed(context.Background(), &event.FeatureConsumed{
		Meta:         event.NewMeta(at),
		Subscription: testSubscription(),
		Feature:      f,
		Amount:       4,
		Remaining:    4,
	}))

	require.Len(t, *got, 2)
	assert.Equal(t, audithook.ActionFeatureConsumed, (*got)[0].Action)
	assert.Equal(t, audithook.ActionLimitReached, (*got)[1].Action)
	assert.Equal(t, audithook.SeverityWarning, (*got)[1].Severity)
}

func TestDisabledActionsAreSkipped(t *testing.T) {
	got, rec := collect()
	ext := audithook.New(rec, audithook.WithDisabledActions(audithook.ActionSubscriptionCancelled))

	cancelled := at
	sub := testSubscription()
	sub.CancelledOn = &cancelled
	require.NoError(t, ext.OnSubscriptionCancelled(context.Background(), &event.CancelSubscription{
		Meta:         event.NewMeta(at),
		Subscription: sub,
	}))
	assert.Empty(t, *got)

	only := audithook.New(rec, audithook.WithEnabledActions(audithook.ActionSubscriptionCancelled))
	require.NoError(t, only.OnSubscriptionCancelled(context.Background(), &event.CancelSubscription{
		Meta:         event.NewMeta(at),
		Subscription: sub,
	}))
	assert.Len(t, *got, 1)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	ext := audithook.New(audithook.RecorderFunc(func(context.Context, *audithook.AuditEvent) error {
		return errors.New("backend down")
	}))

	err := ext.OnPlanCreated(context.Background(), &event.PlanCreated{
		Meta: event.NewMeta(at),
		Plan: &plan.Plan{ID: id.NewPlanID(), Name: "Basic"},
	})
	assert.NoError(t, err)
}

func TestCategoryFilter(t *testing.T) {
	got, rec := collect()
	ext := audithook.New(rec, audithook.WithCategories(audithook.CategoryCatalogue))

	require.NoError(t, ext.OnPlanCreated(context.Background(), &event.PlanCreated{
		Meta: event.NewMeta(at),
		Plan: &plan.Plan{ID: id.NewPlanID(), Name: "Basic"},
	}))
	require.NoError(t, ext.OnNewSubscription(context.Background(), &event.NewSubscription{
		Meta:         event.NewMeta(at),
		Subscription: testSubscription(),
	}))

	require.Len(t, *got, 1)
	assert.Equal(t, audithook.ActionPlanCreated, (*got)[0].Action)
	assert.Equal(t, audithook.CategoryCatalogue, (*got)[0].Category)
}

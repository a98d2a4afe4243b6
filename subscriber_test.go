package plans_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subject"
)

type user struct{ id string }

func (u user) SubjectRef() subject.Ref { return subject.NewRef("user", u.id) }

func TestSubscriberWithoutHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	has, err := s.HasSubscriptions(ctx)
	require.NoError(t, err)
	assert.False(t, has)

	active, err := s.HasActiveSubscription(ctx)
	require.NoError(t, err)
	assert.False(t, active)

	_, err = s.ActiveSubscription(ctx)
	assert.ErrorIs(t, err, plans.ErrNoActiveSubscription)

	_, err = s.LastActiveSubscription(ctx)
	assert.ErrorIs(t, err, plans.ErrSubscriptionNotFound)

	_, err = s.CurrentPlan(ctx)
	assert.ErrorIs(t, err, plans.ErrNoActiveSubscription)

	_, err = s.CancelCurrentSubscription(ctx)
	assert.ErrorIs(t, err, plans.ErrNoActiveSubscription)
}

func TestSubscribeTo(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	sub, err := s.SubscribeTo(ctx, f.basic, 30)
	require.NoError(t, err)
	assert.Equal(t, f.engine.Now(), sub.StartsOn)
	assert.Equal(t, f.engine.Now().AddDate(0, 0, 30), sub.ExpiresOn)
	assert.Equal(t, s.Ref(), sub.Subject)

	ev, ok := f.events.last().(*event.NewSubscription)
	require.True(t, ok)
	assert.Equal(t, 30, ev.Duration)

	_, err = s.SubscribeTo(ctx, f.pro, 30)
	assert.ErrorIs(t, err, plans.ErrActiveSubscriptionExists, "same instant")

	f.clock.Advance(day)

	_, err = s.SubscribeTo(ctx, f.pro, 30)
	assert.ErrorIs(t, err, plans.ErrActiveSubscriptionExists)

	has, err := s.HasActiveSubscription(ctx)
	require.NoError(t, err)
	assert.True(t, has)

	active, err := s.ActiveSubscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, active.ID)
}

func TestSubscribeToRejectsShortDuration(t *testing.T) {
	f := newFixture(t)
	s := f.engine.Subscriber(user{id: "7"})

	_, err := s.SubscribeTo(context.Background(), f.basic, 0)
	assert.ErrorIs(t, err, plans.ErrInvalidDuration)

	_, err = s.SubscribeTo(context.Background(), nil, 10)
	assert.ErrorIs(t, err, plans.ErrPlanNotFound)
}

func TestResubscribeAfterExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	first, err := s.SubscribeTo(ctx, f.basic, 5)
	require.NoError(t, err)

	f.clock.Advance(6 * day)

	last, err := s.LastActiveSubscription(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, last.ID)

	_, err = s.SubscribeTo(ctx, f.pro, 30)
	require.NoError(t, err)
}

func TestSubscriberUpgradeWithoutActiveSubscribes(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	sub, err := s.UpgradeTo(ctx, f.pro, 30, true)
	require.NoError(t, err)
	assert.True(t, sub.PlanID.Equal(f.pro.ID))
	assert.Equal(t, event.NameNewSubscription, f.events.last().Name())
}

func TestSubscriberUpgradeActive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	_, err := s.SubscribeTo(ctx, f.basic, 15)
	require.NoError(t, err)
	f.clock.Advance(day)

	sub, err := s.UpgradeTo(ctx, f.pro, 30, true)
	require.NoError(t, err)
	assert.Equal(t, 44, sub.RemainingDays(f.engine.Now()))

	current, err := s.CurrentPlan(ctx)
	require.NoError(t, err)
	assert.True(t, current.ID.Equal(f.pro.ID))
}

func TestExtendCurrentSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	sub, err := s.SubscribeTo(ctx, f.pro, 10)
	require.NoError(t, err)
	f.clock.Advance(day)

	got, err := s.ExtendCurrentSubscriptionWith(ctx, 5, true)
	require.NoError(t, err)
	assert.Equal(t, sub.ID, got.ID)
	assert.Equal(t, 14, got.RemainingDays(f.engine.Now()))

	_, err = s.ExtendCurrentSubscriptionWith(ctx, 0, true)
	assert.ErrorIs(t, err, plans.ErrInvalidDuration)
}

func TestExtendCurrentResubscribesToLastPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	_, err := s.SubscribeTo(ctx, f.pro, 3)
	require.NoError(t, err)
	f.clock.Advance(4 * day)

	sub, err := s.ExtendCurrentSubscriptionWith(ctx, 20, false)
	require.NoError(t, err)
	assert.True(t, sub.PlanID.Equal(f.pro.ID))
	assert.Equal(t, f.engine.Now(), sub.StartsOn)

	all, err := s.Subscriptions(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestExtendCurrentFallsBackToFirstPlan(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sub, err := f.engine.Subscriber(user{id: "new"}).ExtendCurrentSubscriptionWith(ctx, 7, true)
	require.NoError(t, err)
	assert.True(t, sub.PlanID.Equal(f.basic.ID))
}

func TestExtendCurrentUsesConfiguredFallback(t *testing.T) {
	f := newFixture(t, plans.WithFallbackPlan(func(context.Context) (*plan.Plan, error) {
		return nil, errors.New("unreachable")
	}))

	_, err := f.engine.Subscriber(user{id: "new"}).ExtendCurrentSubscriptionWith(context.Background(), 7, true)
	assert.EqualError(t, err, "unreachable")

	g := newFixture(t)
	h := plans.New(g.store, plans.WithClock(g.clock), plans.WithFallbackPlanID(g.pro.ID))
	sub, err := h.Subscriber(user{id: "new"}).ExtendCurrentSubscriptionWith(context.Background(), 7, true)
	require.NoError(t, err)
	assert.True(t, sub.PlanID.Equal(g.pro.ID))
}

func TestCancelCurrentSubscription(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	s := f.engine.Subscriber(user{id: "7"})

	_, err := s.SubscribeTo(ctx, f.basic, 10)
	require.NoError(t, err)
	f.clock.Advance(day)

	sub, err := s.CancelCurrentSubscription(ctx)
	require.NoError(t, err)
	assert.True(t, sub.IsPendingCancellation(f.engine.Now()))

	_, err = s.CancelCurrentSubscription(ctx)
	assert.ErrorIs(t, err, plans.ErrAlreadyCancelled)
}

func TestSubscriberFor(t *testing.T) {
	reg := subject.NewRegistry()
	reg.Register("user", func(_ context.Context, id string) (subject.Subscribable, error) {
		return user{id: id}, nil
	})
	f := newFixture(t, plans.WithSubjectRegistry(reg))

	s, err := f.engine.SubscriberFor(subject.NewRef("user", "9"))
	require.NoError(t, err)
	assert.Equal(t, "user:9", s.Ref().String())

	_, err = f.engine.SubscriberFor(subject.NewRef("team", "9"))
	assert.ErrorIs(t, err, plans.ErrUnknownSubjectKind)

	_, err = f.engine.SubscriberFor(subject.Ref{})
	assert.ErrorIs(t, err, subject.ErrInvalidRef)

	entity, err := f.engine.ResolveSubject(context.Background(), subject.NewRef("user", "9"))
	require.NoError(t, err)
	assert.Equal(t, user{id: "9"}, entity)

	_, err = f.engine.ResolveSubject(context.Background(), subject.NewRef("team", "1"))
	assert.ErrorIs(t, err, plans.ErrUnknownSubjectKind)
}

package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/types"
)

// Subscriber gives one subject access to its subscription history and the
// operations that change it. Obtain one with Engine.Subscriber or
// Engine.SubscriberFor. Operations that write are serialised per subject
// within the process.
type Subscriber struct {
	engine *Engine
	ref    subject.Ref
}

// Subscriber returns the capability of a host entity.
func (e *Engine) Subscriber(entity subject.Subscribable) *Subscriber {
	return &Subscriber{engine: e, ref: entity.SubjectRef()}
}

// SubscriberFor returns the capability of ref. When a subject registry is
// configured, ref.Kind must be registered.
func (e *Engine) SubscriberFor(ref subject.Ref) (*Subscriber, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if e.subjects != nil && !e.subjects.Known(ref.Kind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubjectKind, ref.Kind)
	}

	return &Subscriber{engine: e, ref: ref}, nil
}

// ResolveSubject loads the host entity behind ref through the subject
// registry.
func (e *Engine) ResolveSubject(ctx context.Context, ref subject.Ref) (subject.Subscribable, error) {
	if e.subjects == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubjectKind, ref.Kind)
	}

	entity, err := e.subjects.Resolve(ctx, ref)
	if errors.Is(err, subject.ErrUnknownKind) {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSubjectKind, ref.Kind)
	}

	return entity, err
}

// Ref returns the subject this capability acts for.
func (s *Subscriber) Ref() subject.Ref { return s.ref }

// Subscriptions lists every subscription of the subject, oldest first.
func (s *Subscriber) Subscriptions(ctx context.Context) ([]*subscription.Subscription, error) {
	return s.engine.store.ListSubscriptions(ctx, s.ref, subscription.ListOpts{})
}

// ActiveSubscription returns the subscription whose window strictly
// contains now, or ErrNoActiveSubscription.
func (s *Subscriber) ActiveSubscription(ctx context.Context) (*subscription.Subscription, error) {
	return s.engine.store.GetActiveSubscription(ctx, s.ref, s.engine.Now())
}

// LastActiveSubscription returns the active subscription if there is one,
// else the one that expires last. It returns ErrSubscriptionNotFound for a
// subject without history.
func (s *Subscriber) LastActiveSubscription(ctx context.Context) (*subscription.Subscription, error) {
	active, err := s.ActiveSubscription(ctx)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}

	return s.engine.store.GetLatestSubscription(ctx, s.ref)
}

func (s *Subscriber) HasSubscriptions(ctx context.Context) (bool, error) {
	n, err := s.engine.store.CountSubscriptions(ctx, s.ref)
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (s *Subscriber) HasActiveSubscription(ctx context.Context) (bool, error) {
	_, err := s.ActiveSubscription(ctx)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrNoActiveSubscription):
		return false, nil
	default:
		return false, err
	}
}

// CurrentPlan returns the plan of the active subscription.
func (s *Subscriber) CurrentPlan(ctx context.Context) (*plan.Plan, error) {
	active, err := s.ActiveSubscription(ctx)
	if err != nil {
		return nil, err
	}

	return s.engine.store.GetPlan(ctx, active.PlanID)
}

// SubscribeTo starts a subscription to p running from now for days days.
// It is refused while the subject has an active subscription.
func (s *Subscriber) SubscribeTo(ctx context.Context, p *plan.Plan, days int) (*subscription.Subscription, error) {
	unlock := s.engine.locks.Lock(s.ref.String())
	defer unlock()

	return s.subscribeTo(ctx, p, days)
}

func (s *Subscriber) subscribeTo(ctx context.Context, p *plan.Plan, days int) (*subscription.Subscription, error) {
	e := s.engine

	if p == nil || p.ID.IsNil() {
		return nil, ErrPlanNotFound
	}
	if days < 1 {
		return nil, ErrInvalidDuration
	}

	now := e.Now()
	if err := s.ensureNoActive(ctx); err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		Entity:    types.NewEntity(now),
		ID:        id.NewSubscriptionID(),
		PlanID:    p.ID,
		Subject:   s.ref,
		StartsOn:  now,
		ExpiresOn: now.AddDate(0, 0, days),
	}

	if err := e.store.CreateSubscription(ctx, sub); err != nil {
		e.logger.Error("failed to create subscription",
			"subject", s.ref.String(),
			"plan_id", p.ID.String(),
			"error", err,
		)
		return nil, err
	}

	e.plugins.EmitNewSubscription(ctx, &event.NewSubscription{
		Meta:         event.NewMeta(now),
		Subscription: sub,
		Duration:     days,
	})

	e.logger.Info("subscription created",
		"subscription_id", sub.ID.String(),
		"subject", s.ref.String(),
		"plan_id", p.ID.String(),
		"days", days,
	)

	return sub, nil
}

// ensureNoActive checks the strict active window and, to cover a row that
// started at this very instant, whether the latest row is active.
func (s *Subscriber) ensureNoActive(ctx context.Context) error {
	e := s.engine
	now := e.Now()

	_, err := e.store.GetActiveSubscription(ctx, s.ref, now)
	switch {
	case err == nil:
		return ErrActiveSubscriptionExists
	case !errors.Is(err, ErrNoActiveSubscription):
		return err
	}

	latest, err := e.store.GetLatestSubscription(ctx, s.ref)
	switch {
	case errors.Is(err, ErrSubscriptionNotFound):
		return nil
	case err != nil:
		return err
	case latest.IsActive(now):
		return ErrActiveSubscriptionExists
	}

	return nil
}

// UpgradeTo moves the active subscription onto p, extending it by days.
// Without an active subscription it subscribes to p instead.
func (s *Subscriber) UpgradeTo(ctx context.Context, p *plan.Plan, days int, startFromNow bool) (*subscription.Subscription, error) {
	unlock := s.engine.locks.Lock(s.ref.String())
	defer unlock()

	active, err := s.ActiveSubscription(ctx)
	if errors.Is(err, ErrNoActiveSubscription) {
		return s.subscribeTo(ctx, p, days)
	}
	if err != nil {
		return nil, err
	}

	return s.engine.upgradeTo(ctx, active, p, days, startFromNow)
}

// ExtendCurrentSubscriptionWith extends the active subscription by days.
// Without one, the subject is subscribed again to the plan of its last
// subscription, or to the fallback plan if it never had one.
func (s *Subscriber) ExtendCurrentSubscriptionWith(ctx context.Context, days int, startFromNow bool) (*subscription.Subscription, error) {
	unlock := s.engine.locks.Lock(s.ref.String())
	defer unlock()

	if days < 1 {
		return nil, ErrInvalidDuration
	}

	active, err := s.ActiveSubscription(ctx)
	if err == nil {
		return s.engine.extendWith(ctx, active, days, startFromNow, id.Nil)
	}
	if !errors.Is(err, ErrNoActiveSubscription) {
		return nil, err
	}

	p, err := s.resubscribePlan(ctx)
	if err != nil {
		return nil, err
	}

	return s.subscribeTo(ctx, p, days)
}

func (s *Subscriber) resubscribePlan(ctx context.Context) (*plan.Plan, error) {
	e := s.engine

	last, err := e.store.GetLatestSubscription(ctx, s.ref)
	switch {
	case err == nil:
		return e.store.GetPlan(ctx, last.PlanID)
	case errors.Is(err, ErrSubscriptionNotFound):
		return e.fallbackPlan(ctx)
	default:
		return nil, err
	}
}

// CancelCurrentSubscription cancels the active subscription.
func (s *Subscriber) CancelCurrentSubscription(ctx context.Context) (*subscription.Subscription, error) {
	unlock := s.engine.locks.Lock(s.ref.String())
	defer unlock()

	active, err := s.ActiveSubscription(ctx)
	if err != nil {
		return nil, err
	}

	return s.engine.cancel(ctx, active)
}

package plans

import (
	"context"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subscription"
)

// ──────────────────────────────────────────────────
// Subscription Lifecycle
// ──────────────────────────────────────────────────

// GetSubscription retrieves a subscription by ID.
func (e *Engine) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return e.store.GetSubscription(ctx, subID)
}

// Cancel marks sub as cancelled now. The subscription keeps running until
// it expires; a second cancellation is refused with ErrAlreadyCancelled.
func (e *Engine) Cancel(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	unlock := e.locks.Lock(sub.Subject.String())
	defer unlock()

	return e.cancel(ctx, sub)
}

func (e *Engine) cancel(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	now := e.Now()

	if sub.IsCancelled() || sub.IsPendingCancellation(now) {
		e.logger.Debug("cancel refused",
			"subscription_id", sub.ID.String(),
			"reason", ErrAlreadyCancelled,
		)
		return nil, ErrAlreadyCancelled
	}

	updated := *sub
	updated.CancelledOn = &now
	updated.Touch(now)

	if err := e.store.UpdateSubscription(ctx, &updated); err != nil {
		e.logger.Error("failed to cancel subscription",
			"subscription_id", sub.ID.String(),
			"error", err,
		)
		return nil, err
	}
	*sub = updated

	e.plugins.EmitSubscriptionCancelled(ctx, &event.CancelSubscription{
		Meta:         event.NewMeta(now),
		Subscription: sub,
	})

	e.logger.Info("subscription cancelled",
		"subscription_id", sub.ID.String(),
		"subject", sub.Subject.String(),
		"expires_on", sub.ExpiresOn,
	)

	return sub, nil
}

// ExtendWith lengthens sub by days.
//
// With startFromNow the expiry of sub itself moves forward (this can revive
// an expired row) and sub is returned. Otherwise a successor row on the
// same plan is created, starting when sub expires, and the successor is
// returned; sub is left untouched.
func (e *Engine) ExtendWith(ctx context.Context, sub *subscription.Subscription, days int, startFromNow bool) (*subscription.Subscription, error) {
	unlock := e.locks.Lock(sub.Subject.String())
	defer unlock()

	return e.extendWith(ctx, sub, days, startFromNow, id.Nil)
}

// extendWith writes the extension. A non-nil planID is applied to the
// target row in the same write.
func (e *Engine) extendWith(ctx context.Context, sub *subscription.Subscription, days int, startFromNow bool, planID id.PlanID) (*subscription.Subscription, error) {
	if days < 1 {
		e.logger.Debug("extend refused",
			"subscription_id", sub.ID.String(),
			"days", days,
		)
		return nil, ErrInvalidDuration
	}

	now := e.Now()

	var target, created *subscription.Subscription
	if startFromNow {
		updated := *sub
		updated.ExpiresOn = sub.ExpiresOn.AddDate(0, 0, days)
		if !planID.IsNil() {
			updated.PlanID = planID
		}
		updated.Touch(now)

		if err := e.store.UpdateSubscription(ctx, &updated); err != nil {
			return nil, err
		}
		*sub = updated
		target = sub
	} else {
		created = sub.Successor(days, now)
		if !planID.IsNil() {
			created.PlanID = planID
		}
		if err := e.store.CreateSubscription(ctx, created); err != nil {
			return nil, err
		}
		target = created
	}

	e.plugins.EmitSubscriptionExtended(ctx, &event.ExtendSubscription{
		Meta:            event.NewMeta(now),
		Subscription:    sub,
		Duration:        days,
		StartFromNow:    startFromNow,
		NewSubscription: created,
	})

	e.logger.Info("subscription extended",
		"subscription_id", sub.ID.String(),
		"target_id", target.ID.String(),
		"days", days,
		"expires_on", target.ExpiresOn,
	)

	return target, nil
}

// UpgradeTo extends sub by days and moves the resulting row onto newPlan.
// The returned subscription is the row carrying the new plan and dates:
// sub itself when startFromNow is set, the successor row otherwise.
func (e *Engine) UpgradeTo(ctx context.Context, sub *subscription.Subscription, newPlan *plan.Plan, days int, startFromNow bool) (*subscription.Subscription, error) {
	unlock := e.locks.Lock(sub.Subject.String())
	defer unlock()

	return e.upgradeTo(ctx, sub, newPlan, days, startFromNow)
}

func (e *Engine) upgradeTo(ctx context.Context, sub *subscription.Subscription, newPlan *plan.Plan, days int, startFromNow bool) (*subscription.Subscription, error) {
	if newPlan == nil || newPlan.ID.IsNil() {
		return nil, ErrPlanNotFound
	}
	if days < 1 {
		return nil, ErrInvalidDuration
	}

	oldPlan, err := e.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	target, err := e.extendWith(ctx, sub, days, startFromNow, newPlan.ID)
	if err != nil {
		e.logger.Error("failed to upgrade subscription",
			"subscription_id", sub.ID.String(),
			"plan_id", newPlan.ID.String(),
			"error", err,
		)
		return nil, err
	}

	e.plugins.EmitSubscriptionUpgraded(ctx, &event.UpgradeSubscription{
		Meta:         event.NewMeta(e.Now()),
		Subscription: target,
		Duration:     days,
		StartFromNow: startFromNow,
		OldPlan:      oldPlan,
		NewPlan:      newPlan,
	})

	e.logger.Info("subscription upgraded",
		"subscription_id", target.ID.String(),
		"old_plan_id", oldPlan.ID.String(),
		"new_plan_id", newPlan.ID.String(),
	)

	return target, nil
}

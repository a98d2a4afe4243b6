package plans

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/plans/entitlement"
	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/usage"
)

// ──────────────────────────────────────────────────
// Usage Metering
// ──────────────────────────────────────────────────

// ConsumeFeature records amount units of the limit feature code against
// sub. It succeeds only while used+amount stays within the feature limit;
// otherwise ErrLimitExceeded is returned and the counter is unchanged. The
// counter is created on first use, even when that first use is refused.
func (e *Engine) ConsumeFeature(ctx context.Context, sub *subscription.Subscription, code string, amount int64) (*usage.Record, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	f, err := e.limitFeature(ctx, sub, code)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	if _, err := e.store.EnsureUsageRecord(ctx, sub.ID, code, now); err != nil {
		return nil, err
	}

	rec, err := e.store.IncrementUsageRecord(ctx, sub.ID, code, amount, f.Limit, now)
	if err != nil {
		if errors.Is(err, ErrLimitExceeded) {
			e.logger.Debug("consumption refused",
				"subscription_id", sub.ID.String(),
				"code", code,
				"amount", amount,
				"limit", f.Limit,
			)
		}
		return nil, err
	}

	e.plugins.EmitFeatureConsumed(ctx, &event.FeatureConsumed{
		Meta:         event.NewMeta(now),
		Subscription: sub,
		Feature:      f,
		Amount:       amount,
		Remaining:    f.Limit - (rec.Used - amount),
	})

	return rec, nil
}

// UnconsumeFeature gives back amount units, flooring the counter at zero.
func (e *Engine) UnconsumeFeature(ctx context.Context, sub *subscription.Subscription, code string, amount int64) (*usage.Record, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}

	f, err := e.limitFeature(ctx, sub, code)
	if err != nil {
		return nil, err
	}

	now := e.Now()
	rec, err := e.store.DecrementUsageRecord(ctx, sub.ID, code, amount, now)
	if err != nil {
		return nil, err
	}

	e.plugins.EmitFeatureUnconsumed(ctx, &event.FeatureUnconsumed{
		Meta:         event.NewMeta(now),
		Subscription: sub,
		Feature:      f,
		Amount:       amount,
		Remaining:    rec.Remaining(f.Limit),
	})

	return rec, nil
}

// UsageOf returns how much of code sub has used; zero before first use.
func (e *Engine) UsageOf(ctx context.Context, sub *subscription.Subscription, code string) (int64, error) {
	rec, err := e.store.GetUsageRecord(ctx, sub.ID, code)
	if errors.Is(err, ErrUsageNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	return rec.Used, nil
}

// RemainingOf returns the capacity left on the limit feature code.
func (e *Engine) RemainingOf(ctx context.Context, sub *subscription.Subscription, code string) (int64, error) {
	f, err := e.limitFeature(ctx, sub, code)
	if err != nil {
		return 0, err
	}

	used, err := e.UsageOf(ctx, sub, code)
	if err != nil {
		return 0, err
	}

	return max(f.Limit-used, 0), nil
}

// Usages lists the counters recorded for sub.
func (e *Engine) Usages(ctx context.Context, sub *subscription.Subscription) ([]*usage.Record, error) {
	return e.store.ListUsageRecords(ctx, sub.ID)
}

// Features lists the features of sub's plan.
func (e *Engine) Features(ctx context.Context, sub *subscription.Subscription) ([]plan.Feature, error) {
	return e.store.ListFeatures(ctx, sub.PlanID)
}

// Entitled reports whether sub may use code right now without consuming
// anything.
func (e *Engine) Entitled(ctx context.Context, sub *subscription.Subscription, code string) (*entitlement.Result, error) {
	p, err := e.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	f, ok := p.FeatureByCode(code)
	if !ok {
		return entitlement.Deny(code, entitlement.ReasonUnknownFeature), nil
	}

	result := &entitlement.Result{
		Feature: code,
		Metered: f.IsLimit(),
		Limit:   f.Limit,
	}

	if !sub.IsActive(e.Now()) {
		result.Reason = entitlement.ReasonInactive
		return result, nil
	}

	if !f.IsLimit() {
		result.Allowed = true
		return result, nil
	}

	used, err := e.UsageOf(ctx, sub, code)
	if err != nil {
		return nil, err
	}

	result.Used = used
	result.Remaining = max(f.Limit-used, 0)
	result.Allowed = used < f.Limit
	if !result.Allowed {
		result.Reason = entitlement.ReasonExhausted
	}

	return result, nil
}

func (e *Engine) limitFeature(ctx context.Context, sub *subscription.Subscription, code string) (*plan.Feature, error) {
	p, err := e.store.GetPlan(ctx, sub.PlanID)
	if err != nil {
		return nil, err
	}

	f, ok := p.FeatureByCode(code)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrFeatureNotFound, code)
	}
	if !f.IsLimit() {
		return nil, fmt.Errorf("%w: %q", ErrFeatureNotLimit, code)
	}

	return f, nil
}

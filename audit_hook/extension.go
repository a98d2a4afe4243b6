// Package audithook bridges plans lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plugin"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnPlanCreated           = (*Extension)(nil)
	_ plugin.OnNewSubscription       = (*Extension)(nil)
	_ plugin.OnSubscriptionExtended  = (*Extension)(nil)
	_ plugin.OnSubscriptionUpgraded  = (*Extension)(nil)
	_ plugin.OnSubscriptionCancelled = (*Extension)(nil)
	_ plugin.OnFeatureConsumed       = (*Extension)(nil)
	_ plugin.OnFeatureUnconsumed     = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a local representation of an audit event.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges plans lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// OnPlanCreated implements plugin.OnPlanCreated.
func (e *Extension) OnPlanCreated(ctx context.Context, ev *event.PlanCreated) error {
	return e.record(ctx, ActionPlanCreated, SeverityInfo,
		ResourcePlan, ev.Plan.ID.String(), CategoryCatalogue,
		"name", ev.Plan.Name,
		"price", ev.Plan.Price.String(),
		"duration", ev.Plan.Duration,
		"features", len(ev.Plan.Features),
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnNewSubscription implements plugin.OnNewSubscription.
func (e *Extension) OnNewSubscription(ctx context.Context, ev *event.NewSubscription) error {
	sub := ev.Subscription
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo,
		ResourceSubscription, sub.ID.String(), CategorySubscription,
		"subject", sub.Subject.String(),
		"plan_id", sub.PlanID.String(),
		"duration", ev.Duration,
		"expires_on", sub.ExpiresOn,
	)
}

// OnSubscriptionExtended implements plugin.OnSubscriptionExtended. When the
// extension created a successor row a renewal is recorded against it too.
func (e *Extension) OnSubscriptionExtended(ctx context.Context, ev *event.ExtendSubscription) error {
	sub := ev.Subscription
	if err := e.record(ctx, ActionSubscriptionExtended, SeverityInfo,
		ResourceSubscription, sub.ID.String(), CategorySubscription,
		"subject", sub.Subject.String(),
		"duration", ev.Duration,
		"start_from_now", ev.StartFromNow,
		"expires_on", sub.ExpiresOn,
	); err != nil {
		return err
	}

	if ev.NewSubscription == nil {
		return nil
	}
	return e.record(ctx, ActionSubscriptionRenewed, SeverityInfo,
		ResourceSubscription, ev.NewSubscription.ID.String(), CategorySubscription,
		"subject", ev.NewSubscription.Subject.String(),
		"previous_id", sub.ID.String(),
		"starts_on", ev.NewSubscription.StartsOn,
		"expires_on", ev.NewSubscription.ExpiresOn,
	)
}

// OnSubscriptionUpgraded implements plugin.OnSubscriptionUpgraded.
func (e *Extension) OnSubscriptionUpgraded(ctx context.Context, ev *event.UpgradeSubscription) error {
	sub := ev.Subscription
	kv := []any{
		"subject", sub.Subject.String(),
		"duration", ev.Duration,
		"start_from_now", ev.StartFromNow,
	}
	if ev.OldPlan != nil {
		kv = append(kv, "old_plan_id", ev.OldPlan.ID.String())
	}
	if ev.NewPlan != nil {
		kv = append(kv, "new_plan_id", ev.NewPlan.ID.String())
	}
	return e.record(ctx, ActionSubscriptionUpgraded, SeverityInfo,
		ResourceSubscription, sub.ID.String(), CategorySubscription,
		kv...,
	)
}

// OnSubscriptionCancelled implements plugin.OnSubscriptionCancelled.
func (e *Extension) OnSubscriptionCancelled(ctx context.Context, ev *event.CancelSubscription) error {
	sub := ev.Subscription
	kv := []any{"subject", sub.Subject.String()}
	if sub.CancelledOn != nil {
		kv = append(kv, "cancelled_on", *sub.CancelledOn)
	}
	return e.record(ctx, ActionSubscriptionCancelled, SeverityInfo,
		ResourceSubscription, sub.ID.String(), CategorySubscription,
		kv...,
	)
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnFeatureConsumed implements plugin.OnFeatureConsumed. Consumption that
// exhausts the limit is additionally recorded as limit.reached.
func (e *Extension) OnFeatureConsumed(ctx context.Context, ev *event.FeatureConsumed) error {
	sub := ev.Subscription
	if err := e.record(ctx, ActionFeatureConsumed, SeverityInfo,
		ResourceUsage, sub.ID.String(), CategoryUsage,
		"code", ev.Feature.Code,
		"amount", ev.Amount,
		"remaining", ev.Remaining,
	); err != nil {
		return err
	}

	if ev.Remaining-ev.Amount > 0 {
		return nil
	}
	return e.record(ctx, ActionLimitReached, SeverityWarning,
		ResourceUsage, sub.ID.String(), CategoryUsage,
		"code", ev.Feature.Code,
		"limit", ev.Feature.Limit,
	)
}

// OnFeatureUnconsumed implements plugin.OnFeatureUnconsumed.
func (e *Extension) OnFeatureUnconsumed(ctx context.Context, ev *event.FeatureUnconsumed) error {
	return e.record(ctx, ActionFeatureUnconsumed, SeverityInfo,
		ResourceUsage, ev.Subscription.ID.String(), CategoryUsage,
		"code", ev.Feature.Code,
		"amount", ev.Amount,
		"remaining", ev.Remaining,
	)
}

// record builds and sends an audit event if the action is enabled.
// Recorder failures are logged, never returned.
func (e *Extension) record(
	ctx context.Context,
	action, severity string,
	resource, resourceID, category string,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    OutcomeSuccess,
		Severity:   severity,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

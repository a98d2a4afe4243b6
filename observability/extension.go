// Package observability provides a metrics plugin for the plans engine that
// records lifecycle event counts through a MetricFactory.
package observability

import (
	"context"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/plugin"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnPlanCreated           = (*MetricsExtension)(nil)
	_ plugin.OnNewSubscription       = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExtended  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionUpgraded  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCancelled = (*MetricsExtension)(nil)
	_ plugin.OnFeatureConsumed       = (*MetricsExtension)(nil)
	_ plugin.OnFeatureUnconsumed     = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a plugin to track subscription and usage activity.
type MetricsExtension struct {
	// Plan metrics
	PlanCreated Counter

	// Subscription metrics
	SubscriptionCreated   Counter
	SubscriptionExtended  Counter
	SubscriptionRenewed   Counter
	SubscriptionUpgraded  Counter
	SubscriptionCancelled Counter
	SubscriptionDuration  Histogram

	// Usage metrics
	FeatureConsumed   Counter
	FeatureUnconsumed Counter
	UnitsConsumed     Counter
	UnitsReleased     Counter
	RemainingCapacity Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		PlanCreated: factory.Counter("plans.plan.created"),

		SubscriptionCreated:   factory.Counter("plans.subscription.created"),
		SubscriptionExtended:  factory.Counter("plans.subscription.extended"),
		SubscriptionRenewed:   factory.Counter("plans.subscription.renewed"),
		SubscriptionUpgraded:  factory.Counter("plans.subscription.upgraded"),
		SubscriptionCancelled: factory.Counter("plans.subscription.cancelled"),
		SubscriptionDuration:  factory.Histogram("plans.subscription.duration_days"),

		FeatureConsumed:    factory.Counter("plans.feature.consumed"),
		FeatureUnconsumed:  factory.Counter("plans.feature.unconsumed"),
		UnitsConsumed:      factory.Counter("plans.feature.units.consumed"),
		UnitsReleased:      factory.Counter("plans.feature.units.released"),
		RemainingCapacity: factory.Histogram("plans.feature.remaining"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ any) error {
	return nil
}

// OnPlanCreated implements plugin.OnPlanCreated.
func (m *MetricsExtension) OnPlanCreated(_ context.Context, _ *event.PlanCreated) error {
	m.PlanCreated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnNewSubscription implements plugin.OnNewSubscription.
func (m *MetricsExtension) OnNewSubscription(_ context.Context, e *event.NewSubscription) error {
	m.SubscriptionCreated.Inc()
	m.SubscriptionDuration.Observe(float64(e.Duration))
	return nil
}

// OnSubscriptionExtended implements plugin.OnSubscriptionExtended. An
// extension that produced a successor row also counts as a renewal.
func (m *MetricsExtension) OnSubscriptionExtended(_ context.Context, e *event.ExtendSubscription) error {
	m.SubscriptionExtended.Inc()
	if e.NewSubscription != nil {
		m.SubscriptionRenewed.Inc()
	}
	return nil
}

// OnSubscriptionUpgraded implements plugin.OnSubscriptionUpgraded.
func (m *MetricsExtension) OnSubscriptionUpgraded(_ context.Context, _ *event.UpgradeSubscription) error {
	m.SubscriptionUpgraded.Inc()
	return nil
}

// OnSubscriptionCancelled implements plugin.OnSubscriptionCancelled.
func (m *MetricsExtension) OnSubscriptionCancelled(_ context.Context, _ *event.CancelSubscription) error {
	m.SubscriptionCancelled.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Usage hooks
// ──────────────────────────────────────────────────

// OnFeatureConsumed implements plugin.OnFeatureConsumed.
func (m *MetricsExtension) OnFeatureConsumed(_ context.Context, e *event.FeatureConsumed) error {
	m.FeatureConsumed.Inc()
	m.UnitsConsumed.Add(float64(e.Amount))
	m.RemainingCapacity.Observe(float64(e.Remaining))
	return nil
}

// OnFeatureUnconsumed implements plugin.OnFeatureUnconsumed.
func (m *MetricsExtension) OnFeatureUnconsumed(_ context.Context, e *event.FeatureUnconsumed) error {
	m.FeatureUnconsumed.Inc()
	m.UnitsReleased.Add(float64(e.Amount))
	return nil
}

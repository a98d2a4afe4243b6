// Package plugin lets external code observe the plans engine. A plugin
// implements Plugin plus any of the hook interfaces below; the Registry
// discovers which hooks it implements when it is registered.
package plugin

import (
	"context"

	"github.com/xraph/plans/event"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *plans.Engine.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine any) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Catalogue hooks
// ──────────────────────────────────────────────────

type OnPlanCreated interface {
	Plugin
	OnPlanCreated(ctx context.Context, e *event.PlanCreated) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

type OnNewSubscription interface {
	Plugin
	OnNewSubscription(ctx context.Context, e *event.NewSubscription) error
}

type OnSubscriptionExtended interface {
	Plugin
	OnSubscriptionExtended(ctx context.Context, e *event.ExtendSubscription) error
}

type OnSubscriptionUpgraded interface {
	Plugin
	OnSubscriptionUpgraded(ctx context.Context, e *event.UpgradeSubscription) error
}

type OnSubscriptionCancelled interface {
	Plugin
	OnSubscriptionCancelled(ctx context.Context, e *event.CancelSubscription) error
}

// ──────────────────────────────────────────────────
// Metering hooks
// ──────────────────────────────────────────────────

type OnFeatureConsumed interface {
	Plugin
	OnFeatureConsumed(ctx context.Context, e *event.FeatureConsumed) error
}

type OnFeatureUnconsumed interface {
	Plugin
	OnFeatureUnconsumed(ctx context.Context, e *event.FeatureUnconsumed) error
}

// ──────────────────────────────────────────────────
// Catch-all
// ──────────────────────────────────────────────────

// OnEvent receives every domain event after the typed hooks have run.
type OnEvent interface {
	Plugin
	OnEvent(ctx context.Context, e event.Event) error
}

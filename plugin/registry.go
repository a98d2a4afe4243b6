package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/plans/event"
)

// DefaultTimeout bounds a single hook call.
const DefaultTimeout = 5 * time.Second

// Registry holds registered plugins and dispatches events to them. Hook
// failures are logged and never reach the caller of the operation that
// produced the event.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	onInit                  []OnInit
	onShutdown              []OnShutdown
	onPlanCreated           []OnPlanCreated
	onNewSubscription       []OnNewSubscription
	onSubscriptionExtended  []OnSubscriptionExtended
	onSubscriptionUpgraded  []OnSubscriptionUpgraded
	onSubscriptionCancelled []OnSubscriptionCancelled
	onFeatureConsumed       []OnFeatureConsumed
	onFeatureUnconsumed     []OnFeatureUnconsumed
	onEvent                 []OnEvent
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout changes the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	var hooks []string
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
		hooks = append(hooks, "OnInit")
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
		hooks = append(hooks, "OnShutdown")
	}
	if v, ok := p.(OnPlanCreated); ok {
		r.onPlanCreated = append(r.onPlanCreated, v)
		hooks = append(hooks, "OnPlanCreated")
	}
	if v, ok := p.(OnNewSubscription); ok {
		r.onNewSubscription = append(r.onNewSubscription, v)
		hooks = append(hooks, "OnNewSubscription")
	}
	if v, ok := p.(OnSubscriptionExtended); ok {
		r.onSubscriptionExtended = append(r.onSubscriptionExtended, v)
		hooks = append(hooks, "OnSubscriptionExtended")
	}
	if v, ok := p.(OnSubscriptionUpgraded); ok {
		r.onSubscriptionUpgraded = append(r.onSubscriptionUpgraded, v)
		hooks = append(hooks, "OnSubscriptionUpgraded")
	}
	if v, ok := p.(OnSubscriptionCancelled); ok {
		r.onSubscriptionCancelled = append(r.onSubscriptionCancelled, v)
		hooks = append(hooks, "OnSubscriptionCancelled")
	}
	if v, ok := p.(OnFeatureConsumed); ok {
		r.onFeatureConsumed = append(r.onFeatureConsumed, v)
		hooks = append(hooks, "OnFeatureConsumed")
	}
	if v, ok := p.(OnFeatureUnconsumed); ok {
		r.onFeatureUnconsumed = append(r.onFeatureUnconsumed, v)
		hooks = append(hooks, "OnFeatureUnconsumed")
	}
	if v, ok := p.(OnEvent); ok {
		r.onEvent = append(r.onEvent, v)
		hooks = append(hooks, "OnEvent")
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", hooks,
	)

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

func (r *Registry) EmitInit(ctx context.Context, engine any) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	dispatch(ctx, r, "OnInit", plugins, func(p OnInit) error { return p.OnInit(ctx, engine) })
}

func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	dispatch(ctx, r, "OnShutdown", plugins, func(p OnShutdown) error { return p.OnShutdown(ctx) })
}

func (r *Registry) EmitPlanCreated(ctx context.Context, e *event.PlanCreated) {
	r.mu.RLock()
	plugins := r.onPlanCreated
	r.mu.RUnlock()

	dispatch(ctx, r, "OnPlanCreated", plugins, func(p OnPlanCreated) error { return p.OnPlanCreated(ctx, e) })
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitNewSubscription(ctx context.Context, e *event.NewSubscription) {
	r.mu.RLock()
	plugins := r.onNewSubscription
	r.mu.RUnlock()

	dispatch(ctx, r, "OnNewSubscription", plugins, func(p OnNewSubscription) error { return p.OnNewSubscription(ctx, e) })
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitSubscriptionExtended(ctx context.Context, e *event.ExtendSubscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionExtended
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionExtended", plugins, func(p OnSubscriptionExtended) error {
		return p.OnSubscriptionExtended(ctx, e)
	})
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitSubscriptionUpgraded(ctx context.Context, e *event.UpgradeSubscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionUpgraded
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionUpgraded", plugins, func(p OnSubscriptionUpgraded) error {
		return p.OnSubscriptionUpgraded(ctx, e)
	})
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitSubscriptionCancelled(ctx context.Context, e *event.CancelSubscription) {
	r.mu.RLock()
	plugins := r.onSubscriptionCancelled
	r.mu.RUnlock()

	dispatch(ctx, r, "OnSubscriptionCancelled", plugins, func(p OnSubscriptionCancelled) error {
		return p.OnSubscriptionCancelled(ctx, e)
	})
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitFeatureConsumed(ctx context.Context, e *event.FeatureConsumed) {
	r.mu.RLock()
	plugins := r.onFeatureConsumed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnFeatureConsumed", plugins, func(p OnFeatureConsumed) error { return p.OnFeatureConsumed(ctx, e) })
	r.emitEvent(ctx, e)
}

func (r *Registry) EmitFeatureUnconsumed(ctx context.Context, e *event.FeatureUnconsumed) {
	r.mu.RLock()
	plugins := r.onFeatureUnconsumed
	r.mu.RUnlock()

	dispatch(ctx, r, "OnFeatureUnconsumed", plugins, func(p OnFeatureUnconsumed) error {
		return p.OnFeatureUnconsumed(ctx, e)
	})
	r.emitEvent(ctx, e)
}

func (r *Registry) emitEvent(ctx context.Context, e event.Event) {
	r.mu.RLock()
	plugins := r.onEvent
	r.mu.RUnlock()

	dispatch(ctx, r, "OnEvent", plugins, func(p OnEvent) error { return p.OnEvent(ctx, e) })
}

func dispatch[T Plugin](ctx context.Context, r *Registry, hook string, plugins []T, call func(T) error) {
	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error { return call(p) }); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(r.timeout):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

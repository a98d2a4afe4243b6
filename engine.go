package plans

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/xraph/plans/event"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/plugin"
	"github.com/xraph/plans/store"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/types"
)

// Engine runs subscription lifecycle and usage metering operations against
// a store and reports every persisted change to its plugins.
type Engine struct {
	store    store.Store
	plugins  *plugin.Registry
	logger   *slog.Logger
	clock    clockwork.Clock
	subjects *subject.Registry
	fallback PlanResolver
	locks    *keyedMutex

	skipMigrate bool
}

// PlanResolver picks the plan a subject is subscribed to when it extends
// without any subscription history.
type PlanResolver func(ctx context.Context) (*plan.Plan, error)

// New creates a new Engine.
func New(s store.Store, opts ...Option) *Engine {
	e := &Engine{
		store:   s,
		plugins: plugin.NewRegistry(),
		logger:  slog.Default(),
		clock:   clockwork.NewRealClock(),
		locks:   newKeyedMutex(),
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
		e.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Engine) {
		if err := e.plugins.Register(p); err != nil {
			e.logger.Warn("plugin registration failed", "plugin", p.Name(), "error", err)
		}
	}
}

// WithPluginTimeout bounds each plugin hook call.
func WithPluginTimeout(d time.Duration) Option {
	return func(e *Engine) {
		e.plugins.WithTimeout(d)
	}
}

// WithClock replaces the wall clock, mainly for tests.
func WithClock(c clockwork.Clock) Option {
	return func(e *Engine) {
		e.clock = c
	}
}

// WithSubjectRegistry restricts subscribers to registered kinds and enables
// ResolveSubject.
func WithSubjectRegistry(r *subject.Registry) Option {
	return func(e *Engine) {
		e.subjects = r
	}
}

// WithFallbackPlan sets how the fallback plan is chosen. Without it the
// oldest plan in the catalogue is used.
func WithFallbackPlan(resolve PlanResolver) Option {
	return func(e *Engine) {
		e.fallback = resolve
	}
}

// WithFallbackPlanID uses a fixed plan as the fallback.
func WithFallbackPlanID(planID id.PlanID) Option {
	return func(e *Engine) {
		e.fallback = func(ctx context.Context) (*plan.Plan, error) {
			return e.store.GetPlan(ctx, planID)
		}
	}
}

// WithSkipMigrate makes Start leave the schema alone.
func WithSkipMigrate() Option {
	return func(e *Engine) {
		e.skipMigrate = true
	}
}

// Start migrates the store and initialises plugins.
func (e *Engine) Start(ctx context.Context) error {
	if !e.skipMigrate {
		if err := e.store.Migrate(ctx); err != nil {
			return err
		}
	}

	e.plugins.EmitInit(ctx, e)

	e.logger.Info("plans engine started",
		"plugins", e.plugins.Count(),
	)

	return nil
}

// Stop shuts down plugins and closes the store.
func (e *Engine) Stop() error {
	e.plugins.EmitShutdown(context.Background())

	return e.store.Close()
}

// Store returns the underlying store.
func (e *Engine) Store() store.Store { return e.store }

// Plugins returns the plugin registry.
func (e *Engine) Plugins() *plugin.Registry { return e.plugins }

// Now is the engine's current instant in UTC. All predicates evaluated by
// the engine use it.
func (e *Engine) Now() time.Time {
	return e.clock.Now().UTC()
}

// ──────────────────────────────────────────────────
// Plan Management
// ──────────────────────────────────────────────────

// CreatePlan validates and stores a plan together with its features.
func (e *Engine) CreatePlan(ctx context.Context, p *plan.Plan) error {
	now := e.Now()

	if p.ID.IsNil() {
		p.ID = id.NewPlanID()
	}
	if p.Duration == 0 {
		p.Duration = plan.DefaultDuration
	}
	p.Price = types.NewMoney(p.Price.Amount, p.Price.Currency)
	p.Entity = types.NewEntity(now)

	if err := validatePlan(p); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(p.Features))
	for i := range p.Features {
		f := &p.Features[i]
		prepareFeature(f, p.ID, now)

		if err := validateFeature(f); err != nil {
			return err
		}
		if _, dup := seen[f.Code]; dup {
			return ErrDuplicateFeature
		}
		seen[f.Code] = struct{}{}
	}

	if err := e.store.CreatePlan(ctx, p); err != nil {
		return err
	}

	e.plugins.EmitPlanCreated(ctx, &event.PlanCreated{Meta: event.NewMeta(now), Plan: p})

	e.logger.Info("plan created",
		"plan_id", p.ID.String(),
		"name", p.Name,
		"features", len(p.Features),
	)

	return nil
}

// AddFeature appends a feature to an existing plan.
func (e *Engine) AddFeature(ctx context.Context, planID id.PlanID, f *plan.Feature) error {
	p, err := e.store.GetPlan(ctx, planID)
	if err != nil {
		return err
	}

	prepareFeature(f, p.ID, e.Now())
	if err := validateFeature(f); err != nil {
		return err
	}
	if p.HasFeature(f.Code) {
		return ErrDuplicateFeature
	}

	return e.store.CreateFeature(ctx, f)
}

// GetPlan retrieves a plan by ID.
func (e *Engine) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	return e.store.GetPlan(ctx, planID)
}

// ListPlans lists the catalogue, oldest first.
func (e *Engine) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	return e.store.ListPlans(ctx, opts)
}

func (e *Engine) fallbackPlan(ctx context.Context) (*plan.Plan, error) {
	if e.fallback != nil {
		return e.fallback(ctx)
	}

	ps, err := e.store.ListPlans(ctx, plan.ListOpts{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(ps) == 0 {
		return nil, ErrPlanNotFound
	}

	return ps[0], nil
}

func prepareFeature(f *plan.Feature, planID id.PlanID, now time.Time) {
	if f.ID.IsNil() {
		f.ID = id.NewFeatureID()
	}
	if f.Kind == "" {
		f.Kind = plan.KindFeature
	}
	f.PlanID = planID
	f.Entity = types.NewEntity(now)
}

func validatePlan(p *plan.Plan) error {
	if p.Name == "" {
		return ValidationError{Field: "name", Message: "required"}
	}
	if p.Duration < 1 {
		return ValidationError{Field: "duration", Message: "must be at least one day"}
	}
	return nil
}

func validateFeature(f *plan.Feature) error {
	if f.Code == "" {
		return ValidationError{Field: "code", Message: "required"}
	}
	if !f.Kind.Valid() {
		return ValidationError{Field: "type", Message: "must be feature or limit"}
	}
	if f.Limit < 0 {
		return ValidationError{Field: "limit", Message: "must not be negative"}
	}
	return nil
}

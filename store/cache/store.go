// Package cache decorates a store.Store with a read-through plan cache.
//
// Plans are read on every subscription and consumption, but change rarely.
// Only GetPlan is cached; writes to a plan or its features evict it.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store"
)

const (
	DefaultSize        = 256
	DefaultTTL         = 5 * time.Minute
	DefaultRedisPrefix = "plans:plan:"
)

// compile-time interface check
var _ store.Store = (*Store)(nil)

// Store wraps a store.Store. Every method not overridden here passes
// straight through to the wrapped store.
type Store struct {
	store.Store

	backend Backend
	logger  *slog.Logger
}

// Option configures the cache decorator.
type Option func(*Store)

// WithLogger sets the logger used for backend failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// New wraps inner with backend.
func New(inner store.Store, backend Backend, opts ...Option) *Store {
	s := &Store{
		Store:   inner,
		backend: backend,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Unwrap returns the decorated store.
func (s *Store) Unwrap() store.Store { return s.Store }

// GetPlan serves from the backend when possible. Backend errors other than
// a miss are logged and the wrapped store is consulted.
func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	key := planID.String()

	p, err := s.backend.Get(ctx, key)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, plans.ErrCacheMiss) {
		s.logger.Warn("plan cache read failed", "plan_id", key, "error", err)
	}

	p, err = s.Store.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}

	if err := s.backend.Set(ctx, key, p); err != nil {
		s.logger.Warn("plan cache write failed", "plan_id", key, "error", err)
	}
	return p, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	if err := s.Store.UpdatePlan(ctx, p); err != nil {
		return err
	}
	s.evict(ctx, p.ID)
	return nil
}

func (s *Store) CreateFeature(ctx context.Context, f *plan.Feature) error {
	if err := s.Store.CreateFeature(ctx, f); err != nil {
		return err
	}
	s.evict(ctx, f.PlanID)
	return nil
}

func (s *Store) UpdateFeature(ctx context.Context, f *plan.Feature) error {
	if err := s.Store.UpdateFeature(ctx, f); err != nil {
		return err
	}
	s.evict(ctx, f.PlanID)
	return nil
}

func (s *Store) evict(ctx context.Context, planID id.PlanID) {
	if err := s.backend.Delete(ctx, planID.String()); err != nil {
		s.logger.Warn("plan cache evict failed", "plan_id", planID.String(), "error", err)
	}
}

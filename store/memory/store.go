// Package memory is an in-process store.Store. Rows are copied on the way
// in and out, so callers never share state with the store.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/store"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/types"
	"github.com/xraph/plans/usage"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	mu sync.RWMutex

	// Plan storage, planOrder keeps creation order
	plans     map[string]*plan.Plan
	planOrder []string
	features  map[string][]plan.Feature

	// Subscription storage
	subscriptions map[string]*subscription.Subscription

	// Usage storage keyed by subscription id + code
	usages map[string]*usage.Record

	closed bool
}

func New() *Store {
	return &Store{
		plans:         make(map[string]*plan.Plan),
		features:      make(map[string][]plan.Feature),
		subscriptions: make(map[string]*subscription.Subscription),
		usages:        make(map[string]*usage.Record),
	}
}

// ──────────────────────────────────────────────────
// Plan Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.plans[key]; exists {
		return plans.ErrAlreadyExists
	}

	cp := p.Clone()
	cp.Features = nil
	s.plans[key] = cp
	s.planOrder = append(s.planOrder, key)
	s.features[key] = append([]plan.Feature(nil), p.Features...)

	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.assemblePlan(planID.String())
}

func (s *Store) ListPlans(_ context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := page(s.planOrder, opts.Offset, opts.Limit)
	result := make([]*plan.Plan, 0, len(keys))
	for _, key := range keys {
		p, err := s.assemblePlan(key)
		if err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return result, nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := p.ID.String()
	if _, exists := s.plans[key]; !exists {
		return plans.ErrPlanNotFound
	}

	cp := p.Clone()
	cp.Features = nil
	s.plans[key] = cp

	return nil
}

func (s *Store) CreateFeature(_ context.Context, f *plan.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := f.PlanID.String()
	if _, exists := s.plans[key]; !exists {
		return plans.ErrPlanNotFound
	}
	for _, existing := range s.features[key] {
		if existing.Code == f.Code {
			return plans.ErrDuplicateFeature
		}
	}
	s.features[key] = append(s.features[key], *f)

	return nil
}

func (s *Store) UpdateFeature(_ context.Context, f *plan.Feature) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := s.features[f.PlanID.String()]
	for i := range list {
		if list[i].ID.Equal(f.ID) {
			list[i] = *f
			return nil
		}
	}

	return plans.ErrFeatureNotFound
}

func (s *Store) ListFeatures(_ context.Context, planID id.PlanID) ([]plan.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, exists := s.plans[planID.String()]; !exists {
		return nil, plans.ErrPlanNotFound
	}

	return append([]plan.Feature{}, s.features[planID.String()]...), nil
}

func (s *Store) assemblePlan(key string) (*plan.Plan, error) {
	p, ok := s.plans[key]
	if !ok {
		return nil, plans.ErrPlanNotFound
	}

	cp := p.Clone()
	cp.Features = append([]plan.Feature{}, s.features[key]...)

	return cp, nil
}

// ──────────────────────────────────────────────────
// Subscription Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return plans.ErrAlreadyExists
	}
	s.subscriptions[sub.ID.String()] = copySubscription(sub)

	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return copySubscription(sub), nil
	}

	return nil, plans.ErrSubscriptionNotFound
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; !exists {
		return plans.ErrSubscriptionNotFound
	}
	s.subscriptions[sub.ID.String()] = copySubscription(sub)

	return nil
}

func (s *Store) ListSubscriptions(_ context.Context, ref subject.Ref, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := s.subjectSubscriptions(ref)

	return page(all, opts.Offset, opts.Limit), nil
}

func (s *Store) GetActiveSubscription(_ context.Context, ref subject.Ref, at time.Time) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *subscription.Subscription
	for _, sub := range s.subjectSubscriptions(ref) {
		if sub.InWindow(at) && (found == nil || sub.StartsOn.After(found.StartsOn)) {
			found = sub
		}
	}
	if found == nil {
		return nil, plans.ErrNoActiveSubscription
	}

	return found, nil
}

func (s *Store) GetLatestSubscription(_ context.Context, ref subject.Ref) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var found *subscription.Subscription
	for _, sub := range s.subjectSubscriptions(ref) {
		if found == nil || sub.ExpiresOn.After(found.ExpiresOn) {
			found = sub
		}
	}
	if found == nil {
		return nil, plans.ErrSubscriptionNotFound
	}

	return found, nil
}

func (s *Store) CountSubscriptions(_ context.Context, ref subject.Ref) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return int64(len(s.subjectSubscriptions(ref))), nil
}

// subjectSubscriptions returns copies ordered by starts_on, then id.
func (s *Store) subjectSubscriptions(ref subject.Ref) []*subscription.Subscription {
	var result []*subscription.Subscription
	for _, sub := range s.subscriptions {
		if sub.Subject == ref {
			result = append(result, copySubscription(sub))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartsOn.Equal(result[j].StartsOn) {
			return result[i].StartsOn.Before(result[j].StartsOn)
		}
		return result[i].ID.String() < result[j].ID.String()
	})

	return result
}

func copySubscription(sub *subscription.Subscription) *subscription.Subscription {
	cp := *sub
	if sub.CancelledOn != nil {
		t := *sub.CancelledOn
		cp.CancelledOn = &t
	}

	return &cp
}

// ──────────────────────────────────────────────────
// Usage Store implementation
// ──────────────────────────────────────────────────

func (s *Store) GetUsageRecord(_ context.Context, subID id.SubscriptionID, code string) (*usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.usages[usageKey(subID, code)]; ok {
		cp := *rec
		return &cp, nil
	}

	return nil, plans.ErrUsageNotFound
}

func (s *Store) EnsureUsageRecord(_ context.Context, subID id.SubscriptionID, code string, at time.Time) (*usage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := usageKey(subID, code)
	rec, ok := s.usages[key]
	if !ok {
		rec = usage.NewRecord(subID, code, types.NewEntity(at))
		s.usages[key] = rec
	}

	cp := *rec
	return &cp, nil
}

func (s *Store) ListUsageRecords(_ context.Context, subID id.SubscriptionID) ([]*usage.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*usage.Record, 0)
	for _, rec := range s.usages {
		if rec.SubscriptionID.Equal(subID) {
			cp := *rec
			result = append(result, &cp)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Code < result[j].Code })

	return result, nil
}

func (s *Store) IncrementUsageRecord(_ context.Context, subID id.SubscriptionID, code string, amount, limit int64, at time.Time) (*usage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.usages[usageKey(subID, code)]
	if !ok {
		return nil, plans.ErrUsageNotFound
	}
	if !rec.Fits(amount, limit) {
		return nil, plans.ErrLimitExceeded
	}

	rec.Used += amount
	rec.Touch(at)

	cp := *rec
	return &cp, nil
}

func (s *Store) DecrementUsageRecord(_ context.Context, subID id.SubscriptionID, code string, amount int64, at time.Time) (*usage.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.usages[usageKey(subID, code)]
	if !ok {
		return nil, plans.ErrUsageNotFound
	}

	rec.Used = max(rec.Used-amount, 0)
	rec.Touch(at)

	cp := *rec
	return &cp, nil
}

func usageKey(subID id.SubscriptionID, code string) string {
	return subID.String() + "/" + code
}

// ──────────────────────────────────────────────────
// Lifecycle
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return plans.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.closed = true
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	if offset > len(items) {
		offset = len(items)
	}
	end := offset + limit
	if limit <= 0 || end > len(items) {
		end = len(items)
	}

	return items[offset:end]
}

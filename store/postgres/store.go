package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/pgdriver"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	plansstore "github.com/xraph/plans/store"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/types"
	"github.com/xraph/plans/usage"
)

// compile-time interface check
var _ plansstore.Store = (*Store)(nil)

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db: db,
		pg: pgdriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("plans/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: postgres: %w", plans.ErrMigrationFailed, err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Plan Store ====================

// CreatePlan inserts the plan row and then its features. If the features
// cannot be written the plan row is removed again.
func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	if _, err := s.pg.NewInsert(toPlanModel(p)).Exec(ctx); err != nil {
		return fmt.Errorf("plans/postgres: create plan: %w", err)
	}

	if len(p.Features) == 0 {
		return nil
	}

	models := make([]featureModel, len(p.Features))
	for i := range p.Features {
		models[i] = *toFeatureModel(&p.Features[i])
	}
	if _, err := s.pg.NewInsert(&models).Exec(ctx); err != nil {
		_, _ = s.pg.NewDelete((*planModel)(nil)).Where("id = $1", p.ID.String()).Exec(ctx) //nolint:errcheck // best-effort rollback
		return fmt.Errorf("plans/postgres: create features: %w", err)
	}

	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	m := new(planModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", planID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrPlanNotFound
		}
		return nil, err
	}

	features, err := s.features(ctx, m.ID)
	if err != nil {
		return nil, err
	}

	return fromPlanModel(m, features)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.pg.NewSelect(&models).OrderExpr("created_at ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		features, err := s.features(ctx, models[i].ID)
		if err != nil {
			return nil, err
		}
		p, err := fromPlanModel(&models[i], features)
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return plans.ErrPlanNotFound
	}
	return nil
}

func (s *Store) CreateFeature(ctx context.Context, f *plan.Feature) error {
	var exists int64
	err := s.pg.NewRaw(`SELECT COUNT(*) FROM plans WHERE id = $1`, f.PlanID.String()).Scan(ctx, &exists)
	if err != nil {
		return err
	}
	if exists == 0 {
		return plans.ErrPlanNotFound
	}

	res, err := s.pg.NewInsert(toFeatureModel(f)).
		OnConflict("(plan_id, code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/postgres: create feature: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return plans.ErrDuplicateFeature
	}
	return nil
}

func (s *Store) UpdateFeature(ctx context.Context, f *plan.Feature) error {
	m := toFeatureModel(f)
	m.UpdatedAt = now()
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return plans.ErrFeatureNotFound
	}
	return nil
}

func (s *Store) ListFeatures(ctx context.Context, planID id.PlanID) ([]plan.Feature, error) {
	if _, err := s.GetPlan(ctx, planID); err != nil {
		return nil, err
	}
	return s.features(ctx, planID.String())
}

func (s *Store) features(ctx context.Context, planID string) ([]plan.Feature, error) {
	var models []featureModel
	err := s.pg.NewSelect(&models).
		Where("plan_id = $1", planID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]plan.Feature, len(models))
	for i := range models {
		f, err := fromFeatureModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = f
	}
	return result, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.pg.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/postgres: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("id = $1", subID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	res, err := s.pg.NewUpdate(m).WherePK().Exec(ctx)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return plans.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, ref subject.Ref, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.pg.NewSelect(&models).
		Where("model_type = $1", ref.Kind).
		Where("model_id = $2", ref.ID).
		OrderExpr("starts_on ASC, id ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}

	return fromSubscriptionModels(models)
}

func (s *Store) GetActiveSubscription(ctx context.Context, ref subject.Ref, at time.Time) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("model_type = $1", ref.Kind).
		Where("model_id = $2", ref.ID).
		Where("starts_on < $3", at.UTC()).
		Where("expires_on > $4", at.UTC()).
		OrderExpr("starts_on DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrNoActiveSubscription
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetLatestSubscription(ctx context.Context, ref subject.Ref) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.pg.NewSelect(m).
		Where("model_type = $1", ref.Kind).
		Where("model_id = $2", ref.ID).
		OrderExpr("expires_on DESC").
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrSubscriptionNotFound
		}
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) CountSubscriptions(ctx context.Context, ref subject.Ref) (int64, error) {
	var total int64
	err := s.pg.NewRaw(`
		SELECT COUNT(*) FROM plans_subscriptions
		WHERE model_type = $1 AND model_id = $2
	`, ref.Kind, ref.ID).Scan(ctx, &total)
	if err != nil {
		return 0, err
	}
	return total, nil
}

func fromSubscriptionModels(models []subscriptionModel) ([]*subscription.Subscription, error) {
	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Usage Store ====================

func (s *Store) GetUsageRecord(ctx context.Context, subID id.SubscriptionID, code string) (*usage.Record, error) {
	m := new(usageModel)
	err := s.pg.NewSelect(m).
		Where("subscription_id = $1", subID.String()).
		Where("code = $2", code).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrUsageNotFound
		}
		return nil, err
	}
	return fromUsageModel(m)
}

func (s *Store) EnsureUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, at time.Time) (*usage.Record, error) {
	m := toUsageModel(usage.NewRecord(subID, code, types.NewEntity(at.UTC())))
	_, err := s.pg.NewInsert(m).
		OnConflict("(subscription_id, code) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return nil, fmt.Errorf("plans/postgres: ensure usage: %w", err)
	}
	return s.GetUsageRecord(ctx, subID, code)
}

func (s *Store) ListUsageRecords(ctx context.Context, subID id.SubscriptionID) ([]*usage.Record, error) {
	var models []usageModel
	err := s.pg.NewSelect(&models).
		Where("subscription_id = $1", subID.String()).
		OrderExpr("code ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*usage.Record, len(models))
	for i := range models {
		rec, err := fromUsageModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = rec
	}
	return result, nil
}

// IncrementUsageRecord checks and adds in one statement, so two consumers
// racing for the last units cannot both succeed.
func (s *Store) IncrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount, limit int64, at time.Time) (*usage.Record, error) {
	rec, err := s.GetUsageRecord(ctx, subID, code)
	if err != nil {
		return nil, err
	}

	t := at.UTC()
	var used int64
	err = s.pg.NewRaw(`
		UPDATE plans_usages SET used = used + $1, updated_at = $2
		WHERE subscription_id = $3 AND code = $4 AND used <= $5::bigint - $1::bigint
		RETURNING used
	`, amount, t, subID.String(), code, limit).Scan(ctx, &used)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrLimitExceeded
		}
		return nil, fmt.Errorf("plans/postgres: increment usage: %w", err)
	}

	rec.Used = used
	rec.UpdatedAt = t
	return rec, nil
}

func (s *Store) DecrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount int64, at time.Time) (*usage.Record, error) {
	rec, err := s.GetUsageRecord(ctx, subID, code)
	if err != nil {
		return nil, err
	}

	t := at.UTC()
	var used int64
	err = s.pg.NewRaw(`
		UPDATE plans_usages SET used = GREATEST(used - $1, 0), updated_at = $2
		WHERE subscription_id = $3 AND code = $4
		RETURNING used
	`, amount, t, subID.String(), code).Scan(ctx, &used)
	if err != nil {
		if isNoRows(err) {
			return nil, plans.ErrUsageNotFound
		}
		return nil, fmt.Errorf("plans/postgres: decrement usage: %w", err)
	}

	rec.Used = used
	rec.UpdatedAt = t
	return rec, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

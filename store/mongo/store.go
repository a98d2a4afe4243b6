package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/plans"
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	plansstore "github.com/xraph/plans/store"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/types"
	"github.com/xraph/plans/usage"
)

// Collection name constants.
const (
	colPlans         = "plans"
	colSubscriptions = "plans_subscriptions"
	colUsages        = "plans_usages"
)

// compile-time interface check
var _ plansstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all plans collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("%w: mongo: %s indexes: %w", plans.ErrMigrationFailed, col, err)
		}
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

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	_, err := s.mdb.NewInsert(toPlanModel(p)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/mongo: create plan: %w", err)
	}
	return nil
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	var m planModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": planID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrPlanNotFound
		}
		return nil, fmt.Errorf("plans/mongo: get plan: %w", err)
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	q := s.mdb.NewFind(&models).
		Filter(bson.M{}).
		Sort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("plans/mongo: list plans: %w", err)
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// UpdatePlan rewrites the plan's own fields. Features are managed through
// CreateFeature and UpdateFeature.
func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	res, err := s.mdb.NewUpdate((*planModel)(nil)).
		Filter(bson.M{"_id": p.ID.String()}).
		Set("name", p.Name).
		Set("description", p.Description).
		Set("price_amount", p.Price.Amount).
		Set("currency", p.Price.Currency).
		Set("duration", p.Duration).
		Set("metadata", p.Metadata).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/mongo: update plan: %w", err)
	}
	if res.MatchedCount() == 0 {
		return plans.ErrPlanNotFound
	}
	return nil
}

// CreateFeature appends to the plan's features unless the code is taken,
// in a single conditional update.
func (s *Store) CreateFeature(ctx context.Context, f *plan.Feature) error {
	res, err := s.mdb.Collection(colPlans).UpdateOne(ctx,
		bson.M{"_id": f.PlanID.String(), "features.code": bson.M{"$ne": f.Code}},
		bson.M{
			"$push": bson.M{"features": toFeatureModel(f)},
			"$set":  bson.M{"updated_at": now()},
		},
	)
	if err != nil {
		return fmt.Errorf("plans/mongo: create feature: %w", err)
	}
	if res.MatchedCount > 0 {
		return nil
	}

	if _, err := s.GetPlan(ctx, f.PlanID); err != nil {
		return err
	}
	return plans.ErrDuplicateFeature
}

func (s *Store) UpdateFeature(ctx context.Context, f *plan.Feature) error {
	m := toFeatureModel(f)
	m.UpdatedAt = now()

	res, err := s.mdb.Collection(colPlans).UpdateOne(ctx,
		bson.M{"_id": f.PlanID.String(), "features.id": m.ID},
		bson.M{"$set": bson.M{"features.$": m}},
	)
	if err != nil {
		return fmt.Errorf("plans/mongo: update feature: %w", err)
	}
	if res.MatchedCount == 0 {
		return plans.ErrFeatureNotFound
	}
	return nil
}

func (s *Store) ListFeatures(ctx context.Context, planID id.PlanID) ([]plan.Feature, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	return p.Features, nil
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.mdb.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/mongo: create subscription: %w", err)
	}
	return nil
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": subID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("plans/mongo: get subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)

	res, err := s.mdb.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("plans/mongo: update subscription: %w", err)
	}
	if res.MatchedCount() == 0 {
		return plans.ErrSubscriptionNotFound
	}
	return nil
}

func (s *Store) ListSubscriptions(ctx context.Context, ref subject.Ref, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	q := s.mdb.NewFind(&models).
		Filter(subjectFilter(ref)).
		Sort(bson.D{{Key: "starts_on", Value: 1}, {Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("plans/mongo: list subscriptions: %w", err)
	}

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

func (s *Store) GetActiveSubscription(ctx context.Context, ref subject.Ref, at time.Time) (*subscription.Subscription, error) {
	filter := subjectFilter(ref)
	filter["starts_on"] = bson.M{"$lt": at.UTC()}
	filter["expires_on"] = bson.M{"$gt": at.UTC()}

	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(filter).
		Sort(bson.D{{Key: "starts_on", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrNoActiveSubscription
		}
		return nil, fmt.Errorf("plans/mongo: get active subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetLatestSubscription(ctx context.Context, ref subject.Ref) (*subscription.Subscription, error) {
	var m subscriptionModel
	err := s.mdb.NewFind(&m).
		Filter(subjectFilter(ref)).
		Sort(bson.D{{Key: "expires_on", Value: -1}}).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("plans/mongo: get latest subscription: %w", err)
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) CountSubscriptions(ctx context.Context, ref subject.Ref) (int64, error) {
	n, err := s.mdb.Collection(colSubscriptions).CountDocuments(ctx, subjectFilter(ref))
	if err != nil {
		return 0, fmt.Errorf("plans/mongo: count subscriptions: %w", err)
	}
	return n, nil
}

func subjectFilter(ref subject.Ref) bson.M {
	return bson.M{"model_type": ref.Kind, "model_id": ref.ID}
}

// ==================== Usage Store ====================

func (s *Store) GetUsageRecord(ctx context.Context, subID id.SubscriptionID, code string) (*usage.Record, error) {
	var m usageModel
	err := s.mdb.NewFind(&m).
		Filter(usageFilter(subID, code)).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrUsageNotFound
		}
		return nil, fmt.Errorf("plans/mongo: get usage: %w", err)
	}
	return fromUsageModel(&m)
}

func (s *Store) EnsureUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, at time.Time) (*usage.Record, error) {
	m := toUsageModel(usage.NewRecord(subID, code, types.NewEntity(at.UTC())))

	_, err := s.mdb.Collection(colUsages).UpdateOne(ctx,
		usageFilter(subID, code),
		bson.M{"$setOnInsert": bson.M{
			"_id":             m.ID,
			"subscription_id": m.SubscriptionID,
			"code":            m.Code,
			"used":            m.Used,
			"created_at":      m.CreatedAt,
			"updated_at":      m.UpdatedAt,
		}},
		options.UpdateOne().SetUpsert(true),
	)
	// Two concurrent upserts can race on the unique index; the loser
	// simply reads the winner's row.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("plans/mongo: ensure usage: %w", err)
	}
	return s.GetUsageRecord(ctx, subID, code)
}

func (s *Store) ListUsageRecords(ctx context.Context, subID id.SubscriptionID) ([]*usage.Record, error) {
	var models []usageModel
	err := s.mdb.NewFind(&models).
		Filter(bson.M{"subscription_id": subID.String()}).
		Sort(bson.D{{Key: "code", Value: 1}}).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("plans/mongo: list usages: %w", err)
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

func (s *Store) IncrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount, limit int64, at time.Time) (*usage.Record, error) {
	if _, err := s.GetUsageRecord(ctx, subID, code); err != nil {
		return nil, err
	}

	filter := usageFilter(subID, code)
	filter["used"] = bson.M{"$lte": limit - amount}

	var m usageModel
	err := s.mdb.Collection(colUsages).FindOneAndUpdate(ctx,
		filter,
		bson.M{
			"$inc": bson.M{"used": amount},
			"$set": bson.M{"updated_at": at.UTC()},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrLimitExceeded
		}
		return nil, fmt.Errorf("plans/mongo: increment usage: %w", err)
	}
	return fromUsageModel(&m)
}

func (s *Store) DecrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount int64, at time.Time) (*usage.Record, error) {
	update := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "used", Value: bson.D{{Key: "$max", Value: bson.A{
				0,
				bson.D{{Key: "$subtract", Value: bson.A{"$used", amount}}},
			}}}},
			{Key: "updated_at", Value: at.UTC()},
		}}},
	}

	var m usageModel
	err := s.mdb.Collection(colUsages).FindOneAndUpdate(ctx,
		usageFilter(subID, code),
		update,
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&m)
	if err != nil {
		if isNoDocuments(err) {
			return nil, plans.ErrUsageNotFound
		}
		return nil, fmt.Errorf("plans/mongo: decrement usage: %w", err)
	}
	return fromUsageModel(&m)
}

func usageFilter(subID id.SubscriptionID, code string) bson.M {
	return bson.M{"subscription_id": subID.String(), "code": code}
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all plans collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colPlans: {
			{Keys: bson.D{{Key: "created_at", Value: 1}}},
			{Keys: bson.D{{Key: "features.id", Value: 1}}},
		},
		colSubscriptions: {
			{Keys: bson.D{{Key: "model_type", Value: 1}, {Key: "model_id", Value: 1}, {Key: "starts_on", Value: -1}}},
			{Keys: bson.D{{Key: "model_type", Value: 1}, {Key: "model_id", Value: 1}, {Key: "expires_on", Value: -1}}},
			{Keys: bson.D{{Key: "plan_id", Value: 1}}},
		},
		colUsages: {
			{
				Keys:    bson.D{{Key: "subscription_id", Value: 1}, {Key: "code", Value: 1}},
				Options: options.Index().SetUnique(true),
			},
		},
	}
}

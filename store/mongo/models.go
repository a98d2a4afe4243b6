package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/types"
	"github.com/xraph/plans/usage"
)

// ==================== Plan models ====================

// Features are embedded in the plan document.
type planModel struct {
	grove.BaseModel `grove:"table:plans"`

	ID          string            `grove:"id,pk"       bson:"_id"`
	Name        string            `grove:"name"        bson:"name"`
	Description string            `grove:"description" bson:"description"`
	PriceAmount int64             `grove:"price"       bson:"price_amount"`
	Currency    string            `grove:"currency"    bson:"currency"`
	Duration    int               `grove:"duration"    bson:"duration"`
	Features    []featureModel    `grove:"features"    bson:"features"`
	Metadata    map[string]string `grove:"metadata"    bson:"metadata,omitempty"`
	CreatedAt   time.Time         `grove:"created_at"  bson:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"  bson:"updated_at"`
}

type featureModel struct {
	ID          string    `bson:"id"`
	Name        string    `bson:"name"`
	Code        string    `bson:"code"`
	Description string    `bson:"description"`
	Type        string    `bson:"type"`
	Limit       int64     `bson:"limit"`
	CreatedAt   time.Time `bson:"created_at"`
	UpdatedAt   time.Time `bson:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	features := make([]featureModel, len(p.Features))
	for i := range p.Features {
		features[i] = toFeatureModel(&p.Features[i])
	}

	return &planModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		PriceAmount: p.Price.Amount,
		Currency:    p.Price.Currency,
		Duration:    p.Duration,
		Features:    features,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}

	features := make([]plan.Feature, len(m.Features))
	for i := range m.Features {
		f, err := fromFeatureModel(&m.Features[i], planID)
		if err != nil {
			return nil, err
		}
		features[i] = f
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:          planID,
		Name:        m.Name,
		Description: m.Description,
		Price:       types.NewMoney(m.PriceAmount, m.Currency),
		Duration:    m.Duration,
		Features:    features,
		Metadata:    m.Metadata,
	}, nil
}

func toFeatureModel(f *plan.Feature) featureModel {
	return featureModel{
		ID:          f.ID.String(),
		Name:        f.Name,
		Code:        f.Code,
		Description: f.Description,
		Type:        string(f.Kind),
		Limit:       f.Limit,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func fromFeatureModel(m *featureModel, planID id.PlanID) (plan.Feature, error) {
	featureID, err := id.ParseFeatureID(m.ID)
	if err != nil {
		return plan.Feature{}, err
	}

	return plan.Feature{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:          featureID,
		PlanID:      planID,
		Name:        m.Name,
		Code:        m.Code,
		Description: m.Description,
		Kind:        plan.FeatureKind(m.Type),
		Limit:       m.Limit,
	}, nil
}

// ==================== Subscription models ====================

type subscriptionModel struct {
	grove.BaseModel `grove:"table:plans_subscriptions"`

	ID          string     `grove:"id,pk"        bson:"_id"`
	PlanID      string     `grove:"plan_id"      bson:"plan_id"`
	ModelID     string     `grove:"model_id"     bson:"model_id"`
	ModelType   string     `grove:"model_type"   bson:"model_type"`
	StartsOn    time.Time  `grove:"starts_on"    bson:"starts_on"`
	ExpiresOn   time.Time  `grove:"expires_on"   bson:"expires_on"`
	CancelledOn *time.Time `grove:"cancelled_on" bson:"cancelled_on,omitempty"`
	CreatedAt   time.Time  `grove:"created_at"   bson:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"   bson:"updated_at"`
}

func toSubscriptionModel(s *subscription.Subscription) *subscriptionModel {
	return &subscriptionModel{
		ID:          s.ID.String(),
		PlanID:      s.PlanID.String(),
		ModelID:     s.Subject.ID,
		ModelType:   s.Subject.Kind,
		StartsOn:    s.StartsOn,
		ExpiresOn:   s.ExpiresOn,
		CancelledOn: s.CancelledOn,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
}

func fromSubscriptionModel(m *subscriptionModel) (*subscription.Subscription, error) {
	subID, err := id.ParseSubscriptionID(m.ID)
	if err != nil {
		return nil, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return nil, err
	}

	var cancelled *time.Time
	if m.CancelledOn != nil {
		t := m.CancelledOn.UTC()
		cancelled = &t
	}

	return &subscription.Subscription{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:          subID,
		PlanID:      planID,
		Subject:     subject.NewRef(m.ModelType, m.ModelID),
		StartsOn:    m.StartsOn.UTC(),
		ExpiresOn:   m.ExpiresOn.UTC(),
		CancelledOn: cancelled,
	}, nil
}

// ==================== Usage models ====================

type usageModel struct {
	grove.BaseModel `grove:"table:plans_usages"`

	ID             string    `grove:"id,pk"           bson:"_id"`
	SubscriptionID string    `grove:"subscription_id" bson:"subscription_id"`
	Code           string    `grove:"code"            bson:"code"`
	Used           int64     `grove:"used"            bson:"used"`
	CreatedAt      time.Time `grove:"created_at"      bson:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"      bson:"updated_at"`
}

func toUsageModel(r *usage.Record) *usageModel {
	return &usageModel{
		ID:             r.ID.String(),
		SubscriptionID: r.SubscriptionID.String(),
		Code:           r.Code,
		Used:           r.Used,
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}
}

func fromUsageModel(m *usageModel) (*usage.Record, error) {
	usageID, err := id.ParseUsageID(m.ID)
	if err != nil {
		return nil, err
	}
	subID, err := id.ParseSubscriptionID(m.SubscriptionID)
	if err != nil {
		return nil, err
	}

	return &usage.Record{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt.UTC(),
			UpdatedAt: m.UpdatedAt.UTC(),
		},
		ID:             usageID,
		SubscriptionID: subID,
		Code:           m.Code,
		Used:           m.Used,
	}, nil
}

package postgres

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

type planModel struct {
	grove.BaseModel `grove:"table:plans"`

	ID          string            `grove:"id,pk"`
	Name        string            `grove:"name"`
	Description string            `grove:"description"`
	Price       float64           `grove:"price"`
	Currency    string            `grove:"currency"`
	Duration    int               `grove:"duration"`
	Metadata    map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt   time.Time         `grove:"created_at"`
	UpdatedAt   time.Time         `grove:"updated_at"`
}

func toPlanModel(p *plan.Plan) *planModel {
	return &planModel{
		ID:          p.ID.String(),
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price.Major(),
		Currency:    p.Price.Currency,
		Duration:    p.Duration,
		Metadata:    p.Metadata,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func fromPlanModel(m *planModel, features []plan.Feature) (*plan.Plan, error) {
	planID, err := id.ParsePlanID(m.ID)
	if err != nil {
		return nil, err
	}

	return &plan.Plan{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:          planID,
		Name:        m.Name,
		Description: m.Description,
		Price:       types.FromMajor(m.Price, m.Currency),
		Duration:    m.Duration,
		Features:    features,
		Metadata:    m.Metadata,
	}, nil
}

type featureModel struct {
	grove.BaseModel `grove:"table:plans_features"`

	ID          string    `grove:"id,pk"`
	PlanID      string    `grove:"plan_id"`
	Name        string    `grove:"name"`
	Code        string    `grove:"code"`
	Description string    `grove:"description"`
	Type        string    `grove:"type"`
	Limit       int64     `grove:"feature_limit"`
	CreatedAt   time.Time `grove:"created_at"`
	UpdatedAt   time.Time `grove:"updated_at"`
}

func toFeatureModel(f *plan.Feature) *featureModel {
	return &featureModel{
		ID:          f.ID.String(),
		PlanID:      f.PlanID.String(),
		Name:        f.Name,
		Code:        f.Code,
		Description: f.Description,
		Type:        string(f.Kind),
		Limit:       f.Limit,
		CreatedAt:   f.CreatedAt,
		UpdatedAt:   f.UpdatedAt,
	}
}

func fromFeatureModel(m *featureModel) (plan.Feature, error) {
	featureID, err := id.ParseFeatureID(m.ID)
	if err != nil {
		return plan.Feature{}, err
	}
	planID, err := id.ParsePlanID(m.PlanID)
	if err != nil {
		return plan.Feature{}, err
	}

	return plan.Feature{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
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

	ID          string     `grove:"id,pk"`
	PlanID      string     `grove:"plan_id"`
	ModelID     string     `grove:"model_id"`
	ModelType   string     `grove:"model_type"`
	StartsOn    time.Time  `grove:"starts_on"`
	ExpiresOn   time.Time  `grove:"expires_on"`
	CancelledOn *time.Time `grove:"cancelled_on"`
	CreatedAt   time.Time  `grove:"created_at"`
	UpdatedAt   time.Time  `grove:"updated_at"`
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
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
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

	ID             string    `grove:"id,pk"`
	SubscriptionID string    `grove:"subscription_id"`
	Code           string    `grove:"code"`
	Used           int64     `grove:"used"`
	CreatedAt      time.Time `grove:"created_at"`
	UpdatedAt      time.Time `grove:"updated_at"`
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
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:             usageID,
		SubscriptionID: subID,
		Code:           m.Code,
		Used:           m.Used,
	}, nil
}

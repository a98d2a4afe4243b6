package plan

import (
	"context"

	"github.com/xraph/plans/id"
)

// Store persists plans and their features. GetPlan and ListPlans return
// plans with Features populated in creation order.
type Store interface {
	CreatePlan(ctx context.Context, p *Plan) error
	GetPlan(ctx context.Context, planID id.PlanID) (*Plan, error)
	ListPlans(ctx context.Context, opts ListOpts) ([]*Plan, error)
	UpdatePlan(ctx context.Context, p *Plan) error
	CreateFeature(ctx context.Context, f *Feature) error
	UpdateFeature(ctx context.Context, f *Feature) error
	ListFeatures(ctx context.Context, planID id.PlanID) ([]Feature, error)
}

// ListOpts pages through plans ordered by creation time, oldest first.
type ListOpts struct {
	Limit  int
	Offset int
}

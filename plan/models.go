package plan

import (
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/types"
)

// DefaultDuration is the subscription length, in days, of a plan created
// without one.
const DefaultDuration = 30

type Plan struct {
	types.Entity
	ID          id.PlanID         `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Price       types.Money       `json:"price"`
	Duration    int               `json:"duration"`
	Features    []Feature         `json:"features"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

type Feature struct {
	types.Entity
	ID          id.FeatureID `json:"id"`
	PlanID      id.PlanID    `json:"plan_id"`
	Name        string       `json:"name"`
	Code        string       `json:"code"`
	Description string       `json:"description"`
	Kind        FeatureKind  `json:"type"`
	Limit       int64        `json:"limit"`
}

// FeatureKind is persisted in the "type" column.
type FeatureKind string

const (
	KindFeature FeatureKind = "feature"
	KindLimit   FeatureKind = "limit"
)

// Valid reports whether k is one of the known kinds.
func (k FeatureKind) Valid() bool {
	return k == KindFeature || k == KindLimit
}

func (f *Feature) IsLimit() bool {
	return f.Kind == KindLimit
}

// FeatureByCode returns the feature with the given code. Codes are unique
// within a plan.
func (p *Plan) FeatureByCode(code string) (*Feature, bool) {
	for i := range p.Features {
		if p.Features[i].Code == code {
			return &p.Features[i], true
		}
	}

	return nil, false
}

func (p *Plan) HasFeature(code string) bool {
	_, ok := p.FeatureByCode(code)

	return ok
}

// LimitFeatures returns the metered features in declaration order.
func (p *Plan) LimitFeatures() []Feature {
	var out []Feature
	for _, f := range p.Features {
		if f.IsLimit() {
			out = append(out, f)
		}
	}

	return out
}

// Clone returns a deep copy, so cached plans cannot be mutated by callers.
func (p *Plan) Clone() *Plan {
	cp := *p
	cp.Features = append([]Feature(nil), p.Features...)
	if p.Metadata != nil {
		cp.Metadata = make(map[string]string, len(p.Metadata))
		for k, v := range p.Metadata {
			cp.Metadata[k] = v
		}
	}

	return &cp
}

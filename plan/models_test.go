package plan_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans/plan"
)

func samplePlan() *plan.Plan {
	return &plan.Plan{
		Name:     "Pro",
		Duration: 30,
		Features: []plan.Feature{
			{Code: "sso", Kind: plan.KindFeature},
			{Code: "build.minutes", Kind: plan.KindLimit, Limit: 2000},
			{Code: "seats", Kind: plan.KindLimit, Limit: 5},
		},
		Metadata: map[string]string{"tier": "pro"},
	}
}

func TestFeatureByCode(t *testing.T) {
	p := samplePlan()

	f, ok := p.FeatureByCode("build.minutes")
	require.True(t, ok)
	assert.True(t, f.IsLimit())
	assert.Equal(t, int64(2000), f.Limit)

	_, ok = p.FeatureByCode("missing")
	assert.False(t, ok)

	assert.True(t, p.HasFeature("sso"))
	assert.False(t, p.HasFeature("audit"))
}

func TestLimitFeatures(t *testing.T) {
	codes := []string{}
	for _, f := range samplePlan().LimitFeatures() {
		codes = append(codes, f.Code)
	}
	assert.Equal(t, []string{"build.minutes", "seats"}, codes)
}

func TestFeatureKindValid(t *testing.T) {
	assert.True(t, plan.KindFeature.Valid())
	assert.True(t, plan.KindLimit.Valid())
	assert.False(t, plan.FeatureKind("metered").Valid())
}

func TestCloneIsIndependent(t *testing.T) {
	p := samplePlan()
	cp := p.Clone()

	cp.Features[0].Code = "changed"
	cp.Metadata["tier"] = "changed"

	assert.Equal(t, "sso", p.Features[0].Code)
	assert.Equal(t, "pro", p.Metadata["tier"])
}

package id_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/plans/id"
)

func TestConstructorsUsePrefix(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"plan", id.NewPlanID, "plan_"},
		{"feature", id.NewFeatureID, "feat_"},
		{"subscription", id.NewSubscriptionID, "sub_"},
		{"usage", id.NewUsageID, "usage_"},
		{"event", id.NewEventID, "evt_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			assert.True(t, strings.HasPrefix(got, tt.prefix), "got %q", got)
		})
	}
}

func TestParseWithPrefix(t *testing.T) {
	sub := id.NewSubscriptionID()

	parsed, err := id.ParseSubscriptionID(sub.String())
	require.NoError(t, err)
	assert.True(t, parsed.Equal(sub))

	_, err = id.ParsePlanID(sub.String())
	assert.Error(t, err)

	_, err = id.Parse("")
	assert.Error(t, err)
}

func TestNilID(t *testing.T) {
	assert.True(t, id.Nil.IsNil())
	assert.Empty(t, id.Nil.String())
	assert.Equal(t, id.Prefix(""), id.Nil.Prefix())

	v, err := id.Nil.Value()
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestScan(t *testing.T) {
	p := id.NewPlanID()

	var fromString id.ID
	require.NoError(t, fromString.Scan(p.String()))
	assert.True(t, fromString.Equal(p))

	var fromBytes id.ID
	require.NoError(t, fromBytes.Scan([]byte(p.String())))
	assert.True(t, fromBytes.Equal(p))

	var fromNil id.ID
	require.NoError(t, fromNil.Scan(nil))
	assert.True(t, fromNil.IsNil())

	var bad id.ID
	assert.Error(t, bad.Scan(42))
}

func TestJSON(t *testing.T) {
	type doc struct {
		Plan id.PlanID `json:"plan"`
	}

	in := doc{Plan: id.NewPlanID()}
	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out doc
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Plan.Equal(in.Plan))
}

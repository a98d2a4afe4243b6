package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/xraph/plans/types"
)

func TestMoneyFormat(t *testing.T) {
	tests := []struct {
		name  string
		money types.Money
		major string
		str   string
	}{
		{"usd", types.USD(4900), "49.00", "USD 49.00"},
		{"eur cents", types.EUR(1999), "19.99", "EUR 19.99"},
		{"free", types.Free(), "0.00", "USD 0.00"},
		{"negative", types.USD(-150), "-1.50", "USD -1.50"},
		{"zero decimal", types.NewMoney(500, "JPY"), "500", "JPY 500"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.major, tt.money.FormatMajor())
			assert.Equal(t, tt.str, tt.money.String())
		})
	}
}

func TestMoneyMajorConversion(t *testing.T) {
	m := types.FromMajor(9.99, "USD")
	assert.Equal(t, types.USD(999), m)
	assert.InDelta(t, 9.99, m.Major(), 0.0001)

	yen := types.FromMajor(1200, "jpy")
	assert.Equal(t, int64(1200), yen.Amount)

	assert.Equal(t, "usd", types.FromMajor(1, "").Currency)
	assert.True(t, types.Free().IsZero())
}

func TestEntityTouch(t *testing.T) {
	start := time.Date(2026, 1, 1, 12, 0, 0, 0, time.FixedZone("x", 3600))
	e := types.NewEntity(start)
	assert.Equal(t, time.UTC, e.CreatedAt.Location())
	assert.Equal(t, e.CreatedAt, e.UpdatedAt)

	e.Touch(start.Add(time.Hour))
	assert.Equal(t, time.Hour, e.UpdatedAt.Sub(e.CreatedAt))
}

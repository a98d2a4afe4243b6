package usage

import (
	"github.com/xraph/plans/id"
	"github.com/xraph/plans/types"
)

// Record is the consumption counter for one limit feature of one
// subscription. There is at most one record per (SubscriptionID, Code).
type Record struct {
	types.Entity
	ID             id.UsageID        `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	Code           string            `json:"code"`
	Used           int64             `json:"used"`
}

// NewRecord returns an empty counter.
func NewRecord(subID id.SubscriptionID, code string, entity types.Entity) *Record {
	return &Record{
		Entity:         entity,
		ID:             id.NewUsageID(),
		SubscriptionID: subID,
		Code:           code,
	}
}

// Remaining is the capacity left under limit, never negative.
func (r *Record) Remaining(limit int64) int64 {
	if r.Used >= limit {
		return 0
	}

	return limit - r.Used
}

// Fits reports whether amount more units stay within limit. amount must be
// non-negative; the comparison never overflows.
func (r *Record) Fits(amount, limit int64) bool {
	return amount <= limit-r.Used
}

package usage

import (
	"context"
	"time"

	"github.com/xraph/plans/id"
)

// Store persists usage records. Increment and decrement are single atomic
// writes so concurrent consumers of one counter cannot overshoot the limit.
// The at argument stamps created/updated times.
type Store interface {
	GetUsageRecord(ctx context.Context, subID id.SubscriptionID, code string) (*Record, error)

	// EnsureUsageRecord returns the existing record or creates one with
	// Used = 0. It is safe to call concurrently.
	EnsureUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, at time.Time) (*Record, error)

	ListUsageRecords(ctx context.Context, subID id.SubscriptionID) ([]*Record, error)

	// IncrementUsageRecord adds amount iff Used+amount <= limit. It returns
	// ErrLimitExceeded, leaving the record unchanged, otherwise.
	IncrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount, limit int64, at time.Time) (*Record, error)

	// DecrementUsageRecord subtracts amount, flooring Used at zero.
	DecrementUsageRecord(ctx context.Context, subID id.SubscriptionID, code string, amount int64, at time.Time) (*Record, error)
}

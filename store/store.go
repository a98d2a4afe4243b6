package store

import (
	"context"

	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subscription"
	"github.com/xraph/plans/usage"
)

// Store is the unified storage interface for plans, subscriptions and usage
// records. Backends return the plans sentinel errors (ErrPlanNotFound,
// ErrLimitExceeded, ...) so callers can match them with errors.Is.
type Store interface {
	plan.Store
	subscription.Store
	usage.Store

	// Migrate runs all schema migrations.
	Migrate(ctx context.Context) error

	// Ping checks database connectivity.
	Ping(ctx context.Context) error

	// Close closes the store connection.
	Close() error
}

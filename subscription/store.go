package subscription

import (
	"context"
	"time"

	"github.com/xraph/plans/id"
	"github.com/xraph/plans/subject"
)

type Store interface {
	CreateSubscription(ctx context.Context, s *Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	UpdateSubscription(ctx context.Context, s *Subscription) error
	ListSubscriptions(ctx context.Context, ref subject.Ref, opts ListOpts) ([]*Subscription, error)

	// GetActiveSubscription returns the subject's row with
	// starts_on < at < expires_on, preferring the latest start.
	GetActiveSubscription(ctx context.Context, ref subject.Ref, at time.Time) (*Subscription, error)

	// GetLatestSubscription returns the subject's row with the greatest
	// expires_on.
	GetLatestSubscription(ctx context.Context, ref subject.Ref) (*Subscription, error)

	CountSubscriptions(ctx context.Context, ref subject.Ref) (int64, error)
}

// ListOpts pages through a subject's subscriptions ordered by starts_on,
// oldest first.
type ListOpts struct {
	Limit  int
	Offset int
}

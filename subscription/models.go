package subscription

import (
	"time"

	"github.com/xraph/plans/id"
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/types"
)

// State is the lifecycle position of a subscription at a given instant.
// It is derived from the timestamps and never stored.
type State string

const (
	StatePending             State = "pending"
	StateActive              State = "active"
	StatePendingCancellation State = "pending_cancellation"
	StateCancelled           State = "cancelled"
	StateExpired             State = "expired"
)

const day = 24 * time.Hour

type Subscription struct {
	types.Entity
	ID          id.SubscriptionID `json:"id"`
	PlanID      id.PlanID         `json:"plan_id"`
	Subject     subject.Ref       `json:"subject"`
	StartsOn    time.Time         `json:"starts_on"`
	ExpiresOn   time.Time         `json:"expires_on"`
	CancelledOn *time.Time        `json:"cancelled_on,omitempty"`
}

// HasStarted reports whether now is at or after StartsOn.
func (s *Subscription) HasStarted(now time.Time) bool {
	return !now.Before(s.StartsOn)
}

// HasExpired reports whether now is strictly after ExpiresOn.
func (s *Subscription) HasExpired(now time.Time) bool {
	return now.After(s.ExpiresOn)
}

func (s *Subscription) IsActive(now time.Time) bool {
	return s.HasStarted(now) && !s.HasExpired(now)
}

func (s *Subscription) IsCancelled() bool {
	return s.CancelledOn != nil
}

// IsPendingCancellation reports a cancelled subscription that still runs
// until its expiry.
func (s *Subscription) IsPendingCancellation(now time.Time) bool {
	return s.IsCancelled() && s.IsActive(now)
}

// InWindow is the strict form of IsActive used when searching a subject's
// history: StartsOn < now < ExpiresOn.
func (s *Subscription) InWindow(now time.Time) bool {
	return s.StartsOn.Before(now) && s.ExpiresOn.After(now)
}

// RemainingDays is the number of whole days until expiry, 0 once expired.
func (s *Subscription) RemainingDays(now time.Time) int {
	if s.HasExpired(now) {
		return 0
	}

	return int(s.ExpiresOn.Sub(now) / day)
}

func (s *Subscription) State(now time.Time) State {
	switch {
	case s.IsPendingCancellation(now):
		return StatePendingCancellation
	case s.IsCancelled():
		return StateCancelled
	case s.HasExpired(now):
		return StateExpired
	case !s.HasStarted(now):
		return StatePending
	default:
		return StateActive
	}
}

// Successor builds the row that continues s for days more days, starting
// when s expires.
func (s *Subscription) Successor(days int, now time.Time) *Subscription {
	return &Subscription{
		Entity:    types.NewEntity(now),
		ID:        id.NewSubscriptionID(),
		PlanID:    s.PlanID,
		Subject:   s.Subject,
		StartsOn:  s.ExpiresOn,
		ExpiresOn: s.ExpiresOn.AddDate(0, 0, days),
	}
}

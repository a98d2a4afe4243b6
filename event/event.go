// Package event defines the notifications emitted after lifecycle and
// metering operations have been persisted.
package event

import (
	"time"

	"github.com/xraph/plans/id"
	"github.com/xraph/plans/plan"
	"github.com/xraph/plans/subscription"
)

// Names double as routing keys on the event bus.
const (
	NamePlanCreated         = "plan.created"
	NameNewSubscription     = "subscription.created"
	NameExtendSubscription  = "subscription.extended"
	NameUpgradeSubscription = "subscription.upgraded"
	NameCancelSubscription  = "subscription.cancelled"
	NameFeatureConsumed     = "feature.consumed"
	NameFeatureUnconsumed   = "feature.unconsumed"
)

// Event is implemented by every notification payload.
type Event interface {
	Name() string
	Metadata() Meta
}

// Meta identifies one emission.
type Meta struct {
	ID id.EventID `json:"id"`
	At time.Time  `json:"at"`
}

// NewMeta stamps a fresh event id at the given instant.
func NewMeta(at time.Time) Meta {
	return Meta{ID: id.NewEventID(), At: at.UTC()}
}

func (m Meta) Metadata() Meta { return m }

type PlanCreated struct {
	Meta
	Plan *plan.Plan `json:"plan"`
}

func (PlanCreated) Name() string { return NamePlanCreated }

type NewSubscription struct {
	Meta
	Subscription *subscription.Subscription `json:"subscription"`
	Duration     int                        `json:"duration"`
}

func (NewSubscription) Name() string { return NameNewSubscription }

// ExtendSubscription reports an extension. NewSubscription is set only when
// the extension created a successor row.
type ExtendSubscription struct {
	Meta
	Subscription    *subscription.Subscription `json:"subscription"`
	Duration        int                        `json:"duration"`
	StartFromNow    bool                       `json:"start_from_now"`
	NewSubscription *subscription.Subscription `json:"new_subscription,omitempty"`
}

func (ExtendSubscription) Name() string { return NameExtendSubscription }

type UpgradeSubscription struct {
	Meta
	Subscription *subscription.Subscription `json:"subscription"`
	Duration     int                        `json:"duration"`
	StartFromNow bool                       `json:"start_from_now"`
	OldPlan      *plan.Plan                 `json:"old_plan"`
	NewPlan      *plan.Plan                 `json:"new_plan"`
}

func (UpgradeSubscription) Name() string { return NameUpgradeSubscription }

type CancelSubscription struct {
	Meta
	Subscription *subscription.Subscription `json:"subscription"`
}

func (CancelSubscription) Name() string { return NameCancelSubscription }

// FeatureConsumed carries the capacity left before the consumption.
type FeatureConsumed struct {
	Meta
	Subscription *subscription.Subscription `json:"subscription"`
	Feature      *plan.Feature              `json:"feature"`
	Amount       int64                      `json:"amount"`
	Remaining    int64                      `json:"remaining"`
}

func (FeatureConsumed) Name() string { return NameFeatureConsumed }

// FeatureUnconsumed carries the capacity left after the release.
type FeatureUnconsumed struct {
	Meta
	Subscription *subscription.Subscription `json:"subscription"`
	Feature      *plan.Feature              `json:"feature"`
	Amount       int64                      `json:"amount"`
	Remaining    int64                      `json:"remaining"`
}

func (FeatureUnconsumed) Name() string { return NameFeatureUnconsumed }

// SubscriptionOf returns the subscription an event is about, or nil.
func SubscriptionOf(e Event) *subscription.Subscription {
	switch ev := e.(type) {
	case *NewSubscription:
		return ev.Subscription
	case *ExtendSubscription:
		return ev.Subscription
	case *UpgradeSubscription:
		return ev.Subscription
	case *CancelSubscription:
		return ev.Subscription
	case *FeatureConsumed:
		return ev.Subscription
	case *FeatureUnconsumed:
		return ev.Subscription
	default:
		return nil
	}
}

package audithook

// Action constants for audit events.
const (
	// Plan actions
	ActionPlanCreated = "plan.created"

	// Subscription actions
	ActionSubscriptionCreated   = "subscription.created"
	ActionSubscriptionExtended  = "subscription.extended"
	ActionSubscriptionRenewed   = "subscription.renewed"
	ActionSubscriptionUpgraded  = "subscription.upgraded"
	ActionSubscriptionCancelled = "subscription.cancelled"

	// Usage actions
	ActionFeatureConsumed   = "feature.consumed"
	ActionFeatureUnconsumed = "feature.unconsumed"
	ActionLimitReached      = "limit.reached"
)

// Resource constants for audit events.
const (
	ResourcePlan         = "plan"
	ResourceSubscription = "subscription"
	ResourceUsage        = "usage"
)

// Category constants for audit events.
const (
	CategoryCatalogue    = "catalogue"
	CategorySubscription = "subscription"
	CategoryUsage        = "usage"
)

// Severity levels for audit events.
const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
)

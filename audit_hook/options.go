package audithook

import "log/slog"

// Option configures an Extension.
type Option func(*Extension)

// actionCategories maps every audited action to its category.
var actionCategories = map[string]string{
	ActionPlanCreated:           CategoryCatalogue,
	ActionSubscriptionCreated:   CategorySubscription,
	ActionSubscriptionExtended:  CategorySubscription,
	ActionSubscriptionRenewed:   CategorySubscription,
	ActionSubscriptionUpgraded:  CategorySubscription,
	ActionSubscriptionCancelled: CategorySubscription,
	ActionFeatureConsumed:       CategoryUsage,
	ActionFeatureUnconsumed:     CategoryUsage,
	ActionLimitReached:          CategoryUsage,
}

// WithLogger sets the logger used when the recorder fails.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extension) { e.logger = logger }
}

// WithEnabledActions restricts auditing to the given actions.
// Without it every action is audited.
func WithEnabledActions(actions ...string) Option {
	return func(e *Extension) {
		e.enabled = actionSet(actions, nil)
	}
}

// WithCategories restricts auditing to actions in the given categories.
func WithCategories(categories ...string) Option {
	return func(e *Extension) {
		wanted := make(map[string]bool, len(categories))
		for _, c := range categories {
			wanted[c] = true
		}
		e.enabled = actionSet(nil, func(action string) bool {
			return wanted[actionCategories[action]]
		})
	}
}

// WithDisabledActions removes actions from the audited set.
func WithDisabledActions(actions ...string) Option {
	return func(e *Extension) {
		if e.enabled == nil {
			e.enabled = actionSet(nil, func(string) bool { return true })
		}
		for _, a := range actions {
			delete(e.enabled, a)
		}
	}
}

// actionSet builds an enabled set from an explicit list, or from every
// known action that keep accepts.
func actionSet(actions []string, keep func(string) bool) map[string]bool {
	set := make(map[string]bool, len(actionCategories))
	for _, a := range actions {
		set[a] = true
	}
	if keep != nil {
		for a := range actionCategories {
			if keep(a) {
				set[a] = true
			}
		}
	}
	return set
}

// Package entitlement describes the answer to "may this subscription use
// this feature right now".
package entitlement

// Reason values explain a denied check.
const (
	ReasonInactive       = "subscription is not active"
	ReasonUnknownFeature = "feature is not part of the plan"
	ReasonExhausted      = "limit reached"
)

type Result struct {
	Allowed   bool   `json:"allowed"`
	Feature   string `json:"feature"`
	Metered   bool   `json:"metered"`
	Used      int64  `json:"used"`
	Limit     int64  `json:"limit"`
	Remaining int64  `json:"remaining"`
	Reason    string `json:"reason,omitempty"`
}

// Deny returns a refused result for feature.
func Deny(feature, reason string) *Result {
	return &Result{Feature: feature, Reason: reason}
}

package plans

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure scenarios.
var (
	// General errors
	ErrNotFound      = errors.New("plans: not found")
	ErrAlreadyExists = errors.New("plans: already exists")
	ErrInvalidInput  = errors.New("plans: invalid input")

	// Plan errors
	ErrPlanNotFound     = errors.New("plans: plan not found")
	ErrFeatureNotFound  = errors.New("plans: feature not found")
	ErrDuplicateFeature = errors.New("plans: duplicate feature code")

	// Subscription errors
	ErrSubscriptionNotFound     = errors.New("plans: subscription not found")
	ErrNoActiveSubscription     = errors.New("plans: no active subscription")
	ErrActiveSubscriptionExists = errors.New("plans: subject already has an active subscription")
	ErrInvalidDuration          = errors.New("plans: duration must be at least one day")
	ErrAlreadyCancelled         = errors.New("plans: subscription already cancelled")
	ErrUnknownSubjectKind       = errors.New("plans: unknown subject kind")

	// Metering errors
	ErrUsageNotFound   = errors.New("plans: usage record not found")
	ErrFeatureNotLimit = errors.New("plans: feature is not a limit")
	ErrLimitExceeded   = errors.New("plans: limit exceeded")
	ErrInvalidAmount   = errors.New("plans: amount must not be negative")

	// Store errors
	ErrStoreClosed     = errors.New("plans: store is closed")
	ErrMigrationFailed = errors.New("plans: migration failed")

	// Cache errors
	ErrCacheMiss = errors.New("plans: cache miss")
)

// refusals are outcomes the engine declines by rule, as opposed to
// infrastructure failures.
var refusals = []error{
	ErrInvalidDuration,
	ErrAlreadyCancelled,
	ErrLimitExceeded,
	ErrFeatureNotLimit,
	ErrFeatureNotFound,
	ErrNoActiveSubscription,
	ErrActiveSubscriptionExists,
	ErrInvalidAmount,
	ErrUsageNotFound,
}

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("plans: validation failed for %s: %s", e.Field, e.Message)
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e ValidationError) Unwrap() error { return ErrInvalidInput }

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrPlanNotFound) ||
		errors.Is(err, ErrSubscriptionNotFound) ||
		errors.Is(err, ErrFeatureNotFound) ||
		errors.Is(err, ErrUsageNotFound)
}

// IsRefusal reports whether err is a business-rule refusal: the operation
// was rejected and nothing was written, apart from lazily created usage
// records.
func IsRefusal(err error) bool {
	for _, r := range refusals {
		if errors.Is(err, r) {
			return true
		}
	}
	return false
}

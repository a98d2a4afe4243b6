package plans

import "github.com/xraph/plans/id"

// ID is the identifier type of plans, features, subscriptions and usage
// records.
type ID = id.ID

// Prefix identifies the entity type encoded in an ID.
type Prefix = id.Prefix

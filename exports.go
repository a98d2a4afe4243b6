package plans

import (
	"github.com/xraph/plans/subject"
	"github.com/xraph/plans/types"
)

// Re-exports so callers can build plans and subjects without importing the
// leaf packages.

type (
	Money  = types.Money
	Entity = types.Entity
	Ref    = subject.Ref
)

var (
	USD      = types.USD
	EUR      = types.EUR
	NewMoney = types.NewMoney
	NewRef   = subject.NewRef
)

package tiersale

import (
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Re-export common types for convenience so users don't have to import
// the leaf packages.

// Money is re-exported from types package.
type Money = types.Money

// Entity is re-exported from types package.
type Entity = types.Entity

// Tier is re-exported from tier package.
type Tier = tier.Tier

// Schedule is re-exported from tier package.
type Schedule = tier.Schedule

// Re-export Money constructors
var (
	USD  = types.USD
	EUR  = types.EUR
	GBP  = types.GBP
	In   = types.In
	Zero = types.Zero
	Sum  = types.Sum
)

// Re-export tier constants and constructors
const (
	TierOne    = tier.One
	TierTwo    = tier.Two
	TierThree  = tier.Three
	TierClosed = tier.Closed
)

var NewSchedule = tier.NewSchedule

// Re-export Entity constructor
var NewEntity = types.NewEntity

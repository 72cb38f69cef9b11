// Package tier defines the capacity tiers of a sale and their ordering.
//
// A sale runs through three tiers with cumulative capacity limits and
// ends in the terminal Closed state once the final limit is reached.
// The tier is an explicit tagged state, not a bare integer, so the
// terminal state cannot be confused with a tier index.
package tier

import (
	"fmt"

	"github.com/xraph/tiersale/types"
)

// Tier is the phase of a sale. The zero value is invalid; valid values
// are One, Two, Three and the terminal Closed. Ordering is meaningful:
// a larger value means the phase comes later, and Closed is past every
// tier.
type Tier uint8

const (
	One Tier = iota + 1
	Two
	Three
	Closed
)

// Count is the number of capacity tiers (excluding Closed).
const Count = 3

// Valid reports whether t is one of the defined states.
func (t Tier) Valid() bool { return t >= One && t <= Closed }

// IsCapacity reports whether t is one of the three capacity tiers.
func (t Tier) IsCapacity() bool { return t >= One && t <= Three }

// Index returns the zero-based bucket index for a capacity tier.
// It panics for Closed or invalid values (programming error).
func (t Tier) Index() int {
	if !t.IsCapacity() {
		panic(fmt.Sprintf("tier: no bucket index for %s", t))
	}
	return int(t - One)
}

// Next returns the state after t: One→Two→Three→Closed. Closed is
// terminal and returns itself.
func (t Tier) Next() Tier {
	if t == Closed {
		return Closed
	}
	return t + 1
}

// After reports whether t comes after other in the sale's lifecycle.
// Closed is after every capacity tier.
func (t Tier) After(other Tier) bool { return t > other }

// String returns the canonical name: "tier1", "tier2", "tier3", "closed".
func (t Tier) String() string {
	switch t {
	case One:
		return "tier1"
	case Two:
		return "tier2"
	case Three:
		return "tier3"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("tier(%d)", uint8(t))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("tier: cannot marshal invalid tier %d", uint8(t))
	}
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(data []byte) error {
	switch string(data) {
	case "tier1":
		*t = One
	case "tier2":
		*t = Two
	case "tier3":
		*t = Three
	case "closed":
		*t = Closed
	default:
		return fmt.Errorf("tier: unknown tier %q", string(data))
	}
	return nil
}

// Schedule holds the three cumulative capacity limits of a sale.
// Schedule[0] is the total capacity through tier 1, Schedule[2] the
// total capacity of the whole sale. Limits must be strictly increasing
// and share one currency.
type Schedule [Count]types.Money

// NewSchedule builds a Schedule from three cumulative limits and
// validates it.
func NewSchedule(l1, l2, l3 types.Money) (Schedule, error) {
	s := Schedule{l1, l2, l3}
	if err := s.Validate(); err != nil {
		return Schedule{}, err
	}
	return s, nil
}

// Validate checks that the limits are positive, share one currency,
// and are strictly increasing.
func (s Schedule) Validate() error {
	for i, limit := range s {
		if limit.Currency == "" {
			return fmt.Errorf("tier: limit %d has no currency", i+1)
		}
		if !limit.IsPositive() {
			return fmt.Errorf("tier: limit %d must be positive, got %s", i+1, limit)
		}
		if !limit.SameCurrency(s[0]) {
			return fmt.Errorf("tier: limit %d currency %q does not match %q", i+1, limit.Currency, s[0].Currency)
		}
	}
	for i := 1; i < Count; i++ {
		if !s[i].GreaterThan(s[i-1]) {
			return fmt.Errorf("tier: limits must be strictly increasing, limit %d (%s) <= limit %d (%s)",
				i+1, s[i], i, s[i-1])
		}
	}
	return nil
}

// Limit returns the cumulative capacity limit of a capacity tier.
// It panics for Closed or invalid values (programming error).
func (s Schedule) Limit(t Tier) types.Money {
	return s[t.Index()]
}

// Final returns the total capacity of the sale (the tier-3 limit).
func (s Schedule) Final() types.Money {
	return s[Count-1]
}

// Currency returns the currency shared by all limits.
func (s Schedule) Currency() string {
	return s[0].Currency
}

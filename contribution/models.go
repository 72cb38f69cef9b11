// Package contribution defines the journal entry recorded for every
// accepted contribution.
package contribution

import (
	"time"

	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Booking is the portion of a contribution attributed to one tier.
type Booking struct {
	Tier   tier.Tier   `json:"tier"`
	Amount types.Money `json:"amount"`
}

// Contribution is the immutable journal record of one accepted
// contribution. The journal is an audit trail: the authoritative
// ledger state lives in the engine and its snapshots.
type Contribution struct {
	types.Entity
	ID          id.ContributionID `json:"id"`
	Participant string            `json:"participant"`
	// Amount is the full original contribution, all of which is
	// transferred to custody.
	Amount types.Money `json:"amount"`
	// Bookings are the per-tier attributions. Their sum can be less
	// than Amount for the contribution that closes the sale.
	Bookings []Booking `json:"bookings"`
	// Surplus is the unbooked portion beyond the final capacity,
	// zero for every contribution except possibly the closing one.
	Surplus types.Money `json:"surplus"`
	// TransferRef is the custody transfer receipt for Amount.
	TransferRef id.TransferID `json:"transfer_ref"`
}

// Booked returns the total amount attributed to tiers.
func (c *Contribution) Booked() types.Money {
	total := types.Zero(c.Amount.Currency)
	for _, b := range c.Bookings {
		total = total.Add(b.Amount)
	}
	return total
}

// ListOpts filters journal queries.
type ListOpts struct {
	// Participant limits results to one address when non-empty.
	Participant string
	// Since limits results to entries created at or after the instant.
	Since time.Time
	// Limit caps the number of returned entries; 0 means no cap.
	Limit int
}

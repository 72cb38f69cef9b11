// Package participant defines the per-participant accounting record.
package participant

import (
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Record is the accounting state of a single participant. A record is
// created on the participant's first accepted contribution and retained
// for the lifetime of the sale; only a full ledger reset removes it.
type Record struct {
	types.Entity
	// Address is the participant's external identity. The engine does
	// not mint it; it arrives with the contribution request.
	Address string `json:"address"`
	// Total is the sum of every amount booked for this participant.
	Total types.Money `json:"total"`
	// PerTier holds the amount booked into each capacity tier, indexed
	// by tier.Tier.Index(). Total always equals the sum of PerTier.
	PerTier [tier.Count]types.Money `json:"per_tier"`
}

// NewRecord creates an empty record for an address in the given currency.
func NewRecord(address, currency string) *Record {
	r := &Record{
		Entity:  types.NewEntity(),
		Address: address,
		Total:   types.Zero(currency),
	}
	for i := range r.PerTier {
		r.PerTier[i] = types.Zero(currency)
	}
	return r
}

// Book adds amount to the record's total and to the bucket of the tier
// active at booking time.
func (r *Record) Book(t tier.Tier, amount types.Money) {
	r.Total = r.Total.Add(amount)
	r.PerTier[t.Index()] = r.PerTier[t.Index()].Add(amount)
	r.Touch()
}

// Booked returns the amount booked into a capacity tier.
func (r *Record) Booked(t tier.Tier) types.Money {
	return r.PerTier[t.Index()]
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	cp := *r
	return &cp
}

// ListOpts controls paginated listing of participant records.
// Pages are 1-based; Size must not exceed the ledger's max page size.
type ListOpts struct {
	Page int `json:"page"`
	Size int `json:"size"`
}

// Page is one page of participant records in first-contribution order.
type Page struct {
	Records []Record `json:"records"`
	Page    int      `json:"page"`
	Size    int      `json:"size"`
	Total   int      `json:"total"` // total number of records across all pages
}

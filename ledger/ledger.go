// Package ledger implements the tier-transition state machine and the
// contribution accounting of a sale.
//
// The Ledger is a pure in-memory aggregate: every operation is
// synchronous, performs no I/O, and either completes fully or fails
// before any state mutation. Callers (the Sale engine) are responsible
// for serializing access; the Ledger itself is not safe for concurrent
// use.
package ledger

import (
	"errors"
	"fmt"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Sentinel errors for ledger operations.
var (
	// ErrSaleClosed is returned when a contribution arrives after the
	// final tier's capacity has been exhausted.
	ErrSaleClosed = errors.New("tiersale: sale is closed")

	// ErrInvalidAmount is returned for non-positive amounts, currency
	// mismatches, and amounts that are not a multiple of the active
	// increment.
	ErrInvalidAmount = errors.New("tiersale: invalid contribution amount")

	// ErrIndividualCapExceeded is returned when a contribution would
	// push a participant past the individual cap while tier 1 or 2 is
	// active. The cap is not enforced once tier 3 is reached.
	ErrIndividualCapExceeded = errors.New("tiersale: individual cap exceeded")

	// ErrInvalidTierLimit is returned when a tier limit update violates
	// the already-passed-tier, lower-bound, or monotonicity constraints.
	ErrInvalidTierLimit = errors.New("tiersale: invalid tier limit update")

	// ErrPageOutOfRange is returned for a page number past the last page.
	ErrPageOutOfRange = errors.New("tiersale: page out of range")

	// ErrInvalidPageSize is returned for a page size that is not positive
	// or exceeds the configured maximum.
	ErrInvalidPageSize = errors.New("tiersale: invalid page size")

	// ErrParticipantNotFound is returned when no record exists for an
	// address.
	ErrParticipantNotFound = errors.New("tiersale: participant not found")
)

// DefaultMaxPageSize bounds participant listing pages unless overridden.
const DefaultMaxPageSize = 100

// Outcome describes the effect of one accepted contribution.
type Outcome struct {
	// Participant is the contributor's address.
	Participant string `json:"participant"`
	// Amount is the full original contribution. The whole of it leaves
	// the system via custody regardless of how much was booked.
	Amount types.Money `json:"amount"`
	// Bookings record the amount attributed to each tier touched, in
	// the order the tiers were filled.
	Bookings []contribution.Booking `json:"bookings"`
	// Booked is the sum of all bookings.
	Booked types.Money `json:"booked"`
	// Surplus is the unbooked portion beyond the final capacity. It is
	// non-zero only for the contribution that closes the sale with an
	// overshoot; it is attributed to no tier bucket yet still
	// transferred out.
	Surplus types.Money `json:"surplus"`
	// Record is a copy of the participant's record after booking.
	Record participant.Record `json:"record"`
	// Tier is the ledger state after the contribution.
	Tier tier.Tier `json:"tier"`
	// Advanced lists the tiers entered during this contribution,
	// excluding Closed.
	Advanced []tier.Tier `json:"advanced,omitempty"`
	// Closed reports whether this contribution ended the sale.
	Closed bool `json:"closed"`
}

// Ledger holds the aggregate and per-participant accounting state of a
// sale and the current tier.
type Ledger struct {
	schedule tier.Schedule
	current  tier.Tier
	total    types.Money

	// individualCap bounds a participant's total while tier 1 or 2 is
	// active. Zero means no cap.
	individualCap types.Money

	records map[string]*participant.Record
	// index preserves first-contribution order for pagination.
	index []string

	maxPageSize int
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithIndividualCap bounds each participant's total during tiers 1 and 2.
func WithIndividualCap(amount types.Money) Option {
	return func(l *Ledger) { l.individualCap = amount }
}

// WithMaxPageSize overrides the maximum participant-listing page size.
func WithMaxPageSize(size int) Option {
	return func(l *Ledger) { l.maxPageSize = size }
}

// New creates a Ledger with tier 1 open and nothing collected.
func New(schedule tier.Schedule, opts ...Option) (*Ledger, error) {
	if err := schedule.Validate(); err != nil {
		return nil, err
	}

	l := &Ledger{
		schedule:    schedule,
		current:     tier.One,
		total:       types.Zero(schedule.Currency()),
		records:     make(map[string]*participant.Record),
		maxPageSize: DefaultMaxPageSize,
	}

	for _, opt := range opts {
		opt(l)
	}

	if !l.individualCap.IsZero() && !l.individualCap.SameCurrency(l.total) {
		return nil, fmt.Errorf("%w: cap currency %q does not match schedule currency %q",
			ErrInvalidAmount, l.individualCap.Currency, schedule.Currency())
	}
	if l.maxPageSize < 1 {
		return nil, fmt.Errorf("%w: max page size must be positive", ErrInvalidPageSize)
	}

	return l, nil
}

// Accept distributes amount across tiers, updates the participant's
// record and the aggregate totals, and advances or terminates tiers.
//
// Validation happens before any mutation: a rejected contribution
// leaves the ledger untouched, an accepted one is processed to
// completion even when it closes the sale mid-call.
func (l *Ledger) Accept(address string, amount types.Money) (*Outcome, error) {
	if l.current == tier.Closed {
		return nil, ErrSaleClosed
	}
	if address == "" {
		return nil, fmt.Errorf("%w: empty participant address", ErrInvalidAmount)
	}
	if !amount.SameCurrency(l.total) {
		return nil, fmt.Errorf("%w: currency %q, sale uses %q", ErrInvalidAmount, amount.Currency, l.total.Currency)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s is not positive", ErrInvalidAmount, amount)
	}

	// The cap binds while tier 1 or 2 is active at call entry; once
	// tier 3 is reached participants may contribute without bound.
	if l.current != tier.Three && !l.individualCap.IsZero() {
		already := types.Zero(l.total.Currency)
		if rec, ok := l.records[address]; ok {
			already = rec.Total
		}
		if already.Add(amount).GreaterThan(l.individualCap) {
			return nil, fmt.Errorf("%w: %s + %s exceeds cap %s",
				ErrIndividualCapExceeded, already, amount, l.individualCap)
		}
	}

	out := &Outcome{
		Participant: address,
		Amount:      amount,
		Booked:      types.Zero(amount.Currency),
		Surplus:     types.Zero(amount.Currency),
	}

	rec := l.record(address)
	remaining := amount

	for remaining.IsPositive() && l.current != tier.Closed {
		switch l.current {
		case tier.One, tier.Two:
			headroom := l.schedule.Limit(l.current).Subtract(l.total)
			if remaining.GreaterThan(headroom) {
				// Fill the tier exactly and roll the rest forward.
				l.book(rec, l.current, headroom, out)
				remaining = remaining.Subtract(headroom)
				l.advance(out)
			} else {
				l.book(rec, l.current, remaining, out)
				remaining = types.Zero(remaining.Currency)
				if l.total.Equal(l.schedule.Limit(l.current)) {
					l.advance(out)
				}
			}

		case tier.Three:
			headroom := l.schedule.Final().Subtract(l.total)
			if !remaining.LessThan(headroom) {
				// The final tier is exhausted. Only the headroom is
				// booked; the overshoot stays on the outcome as
				// surplus and is never attributed to a bucket, yet
				// the caller still transfers the full amount out.
				l.book(rec, tier.Three, headroom, out)
				remaining = remaining.Subtract(headroom)
				l.current = tier.Closed
				out.Closed = true
			} else {
				l.book(rec, tier.Three, remaining, out)
				remaining = types.Zero(remaining.Currency)
			}
		}
	}

	out.Surplus = remaining
	out.Tier = l.current
	out.Record = *rec.Clone()
	return out, nil
}

// book attributes amount to the tier active during this step.
func (l *Ledger) book(rec *participant.Record, t tier.Tier, amount types.Money, out *Outcome) {
	if amount.IsZero() {
		return
	}
	rec.Book(t, amount)
	l.total = l.total.Add(amount)
	out.Bookings = append(out.Bookings, contribution.Booking{Tier: t, Amount: amount})
	out.Booked = out.Booked.Add(amount)
}

// advance moves to the next capacity tier. Only the tier 1 and 2 arms
// call it, when their tier is exactly full; closing out of tier 3 is
// handled in place because it terminates rather than advances.
func (l *Ledger) advance(out *Outcome) {
	l.current = l.current.Next()
	out.Advanced = append(out.Advanced, l.current)
}

// record returns the participant's record, creating and indexing it on
// the first-ever booking.
func (l *Ledger) record(address string) *participant.Record {
	if rec, ok := l.records[address]; ok {
		return rec
	}
	rec := participant.NewRecord(address, l.total.Currency)
	l.records[address] = rec
	l.index = append(l.index, address)
	return rec
}

// Reset zeroes the aggregate total, clears every participant record
// and the index, and reopens tier 1. The schedule, cap, and page-size
// configuration survive the reset; the contribution history does not.
func (l *Ledger) Reset() {
	l.total = types.Zero(l.total.Currency)
	l.current = tier.One
	l.records = make(map[string]*participant.Record)
	l.index = nil
}

// UpdateLimit replaces the cumulative capacity limit of a tier.
//
// A tier that has already been fully passed cannot be changed, and
// Closed counts as having passed every tier. Tier 1 cannot shrink
// below the collected total, tier 2 not below the collected total
// minus the tier-1 limit. Tier 3 has no lower bound against collected
// funds beyond positivity. Every update must keep the schedule
// strictly increasing.
func (l *Ledger) UpdateLimit(t tier.Tier, newLimit types.Money) error {
	if !t.IsCapacity() {
		return fmt.Errorf("%w: %s is not a capacity tier", ErrInvalidTierLimit, t)
	}
	if l.current.After(t) {
		return fmt.Errorf("%w: %s has already been passed", ErrInvalidTierLimit, t)
	}
	if !newLimit.SameCurrency(l.total) {
		return fmt.Errorf("%w: currency %q, sale uses %q", ErrInvalidTierLimit, newLimit.Currency, l.total.Currency)
	}
	if !newLimit.IsPositive() {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidTierLimit)
	}

	switch t {
	case tier.One:
		if newLimit.LessThan(l.total) {
			return fmt.Errorf("%w: tier 1 limit %s below collected %s", ErrInvalidTierLimit, newLimit, l.total)
		}
	case tier.Two:
		floor := l.total.Subtract(l.schedule.Limit(tier.One))
		if newLimit.LessThan(floor) {
			return fmt.Errorf("%w: tier 2 limit %s below collected-minus-tier-1 %s", ErrInvalidTierLimit, newLimit, floor)
		}
	case tier.Three:
		// No lower bound against collected funds for the final tier.
	}

	next := l.schedule
	next[t.Index()] = newLimit
	if err := next.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidTierLimit, err)
	}

	l.schedule = next
	return nil
}

// SetIndividualCap replaces the per-participant cap for tiers 1 and 2.
func (l *Ledger) SetIndividualCap(amount types.Money) error {
	if !amount.SameCurrency(l.total) {
		return fmt.Errorf("%w: currency %q, sale uses %q", ErrInvalidAmount, amount.Currency, l.total.Currency)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("%w: cap must be positive", ErrInvalidAmount)
	}
	l.individualCap = amount
	return nil
}

// SetMaxPageSize replaces the participant-listing page size bound.
func (l *Ledger) SetMaxPageSize(size int) error {
	if size < 1 {
		return fmt.Errorf("%w: max page size must be positive", ErrInvalidPageSize)
	}
	l.maxPageSize = size
	return nil
}

// ──────────────────────────────────────────────────
// Read interface
// ──────────────────────────────────────────────────

// Tier returns the current tier (or Closed).
func (l *Ledger) Tier() tier.Tier { return l.current }

// Total returns the cumulative collected amount attributed to tiers.
func (l *Ledger) Total() types.Money { return l.total }

// Schedule returns the current tier schedule.
func (l *Ledger) Schedule() tier.Schedule { return l.schedule }

// IndividualCap returns the per-participant cap (zero means no cap).
func (l *Ledger) IndividualCap() types.Money { return l.individualCap }

// MaxPageSize returns the participant-listing page size bound.
func (l *Ledger) MaxPageSize() int { return l.maxPageSize }

// ParticipantCount returns the number of distinct participants.
func (l *Ledger) ParticipantCount() int { return len(l.index) }

// Participant returns a copy of the record for an address.
func (l *Ledger) Participant(address string) (participant.Record, error) {
	rec, ok := l.records[address]
	if !ok {
		return participant.Record{}, fmt.Errorf("%w: %s", ErrParticipantNotFound, address)
	}
	return *rec.Clone(), nil
}

// Participants returns one page of records in first-contribution
// order. Pages are 1-based; a page past the last errors rather than
// returning an empty page. Page 1 over an empty ledger is the single
// (empty) page.
func (l *Ledger) Participants(opts participant.ListOpts) (*participant.Page, error) {
	if opts.Size < 1 || opts.Size > l.maxPageSize {
		return nil, fmt.Errorf("%w: size %d, max %d", ErrInvalidPageSize, opts.Size, l.maxPageSize)
	}
	if opts.Page < 1 {
		return nil, fmt.Errorf("%w: page %d", ErrPageOutOfRange, opts.Page)
	}

	start := (opts.Page - 1) * opts.Size
	if start >= len(l.index) && !(opts.Page == 1 && len(l.index) == 0) {
		return nil, fmt.Errorf("%w: page %d, %d participants", ErrPageOutOfRange, opts.Page, len(l.index))
	}

	end := start + opts.Size
	if end > len(l.index) {
		end = len(l.index)
	}

	page := &participant.Page{
		Records: make([]participant.Record, 0, end-start),
		Page:    opts.Page,
		Size:    opts.Size,
		Total:   len(l.index),
	}
	for _, address := range l.index[start:end] {
		page.Records = append(page.Records, *l.records[address].Clone())
	}
	return page, nil
}

package ledger_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/xraph/tiersale/ledger"
	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// newLedger builds the canonical test ledger: cumulative limits
// 30/100/150 usd, no individual cap unless opts say otherwise.
func newLedger(t *testing.T, opts ...ledger.Option) *ledger.Ledger {
	t.Helper()
	schedule, err := tier.NewSchedule(types.USD(30), types.USD(100), types.USD(150))
	if err != nil {
		t.Fatalf("schedule: %v", err)
	}
	l, err := ledger.New(schedule, opts...)
	if err != nil {
		t.Fatalf("ledger: %v", err)
	}
	return l
}

func mustAccept(t *testing.T, l *ledger.Ledger, address string, amount types.Money) *ledger.Outcome {
	t.Helper()
	out, err := l.Accept(address, amount)
	if err != nil {
		t.Fatalf("Accept(%s, %s): %v", address, amount, err)
	}
	return out
}

func TestAcceptValidation(t *testing.T) {
	tests := []struct {
		name    string
		address string
		amount  types.Money
		wantErr error
	}{
		{"zero amount", "alice", types.USD(0), ledger.ErrInvalidAmount},
		{"negative amount", "alice", types.USD(-5), ledger.ErrInvalidAmount},
		{"wrong currency", "alice", types.EUR(5), ledger.ErrInvalidAmount},
		{"empty address", "", types.USD(5), ledger.ErrInvalidAmount},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := newLedger(t)
			_, err := l.Accept(tt.address, tt.amount)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Accept: got %v, want %v", err, tt.wantErr)
			}
			if !l.Total().IsZero() {
				t.Error("rejected contribution must not mutate the ledger")
			}
			if l.ParticipantCount() != 0 {
				t.Error("rejected contribution must not register a participant")
			}
		})
	}
}

func TestAcceptSingleTierBooking(t *testing.T) {
	l := newLedger(t)

	out := mustAccept(t, l, "alice", types.USD(10))

	if out.Tier != tier.One {
		t.Errorf("tier: got %s, want %s", out.Tier, tier.One)
	}
	if len(out.Bookings) != 1 || !out.Bookings[0].Amount.Equal(types.USD(10)) || out.Bookings[0].Tier != tier.One {
		t.Errorf("bookings: got %+v", out.Bookings)
	}
	if !out.Booked.Equal(types.USD(10)) || !out.Surplus.IsZero() {
		t.Errorf("booked %s, surplus %s", out.Booked, out.Surplus)
	}
	if !l.Total().Equal(types.USD(10)) {
		t.Errorf("total: got %s", l.Total())
	}
	if !out.Record.Total.Equal(types.USD(10)) {
		t.Errorf("record total: got %s", out.Record.Total)
	}
}

func TestAcceptExactFillAdvancesTier(t *testing.T) {
	// A contribution of exactly the remaining headroom advances the
	// tier in the same call.
	l := newLedger(t)

	out := mustAccept(t, l, "alice", types.USD(30))

	if out.Tier != tier.Two {
		t.Errorf("tier: got %s, want %s", out.Tier, tier.Two)
	}
	if len(out.Advanced) != 1 || out.Advanced[0] != tier.Two {
		t.Errorf("advanced: got %v", out.Advanced)
	}
	if len(out.Bookings) != 1 || out.Bookings[0].Tier != tier.One {
		t.Errorf("bookings: got %+v", out.Bookings)
	}
}

func TestAcceptStraddlesTierBoundary(t *testing.T) {
	// Tier 1 at 29 of 30; contributing 5 books 1 into tier 1 (closing
	// it) and 4 into tier 2, totalCollected 34.
	l := newLedger(t)
	mustAccept(t, l, "alice", types.USD(29))

	out := mustAccept(t, l, "bob", types.USD(5))

	if out.Tier != tier.Two {
		t.Errorf("tier: got %s, want %s", out.Tier, tier.Two)
	}
	want := []struct {
		t      tier.Tier
		amount types.Money
	}{
		{tier.One, types.USD(1)},
		{tier.Two, types.USD(4)},
	}
	if len(out.Bookings) != len(want) {
		t.Fatalf("bookings: got %+v", out.Bookings)
	}
	for i, w := range want {
		if out.Bookings[i].Tier != w.t || !out.Bookings[i].Amount.Equal(w.amount) {
			t.Errorf("booking %d: got %s %s, want %s %s",
				i, out.Bookings[i].Tier, out.Bookings[i].Amount, w.t, w.amount)
		}
	}
	if !l.Total().Equal(types.USD(34)) {
		t.Errorf("total: got %s, want $0.34 worth (34)", l.Total())
	}
	if !out.Record.Booked(tier.One).Equal(types.USD(1)) || !out.Record.Booked(tier.Two).Equal(types.USD(4)) {
		t.Errorf("per-tier record: %+v", out.Record.PerTier)
	}
}

func TestAcceptSpansAllThreeTiers(t *testing.T) {
	l := newLedger(t)

	out := mustAccept(t, l, "whale", types.USD(120))

	if out.Tier != tier.Three {
		t.Errorf("tier: got %s, want %s", out.Tier, tier.Three)
	}
	wantBookings := []types.Money{types.USD(30), types.USD(70), types.USD(20)}
	if len(out.Bookings) != 3 {
		t.Fatalf("bookings: got %+v", out.Bookings)
	}
	for i, w := range wantBookings {
		if !out.Bookings[i].Amount.Equal(w) {
			t.Errorf("booking %d: got %s, want %s", i, out.Bookings[i].Amount, w)
		}
	}
	if len(out.Advanced) != 2 {
		t.Errorf("advanced: got %v", out.Advanced)
	}
}

func TestAcceptExactExhaustionClosesSale(t *testing.T) {
	// totalCollected 149, contribute 1: total 150, sale Closed, further
	// contributions fail with ErrSaleClosed.
	l := newLedger(t)
	mustAccept(t, l, "alice", types.USD(149))

	out := mustAccept(t, l, "bob", types.USD(1))

	if !out.Closed || out.Tier != tier.Closed {
		t.Errorf("expected closed sale, got tier %s closed=%v", out.Tier, out.Closed)
	}
	if !out.Surplus.IsZero() {
		t.Errorf("surplus: got %s, want zero", out.Surplus)
	}
	if !l.Total().Equal(types.USD(150)) {
		t.Errorf("total: got %s", l.Total())
	}

	if _, err := l.Accept("carol", types.USD(1)); !errors.Is(err, ledger.ErrSaleClosed) {
		t.Errorf("post-close Accept: got %v, want ErrSaleClosed", err)
	}
}

func TestAcceptOverAcceptanceAtFinalBoundary(t *testing.T) {
	// The known over-acceptance edge case: at 149 of 150, contributing
	// 3 books exactly 1 into tier 3 and closes the sale; the remaining
	// 2 are surplus attributed to no bucket, yet the caller transfers
	// the full 3 out.
	l := newLedger(t)
	mustAccept(t, l, "alice", types.USD(149))

	out := mustAccept(t, l, "bob", types.USD(3))

	if !out.Closed {
		t.Fatal("expected the sale to close")
	}
	if !out.Booked.Equal(types.USD(1)) {
		t.Errorf("booked: got %s, want $0.01 (1)", out.Booked)
	}
	if !out.Surplus.Equal(types.USD(2)) {
		t.Errorf("surplus: got %s, want 2", out.Surplus)
	}
	if !out.Amount.Equal(types.USD(3)) {
		t.Errorf("amount: got %s, want 3", out.Amount)
	}
	if !l.Total().Equal(types.USD(150)) {
		t.Errorf("total must stop at the final limit, got %s", l.Total())
	}
	if !out.Record.Total.Equal(types.USD(1)) {
		t.Errorf("record total must only include the booked part, got %s", out.Record.Total)
	}
}

func TestConservation(t *testing.T) {
	// totalCollected equals the sum of all accepted amounts (capped at
	// the final limit) and the sum of all participant records.
	l := newLedger(t)

	contributions := []struct {
		address string
		amount  int64
	}{
		{"a", 7}, {"b", 23}, {"a", 15}, {"c", 40}, {"d", 9}, {"b", 31},
	}

	accepted := types.Zero("usd")
	for _, c := range contributions {
		mustAccept(t, l, c.address, types.USD(c.amount))
		accepted = accepted.Add(types.USD(c.amount))
	}

	if !l.Total().Equal(accepted) {
		t.Errorf("total %s != accepted %s", l.Total(), accepted)
	}

	page, err := l.Participants(participant.ListOpts{Page: 1, Size: 100})
	if err != nil {
		t.Fatalf("Participants: %v", err)
	}
	sum := types.Zero("usd")
	for _, rec := range page.Records {
		sum = sum.Add(rec.Total)
		perTier := types.Sum("usd", rec.PerTier[:]...)
		if !perTier.Equal(rec.Total) {
			t.Errorf("record %s: per-tier sum %s != total %s", rec.Address, perTier, rec.Total)
		}
	}
	if !sum.Equal(l.Total()) {
		t.Errorf("sum of records %s != total %s", sum, l.Total())
	}
}

func TestIndividualCap(t *testing.T) {
	l := newLedger(t, ledger.WithIndividualCap(types.USD(50)))

	mustAccept(t, l, "alice", types.USD(40))

	if _, err := l.Accept("alice", types.USD(20)); !errors.Is(err, ledger.ErrIndividualCapExceeded) {
		t.Errorf("over-cap Accept: got %v, want ErrIndividualCapExceeded", err)
	}
	if !l.Total().Equal(types.USD(40)) {
		t.Error("rejected contribution must not mutate totals")
	}

	// Exactly at the cap is allowed.
	mustAccept(t, l, "alice", types.USD(10))

	// Push the sale into tier 3; the cap no longer binds.
	mustAccept(t, l, "bob", types.USD(50))
	mustAccept(t, l, "carol", types.USD(10))
	if l.Tier() != tier.Three {
		t.Fatalf("setup: expected tier 3, got %s", l.Tier())
	}
	mustAccept(t, l, "alice", types.USD(40))
	rec, err := l.Participant("alice")
	if err != nil {
		t.Fatalf("Participant: %v", err)
	}
	if !rec.Total.Equal(types.USD(90)) {
		t.Errorf("tier-3 contribution should bypass the cap, total %s", rec.Total)
	}
}

func TestPagination(t *testing.T) {
	l := newLedger(t)
	for i := 0; i < 15; i++ {
		mustAccept(t, l, fmt.Sprintf("p%02d", i), types.USD(1))
	}

	page1, err := l.Participants(participant.ListOpts{Page: 1, Size: 10})
	if err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if len(page1.Records) != 10 || page1.Total != 15 {
		t.Errorf("page 1: %d records, total %d", len(page1.Records), page1.Total)
	}
	// First-contribution order is preserved.
	if page1.Records[0].Address != "p00" || page1.Records[9].Address != "p09" {
		t.Errorf("page 1 order: first %s last %s", page1.Records[0].Address, page1.Records[9].Address)
	}

	page2, err := l.Participants(participant.ListOpts{Page: 2, Size: 10})
	if err != nil {
		t.Fatalf("page 2: %v", err)
	}
	if len(page2.Records) != 5 {
		t.Errorf("page 2: got %d records, want 5", len(page2.Records))
	}

	_, err = l.Participants(participant.ListOpts{Page: 3, Size: 10})
	if !errors.Is(err, ledger.ErrPageOutOfRange) {
		t.Errorf("page 3: got %v, want ErrPageOutOfRange", err)
	}

	_, err = l.Participants(participant.ListOpts{Page: 0, Size: 10})
	if !errors.Is(err, ledger.ErrPageOutOfRange) {
		t.Errorf("page 0: got %v, want ErrPageOutOfRange", err)
	}

	_, err = l.Participants(participant.ListOpts{Page: 1, Size: ledger.DefaultMaxPageSize + 1})
	if !errors.Is(err, ledger.ErrInvalidPageSize) {
		t.Errorf("oversize page: got %v, want ErrInvalidPageSize", err)
	}
}

func TestPaginationEmptyLedger(t *testing.T) {
	l := newLedger(t)

	page, err := l.Participants(participant.ListOpts{Page: 1, Size: 10})
	if err != nil {
		t.Fatalf("page 1 over empty ledger: %v", err)
	}
	if len(page.Records) != 0 || page.Total != 0 {
		t.Errorf("expected empty page, got %+v", page)
	}

	if _, err := l.Participants(participant.ListOpts{Page: 2, Size: 10}); !errors.Is(err, ledger.ErrPageOutOfRange) {
		t.Errorf("page 2 over empty ledger: got %v, want ErrPageOutOfRange", err)
	}
}

func TestResetReproducesFirstContributionTrace(t *testing.T) {
	l := newLedger(t)
	mustAccept(t, l, "alice", types.USD(29))
	mustAccept(t, l, "bob", types.USD(100))

	fresh := newLedger(t)
	want := mustAccept(t, fresh, "carol", types.USD(35))

	l.Reset()
	if !l.Total().IsZero() || l.Tier() != tier.One || l.ParticipantCount() != 0 {
		t.Fatalf("reset left state behind: total %s tier %s count %d", l.Total(), l.Tier(), l.ParticipantCount())
	}

	got := mustAccept(t, l, "carol", types.USD(35))

	if got.Tier != want.Tier || got.Closed != want.Closed {
		t.Errorf("trace mismatch: got tier %s, want %s", got.Tier, want.Tier)
	}
	if len(got.Bookings) != len(want.Bookings) {
		t.Fatalf("trace mismatch: %+v vs %+v", got.Bookings, want.Bookings)
	}
	for i := range got.Bookings {
		if got.Bookings[i].Tier != want.Bookings[i].Tier || !got.Bookings[i].Amount.Equal(want.Bookings[i].Amount) {
			t.Errorf("booking %d mismatch: %+v vs %+v", i, got.Bookings[i], want.Bookings[i])
		}
	}
}

func TestUpdateLimit(t *testing.T) {
	t.Run("passed tier rejected", func(t *testing.T) {
		l := newLedger(t)
		mustAccept(t, l, "alice", types.USD(40)) // now in tier 2

		err := l.UpdateLimit(tier.One, types.USD(50))
		if !errors.Is(err, ledger.ErrInvalidTierLimit) {
			t.Errorf("got %v, want ErrInvalidTierLimit", err)
		}
	})

	t.Run("tier1 below collected rejected", func(t *testing.T) {
		l := newLedger(t)
		mustAccept(t, l, "alice", types.USD(20))

		if err := l.UpdateLimit(tier.One, types.USD(19)); !errors.Is(err, ledger.ErrInvalidTierLimit) {
			t.Errorf("got %v, want ErrInvalidTierLimit", err)
		}
		if err := l.UpdateLimit(tier.One, types.USD(20)); err != nil {
			t.Errorf("shrinking to exactly collected should pass: %v", err)
		}
	})

	t.Run("tier2 lower bound is collected minus tier1", func(t *testing.T) {
		l := newLedger(t)
		mustAccept(t, l, "alice", types.USD(60)) // tier 2, collected-minus-L1 = 30

		if err := l.UpdateLimit(tier.Two, types.USD(40)); err != nil {
			// 40 >= 30, and the schedule stays increasing (30 < 40 < 150).
			t.Errorf("got %v, want nil", err)
		}
		if !l.Schedule().Limit(tier.Two).Equal(types.USD(40)) {
			t.Errorf("limit not applied: %s", l.Schedule().Limit(tier.Two))
		}
	})

	t.Run("monotonicity enforced", func(t *testing.T) {
		l := newLedger(t)

		if err := l.UpdateLimit(tier.Two, types.USD(20)); !errors.Is(err, ledger.ErrInvalidTierLimit) {
			t.Errorf("L2 <= L1 must be rejected, got %v", err)
		}
		if err := l.UpdateLimit(tier.Three, types.USD(90)); !errors.Is(err, ledger.ErrInvalidTierLimit) {
			t.Errorf("L3 <= L2 must be rejected, got %v", err)
		}
	})

	t.Run("tier3 has no collected lower bound", func(t *testing.T) {
		l := newLedger(t)
		mustAccept(t, l, "alice", types.USD(120)) // tier 3, collected 120

		// 130 < collected would be rejected for tiers 1-2; tier 3 only
		// needs positivity and monotonicity.
		if err := l.UpdateLimit(tier.Three, types.USD(130)); err != nil {
			t.Errorf("got %v, want nil", err)
		}
	})

	t.Run("closed sale passed every tier", func(t *testing.T) {
		l := newLedger(t)
		mustAccept(t, l, "alice", types.USD(150))

		for _, tr := range []tier.Tier{tier.One, tier.Two, tier.Three} {
			if err := l.UpdateLimit(tr, types.USD(500)); !errors.Is(err, ledger.ErrInvalidTierLimit) {
				t.Errorf("update %s after close: got %v, want ErrInvalidTierLimit", tr, err)
			}
		}
	})
}

func TestSnapshotRestore(t *testing.T) {
	l := newLedger(t, ledger.WithIndividualCap(types.USD(80)))
	mustAccept(t, l, "alice", types.USD(29))
	mustAccept(t, l, "bob", types.USD(50))

	snap := l.Snapshot()

	// Mutate past the snapshot, then restore.
	mustAccept(t, l, "carol", types.USD(60))
	if err := l.Restore(snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	if !l.Total().Equal(types.USD(79)) {
		t.Errorf("total after restore: got %s, want 79", l.Total())
	}
	if l.ParticipantCount() != 2 {
		t.Errorf("participant count after restore: got %d, want 2", l.ParticipantCount())
	}
	if _, err := l.Participant("carol"); !errors.Is(err, ledger.ErrParticipantNotFound) {
		t.Errorf("carol should be gone after restore, got %v", err)
	}

	// The restored ledger behaves identically to the original.
	restored, err := ledger.FromSnapshot(snap)
	if err != nil {
		t.Fatalf("FromSnapshot: %v", err)
	}
	a, err := l.Accept("dave", types.USD(30))
	if err != nil {
		t.Fatalf("Accept: %v", err)
	}
	b, err := restored.Accept("dave", types.USD(30))
	if err != nil {
		t.Fatalf("Accept on restored: %v", err)
	}
	if a.Tier != b.Tier || len(a.Bookings) != len(b.Bookings) {
		t.Errorf("restored ledger diverged: %+v vs %+v", a, b)
	}
}

func TestSetters(t *testing.T) {
	l := newLedger(t)

	if err := l.SetMaxPageSize(0); !errors.Is(err, ledger.ErrInvalidPageSize) {
		t.Errorf("SetMaxPageSize(0): got %v", err)
	}
	if err := l.SetMaxPageSize(5); err != nil {
		t.Fatalf("SetMaxPageSize: %v", err)
	}
	if _, err := l.Participants(participant.ListOpts{Page: 1, Size: 6}); !errors.Is(err, ledger.ErrInvalidPageSize) {
		t.Errorf("size above new max: got %v", err)
	}

	if err := l.SetIndividualCap(types.USD(0)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("SetIndividualCap(0): got %v", err)
	}
	if err := l.SetIndividualCap(types.EUR(10)); !errors.Is(err, ledger.ErrInvalidAmount) {
		t.Errorf("SetIndividualCap wrong currency: got %v", err)
	}
	if err := l.SetIndividualCap(types.USD(10)); err != nil {
		t.Fatalf("SetIndividualCap: %v", err)
	}
	if _, err := l.Accept("alice", types.USD(11)); !errors.Is(err, ledger.ErrIndividualCapExceeded) {
		t.Errorf("cap after setter: got %v", err)
	}
}

package tiersale_test

import (
	"context"
	"log"
	"log/slog"
	"testing"
	"time"

	"github.com/xraph/tiersale"
	"github.com/xraph/tiersale/custody"
	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/store/memory"
	"github.com/xraph/tiersale/types"
)

// TestDocumentationExamples verifies that all examples in the documentation compile
func TestDocumentationExamples(t *testing.T) {
	// Test Quick Start example from README
	t.Run("QuickStartExample", func(t *testing.T) {
		schedule, err := tiersale.NewSchedule(
			tiersale.USD(30_000_00),
			tiersale.USD(100_000_00),
			tiersale.USD(150_000_00),
		)
		if err != nil {
			t.Fatal(err)
		}

		// Create store (memory for demo, use SQLite or PostgreSQL in production)
		st := memory.New()

		sale, err := tiersale.New(st, custody.NewVault("usd"), "owner_addr", schedule,
			tiersale.WithLogger(slog.Default()),
			tiersale.WithIncrement(tiersale.USD(100)),
			tiersale.WithSnapshotInterval(30*time.Second),
		)
		if err != nil {
			t.Fatal(err)
		}

		// Start the engine
		ctx := context.Background()
		if err := sale.Start(ctx); err != nil {
			t.Fatal(err)
		}
		defer sale.Stop()

		// Accept a contribution
		c, err := sale.Contribute(ctx, "alice", tiersale.USD(5_000_00))
		if err != nil {
			t.Fatal(err)
		}

		for _, b := range c.Bookings {
			log.Printf("booked %s into %s\n", b.Amount, b.Tier)
		}

		// Inspect the sale
		log.Printf("tier: %s, collected: %s\n", sale.Tier(), sale.Total())

		// Look up the participant
		rec, err := sale.Participant("alice")
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("alice has contributed %s\n", rec.Total)

		// Page through all participants
		page, err := sale.Participants(participant.ListOpts{Page: 1, Size: 50})
		if err != nil {
			t.Fatal(err)
		}
		log.Printf("%d of %d participants\n", len(page.Records), page.Total)

		// Govern the increment (owner only, timelocked)
		if _, err := sale.ProposeIncrement(ctx, "owner_addr", tiersale.USD(50_00), 0); err != nil {
			t.Fatal(err)
		}
		if pending := sale.PendingIncrement(); pending != nil {
			log.Printf("increment %s applies after %s\n", pending.Value, pending.ReadyAt)
		}
	})

	// Test Money type examples
	t.Run("MoneyExamples", func(t *testing.T) {
		// Constructors
		_ = types.USD(4900)    // $49.00
		_ = types.EUR(9900)    // 99.00 euro
		_ = types.Zero("usd")  // $0.00
		_ = types.In("gbp", 5) // 5 pence

		// Arithmetic
		m1 := types.USD(100)
		m2 := types.USD(250)
		_ = m1.Add(m2)       // $3.50
		_ = m2.Subtract(m1)  // $1.50
		_ = m2.Remainder(m1) // $0.50

		// Increment checks
		if m2.IsMultipleOf(m1) {
			// m2 is an exact multiple of m1
		}

		// Comparison
		if m1.LessThan(m2) {
			// m1 is less than m2
		}

		// Formatting
		_ = m1.String()      // "$1.00"
		_ = m1.FormatMajor() // "1.00"
	})
}

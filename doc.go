// Package tiersale provides a tiered capital-raising engine for Go
// applications.
//
// Tiersale is designed as a library, not a service. Import it directly
// into your Go application. It provides:
//
//   - A three-tier contribution ledger with cumulative capacity limits
//     and automatic tier transitions
//   - Overflow distribution: one contribution can straddle several
//     tiers, each part booked against the tier it filled
//   - A timelocked governance protocol for the contribution increment
//   - Per-participant accounting with paginated listings
//   - Atomic custody hand-off with full rollback on transfer failure
//   - An append-only contribution journal plus periodic state snapshots
//   - Pluggable lifecycle hooks and an audit trail extension
//
// # Quick Start
//
// Create a sale with your preferred store and custody backend:
//
//	import (
//	    "github.com/xraph/tiersale"
//	    "github.com/xraph/tiersale/custody"
//	    "github.com/xraph/tiersale/store/sqlite"
//	)
//
//	schedule, err := tiersale.NewSchedule(
//	    tiersale.USD(30_000_00),
//	    tiersale.USD(100_000_00),
//	    tiersale.USD(150_000_00),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	st, err := sqlite.Open("sale.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sale, err := tiersale.New(st, custody.NewVault("usd"), ownerAddr, schedule)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	// Start the sale (restores state, begins background workers)
//	if err := sale.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer sale.Stop()
//
// # Core Concepts
//
// The schedule holds three cumulative limits; tier N is open while the
// collected total is below limit N. A contribution that exceeds the
// open tier's headroom fills it exactly, advances to the next tier,
// and books the remainder there:
//
//	c, err := sale.Contribute(ctx, "alice", tiersale.USD(5_000_00))
//	for _, b := range c.Bookings {
//	    fmt.Println(b.Tier, b.Amount)
//	}
//
// The contribution increment is the granularity of participation:
// amounts must be exact multiples. Changing it is a two-step,
// timelocked operation:
//
//	_, err := sale.ProposeIncrement(ctx, owner, tiersale.USD(50_00), 0)
//	// ... at least 48 hours later ...
//	applied, err := sale.ApplyIncrement(ctx, owner)
//
// All monetary calculations use integer arithmetic to avoid
// floating-point precision issues. The Money type represents amounts
// in the smallest currency unit (cents for USD, pence for GBP, etc).
//
// # TypeID
//
// Engine-minted entities use TypeID for globally unique, type-safe
// identifiers:
//
//	ctb_01h2xcejqtf2nbrexx3vqjhp41   // Contribution ID
//	prop_01h2xcejqtf2nbrexx3vqjhp41  // Proposal ID
//	xfer_01h455vb4pex5vsknk084sn02q  // Transfer ID
//
// Participants themselves are identified by caller-supplied addresses;
// the engine does not mint identities for them.
package tiersale

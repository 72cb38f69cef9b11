// Package plugin provides an extensible plugin system for the sale
// engine. Plugins hook into contribution, tier, and parameter
// lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the sale engine starts. The sale argument is
// the engine itself.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, sale interface{}) error
}

// OnShutdown is called when the sale engine is shutting down.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Contribution hooks
// ──────────────────────────────────────────────────

// OnContributionRecorded is called after every committed contribution.
type OnContributionRecorded interface {
	Plugin
	OnContributionRecorded(ctx context.Context, c *contribution.Contribution) error
}

// OnTierAdvanced is called once per tier entered during a
// contribution, in order.
type OnTierAdvanced interface {
	Plugin
	OnTierAdvanced(ctx context.Context, entered tier.Tier, collected types.Money) error
}

// OnSaleClosed is called when the final tier's capacity is exhausted.
type OnSaleClosed interface {
	Plugin
	OnSaleClosed(ctx context.Context, collected types.Money) error
}

// ──────────────────────────────────────────────────
// Parameter hooks
// ──────────────────────────────────────────────────

// OnTierLimitUpdated is called when a tier's capacity limit changes.
type OnTierLimitUpdated interface {
	Plugin
	OnTierLimitUpdated(ctx context.Context, t tier.Tier, oldLimit, newLimit types.Money) error
}

// OnIncrementProposed is called when a new contribution increment is
// proposed, before its timelock elapses.
type OnIncrementProposed interface {
	Plugin
	OnIncrementProposed(ctx context.Context, proposed types.Money, readyAt time.Time) error
}

// OnIncrementApplied is called when a pending increment becomes
// active.
type OnIncrementApplied interface {
	Plugin
	OnIncrementApplied(ctx context.Context, oldIncrement, newIncrement types.Money) error
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnLedgerReset is called after the owner wipes the accounting state.
type OnLedgerReset interface {
	Plugin
	OnLedgerReset(ctx context.Context, discarded types.Money, participants int) error
}

// OnSnapshotSaved is called after each persisted snapshot.
type OnSnapshotSaved interface {
	Plugin
	OnSnapshotSaved(ctx context.Context, collected types.Money, elapsed time.Duration) error
}

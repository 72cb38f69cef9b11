package store

import (
	"context"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/ledger"
	"github.com/xraph/tiersale/timelock"
	"github.com/xraph/tiersale/types"
)

// Snapshot is the full persisted state of a sale: the ledger state
// plus the engine-level parameters that live outside the ledger.
type Snapshot struct {
	Ledger ledger.Snapshot `json:"ledger"`

	// Increment is the active contribution increment.
	Increment types.Money `json:"increment"`
	// PendingIncrement is the open timelocked proposal, if any.
	PendingIncrement *timelock.Proposal[types.Money] `json:"pending_increment,omitempty"`

	Paused  bool      `json:"paused"`
	Owner   string    `json:"owner"`
	TakenAt time.Time `json:"taken_at"`
}

// Store is the storage interface for the sale engine: an append-only
// contribution journal plus a single-slot state snapshot.
type Store interface {
	// Contribution journal
	AppendContribution(ctx context.Context, c *contribution.Contribution) error
	GetContribution(ctx context.Context, cid id.ContributionID) (*contribution.Contribution, error)
	ListContributions(ctx context.Context, opts contribution.ListOpts) ([]*contribution.Contribution, error)

	// State snapshot. SaveSnapshot overwrites the previous snapshot;
	// LoadSnapshot returns ErrNotFound when none has been saved.
	SaveSnapshot(ctx context.Context, snap *Snapshot) error
	LoadSnapshot(ctx context.Context) (*Snapshot, error)

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

package tiersale

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/custody"
	"github.com/xraph/tiersale/gate"
	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/ledger"
	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/plugin"
	"github.com/xraph/tiersale/store"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/timelock"
	"github.com/xraph/tiersale/types"
)

// DefaultTimelockDelay is the delay between proposing a new
// contribution increment and being able to apply it.
const DefaultTimelockDelay = 48 * time.Hour

// DefaultSnapshotInterval is how often the background worker persists
// the sale state.
const DefaultSnapshotInterval = 30 * time.Second

// Sale is the main capital-raising engine. It owns the tier ledger,
// the timelocked contribution increment, the custody hand-off, and
// the persistence of both journal and snapshots.
//
// Every mutating operation runs under a single mutex: operations are
// strictly serialized and each one observes the full effect of every
// operation before it. Plugin hooks fire inside that critical section
// so their ordering matches the operation order.
type Sale struct {
	store     store.Store
	custodian custody.Transferrer
	keeper    *gate.Keeper
	plugins   *plugin.Registry
	logger    *slog.Logger

	mu        sync.Mutex
	ledger    *ledger.Ledger
	increment *timelock.Param[types.Money]

	// Background workers
	stopChan chan struct{}
	wg       sync.WaitGroup

	// Configuration
	snapshotInterval time.Duration
	timelockDelay    time.Duration
	initialIncrement types.Money
	individualCap    types.Money
	maxPageSize      int
	now              func() time.Time
}

// Option configures a Sale instance.
type Option func(*Sale)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Sale) {
		s.logger = logger
		s.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(s *Sale) {
		_ = s.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithIncrement sets the initial contribution increment. Defaults to
// one minor unit of the schedule currency.
func WithIncrement(increment types.Money) Option {
	return func(s *Sale) { s.initialIncrement = increment }
}

// WithTimelockDelay sets the delay for increment changes.
func WithTimelockDelay(delay time.Duration) Option {
	return func(s *Sale) { s.timelockDelay = delay }
}

// WithSnapshotInterval sets how often state snapshots are persisted.
func WithSnapshotInterval(interval time.Duration) Option {
	return func(s *Sale) { s.snapshotInterval = interval }
}

// WithIndividualCap bounds each participant's total during tiers 1 and 2.
func WithIndividualCap(amount types.Money) Option {
	return func(s *Sale) { s.individualCap = amount }
}

// WithMaxPageSize overrides the maximum participant-listing page size.
func WithMaxPageSize(size int) Option {
	return func(s *Sale) { s.maxPageSize = size }
}

// WithClock injects the time source used for the increment timelock.
func WithClock(now func() time.Time) Option {
	return func(s *Sale) { s.now = now }
}

// New creates a Sale with tier 1 open and nothing collected. The
// owner address is required: it gates every administrative operation.
func New(st store.Store, custodian custody.Transferrer, owner string, schedule tier.Schedule, opts ...Option) (*Sale, error) {
	keeper, err := gate.NewKeeper(owner)
	if err != nil {
		return nil, err
	}

	s := &Sale{
		store:            st,
		custodian:        custodian,
		keeper:           keeper,
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		stopChan:         make(chan struct{}),
		snapshotInterval: DefaultSnapshotInterval,
		timelockDelay:    DefaultTimelockDelay,
		now:              time.Now,
	}

	for _, opt := range opts {
		opt(s)
	}

	var ledgerOpts []ledger.Option
	if !s.individualCap.IsZero() {
		ledgerOpts = append(ledgerOpts, ledger.WithIndividualCap(s.individualCap))
	}
	if s.maxPageSize > 0 {
		ledgerOpts = append(ledgerOpts, ledger.WithMaxPageSize(s.maxPageSize))
	}
	l, err := ledger.New(schedule, ledgerOpts...)
	if err != nil {
		return nil, err
	}
	s.ledger = l

	increment := s.initialIncrement
	if increment.IsZero() {
		increment = types.In(schedule.Currency(), 1)
	}
	if increment.Currency != schedule.Currency() || !increment.IsPositive() {
		return nil, fmt.Errorf("%w: increment %s", ErrInvalidAmount, increment)
	}
	s.increment = timelock.New(increment, s.timelockDelay,
		timelock.WithClock[types.Money](s.now),
		timelock.WithValidator[types.Money](func(v types.Money) error {
			if v.Currency != schedule.Currency() {
				return fmt.Errorf("currency %q, sale uses %q", v.Currency, schedule.Currency())
			}
			if !v.IsPositive() {
				return fmt.Errorf("%s is not positive", v)
			}
			if v.GreaterThan(schedule.Final()) {
				return fmt.Errorf("%s exceeds the final capacity %s", v, schedule.Final())
			}
			return nil
		}),
	)

	return s, nil
}

// Start migrates the store, restores the latest snapshot if one
// exists, initializes plugins, and launches the snapshot worker.
func (s *Sale) Start(ctx context.Context) error {
	if err := s.store.Migrate(ctx); err != nil {
		return err
	}

	snap, err := s.store.LoadSnapshot(ctx)
	switch {
	case err == nil:
		if err := s.restore(snap); err != nil {
			return fmt.Errorf("tiersale: restore snapshot: %w", err)
		}
		s.logger.Info("sale state restored",
			"tier", s.ledger.Tier().String(),
			"collected", s.ledger.Total().String(),
			"participants", s.ledger.ParticipantCount(),
			"taken_at", snap.TakenAt,
		)
	case errors.Is(err, ErrNotFound):
		// Fresh sale, nothing to restore.
	default:
		return fmt.Errorf("tiersale: load snapshot: %w", err)
	}

	s.plugins.EmitInit(ctx, s)

	s.wg.Add(1)
	go s.snapshotWorker(ctx)

	s.logger.Info("sale started",
		"owner", s.keeper.Owner(),
		"tier", s.ledger.Tier().String(),
		"increment", s.increment.Active().String(),
		"snapshot_interval", s.snapshotInterval,
	)

	return nil
}

// Stop shuts down the Sale, persisting a final snapshot.
func (s *Sale) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	ctx := context.Background()
	if err := s.checkpoint(ctx); err != nil {
		s.logger.Error("final snapshot failed", "error", err)
	}
	s.plugins.EmitShutdown(ctx)

	return s.store.Close()
}

// ──────────────────────────────────────────────────
// Contributions
// ──────────────────────────────────────────────────

// Contribute accepts a contribution from a participant: it distributes
// the amount across tiers, transfers the full amount to custody, and
// journals the result.
//
// The amount must be an exact multiple of the active increment. A
// failed custody transfer rolls the ledger back completely; a rejected
// contribution never reaches custody.
func (s *Sale) Contribute(ctx context.Context, address string, amount types.Money) (*contribution.Contribution, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.keeper.CheckOpen(); err != nil {
		return nil, err
	}

	increment := s.increment.Active()
	if amount.SameCurrency(increment) && amount.IsPositive() && !amount.IsMultipleOf(increment) {
		return nil, fmt.Errorf("%w: %s is not a multiple of the %s increment",
			ErrInvalidAmount, amount, increment)
	}

	before := s.ledger.Snapshot()
	out, err := s.ledger.Accept(address, amount)
	if err != nil {
		return nil, err
	}

	// The full amount moves to custody, surplus included. Transfer
	// failure undoes everything the accept did.
	receipt, err := s.custodian.Transfer(ctx, address, amount)
	if err != nil {
		if restoreErr := s.ledger.Restore(before); restoreErr != nil {
			s.logger.Error("rollback after failed transfer failed",
				"participant", address,
				"error", restoreErr,
			)
		}
		if errors.Is(err, ErrTransferFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	c := &contribution.Contribution{
		Entity:      types.NewEntity(),
		ID:          id.NewContributionID(),
		Participant: out.Participant,
		Amount:      out.Amount,
		Bookings:    out.Bookings,
		Surplus:     out.Surplus,
		TransferRef: receipt.ID,
	}

	// Funds have already moved; a journal failure is logged, not
	// rolled back.
	if err := s.store.AppendContribution(ctx, c); err != nil {
		s.logger.Error("contribution journal append failed",
			"contribution", c.ID.String(),
			"participant", address,
			"error", err,
		)
	}

	if out.Surplus.IsPositive() {
		s.logger.Warn("contribution over-accepted at final capacity",
			"participant", address,
			"amount", amount.String(),
			"booked", out.Booked.String(),
			"surplus", out.Surplus.String(),
		)
	}

	for _, entered := range out.Advanced {
		s.plugins.EmitTierAdvanced(ctx, entered, s.ledger.Total())
	}
	if out.Closed {
		s.plugins.EmitSaleClosed(ctx, s.ledger.Total())
	}
	s.plugins.EmitContributionRecorded(ctx, c)

	s.logger.Info("contribution recorded",
		"contribution", c.ID.String(),
		"participant", address,
		"amount", amount.String(),
		"tier", out.Tier.String(),
		"collected", s.ledger.Total().String(),
	)

	return c, nil
}

// Contribution retrieves a journaled contribution by ID.
func (s *Sale) Contribution(ctx context.Context, cid id.ContributionID) (*contribution.Contribution, error) {
	return s.store.GetContribution(ctx, cid)
}

// Contributions lists journaled contributions.
func (s *Sale) Contributions(ctx context.Context, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	return s.store.ListContributions(ctx, opts)
}

// ──────────────────────────────────────────────────
// Increment governance
// ──────────────────────────────────────────────────

// Increment returns the active contribution increment.
func (s *Sale) Increment() types.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment.Active()
}

// PendingIncrement returns the open increment proposal, or nil.
func (s *Sale) PendingIncrement() *timelock.Proposal[types.Money] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.increment.Pending()
}

// ProposeIncrement records a new increment and starts its timelock.
// The delay is chosen per proposal; a non-positive delay falls back
// to the engine's configured default. Owner only. A later proposal
// replaces the pending one and restarts the delay.
func (s *Sale) ProposeIncrement(ctx context.Context, caller string, value types.Money, delay time.Duration) (*timelock.Proposal[types.Money], error) {
	if err := s.keeper.Authorize(caller); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prop, err := s.increment.Propose(value, delay)
	if err != nil {
		return nil, err
	}

	s.plugins.EmitIncrementProposed(ctx, prop.Value, prop.ReadyAt)
	s.logger.Info("increment proposed",
		"proposed", prop.Value.String(),
		"ready_at", prop.ReadyAt,
	)
	return prop, nil
}

// ApplyIncrement promotes the pending increment once its timelock has
// elapsed. Owner only.
func (s *Sale) ApplyIncrement(ctx context.Context, caller string) (types.Money, error) {
	if err := s.keeper.Authorize(caller); err != nil {
		return types.Money{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.increment.Active()
	applied, err := s.increment.Apply()
	if err != nil {
		return types.Money{}, err
	}

	s.plugins.EmitIncrementApplied(ctx, old, applied)
	s.logger.Info("increment applied",
		"old", old.String(),
		"new", applied.String(),
	)
	return applied, nil
}

// ──────────────────────────────────────────────────
// Tier governance
// ──────────────────────────────────────────────────

// UpdateTierLimit replaces the cumulative capacity of a tier that has
// not yet been passed. Owner only.
func (s *Sale) UpdateTierLimit(ctx context.Context, caller string, t tier.Tier, newLimit types.Money) error {
	if err := s.keeper.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	old := s.ledger.Schedule().Limit(t)
	if err := s.ledger.UpdateLimit(t, newLimit); err != nil {
		return err
	}

	s.plugins.EmitTierLimitUpdated(ctx, t, old, newLimit)
	s.logger.Info("tier limit updated",
		"tier", t.String(),
		"old_limit", old.String(),
		"new_limit", newLimit.String(),
	)
	return nil
}

// SetIndividualCap replaces the per-participant cap. Owner only.
func (s *Sale) SetIndividualCap(_ context.Context, caller string, amount types.Money) error {
	if err := s.keeper.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SetIndividualCap(amount)
}

// SetMaxPageSize replaces the participant-listing page size bound.
// Owner only.
func (s *Sale) SetMaxPageSize(_ context.Context, caller string, size int) error {
	if err := s.keeper.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.SetMaxPageSize(size)
}

// Reset wipes all accounting state and reopens tier 1. Owner only.
// The contribution journal and custody balances are not touched: the
// reset discards attribution, not funds.
func (s *Sale) Reset(ctx context.Context, caller string) error {
	if err := s.keeper.Authorize(caller); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	discarded := s.ledger.Total()
	participants := s.ledger.ParticipantCount()
	s.ledger.Reset()

	s.plugins.EmitLedgerReset(ctx, discarded, participants)
	s.logger.Warn("ledger reset",
		"discarded", discarded.String(),
		"participants", participants,
	)
	return nil
}

// ──────────────────────────────────────────────────
// Lifecycle governance
// ──────────────────────────────────────────────────

// Pause blocks new contributions without closing the sale. Owner only.
func (s *Sale) Pause(caller string) error {
	if err := s.keeper.Pause(caller); err != nil {
		return err
	}
	s.logger.Info("sale paused")
	return nil
}

// Resume reopens a paused sale. Owner only.
func (s *Sale) Resume(caller string) error {
	if err := s.keeper.Resume(caller); err != nil {
		return err
	}
	s.logger.Info("sale resumed")
	return nil
}

// Paused reports whether contributions are currently blocked.
func (s *Sale) Paused() bool { return s.keeper.Paused() }

// Owner returns the sale owner's address.
func (s *Sale) Owner() string { return s.keeper.Owner() }

// TransferOwnership hands the sale to a new owner. Current owner only.
func (s *Sale) TransferOwnership(caller, newOwner string) error {
	if err := s.keeper.TransferOwnership(caller, newOwner); err != nil {
		return err
	}
	s.logger.Info("ownership transferred", "new_owner", newOwner)
	return nil
}

// ──────────────────────────────────────────────────
// Reads
// ──────────────────────────────────────────────────

// Tier returns the current tier (or Closed).
func (s *Sale) Tier() tier.Tier {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Tier()
}

// Total returns the cumulative collected amount attributed to tiers.
func (s *Sale) Total() types.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Total()
}

// TierSchedule returns the current cumulative limits.
func (s *Sale) TierSchedule() tier.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Schedule()
}

// IndividualCap returns the per-participant cap (zero means no cap).
func (s *Sale) IndividualCap() types.Money {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.IndividualCap()
}

// ParticipantCount returns the number of distinct participants.
func (s *Sale) ParticipantCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.ParticipantCount()
}

// Participant returns the record for an address.
func (s *Sale) Participant(address string) (participant.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Participant(address)
}

// Participants returns one page of records in first-contribution order.
func (s *Sale) Participants(opts participant.ListOpts) (*participant.Page, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ledger.Participants(opts)
}

// ──────────────────────────────────────────────────
// Persistence
// ──────────────────────────────────────────────────

// Checkpoint persists the current state immediately, outside the
// background schedule.
func (s *Sale) Checkpoint(ctx context.Context) error {
	return s.checkpoint(ctx)
}

func (s *Sale) checkpoint(ctx context.Context) error {
	start := time.Now()

	s.mu.Lock()
	snap := &store.Snapshot{
		Ledger:           *s.ledger.Snapshot(),
		Increment:        s.increment.Active(),
		PendingIncrement: s.increment.Pending(),
		Paused:           s.keeper.Paused(),
		Owner:            s.keeper.Owner(),
		TakenAt:          s.now().UTC(),
	}
	s.mu.Unlock()

	if err := s.store.SaveSnapshot(ctx, snap); err != nil {
		return err
	}

	elapsed := time.Since(start)
	s.plugins.EmitSnapshotSaved(ctx, snap.Ledger.Total, elapsed)
	s.logger.Debug("snapshot saved",
		"collected", snap.Ledger.Total.String(),
		"elapsed_ms", elapsed.Milliseconds(),
	)
	return nil
}

// restore rebuilds in-memory state from a persisted snapshot.
func (s *Sale) restore(snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ledger.Restore(&snap.Ledger); err != nil {
		return err
	}
	s.increment.Restore(snap.Increment, snap.PendingIncrement)

	if snap.Owner != "" && snap.Owner != s.keeper.Owner() {
		if err := s.keeper.TransferOwnership(s.keeper.Owner(), snap.Owner); err != nil {
			return err
		}
	}
	if snap.Paused {
		if err := s.keeper.Pause(s.keeper.Owner()); err != nil {
			return err
		}
	}
	return nil
}

// snapshotWorker persists state on a fixed interval until Stop.
func (s *Sale) snapshotWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.snapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if err := s.checkpoint(ctx); err != nil {
				s.logger.Error("periodic snapshot failed", "error", err)
			}
		}
	}
}

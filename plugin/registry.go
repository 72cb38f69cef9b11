package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger

	// Type-cached plugin lists for efficient dispatch
	onInit                 []OnInit
	onShutdown             []OnShutdown
	onContributionRecorded []OnContributionRecorded
	onTierAdvanced         []OnTierAdvanced
	onSaleClosed           []OnSaleClosed
	onTierLimitUpdated     []OnTierLimitUpdated
	onIncrementProposed    []OnIncrementProposed
	onIncrementApplied     []OnIncrementApplied
	onLedgerReset          []OnLedgerReset
	onSnapshotSaved        []OnSnapshotSaved
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{logger: slog.Default()}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnContributionRecorded); ok {
		r.onContributionRecorded = append(r.onContributionRecorded, v)
	}
	if v, ok := p.(OnTierAdvanced); ok {
		r.onTierAdvanced = append(r.onTierAdvanced, v)
	}
	if v, ok := p.(OnSaleClosed); ok {
		r.onSaleClosed = append(r.onSaleClosed, v)
	}
	if v, ok := p.(OnTierLimitUpdated); ok {
		r.onTierLimitUpdated = append(r.onTierLimitUpdated, v)
	}
	if v, ok := p.(OnIncrementProposed); ok {
		r.onIncrementProposed = append(r.onIncrementProposed, v)
	}
	if v, ok := p.(OnIncrementApplied); ok {
		r.onIncrementApplied = append(r.onIncrementApplied, v)
	}
	if v, ok := p.(OnLedgerReset); ok {
		r.onLedgerReset = append(r.onLedgerReset, v)
	}
	if v, ok := p.(OnSnapshotSaved); ok {
		r.onSnapshotSaved = append(r.onSnapshotSaved, v)
	}

	r.logger.Info("plugin registered", "name", p.Name())

	return nil
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, sale interface{}) {
	r.mu.RLock()
	plugins := r.onInit
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnInit(ctx, sale)
		}); err != nil {
			r.logger.Warn("plugin OnInit failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	r.mu.RLock()
	plugins := r.onShutdown
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnShutdown(ctx)
		}); err != nil {
			r.logger.Warn("plugin OnShutdown failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitContributionRecorded emits a contribution recorded event.
func (r *Registry) EmitContributionRecorded(ctx context.Context, c *contribution.Contribution) {
	r.mu.RLock()
	plugins := r.onContributionRecorded
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnContributionRecorded(ctx, c)
		}); err != nil {
			r.logger.Warn("plugin OnContributionRecorded failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierAdvanced emits a tier advanced event.
func (r *Registry) EmitTierAdvanced(ctx context.Context, entered tier.Tier, collected types.Money) {
	r.mu.RLock()
	plugins := r.onTierAdvanced
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierAdvanced(ctx, entered, collected)
		}); err != nil {
			r.logger.Warn("plugin OnTierAdvanced failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSaleClosed emits a sale closed event.
func (r *Registry) EmitSaleClosed(ctx context.Context, collected types.Money) {
	r.mu.RLock()
	plugins := r.onSaleClosed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSaleClosed(ctx, collected)
		}); err != nil {
			r.logger.Warn("plugin OnSaleClosed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitTierLimitUpdated emits a tier limit updated event.
func (r *Registry) EmitTierLimitUpdated(ctx context.Context, t tier.Tier, oldLimit, newLimit types.Money) {
	r.mu.RLock()
	plugins := r.onTierLimitUpdated
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnTierLimitUpdated(ctx, t, oldLimit, newLimit)
		}); err != nil {
			r.logger.Warn("plugin OnTierLimitUpdated failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitIncrementProposed emits an increment proposed event.
func (r *Registry) EmitIncrementProposed(ctx context.Context, proposed types.Money, readyAt time.Time) {
	r.mu.RLock()
	plugins := r.onIncrementProposed
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIncrementProposed(ctx, proposed, readyAt)
		}); err != nil {
			r.logger.Warn("plugin OnIncrementProposed failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitIncrementApplied emits an increment applied event.
func (r *Registry) EmitIncrementApplied(ctx context.Context, oldIncrement, newIncrement types.Money) {
	r.mu.RLock()
	plugins := r.onIncrementApplied
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnIncrementApplied(ctx, oldIncrement, newIncrement)
		}); err != nil {
			r.logger.Warn("plugin OnIncrementApplied failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitLedgerReset emits a ledger reset event.
func (r *Registry) EmitLedgerReset(ctx context.Context, discarded types.Money, participants int) {
	r.mu.RLock()
	plugins := r.onLedgerReset
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnLedgerReset(ctx, discarded, participants)
		}); err != nil {
			r.logger.Warn("plugin OnLedgerReset failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitSnapshotSaved emits a snapshot saved event.
func (r *Registry) EmitSnapshotSaved(ctx context.Context, collected types.Money, elapsed time.Duration) {
	r.mu.RLock()
	plugins := r.onSnapshotSaved
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return p.OnSnapshotSaved(ctx, collected, elapsed)
		}); err != nil {
			r.logger.Warn("plugin OnSnapshotSaved failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the contribution pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	select {
	case err := <-done:
		return err
	case <-time.After(5 * time.Second):
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Package observability provides a metrics extension for the sale
// engine that records lifecycle event counts through a pluggable
// MetricFactory.
package observability

import (
	"context"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/plugin"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                 = (*MetricsExtension)(nil)
	_ plugin.OnContributionRecorded = (*MetricsExtension)(nil)
	_ plugin.OnTierAdvanced         = (*MetricsExtension)(nil)
	_ plugin.OnSaleClosed           = (*MetricsExtension)(nil)
	_ plugin.OnTierLimitUpdated     = (*MetricsExtension)(nil)
	_ plugin.OnIncrementProposed    = (*MetricsExtension)(nil)
	_ plugin.OnIncrementApplied     = (*MetricsExtension)(nil)
	_ plugin.OnLedgerReset          = (*MetricsExtension)(nil)
	_ plugin.OnSnapshotSaved        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Sale plugin to automatically track sale metrics.
type MetricsExtension struct {
	factory MetricFactory

	// Contribution metrics
	ContributionsRecorded Counter
	ContributionAmount    Histogram
	SurplusAmount         Counter

	// Tier metrics
	TierAdvances     Counter
	SalesClosed      Counter
	TierLimitUpdates Counter

	// Governance metrics
	IncrementProposals    Counter
	IncrementApplications Counter
	LedgerResets          Counter

	// Persistence metrics
	SnapshotsSaved  Counter
	SnapshotLatency Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		factory: factory,

		// Contribution metrics
		ContributionsRecorded: factory.Counter("tiersale.contributions.recorded"),
		ContributionAmount:    factory.Histogram("tiersale.contributions.amount"),
		SurplusAmount:         factory.Counter("tiersale.contributions.surplus"),

		// Tier metrics
		TierAdvances:     factory.Counter("tiersale.tier.advances"),
		SalesClosed:      factory.Counter("tiersale.sale.closed"),
		TierLimitUpdates: factory.Counter("tiersale.tier.limit_updates"),

		// Governance metrics
		IncrementProposals:    factory.Counter("tiersale.increment.proposals"),
		IncrementApplications: factory.Counter("tiersale.increment.applications"),
		LedgerResets:          factory.Counter("tiersale.ledger.resets"),

		// Persistence metrics
		SnapshotsSaved:  factory.Counter("tiersale.snapshots.saved"),
		SnapshotLatency: factory.Histogram("tiersale.snapshots.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability" }

// OnContributionRecorded implements plugin.OnContributionRecorded.
func (m *MetricsExtension) OnContributionRecorded(_ context.Context, c *contribution.Contribution) error {
	m.ContributionsRecorded.Inc()
	m.ContributionAmount.Observe(float64(c.Amount.Amount))
	if c.Surplus.IsPositive() {
		m.SurplusAmount.Add(float64(c.Surplus.Amount))
	}
	return nil
}

// OnTierAdvanced implements plugin.OnTierAdvanced.
func (m *MetricsExtension) OnTierAdvanced(_ context.Context, _ tier.Tier, _ types.Money) error {
	m.TierAdvances.Inc()
	return nil
}

// OnSaleClosed implements plugin.OnSaleClosed.
func (m *MetricsExtension) OnSaleClosed(_ context.Context, _ types.Money) error {
	m.SalesClosed.Inc()
	return nil
}

// OnTierLimitUpdated implements plugin.OnTierLimitUpdated.
func (m *MetricsExtension) OnTierLimitUpdated(_ context.Context, _ tier.Tier, _, _ types.Money) error {
	m.TierLimitUpdates.Inc()
	return nil
}

// OnIncrementProposed implements plugin.OnIncrementProposed.
func (m *MetricsExtension) OnIncrementProposed(_ context.Context, _ types.Money, _ time.Time) error {
	m.IncrementProposals.Inc()
	return nil
}

// OnIncrementApplied implements plugin.OnIncrementApplied.
func (m *MetricsExtension) OnIncrementApplied(_ context.Context, _, _ types.Money) error {
	m.IncrementApplications.Inc()
	return nil
}

// OnLedgerReset implements plugin.OnLedgerReset.
func (m *MetricsExtension) OnLedgerReset(_ context.Context, _ types.Money, _ int) error {
	m.LedgerResets.Inc()
	return nil
}

// OnSnapshotSaved implements plugin.OnSnapshotSaved.
func (m *MetricsExtension) OnSnapshotSaved(_ context.Context, _ types.Money, elapsed time.Duration) error {
	m.SnapshotsSaved.Inc()
	m.SnapshotLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}

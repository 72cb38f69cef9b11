// Package audit bridges sale lifecycle events to an audit trail
// backend.
//
// It defines a local Recorder interface so the package does not depend
// on any particular audit system. Callers inject a RecorderFunc
// adapter that bridges to their backend at wiring time; SlogRecorder
// writes events to structured logs for deployments without one.
package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/plugin"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                 = (*Extension)(nil)
	_ plugin.OnContributionRecorded = (*Extension)(nil)
	_ plugin.OnTierAdvanced         = (*Extension)(nil)
	_ plugin.OnSaleClosed           = (*Extension)(nil)
	_ plugin.OnTierLimitUpdated     = (*Extension)(nil)
	_ plugin.OnIncrementProposed    = (*Extension)(nil)
	_ plugin.OnIncrementApplied     = (*Extension)(nil)
	_ plugin.OnLedgerReset          = (*Extension)(nil)
	_ plugin.OnSnapshotSaved        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *Event) error
}

// Event is a single audit trail entry.
type Event struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *Event) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

// SlogRecorder returns a Recorder that writes events to the logger.
func SlogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, event *Event) error {
		logger.LogAttrs(ctx, slog.LevelInfo, "audit event",
			slog.String("action", event.Action),
			slog.String("resource", event.Resource),
			slog.String("category", event.Category),
			slog.String("outcome", event.Outcome),
			slog.String("severity", event.Severity),
			slog.Any("metadata", event.Metadata),
		)
		return nil
	})
}

// Extension bridges sale lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit" }

// ──────────────────────────────────────────────────
// Contribution hooks
// ──────────────────────────────────────────────────

// OnContributionRecorded implements plugin.OnContributionRecorded.
func (e *Extension) OnContributionRecorded(ctx context.Context, c *contribution.Contribution) error {
	severity := SeverityInfo
	kv := []any{
		"participant", c.Participant,
		"amount", c.Amount.String(),
		"booked", c.Booked().String(),
		"transfer_ref", c.TransferRef.String(),
	}
	if c.Surplus.IsPositive() {
		// Surplus leaves the participant's funds in custody with no
		// tier attribution; flag it.
		severity = SeverityWarning
		kv = append(kv, "surplus", c.Surplus.String())
	}
	return e.record(ctx, ActionContributionRecorded, severity, OutcomeSuccess,
		ResourceContribution, c.ID.String(), CategoryAccounting, nil, kv...)
}

// OnTierAdvanced implements plugin.OnTierAdvanced.
func (e *Extension) OnTierAdvanced(ctx context.Context, entered tier.Tier, collected types.Money) error {
	return e.record(ctx, ActionTierAdvanced, SeverityInfo, OutcomeSuccess,
		ResourceTier, entered.String(), CategoryLifecycle, nil,
		"entered", entered.String(),
		"collected", collected.String(),
	)
}

// OnSaleClosed implements plugin.OnSaleClosed.
func (e *Extension) OnSaleClosed(ctx context.Context, collected types.Money) error {
	return e.record(ctx, ActionSaleClosed, SeverityInfo, OutcomeSuccess,
		ResourceSale, "", CategoryLifecycle, nil,
		"collected", collected.String(),
	)
}

// ──────────────────────────────────────────────────
// Parameter hooks
// ──────────────────────────────────────────────────

// OnTierLimitUpdated implements plugin.OnTierLimitUpdated.
func (e *Extension) OnTierLimitUpdated(ctx context.Context, t tier.Tier, oldLimit, newLimit types.Money) error {
	return e.record(ctx, ActionTierLimitUpdated, SeverityInfo, OutcomeSuccess,
		ResourceTier, t.String(), CategoryGovernance, nil,
		"tier", t.String(),
		"old_limit", oldLimit.String(),
		"new_limit", newLimit.String(),
	)
}

// OnIncrementProposed implements plugin.OnIncrementProposed.
func (e *Extension) OnIncrementProposed(ctx context.Context, proposed types.Money, readyAt time.Time) error {
	return e.record(ctx, ActionIncrementProposed, SeverityInfo, OutcomeSuccess,
		ResourceIncrement, "", CategoryGovernance, nil,
		"proposed", proposed.String(),
		"ready_at", readyAt.Format(time.RFC3339),
	)
}

// OnIncrementApplied implements plugin.OnIncrementApplied.
func (e *Extension) OnIncrementApplied(ctx context.Context, oldIncrement, newIncrement types.Money) error {
	return e.record(ctx, ActionIncrementApplied, SeverityInfo, OutcomeSuccess,
		ResourceIncrement, "", CategoryGovernance, nil,
		"old_increment", oldIncrement.String(),
		"new_increment", newIncrement.String(),
	)
}

// ──────────────────────────────────────────────────
// Maintenance hooks
// ──────────────────────────────────────────────────

// OnLedgerReset implements plugin.OnLedgerReset.
func (e *Extension) OnLedgerReset(ctx context.Context, discarded types.Money, participants int) error {
	return e.record(ctx, ActionLedgerReset, SeverityWarning, OutcomeSuccess,
		ResourceLedger, "", CategoryGovernance, nil,
		"discarded", discarded.String(),
		"participants", participants,
	)
}

// OnSnapshotSaved implements plugin.OnSnapshotSaved.
func (e *Extension) OnSnapshotSaved(ctx context.Context, collected types.Money, elapsed time.Duration) error {
	return e.record(ctx, ActionSnapshotSaved, SeverityInfo, OutcomeSuccess,
		ResourceLedger, "", CategoryLifecycle, nil,
		"collected", collected.String(),
		"elapsed", elapsed.String(),
	)
}

// ──────────────────────────────────────────────────
// Internal helpers
// ──────────────────────────────────────────────────

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &Event{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit: failed to record event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}

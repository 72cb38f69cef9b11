package audit

// Action constants for audit events.
const (
	// Contribution actions
	ActionContributionRecorded = "contribution.recorded"
	ActionContributionRejected = "contribution.rejected"

	// Tier actions
	ActionTierAdvanced     = "tier.advanced"
	ActionTierLimitUpdated = "tier.limit_updated"
	ActionSaleClosed       = "sale.closed"

	// Parameter actions
	ActionIncrementProposed = "increment.proposed"
	ActionIncrementApplied  = "increment.applied"

	// Maintenance actions
	ActionLedgerReset   = "ledger.reset"
	ActionSnapshotSaved = "snapshot.saved"
	ActionSalePaused    = "sale.paused"
	ActionSaleResumed   = "sale.resumed"
)

// Resource constants for audit events.
const (
	ResourceContribution = "contribution"
	ResourceTier         = "tier"
	ResourceIncrement    = "increment"
	ResourceLedger       = "ledger"
	ResourceSale         = "sale"
)

// Category constants for audit events.
const (
	CategoryAccounting = "accounting"
	CategoryGovernance = "governance"
	CategoryLifecycle  = "lifecycle"
)

// Severity levels for audit events.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityError    = "error"
	SeverityCritical = "critical"
)

// Outcome values for audit events.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

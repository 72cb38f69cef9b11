package tiersale

import (
	"errors"
	"fmt"

	"github.com/xraph/tiersale/custody"
	"github.com/xraph/tiersale/gate"
	"github.com/xraph/tiersale/ledger"
	"github.com/xraph/tiersale/timelock"
)

// Sentinel errors for common failure scenarios. The accounting and
// governance sentinels are defined next to the code that returns them;
// they are re-exported here so callers can depend on the root package
// alone.
var (
	// Contribution errors
	ErrSaleClosed            = ledger.ErrSaleClosed
	ErrSalePaused            = gate.ErrSalePaused
	ErrInvalidAmount         = ledger.ErrInvalidAmount
	ErrIndividualCapExceeded = ledger.ErrIndividualCapExceeded
	ErrTransferFailed        = custody.ErrTransferFailed

	// Governance errors
	ErrUnauthorized     = gate.ErrUnauthorized
	ErrInvalidTierLimit = ledger.ErrInvalidTierLimit

	// Timelock errors
	ErrNoPendingValue     = timelock.ErrNoPendingValue
	ErrTimelockNotElapsed = timelock.ErrTimelockNotElapsed
	ErrValueUnchanged     = timelock.ErrValueUnchanged
	ErrValueOutOfRange    = timelock.ErrValueOutOfRange

	// Query errors
	ErrParticipantNotFound = ledger.ErrParticipantNotFound
	ErrPageOutOfRange      = ledger.ErrPageOutOfRange
	ErrInvalidPageSize     = ledger.ErrInvalidPageSize

	// Store errors
	ErrNotFound      = errors.New("tiersale: not found")
	ErrAlreadyExists = errors.New("tiersale: already exists")
	ErrStoreClosed   = errors.New("tiersale: store is closed")
)

// ValidationError represents a validation failure with details.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("tiersale: validation failed for %s: %s", e.Field, e.Message)
}

// IsNotFound returns true if the error is a not found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrParticipantNotFound)
}

// IsRejection returns true if the error rejected a contribution
// without mutating any state. Rejected contributions can be retried
// with a corrected amount.
func IsRejection(err error) bool {
	return errors.Is(err, ErrSaleClosed) ||
		errors.Is(err, ErrSalePaused) ||
		errors.Is(err, ErrInvalidAmount) ||
		errors.Is(err, ErrIndividualCapExceeded)
}

// IsRetryable returns true if the error is temporary and the operation
// can be retried unchanged.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrSalePaused)
}

// Package gate guards the sale's administrative surface. A Keeper
// checks that the caller is the sale owner and tracks a pause flag
// that blocks new contributions without closing the sale.
package gate

import (
	"errors"
	"fmt"
	"sync"
)

// Sentinel errors for access control.
var (
	// ErrUnauthorized is returned when a caller other than the owner
	// invokes an owner-only operation.
	ErrUnauthorized = errors.New("tiersale: caller is not the sale owner")

	// ErrSalePaused is returned for contributions while the sale is
	// paused.
	ErrSalePaused = errors.New("tiersale: sale is paused")
)

// Keeper holds the owner identity and the pause flag. It is safe for
// concurrent use.
type Keeper struct {
	mu     sync.RWMutex
	owner  string
	paused bool
}

// NewKeeper creates a Keeper owned by the given address.
func NewKeeper(owner string) (*Keeper, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: empty owner address", ErrUnauthorized)
	}
	return &Keeper{owner: owner}, nil
}

// Owner returns the owner address.
func (k *Keeper) Owner() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.owner
}

// Authorize returns nil when caller is the owner.
func (k *Keeper) Authorize(caller string) error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if caller != k.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	return nil
}

// TransferOwnership hands the sale to a new owner. Only the current
// owner may call it.
func (k *Keeper) TransferOwnership(caller, newOwner string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if caller != k.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	if newOwner == "" {
		return fmt.Errorf("%w: empty new owner address", ErrUnauthorized)
	}
	k.owner = newOwner
	return nil
}

// Paused reports the pause flag.
func (k *Keeper) Paused() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.paused
}

// CheckOpen returns ErrSalePaused when the pause flag is set.
func (k *Keeper) CheckOpen() error {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if k.paused {
		return ErrSalePaused
	}
	return nil
}

// Pause sets the pause flag. Owner only. Pausing an already paused
// sale is a no-op.
func (k *Keeper) Pause(caller string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if caller != k.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	k.paused = true
	return nil
}

// Resume clears the pause flag. Owner only.
func (k *Keeper) Resume(caller string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if caller != k.owner {
		return fmt.Errorf("%w: %q", ErrUnauthorized, caller)
	}
	k.paused = false
	return nil
}

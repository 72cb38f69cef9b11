// Package custody abstracts the outbound movement of contributed
// funds. The sale engine transfers the full contribution amount to
// custody synchronously inside the contribution call; a failed
// transfer aborts the contribution and rolls the ledger back.
package custody

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/types"
)

// ErrTransferFailed is returned when funds could not be moved to
// custody. The engine rolls back any ledger effects before
// surfacing this error.
var ErrTransferFailed = errors.New("tiersale: custody transfer failed")

// Receipt proves a completed transfer.
type Receipt struct {
	ID id.TransferID `json:"id"`
	// From is the contributing participant's address.
	From string `json:"from"`
	// Amount is the full transferred amount, including any surplus
	// beyond what the ledger booked.
	Amount    types.Money `json:"amount"`
	CreatedAt time.Time   `json:"created_at"`
}

// Transferrer moves funds from a participant into custody.
type Transferrer interface {
	// Transfer moves amount from the participant's address into
	// custody. Implementations wrap failures in ErrTransferFailed.
	Transfer(ctx context.Context, from string, amount types.Money) (*Receipt, error)
}

// Func adapts a function to the Transferrer interface.
type Func func(ctx context.Context, from string, amount types.Money) (*Receipt, error)

// Transfer implements Transferrer.
func (f Func) Transfer(ctx context.Context, from string, amount types.Money) (*Receipt, error) {
	return f(ctx, from, amount)
}

// Vault is an in-memory Transferrer that accumulates a balance and
// keeps every receipt. It backs tests and single-process deployments.
type Vault struct {
	mu       sync.Mutex
	balance  types.Money
	receipts []Receipt
}

// NewVault creates an empty Vault holding the given currency.
func NewVault(currency string) *Vault {
	return &Vault{balance: types.Zero(currency)}
}

// Transfer implements Transferrer.
func (v *Vault) Transfer(ctx context.Context, from string, amount types.Money) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransferFailed, err)
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !amount.SameCurrency(v.balance) {
		return nil, fmt.Errorf("%w: currency %q, vault holds %q", ErrTransferFailed, amount.Currency, v.balance.Currency)
	}
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount %s is not positive", ErrTransferFailed, amount)
	}

	receipt := Receipt{
		ID:        id.NewTransferID(),
		From:      from,
		Amount:    amount,
		CreatedAt: time.Now().UTC(),
	}
	v.balance = v.balance.Add(amount)
	v.receipts = append(v.receipts, receipt)
	return &receipt, nil
}

// Balance returns the total amount held.
func (v *Vault) Balance() types.Money {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.balance
}

// Receipts returns a copy of every recorded receipt in order.
func (v *Vault) Receipts() []Receipt {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Receipt, len(v.receipts))
	copy(out, v.receipts)
	return out
}

// Package timelock implements a two-phase parameter mutation protocol:
// a new value is proposed, waits out a delay chosen at proposal time,
// and only then can be applied. Until applied, the active value keeps
// serving reads and the pending value can be replaced by a fresh
// proposal at any time.
package timelock

import (
	"errors"
	"fmt"
	"time"
)

// Sentinel errors for proposal and application failures.
var (
	// ErrNoPendingValue is returned by Apply when nothing was proposed.
	ErrNoPendingValue = errors.New("tiersale: no pending value")

	// ErrTimelockNotElapsed is returned by Apply before the delay has
	// fully passed.
	ErrTimelockNotElapsed = errors.New("tiersale: timelock has not elapsed")

	// ErrValueUnchanged is returned when a proposal carries the value
	// that is already active.
	ErrValueUnchanged = errors.New("tiersale: proposed value equals active value")

	// ErrValueOutOfRange is returned when the configured validator
	// rejects a proposed value.
	ErrValueOutOfRange = errors.New("tiersale: proposed value out of range")
)

// Proposal is a pending value waiting out its delay.
type Proposal[T comparable] struct {
	Value T `json:"value"`
	// ProposedAt is when the proposal was recorded.
	ProposedAt time.Time `json:"proposed_at"`
	// ReadyAt is the earliest instant Apply can succeed.
	ReadyAt time.Time `json:"ready_at"`
}

// Param is a single timelocked parameter. It is not safe for
// concurrent use; callers serialize access.
type Param[T comparable] struct {
	active  T
	pending *Proposal[T]
	delay   time.Duration

	now      func() time.Time
	validate func(T) error
}

// Option configures a Param.
type Option[T comparable] func(*Param[T])

// WithClock injects the time source. Tests use this to step through
// the delay without sleeping.
func WithClock[T comparable](now func() time.Time) Option[T] {
	return func(p *Param[T]) { p.now = now }
}

// WithValidator gates proposals. A validator error is wrapped in
// ErrValueOutOfRange.
func WithValidator[T comparable](validate func(T) error) Option[T] {
	return func(p *Param[T]) { p.validate = validate }
}

// New creates a Param with an active value and a default delay for
// proposals that do not choose their own. A zero or negative default
// makes Apply succeed immediately after such a Propose.
func New[T comparable](active T, delay time.Duration, opts ...Option[T]) *Param[T] {
	p := &Param[T]{
		active: active,
		delay:  delay,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Active returns the value currently in force.
func (p *Param[T]) Active() T { return p.active }

// Pending returns a copy of the open proposal, or nil.
func (p *Param[T]) Pending() *Proposal[T] {
	if p.pending == nil {
		return nil
	}
	cp := *p.pending
	return &cp
}

// Delay returns the default delay.
func (p *Param[T]) Delay() time.Duration { return p.delay }

// Propose records value as pending and starts the given delay; a
// non-positive delay falls back to the default. A proposal equal to
// the active value is rejected; a proposal while another is pending
// replaces it and restarts the delay, even with the same pending
// value.
func (p *Param[T]) Propose(value T, delay time.Duration) (*Proposal[T], error) {
	if value == p.active {
		return nil, fmt.Errorf("%w: %v", ErrValueUnchanged, value)
	}
	if p.validate != nil {
		if err := p.validate(value); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValueOutOfRange, err)
		}
	}
	if delay <= 0 {
		delay = p.delay
	}

	now := p.now()
	p.pending = &Proposal[T]{
		Value:      value,
		ProposedAt: now,
		ReadyAt:    now.Add(delay),
	}
	return p.Pending(), nil
}

// Apply promotes the pending value to active once the delay has
// elapsed, clearing the proposal. The pending value survives a failed
// Apply and can be applied again later.
func (p *Param[T]) Apply() (T, error) {
	var zero T
	if p.pending == nil {
		return zero, ErrNoPendingValue
	}
	if now := p.now(); now.Before(p.pending.ReadyAt) {
		return zero, fmt.Errorf("%w: ready in %s", ErrTimelockNotElapsed, p.pending.ReadyAt.Sub(now))
	}

	p.active = p.pending.Value
	p.pending = nil
	return p.active, nil
}

// Discard drops the pending proposal, if any, leaving the active
// value untouched. It reports whether a proposal was dropped.
func (p *Param[T]) Discard() bool {
	had := p.pending != nil
	p.pending = nil
	return had
}

// Restore rewrites the full state of the parameter. It backs loading
// from a snapshot; no validation runs.
func (p *Param[T]) Restore(active T, pending *Proposal[T]) {
	p.active = active
	if pending == nil {
		p.pending = nil
		return
	}
	cp := *pending
	p.pending = &cp
}

// Package memory provides an in-memory Store for tests and
// single-process deployments. Nothing survives a restart.
package memory

import (
	"context"
	"sync"

	"github.com/xraph/tiersale"
	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/id"
	"github.com/xraph/tiersale/store"
)

type Store struct {
	mu sync.RWMutex

	// Contribution journal, append order preserved
	journal []*contribution.Contribution
	byID    map[string]*contribution.Contribution

	// Latest snapshot, nil until the first save
	snapshot *store.Snapshot

	closed bool
}

func New() *Store {
	return &Store{
		byID: make(map[string]*contribution.Contribution),
	}
}

// Contribution journal implementation
func (s *Store) AppendContribution(_ context.Context, c *contribution.Contribution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tiersale.ErrStoreClosed
	}
	if _, exists := s.byID[c.ID.String()]; exists {
		return tiersale.ErrAlreadyExists
	}

	cp := *c
	cp.Bookings = append([]contribution.Booking(nil), c.Bookings...)
	s.journal = append(s.journal, &cp)
	s.byID[cp.ID.String()] = &cp
	return nil
}

func (s *Store) GetContribution(_ context.Context, cid id.ContributionID) (*contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tiersale.ErrStoreClosed
	}
	c, ok := s.byID[cid.String()]
	if !ok {
		return nil, tiersale.ErrNotFound
	}
	cp := *c
	cp.Bookings = append([]contribution.Booking(nil), c.Bookings...)
	return &cp, nil
}

func (s *Store) ListContributions(_ context.Context, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tiersale.ErrStoreClosed
	}

	result := make([]*contribution.Contribution, 0)
	for _, c := range s.journal {
		if opts.Participant != "" && c.Participant != opts.Participant {
			continue
		}
		if !opts.Since.IsZero() && c.CreatedAt.Before(opts.Since) {
			continue
		}
		cp := *c
		cp.Bookings = append([]contribution.Booking(nil), c.Bookings...)
		result = append(result, &cp)
		if opts.Limit > 0 && len(result) == opts.Limit {
			break
		}
	}
	return result, nil
}

// Snapshot implementation
func (s *Store) SaveSnapshot(_ context.Context, snap *store.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return tiersale.ErrStoreClosed
	}

	cp := *snap
	cp.Ledger.Records = append(cp.Ledger.Records[:0:0], snap.Ledger.Records...)
	if snap.PendingIncrement != nil {
		pending := *snap.PendingIncrement
		cp.PendingIncrement = &pending
	}
	s.snapshot = &cp
	return nil
}

func (s *Store) LoadSnapshot(_ context.Context) (*store.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, tiersale.ErrStoreClosed
	}
	if s.snapshot == nil {
		return nil, tiersale.ErrNotFound
	}

	cp := *s.snapshot
	cp.Ledger.Records = append(cp.Ledger.Records[:0:0], s.snapshot.Ledger.Records...)
	if s.snapshot.PendingIncrement != nil {
		pending := *s.snapshot.PendingIncrement
		cp.PendingIncrement = &pending
	}
	return &cp, nil
}

// Store management
func (s *Store) Migrate(_ context.Context) error {
	return nil // No migration needed for memory store
}

func (s *Store) Ping(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return tiersale.ErrStoreClosed
	}
	return nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

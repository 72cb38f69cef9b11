package ledger

import (
	"fmt"
	"time"

	"github.com/xraph/tiersale/participant"
	"github.com/xraph/tiersale/tier"
	"github.com/xraph/tiersale/types"
)

// Snapshot is a complete, self-contained image of a Ledger. It is
// JSON-serializable for durable storage and deep enough to restore the
// exact pre-image, which is also how the engine rolls back a
// contribution whose custodial transfer failed.
type Snapshot struct {
	Schedule      tier.Schedule        `json:"schedule"`
	Tier          tier.Tier            `json:"tier"`
	Total         types.Money          `json:"total"`
	IndividualCap types.Money          `json:"individual_cap"`
	MaxPageSize   int                  `json:"max_page_size"`
	Records       []participant.Record `json:"records"` // first-contribution order
	TakenAt       time.Time            `json:"taken_at"`
}

// Snapshot returns a deep copy of the ledger's state.
func (l *Ledger) Snapshot() *Snapshot {
	s := &Snapshot{
		Schedule:      l.schedule,
		Tier:          l.current,
		Total:         l.total,
		IndividualCap: l.individualCap,
		MaxPageSize:   l.maxPageSize,
		Records:       make([]participant.Record, 0, len(l.index)),
		TakenAt:       time.Now().UTC(),
	}
	for _, address := range l.index {
		s.Records = append(s.Records, *l.records[address].Clone())
	}
	return s
}

// Restore replaces the ledger's entire state with the snapshot's.
func (l *Ledger) Restore(s *Snapshot) error {
	if err := s.Schedule.Validate(); err != nil {
		return fmt.Errorf("tiersale: restore snapshot: %w", err)
	}
	if !s.Tier.Valid() {
		return fmt.Errorf("tiersale: restore snapshot: invalid tier %d", uint8(s.Tier))
	}
	if s.MaxPageSize < 1 {
		return fmt.Errorf("tiersale: restore snapshot: %w", ErrInvalidPageSize)
	}

	records := make(map[string]*participant.Record, len(s.Records))
	index := make([]string, 0, len(s.Records))
	for i := range s.Records {
		rec := s.Records[i]
		if _, dup := records[rec.Address]; dup {
			return fmt.Errorf("tiersale: restore snapshot: duplicate participant %s", rec.Address)
		}
		records[rec.Address] = rec.Clone()
		index = append(index, rec.Address)
	}

	l.schedule = s.Schedule
	l.current = s.Tier
	l.total = s.Total
	l.individualCap = s.IndividualCap
	l.maxPageSize = s.MaxPageSize
	l.records = records
	l.index = index
	return nil
}

// FromSnapshot builds a Ledger from a stored snapshot.
func FromSnapshot(s *Snapshot) (*Ledger, error) {
	l := &Ledger{}
	if err := l.Restore(s); err != nil {
		return nil, err
	}
	return l, nil
}

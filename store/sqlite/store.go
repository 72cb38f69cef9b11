// Package sqlite provides a SQLite-backed Store using a pure Go
// driver, suitable for single-node deployments.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/xraph/tiersale"
	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/id"
	tiersalestore "github.com/xraph/tiersale/store"
	_ "modernc.org/sqlite"
)

// compile-time interface check
var _ tiersalestore.Store = (*Store)(nil)

// Store implements store.Store on SQLite.
type Store struct {
	db *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (creating if needed) a SQLite store at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("tiersale/sqlite: storage path is required")
	}
	cleanPath := filepath.Clean(path)
	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("tiersale/sqlite: open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tiersale/sqlite: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store { return &Store{db: db} }

// DB returns the underlying database handle for direct access.
func (s *Store) DB() *sql.DB { return s.db }

// Migrate creates the required tables and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range migrations {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("tiersale/sqlite: migration failed: %w", err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Contribution journal ====================

func (s *Store) AppendContribution(ctx context.Context, c *contribution.Contribution) error {
	bookings, err := json.Marshal(c.Bookings)
	if err != nil {
		return fmt.Errorf("tiersale/sqlite: encode bookings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contributions
		   (id, participant, currency, amount, surplus, bookings, transfer_ref, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID.String(),
		c.Participant,
		c.Amount.Currency,
		c.Amount.Amount,
		c.Surplus.Amount,
		string(bookings),
		c.TransferRef.String(),
		toMillis(c.CreatedAt),
		toMillis(c.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return tiersale.ErrAlreadyExists
		}
		return fmt.Errorf("tiersale/sqlite: append contribution: %w", err)
	}
	return nil
}

func (s *Store) GetContribution(ctx context.Context, cid id.ContributionID) (*contribution.Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant, currency, amount, surplus, bookings, transfer_ref, created_at, updated_at
		 FROM contributions
		 WHERE id = ?`,
		cid.String(),
	)
	c, err := scanContribution(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tiersale.ErrNotFound
		}
		return nil, fmt.Errorf("tiersale/sqlite: get contribution: %w", err)
	}
	return c, nil
}

func (s *Store) ListContributions(ctx context.Context, opts contribution.ListOpts) ([]*contribution.Contribution, error) {
	query := `SELECT id, participant, currency, amount, surplus, bookings, transfer_ref, created_at, updated_at
		 FROM contributions`
	var (
		where []string
		args  []any
	)
	if opts.Participant != "" {
		where = append(where, "participant = ?")
		args = append(args, opts.Participant)
	}
	if !opts.Since.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toMillis(opts.Since))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tiersale/sqlite: list contributions: %w", err)
	}
	defer rows.Close()

	result := make([]*contribution.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("tiersale/sqlite: list contributions: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tiersale/sqlite: list contributions: %w", err)
	}
	return result, nil
}

func scanContribution(scan func(dest ...any) error) (*contribution.Contribution, error) {
	var (
		c           contribution.Contribution
		rawID       string
		currency    string
		amount      int64
		surplus     int64
		bookings    string
		transferRef string
		createdAt   int64
		updatedAt   int64
	)
	if err := scan(&rawID, &c.Participant, &currency, &amount, &surplus,
		&bookings, &transferRef, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	cid, err := id.ParseContributionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("parse id: %w", err)
	}
	c.ID = cid
	if transferRef != "" {
		ref, err := id.ParseTransferID(transferRef)
		if err != nil {
			return nil, fmt.Errorf("parse transfer ref: %w", err)
		}
		c.TransferRef = ref
	}
	if err := json.Unmarshal([]byte(bookings), &c.Bookings); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	c.Amount.Amount, c.Amount.Currency = amount, currency
	c.Surplus.Amount, c.Surplus.Currency = surplus, currency
	c.CreatedAt = fromMillis(createdAt)
	c.UpdatedAt = fromMillis(updatedAt)
	return &c, nil
}

// ==================== Snapshot ====================

func (s *Store) SaveSnapshot(ctx context.Context, snap *tiersalestore.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("tiersale/sqlite: encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (slot, payload, taken_at)
		 VALUES (1, ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET
		   payload = excluded.payload,
		   taken_at = excluded.taken_at`,
		string(payload),
		toMillis(snap.TakenAt),
	)
	if err != nil {
		return fmt.Errorf("tiersale/sqlite: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context) (*tiersalestore.Snapshot, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE slot = 1`,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tiersale.ErrNotFound
		}
		return nil, fmt.Errorf("tiersale/sqlite: load snapshot: %w", err)
	}

	snap := new(tiersalestore.Snapshot)
	if err := json.Unmarshal([]byte(payload), snap); err != nil {
		return nil, fmt.Errorf("tiersale/sqlite: decode snapshot: %w", err)
	}
	return snap, nil
}

// Package postgres provides a PostgreSQL-backed Store for deployments
// that need durable shared storage.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/xraph/tiersale"
	"github.com/xraph/tiersale/contribution"
	"github.com/xraph/tiersale/id"
	tiersalestore "github.com/xraph/tiersale/store"
)

// compile-time interface check
var _ tiersalestore.Store = (*Store)(nil)

// uniqueViolation is the PostgreSQL error code for duplicate keys.
const uniqueViolation = "23505"

// Store implements store.Store on PostgreSQL.
type Store struct {
	db *sql.DB
}

// Open connects to PostgreSQL using a standard connection URL.
func Open(databaseURL string) (*Store, error) {
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("tiersale/postgres: database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("tiersale/postgres: open: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("tiersale/postgres: ping: %w", err)
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
			return fmt.Errorf("tiersale/postgres: migration failed: %w", err)
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
		return fmt.Errorf("tiersale/postgres: encode bookings: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO contributions
		   (id, participant, currency, amount, surplus, bookings, transfer_ref, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID.String(),
		c.Participant,
		c.Amount.Currency,
		c.Amount.Amount,
		c.Surplus.Amount,
		bookings,
		c.TransferRef.String(),
		c.CreatedAt.UTC(),
		c.UpdatedAt.UTC(),
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return tiersale.ErrAlreadyExists
		}
		return fmt.Errorf("tiersale/postgres: append contribution: %w", err)
	}
	return nil
}

func (s *Store) GetContribution(ctx context.Context, cid id.ContributionID) (*contribution.Contribution, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, participant, currency, amount, surplus, bookings, transfer_ref, created_at, updated_at
		 FROM contributions
		 WHERE id = $1`,
		cid.String(),
	)
	c, err := scanContribution(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tiersale.ErrNotFound
		}
		return nil, fmt.Errorf("tiersale/postgres: get contribution: %w", err)
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
		args = append(args, opts.Participant)
		where = append(where, fmt.Sprintf("participant = $%d", len(args)))
	}
	if !opts.Since.IsZero() {
		args = append(args, opts.Since.UTC())
		where = append(where, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY created_at ASC, id ASC"
	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("tiersale/postgres: list contributions: %w", err)
	}
	defer rows.Close()

	result := make([]*contribution.Contribution, 0)
	for rows.Next() {
		c, err := scanContribution(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("tiersale/postgres: list contributions: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("tiersale/postgres: list contributions: %w", err)
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
		bookings    []byte
		transferRef string
		createdAt   time.Time
		updatedAt   time.Time
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
	if err := json.Unmarshal(bookings, &c.Bookings); err != nil {
		return nil, fmt.Errorf("decode bookings: %w", err)
	}
	c.Amount.Amount, c.Amount.Currency = amount, currency
	c.Surplus.Amount, c.Surplus.Currency = surplus, currency
	c.CreatedAt = createdAt.UTC()
	c.UpdatedAt = updatedAt.UTC()
	return &c, nil
}

// ==================== Snapshot ====================

func (s *Store) SaveSnapshot(ctx context.Context, snap *tiersalestore.Snapshot) error {
	payload, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("tiersale/postgres: encode snapshot: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO snapshots (slot, payload, taken_at)
		 VALUES (1, $1, $2)
		 ON CONFLICT (slot) DO UPDATE SET
		   payload = EXCLUDED.payload,
		   taken_at = EXCLUDED.taken_at`,
		payload,
		snap.TakenAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("tiersale/postgres: save snapshot: %w", err)
	}
	return nil
}

func (s *Store) LoadSnapshot(ctx context.Context) (*tiersalestore.Snapshot, error) {
	var payload []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM snapshots WHERE slot = 1`,
	).Scan(&payload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, tiersale.ErrNotFound
		}
		return nil, fmt.Errorf("tiersale/postgres: load snapshot: %w", err)
	}

	snap := new(tiersalestore.Snapshot)
	if err := json.Unmarshal(payload, snap); err != nil {
		return nil, fmt.Errorf("tiersale/postgres: decode snapshot: %w", err)
	}
	return snap, nil
}

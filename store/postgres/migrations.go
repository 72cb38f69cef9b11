package postgres

// migrations are applied in order by Migrate. Statements must be
// idempotent; there is no down path.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS contributions (
		id           TEXT PRIMARY KEY,
		participant  TEXT NOT NULL,
		currency     TEXT NOT NULL,
		amount       BIGINT NOT NULL,
		surplus      BIGINT NOT NULL DEFAULT 0,
		bookings     JSONB NOT NULL,
		transfer_ref TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL,
		updated_at   TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_contributions_participant
		ON contributions (participant, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_contributions_created_at
		ON contributions (created_at)`,
	`CREATE TABLE IF NOT EXISTS snapshots (
		slot     INTEGER PRIMARY KEY CHECK (slot = 1),
		payload  JSONB NOT NULL,
		taken_at TIMESTAMPTZ NOT NULL
	)`,
}

// File: internal/storage/migrations.go
package storage

// Migration represents a single schema migration
type Migration struct {
	Version     string
	Description string
	SQL         string
}

// GetSQLiteMigrations returns the SQLite schema migrations in order
func GetSQLiteMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create verification_runs table",
			SQL: `
CREATE TABLE IF NOT EXISTS verification_runs (
	id               TEXT PRIMARY KEY,
	contract_address TEXT NOT NULL,
	event_signature  TEXT NOT NULL,
	topic0           TEXT NOT NULL,
	src_endpoint     TEXT NOT NULL,
	src_chain_id     INTEGER,
	src_from_block   INTEGER NOT NULL,
	src_to_block     INTEGER NOT NULL,
	src_count        INTEGER NOT NULL,
	dst_endpoint     TEXT NOT NULL,
	dst_chain_id     INTEGER,
	dst_from_block   INTEGER NOT NULL,
	dst_to_block     INTEGER NOT NULL,
	dst_count        INTEGER NOT NULL,
	drift            INTEGER NOT NULL,
	allowed_drift    INTEGER NOT NULL,
	sound            INTEGER NOT NULL,
	elapsed_ms       INTEGER NOT NULL,
	created_at       TIMESTAMP NOT NULL
);`,
		},
		{
			Version:     "002",
			Description: "Index runs by contract and creation time",
			SQL: `
CREATE INDEX IF NOT EXISTS idx_runs_contract ON verification_runs(contract_address);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON verification_runs(created_at);`,
		},
	}
}

// GetPostgreSQLMigrations returns the PostgreSQL schema migrations in order
func GetPostgreSQLMigrations() []*Migration {
	return []*Migration{
		{
			Version:     "001",
			Description: "Create verification_runs table",
			SQL: `
CREATE TABLE IF NOT EXISTS verification_runs (
	id               TEXT PRIMARY KEY,
	contract_address TEXT NOT NULL,
	event_signature  TEXT NOT NULL,
	topic0           TEXT NOT NULL,
	src_endpoint     TEXT NOT NULL,
	src_chain_id     BIGINT,
	src_from_block   BIGINT NOT NULL,
	src_to_block     BIGINT NOT NULL,
	src_count        BIGINT NOT NULL,
	dst_endpoint     TEXT NOT NULL,
	dst_chain_id     BIGINT,
	dst_from_block   BIGINT NOT NULL,
	dst_to_block     BIGINT NOT NULL,
	dst_count        BIGINT NOT NULL,
	drift            BIGINT NOT NULL,
	allowed_drift    BIGINT NOT NULL,
	sound            BOOLEAN NOT NULL,
	elapsed_ms       BIGINT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL
);`,
		},
		{
			Version:     "002",
			Description: "Index runs by contract and creation time",
			SQL: `
CREATE INDEX IF NOT EXISTS idx_runs_contract ON verification_runs(contract_address);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON verification_runs(created_at);`,
		},
	}
}

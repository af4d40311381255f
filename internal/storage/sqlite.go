// File: internal/storage/sqlite.go
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/pkg/utils"
)

// SQLiteStorage implements Storage using SQLite
type SQLiteStorage struct {
	db         *sql.DB
	config     *StorageConfig
	logger     *logrus.Entry
	migrations []*Migration
}

// NewSQLiteStorage creates a new SQLite storage instance
func NewSQLiteStorage(config *StorageConfig) *SQLiteStorage {
	return &SQLiteStorage{
		config:     config,
		logger:     utils.ComponentLogger("storage").WithField("backend", "sqlite"),
		migrations: GetSQLiteMigrations(),
	}
}

// Connect establishes the database connection
func (s *SQLiteStorage) Connect() error {
	dir := filepath.Dir(s.config.ConnectionString)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase, "Failed to create database directory", err.Error())
		}
	}

	db, err := sql.Open("sqlite", s.config.ConnectionString)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to open SQLite database", err.Error())
	}

	db.SetMaxOpenConns(s.config.MaxConnections)
	db.SetConnMaxLifetime(s.config.MaxIdleTime)

	// WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to enable WAL mode", err.Error())
	}

	s.db = db
	s.logger.WithField("path", s.config.ConnectionString).Info("SQLite database connected")
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Ping checks database connectivity
func (s *SQLiteStorage) Ping() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}
	return s.db.Ping()
}

// Migrate runs database migrations
func (s *SQLiteStorage) Migrate() error {
	if s.db == nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Database not connected")
	}

	for _, migration := range s.migrations {
		s.logger.WithFields(logrus.Fields{
			"version":     migration.Version,
			"description": migration.Description,
		}).Debug("Applying migration")

		if _, err := s.db.Exec(migration.SQL); err != nil {
			return utils.NewAppError(utils.ErrCodeDatabase,
				fmt.Sprintf("Migration %s failed", migration.Version), err.Error())
		}
	}
	return nil
}

// SaveRun persists a completed verification run
func (s *SQLiteStorage) SaveRun(ctx context.Context, run *models.VerificationRun) error {
	query := `
		INSERT INTO verification_runs (
			id, contract_address, event_signature, topic0,
			src_endpoint, src_chain_id, src_from_block, src_to_block, src_count,
			dst_endpoint, dst_chain_id, dst_from_block, dst_to_block, dst_count,
			drift, allowed_drift, sound, elapsed_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := s.db.ExecContext(ctx, query,
		run.ID, run.Contract, run.Signature, run.Topic,
		run.Source.Endpoint, nullableChainID(run.Source.ChainID), run.Source.FromBlock, run.Source.ToBlock, run.Source.Count,
		run.Destination.Endpoint, nullableChainID(run.Destination.ChainID), run.Destination.FromBlock, run.Destination.ToBlock, run.Destination.Count,
		run.Verdict.Drift, run.Verdict.AllowedDrift, boolToInt(run.Verdict.Sound),
		run.Elapsed.Milliseconds(), run.CreatedAt,
	)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to save verification run", err.Error())
	}
	return nil
}

// GetRun fetches a single run by ID
func (s *SQLiteStorage) GetRun(ctx context.Context, id string) (*models.VerificationRun, error) {
	row := s.db.QueryRowContext(ctx, selectRunColumns+" FROM verification_runs WHERE id = ?", id)
	run, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Run not found", id)
	}
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get verification run", err.Error())
	}
	return run, nil
}

// GetRuns lists runs matching the filter, newest first
func (s *SQLiteStorage) GetRuns(ctx context.Context, filter RunFilter) ([]*models.VerificationRun, error) {
	query := selectRunColumns + " FROM verification_runs WHERE 1=1"
	args := []interface{}{}

	if filter.Contract != "" {
		query += " AND contract_address = ?"
		args = append(args, filter.Contract)
	}
	if filter.SoundOnly != nil {
		query += " AND sound = ?"
		args = append(args, boolToInt(*filter.SoundOnly))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to list verification runs", err.Error())
	}
	defer rows.Close()

	runs := make([]*models.VerificationRun, 0)
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to scan verification run", err.Error())
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetStorageStats returns aggregate run statistics
func (s *SQLiteStorage) GetStorageStats(ctx context.Context) (*StorageStats, error) {
	stats := &StorageStats{}

	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(sound), 0),
		       MIN(created_at),
		       MAX(created_at)
		FROM verification_runs`)

	var oldest, latest sql.NullTime
	if err := row.Scan(&stats.TotalRuns, &stats.SoundRuns, &oldest, &latest); err != nil {
		return nil, utils.NewAppError(utils.ErrCodeDatabase, "Failed to get storage stats", err.Error())
	}
	stats.MismatchRuns = stats.TotalRuns - stats.SoundRuns
	if oldest.Valid {
		stats.OldestRun = &oldest.Time
	}
	if latest.Valid {
		stats.LatestRun = &latest.Time
	}
	return stats, nil
}

// Cleanup deletes runs older than the retention window
func (s *SQLiteStorage) Cleanup(ctx context.Context, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	result, err := s.db.ExecContext(ctx,
		"DELETE FROM verification_runs WHERE created_at < ?", cutoff)
	if err != nil {
		return utils.NewAppError(utils.ErrCodeDatabase, "Failed to clean up old runs", err.Error())
	}
	if deleted, err := result.RowsAffected(); err == nil && deleted > 0 {
		s.logger.WithField("deleted", deleted).Info("Cleaned up old verification runs")
	}
	return nil
}

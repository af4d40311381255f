// File: internal/storage/storage.go
package storage

import (
	"context"
	"time"

	"github.com/chainsound/evmirror/internal/models"
)

// Storage defines the interface for verification run history
type Storage interface {
	// Connection management
	Connect() error
	Close() error
	Ping() error
	Migrate() error

	// Run operations
	SaveRun(ctx context.Context, run *models.VerificationRun) error
	GetRun(ctx context.Context, id string) (*models.VerificationRun, error)
	GetRuns(ctx context.Context, filter RunFilter) ([]*models.VerificationRun, error)

	// Statistics and maintenance
	GetStorageStats(ctx context.Context) (*StorageStats, error)
	Cleanup(ctx context.Context, retentionDays int) error
}

// RunFilter narrows run listings
type RunFilter struct {
	Contract  string `json:"contract,omitempty"`
	SoundOnly *bool  `json:"sound_only,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Offset    int    `json:"offset,omitempty"`
}

// StorageStats provides storage statistics
type StorageStats struct {
	TotalRuns     int64      `json:"total_runs"`
	SoundRuns     int64      `json:"sound_runs"`
	MismatchRuns  int64      `json:"mismatch_runs"`
	OldestRun     *time.Time `json:"oldest_run,omitempty"`
	LatestRun     *time.Time `json:"latest_run,omitempty"`
	LastCleanup   *time.Time `json:"last_cleanup,omitempty"`
}

// StorageConfig holds storage configuration
type StorageConfig struct {
	Type             string        `json:"type"`
	ConnectionString string        `json:"connection_string"`
	MaxConnections   int           `json:"max_connections"`
	MaxIdleTime      time.Duration `json:"max_idle_time"`
	RetentionDays    int           `json:"retention_days"`
}

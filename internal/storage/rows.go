// File: internal/storage/rows.go
package storage

import (
	"database/sql"
	"time"

	"github.com/chainsound/evmirror/internal/models"
)

const selectRunColumns = `
	SELECT id, contract_address, event_signature, topic0,
	       src_endpoint, src_chain_id, src_from_block, src_to_block, src_count,
	       dst_endpoint, dst_chain_id, dst_from_block, dst_to_block, dst_count,
	       drift, allowed_drift, sound, elapsed_ms, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(row rowScanner) (*models.VerificationRun, error) {
	var (
		run                    models.VerificationRun
		srcChainID, dstChainID sql.NullInt64
		sound                  bool
		elapsedMs              int64
		createdAt              time.Time
	)

	err := row.Scan(
		&run.ID, &run.Contract, &run.Signature, &run.Topic,
		&run.Source.Endpoint, &srcChainID, &run.Source.FromBlock, &run.Source.ToBlock, &run.Source.Count,
		&run.Destination.Endpoint, &dstChainID, &run.Destination.FromBlock, &run.Destination.ToBlock, &run.Destination.Count,
		&run.Verdict.Drift, &run.Verdict.AllowedDrift, &sound, &elapsedMs, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	run.Source.Role = "source"
	run.Destination.Role = "destination"
	if srcChainID.Valid {
		id := uint64(srcChainID.Int64)
		run.Source.ChainID = &id
	}
	if dstChainID.Valid {
		id := uint64(dstChainID.Int64)
		run.Destination.ChainID = &id
	}
	run.Verdict.SrcCount = run.Source.Count
	run.Verdict.DstCount = run.Destination.Count
	run.Verdict.Sound = sound
	run.Elapsed = time.Duration(elapsedMs) * time.Millisecond
	run.CreatedAt = createdAt

	return &run, nil
}

func nullableChainID(id *uint64) interface{} {
	if id == nil {
		return nil
	}
	return int64(*id)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

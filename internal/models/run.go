// File: internal/models/run.go
package models

import (
	"time"
)

// ChainObservation is the aggregate result of counting one chain's logs
// over a block range. ChainID is best-effort metadata and may be nil.
type ChainObservation struct {
	Role      string  `json:"role"`
	Endpoint  string  `json:"rpc"`
	ChainID   *uint64 `json:"chain_id,omitempty"`
	FromBlock uint64  `json:"from_block"`
	ToBlock   uint64  `json:"to_block"`
	Count     uint64  `json:"count"`
}

// Verdict is the outcome of comparing two chain observations.
type Verdict struct {
	SrcCount     uint64 `json:"src_count"`
	DstCount     uint64 `json:"dst_count"`
	Drift        uint64 `json:"drift"`
	AllowedDrift uint64 `json:"allowed_drift"`
	Sound        bool   `json:"sound"`
}

// VerificationRun records one complete mirror verification.
type VerificationRun struct {
	ID          string           `json:"id"`
	Contract    string           `json:"contract"`
	Signature   string           `json:"event_signature"`
	Topic       string           `json:"topic0"`
	Source      ChainObservation `json:"source"`
	Destination ChainObservation `json:"destination"`
	Verdict     Verdict          `json:"verdict"`
	Elapsed     time.Duration    `json:"elapsed"`
	CreatedAt   time.Time        `json:"created_at"`
}

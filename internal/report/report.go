// File: internal/report/report.go
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/internal/verify"
	"github.com/chainsound/evmirror/pkg/utils"
)

// Exit codes. A mismatch and an infrastructure failure both exit 2; a
// configuration problem exits 1 so callers can tell "the tool could not
// run" from "the tool ran and found something".
const timeRound = 10 * time.Millisecond

const (
	ExitSound    = 0
	ExitConfig   = 1
	ExitMismatch = 2
)

// VerdictExitCode maps a completed run to the process exit code
func VerdictExitCode(run *models.VerificationRun) int {
	if run.Verdict.Sound {
		return ExitSound
	}
	return ExitMismatch
}

// ErrorExitCode maps a failed run to the process exit code
func ErrorExitCode(err error) int {
	var fetchErr *verify.FetchError
	if errors.As(err, &fetchErr) {
		return ExitMismatch
	}
	var appErr *utils.AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case utils.ErrCodeConfiguration, utils.ErrCodeValidation:
			return ExitConfig
		case utils.ErrCodeConnection, utils.ErrCodeBlockchain:
			return ExitMismatch
		}
	}
	return ExitConfig
}

// WriteJSON renders the run as an indented JSON summary
func WriteJSON(w io.Writer, run *models.VerificationRun) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}

// WriteText renders the run as a human-readable summary
func WriteText(w io.Writer, run *models.VerificationRun) {
	fmt.Fprintf(w, "Contract:          %s\n", run.Contract)
	fmt.Fprintf(w, "Event:             %s\n", run.Signature)
	fmt.Fprintf(w, "Topic0:            %s\n", run.Topic)
	writeObservation(w, &run.Source)
	writeObservation(w, &run.Destination)
	fmt.Fprintf(w, "Drift:             %d (allowed <= %d)\n", run.Verdict.Drift, run.Verdict.AllowedDrift)
	fmt.Fprintf(w, "Elapsed:           %s\n", run.Elapsed.Round(timeRound))
	fmt.Fprintf(w, "Result:            %s\n", Classify(&run.Verdict))
}

func writeObservation(w io.Writer, obs *models.ChainObservation) {
	chainID := "unknown"
	if obs.ChainID != nil {
		chainID = fmt.Sprintf("%d", *obs.ChainID)
	}
	fmt.Fprintf(w, "%-19s%s (chain %s) blocks [%d, %d] -> %d events\n",
		titleRole(obs.Role)+":", obs.Endpoint, chainID, obs.FromBlock, obs.ToBlock, obs.Count)
}

// Classify describes the verdict, distinguishing a lagging mirror
// (destination missing events) from an overshooting one.
func Classify(v *models.Verdict) string {
	switch {
	case v.Sound && v.Drift == 0:
		return "MIRROR SOUND - perfect event parity"
	case v.Sound:
		return "MIRROR SOUND - within drift tolerance"
	case v.SrcCount > v.DstCount:
		return "MIRROR MISMATCH - destination chain missing events"
	default:
		return "MIRROR MISMATCH - extra events on destination chain"
	}
}

func titleRole(role string) string {
	switch role {
	case "source":
		return "Source"
	case "destination":
		return "Destination"
	}
	return role
}

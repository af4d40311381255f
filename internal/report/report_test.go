package report

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/internal/verify"
	"github.com/chainsound/evmirror/pkg/utils"
)

func sampleRun(sound bool) *models.VerificationRun {
	srcID := uint64(1)
	return &models.VerificationRun{
		ID:        "abc123",
		Contract:  "0x1234567890123456789012345678901234567890",
		Signature: "Transfer(address,address,uint256)",
		Topic:     "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef",
		Source: models.ChainObservation{
			Role: "source", Endpoint: "http://src", ChainID: &srcID,
			FromBlock: 1, ToBlock: 1000, Count: 100,
		},
		Destination: models.ChainObservation{
			Role: "destination", Endpoint: "http://dst",
			FromBlock: 1, ToBlock: 2000, Count: 97,
		},
		Verdict: models.Verdict{
			SrcCount: 100, DstCount: 97, Drift: 3, AllowedDrift: 5, Sound: sound,
		},
		Elapsed:   1500 * time.Millisecond,
		CreatedAt: time.Now().UTC(),
	}
}

func TestVerdictExitCode(t *testing.T) {
	assert.Equal(t, ExitSound, VerdictExitCode(sampleRun(true)))
	assert.Equal(t, ExitMismatch, VerdictExitCode(sampleRun(false)))
}

func TestErrorExitCode(t *testing.T) {
	fetchErr := &verify.FetchError{Role: "destination", Endpoint: "http://dst"}
	assert.Equal(t, ExitMismatch, ErrorExitCode(fetchErr))

	configErr := utils.NewAppError(utils.ErrCodeConfiguration, "Missing source RPC endpoint")
	assert.Equal(t, ExitConfig, ErrorExitCode(configErr))

	validationErr := utils.NewAppError(utils.ErrCodeValidation, "Invalid contract address")
	assert.Equal(t, ExitConfig, ErrorExitCode(validationErr))

	connErr := utils.NewAppError(utils.ErrCodeConnection, "Failed to dial source RPC endpoint")
	assert.Equal(t, ExitMismatch, ErrorExitCode(connErr))
}

func TestWriteJSONRoundTrips(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, sampleRun(true)))

	var decoded models.VerificationRun
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, uint64(100), decoded.Verdict.SrcCount)
	assert.Equal(t, uint64(3), decoded.Verdict.Drift)
	assert.True(t, decoded.Verdict.Sound)
	require.NotNil(t, decoded.Source.ChainID)
	assert.Equal(t, uint64(1), *decoded.Source.ChainID)
	assert.Nil(t, decoded.Destination.ChainID)
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	WriteText(&buf, sampleRun(true))
	out := buf.String()

	assert.Contains(t, out, "Transfer(address,address,uint256)")
	assert.Contains(t, out, "0xddf252ad")
	assert.Contains(t, out, "http://src")
	assert.Contains(t, out, "http://dst")
	assert.Contains(t, out, "Drift:             3 (allowed <= 5)")
	assert.Contains(t, out, "MIRROR SOUND")
}

func TestClassify(t *testing.T) {
	assert.True(t, strings.Contains(
		Classify(&models.Verdict{SrcCount: 5, DstCount: 5, Sound: true}), "perfect"))
	assert.True(t, strings.Contains(
		Classify(&models.Verdict{SrcCount: 5, DstCount: 4, Drift: 1, Sound: true}), "tolerance"))
	assert.True(t, strings.Contains(
		Classify(&models.Verdict{SrcCount: 9, DstCount: 4, Drift: 5}), "missing"))
	assert.True(t, strings.Contains(
		Classify(&models.Verdict{SrcCount: 4, DstCount: 9, Drift: 5}), "extra"))
}

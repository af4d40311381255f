package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chainsound/evmirror/internal/connection"
	"github.com/chainsound/evmirror/internal/verify"
)

const (
	testContract  = "0x1234567890123456789012345678901234567890"
	testSignature = "Transfer(address,address,uint256)"
)

type rpcRequest struct {
	JSONRPC string            `json:"jsonrpc"`
	ID      json.RawMessage   `json:"id"`
	Method  string            `json:"method"`
	Params  []json.RawMessage `json:"params"`
}

type filterArgs struct {
	FromBlock string `json:"fromBlock"`
	ToBlock   string `json:"toBlock"`
}

// stubChain serves a minimal JSON-RPC surface: head lookup, chain ID and
// log filtering over a fixed list of event blocks.
type stubChain struct {
	head        uint64
	chainID     uint64
	eventBlocks []uint64
}

func (s *stubChain) handler() http.HandlerFunc {
	topic := verify.TopicOf(testSignature).Hex()

	return func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var result interface{}
		switch req.Method {
		case "eth_blockNumber":
			result = fmt.Sprintf("0x%x", s.head)
		case "eth_chainId":
			result = fmt.Sprintf("0x%x", s.chainID)
		case "eth_getLogs":
			var args filterArgs
			if err := json.Unmarshal(req.Params[0], &args); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			from, _ := strconv.ParseUint(strings.TrimPrefix(args.FromBlock, "0x"), 16, 64)
			to, _ := strconv.ParseUint(strings.TrimPrefix(args.ToBlock, "0x"), 16, 64)

			logs := []map[string]interface{}{}
			for i, block := range s.eventBlocks {
				if block < from || block > to {
					continue
				}
				logs = append(logs, map[string]interface{}{
					"address":          testContract,
					"topics":           []string{topic},
					"data":             "0x",
					"blockNumber":      fmt.Sprintf("0x%x", block),
					"blockHash":        fmt.Sprintf("0x%064x", block),
					"transactionHash":  fmt.Sprintf("0x%064x", i+1),
					"transactionIndex": "0x0",
					"logIndex":         fmt.Sprintf("0x%x", i),
					"removed":          false,
				})
			}
			result = logs
		default:
			http.Error(w, "unsupported method "+req.Method, http.StatusBadRequest)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"jsonrpc": "2.0",
			"id":      req.ID,
			"result":  result,
		})
	}
}

func spacedBlocks(n int, spacing uint64) []uint64 {
	blocks := make([]uint64, n)
	for i := range blocks {
		blocks[i] = uint64(i)*spacing + 1
	}
	return blocks
}

func dialStub(t *testing.T, role string, stub *stubChain) *connection.ChainConnection {
	t.Helper()

	server := httptest.NewServer(stub.handler())
	t.Cleanup(server.Close)

	conn, err := connection.Dial(context.Background(), role, server.URL, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestVerifySoundMirrorOverHTTP(t *testing.T) {
	src := &stubChain{head: 1000, chainID: 1, eventBlocks: spacedBlocks(12, 10)}
	dst := &stubChain{head: 2000, chainID: 31, eventBlocks: spacedBlocks(12, 20)}

	srcConn := dialStub(t, "source", src)
	dstConn := dialStub(t, "destination", dst)

	verifier := verify.NewVerifier(
		verify.Chain{Role: "source", Endpoint: srcConn.Endpoint(), Backend: srcConn,
			Range: &verify.BlockRange{From: 1, To: 1000}},
		verify.Chain{Role: "destination", Endpoint: dstConn.Endpoint(), Backend: dstConn,
			Range: &verify.BlockRange{From: 1, To: 2000}},
		verify.Options{Step: 250, Concurrency: 2, Retry: verify.RetryPolicy{MaxAttempts: 1}},
	)

	run, err := verifier.Run(context.Background(), testSignature, common.HexToAddress(testContract))
	require.NoError(t, err)

	assert.Equal(t, uint64(12), run.Verdict.SrcCount)
	assert.Equal(t, uint64(12), run.Verdict.DstCount)
	assert.Equal(t, uint64(0), run.Verdict.Drift)
	assert.True(t, run.Verdict.Sound)

	require.NotNil(t, run.Source.ChainID)
	assert.Equal(t, uint64(1), *run.Source.ChainID)
	require.NotNil(t, run.Destination.ChainID)
	assert.Equal(t, uint64(31), *run.Destination.ChainID)

	stats := srcConn.Stats()
	assert.Greater(t, stats.TotalRequests, uint64(1), "dial probe plus log queries")
	assert.Equal(t, uint64(0), stats.FailedRequests)
}

func TestVerifyDetectsLaggingMirrorOverHTTP(t *testing.T) {
	src := &stubChain{head: 1000, chainID: 1, eventBlocks: spacedBlocks(10, 10)}
	dst := &stubChain{head: 1000, chainID: 31, eventBlocks: spacedBlocks(7, 10)}

	srcConn := dialStub(t, "source", src)
	dstConn := dialStub(t, "destination", dst)

	rng := verify.BlockRange{From: 1, To: 1000}
	verifier := verify.NewVerifier(
		verify.Chain{Role: "source", Endpoint: srcConn.Endpoint(), Backend: srcConn, Range: &rng},
		verify.Chain{Role: "destination", Endpoint: dstConn.Endpoint(), Backend: dstConn, Range: &rng},
		verify.Options{Step: 500, AllowedDrift: 1, Concurrency: 2, Retry: verify.RetryPolicy{MaxAttempts: 1}},
	)

	run, err := verifier.Run(context.Background(), testSignature, common.HexToAddress(testContract))
	require.NoError(t, err)

	assert.Equal(t, uint64(3), run.Verdict.Drift)
	assert.False(t, run.Verdict.Sound)
}

func TestVerifyResolvesTrailingWindowOverHTTP(t *testing.T) {
	src := &stubChain{head: 50000, chainID: 1, eventBlocks: []uint64{49999, 50000}}
	dst := &stubChain{head: 8000, chainID: 31, eventBlocks: []uint64{7999, 8000}}

	srcConn := dialStub(t, "source", src)
	dstConn := dialStub(t, "destination", dst)

	verifier := verify.NewVerifier(
		verify.Chain{Role: "source", Endpoint: srcConn.Endpoint(), Backend: srcConn},
		verify.Chain{Role: "destination", Endpoint: dstConn.Endpoint(), Backend: dstConn},
		verify.Options{Step: 5000, Concurrency: 2, Retry: verify.RetryPolicy{MaxAttempts: 1},
			TrailingWindow: 10000},
	)

	run, err := verifier.Run(context.Background(), testSignature, common.HexToAddress(testContract))
	require.NoError(t, err)

	assert.Equal(t, uint64(40000), run.Source.FromBlock)
	assert.Equal(t, uint64(50000), run.Source.ToBlock)
	assert.Equal(t, uint64(0), run.Destination.FromBlock)
	assert.Equal(t, uint64(8000), run.Destination.ToBlock)
	assert.Equal(t, uint64(2), run.Verdict.SrcCount)
	assert.Equal(t, uint64(2), run.Verdict.DstCount)
	assert.True(t, run.Verdict.Sound)
}

func TestDialFailsForUnreachableEndpoint(t *testing.T) {
	_, err := connection.Dial(context.Background(), "source", "http://127.0.0.1:1", time.Second)
	require.Error(t, err)
}

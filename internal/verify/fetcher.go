// File: internal/verify/fetcher.go
package verify

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chainsound/evmirror/internal/metrics"
	"github.com/chainsound/evmirror/pkg/utils"
)

// LogSource is the narrow capability the fetcher needs from a chain
// endpoint. *ethclient.Client satisfies it; tests substitute an in-memory
// fake.
type LogSource interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
}

// LogSourceFunc adapts a function to the LogSource interface
type LogSourceFunc func(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)

func (f LogSourceFunc) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return f(ctx, query)
}

// RetryPolicy bounds retries of transient chunk failures
type RetryPolicy struct {
	MaxAttempts int           `json:"max_attempts"`
	BaseDelay   time.Duration `json:"base_delay"`
	MaxDelay    time.Duration `json:"max_delay"`
}

// DefaultRetryPolicy matches the RPC defaults used elsewhere in the tool
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// Backoff returns the delay to wait before the given attempt (1-based).
// Exponential, capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if p.BaseDelay <= 0 {
		return 0
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// FetchError reports a failed log fetch, identifying the chain role, the
// endpoint, and the chunk that could not be retrieved.
type FetchError struct {
	Role     string
	Endpoint string
	Chunk    BlockRange
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to fetch %s logs from %s for blocks %s: %v",
		e.Role, e.Endpoint, e.Chunk, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// LogFetcher counts logs matching (address, topic0) over a block range,
// splitting the range into chunks to stay within provider limits.
type LogFetcher struct {
	source      LogSource
	role        string
	endpoint    string
	retry       RetryPolicy
	concurrency int
	logger      *logrus.Entry
	metrics     *metrics.Manager
}

// NewLogFetcher creates a fetcher for one chain endpoint
func NewLogFetcher(source LogSource, role, endpoint string, retry RetryPolicy, concurrency int) *LogFetcher {
	if retry.MaxAttempts <= 0 {
		retry.MaxAttempts = 1
	}
	if concurrency <= 0 {
		concurrency = 1
	}
	return &LogFetcher{
		source:      source,
		role:        role,
		endpoint:    endpoint,
		retry:       retry,
		concurrency: concurrency,
		logger:      utils.ComponentLogger("fetcher").WithField("chain", role),
	}
}

// SetMetrics attaches a metrics manager. Optional.
func (f *LogFetcher) SetMetrics(m *metrics.Manager) {
	f.metrics = m
}

// FetchCount returns the total number of logs emitted by address with the
// given topic0 over rng. Chunks are queried with bounded concurrency;
// completion order does not affect the total. If any chunk fails after
// exhausting retries the whole fetch fails with a *FetchError and
// remaining queries are cancelled.
func (f *LogFetcher) FetchCount(ctx context.Context, address common.Address, topic common.Hash, rng BlockRange, step uint64) (uint64, error) {
	chunks := rng.Chunks(step)

	f.logger.WithFields(logrus.Fields{
		"from":   rng.From,
		"to":     rng.To,
		"step":   step,
		"chunks": len(chunks),
	}).Debug("Fetching log counts")

	var total atomic.Uint64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)

	for _, chunk := range chunks {
		chunk := chunk
		g.Go(func() error {
			count, err := f.fetchChunk(ctx, address, topic, chunk)
			if err != nil {
				f.metrics.RecordChunkFetch(f.role, "error")
				return &FetchError{
					Role:     f.role,
					Endpoint: f.endpoint,
					Chunk:    chunk,
					Err:      err,
				}
			}
			f.metrics.RecordChunkFetch(f.role, "success")
			total.Add(count)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return 0, err
	}

	f.metrics.RecordLogsCounted(f.role, total.Load())
	return total.Load(), nil
}

// fetchChunk queries a single chunk, retrying transient failures with
// backoff up to the retry budget.
func (f *LogFetcher) fetchChunk(ctx context.Context, address common.Address, topic common.Hash, chunk BlockRange) (uint64, error) {
	query := ethereum.FilterQuery{
		Addresses: []common.Address{address},
		Topics:    [][]common.Hash{{topic}},
		FromBlock: new(big.Int).SetUint64(chunk.From),
		ToBlock:   new(big.Int).SetUint64(chunk.To),
	}

	var lastErr error

	for attempt := 1; attempt <= f.retry.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		if attempt > 1 {
			delay := f.retry.Backoff(attempt - 1)
			f.metrics.RecordChunkRetry(f.role)
			f.logger.WithFields(logrus.Fields{
				"chunk":   chunk.String(),
				"attempt": attempt,
				"delay":   delay,
			}).Warn("Retrying chunk after transient error")

			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return 0, ctx.Err()
			}
		}

		logs, err := f.source.FilterLogs(ctx, query)
		if err == nil {
			return uint64(len(logs)), nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return 0, ctx.Err()
		}
		if !IsTransient(err) {
			return 0, err
		}
	}

	return 0, fmt.Errorf("retries exhausted after %d attempts: %w", f.retry.MaxAttempts, lastErr)
}

// transientMarkers are substrings of provider error messages that indicate
// a retryable condition: rate limiting, oversized queries, upstream
// congestion. Heterogeneous providers phrase these differently.
var transientMarkers = []string{
	"timeout",
	"timed out",
	"deadline exceeded",
	"too many requests",
	"429",
	"rate limit",
	"limit exceeded",
	"query returned more than",
	"response size exceeded",
	"query too large",
	"too large",
	"connection reset",
	"temporarily unavailable",
	"service unavailable",
	"503",
	"try again",
}

// IsTransient reports whether an RPC error is worth retrying. Context
// cancellation is never transient: it means the run is being torn down.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range transientMarkers {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

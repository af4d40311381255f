// File: internal/connection/manager.go
package connection

import (
	"context"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"

	"github.com/chainsound/evmirror/internal/metrics"
	"github.com/chainsound/evmirror/pkg/utils"
)

// Manager defines the chain connection interface consumed by the verifier
type Manager interface {
	FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error)
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
	Endpoint() string
	Close() error
	Stats() ConnectionStats
}

// ConnectionStats holds per-endpoint request statistics
type ConnectionStats struct {
	Endpoint        string    `json:"endpoint"`
	TotalRequests   uint64    `json:"total_requests"`
	FailedRequests  uint64    `json:"failed_requests"`
	LastConnectedAt time.Time `json:"last_connected_at"`
	LatestBlock     uint64    `json:"latest_block"`
}

// ChainConnection wraps an ethclient for one chain endpoint, applying a
// per-request timeout and recording request statistics.
type ChainConnection struct {
	role     string
	endpoint string
	timeout  time.Duration
	client   *ethclient.Client
	logger   *logrus.Entry

	mu    sync.Mutex
	stats ConnectionStats

	metricsManager *metrics.Manager
}

// Dial connects to a chain endpoint and probes it with a head lookup so
// an unreachable endpoint is reported before any log queries start.
func Dial(ctx context.Context, role, endpoint string, timeout time.Duration) (*ChainConnection, error) {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, endpoint)
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to dial "+role+" RPC endpoint", err.Error())
	}

	cc := &ChainConnection{
		role:     role,
		endpoint: endpoint,
		timeout:  timeout,
		client:   client,
		logger:   utils.ComponentLogger("connection").WithField("chain", role),
		stats:    ConnectionStats{Endpoint: endpoint},
	}

	if _, err := cc.BlockNumber(ctx); err != nil {
		client.Close()
		return nil, utils.NewAppError(utils.ErrCodeConnection,
			"Failed to reach "+role+" RPC endpoint", err.Error())
	}

	cc.mu.Lock()
	cc.stats.LastConnectedAt = time.Now()
	cc.mu.Unlock()

	cc.logger.WithField("endpoint", endpoint).Info("Connected to RPC endpoint")
	return cc, nil
}

// SetMetrics attaches a metrics manager. Optional.
func (cc *ChainConnection) SetMetrics(m *metrics.Manager) {
	cc.metricsManager = m
}

// Endpoint returns the endpoint URL this connection talks to
func (cc *ChainConnection) Endpoint() string {
	return cc.endpoint
}

// FilterLogs queries logs with the configured per-request timeout
func (cc *ChainConnection) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	start := time.Now()
	logs, err := cc.client.FilterLogs(reqCtx, query)
	cc.record("eth_getLogs", err, time.Since(start))
	if err != nil {
		return nil, err
	}
	return logs, nil
}

// BlockNumber returns the current chain head
func (cc *ChainConnection) BlockNumber(ctx context.Context) (uint64, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	start := time.Now()
	blockNumber, err := cc.client.BlockNumber(reqCtx)
	cc.record("eth_blockNumber", err, time.Since(start))
	if err != nil {
		return 0, err
	}

	cc.mu.Lock()
	cc.stats.LatestBlock = blockNumber
	cc.mu.Unlock()

	return blockNumber, nil
}

// ChainID returns the chain identifier reported by the endpoint
func (cc *ChainConnection) ChainID(ctx context.Context) (*big.Int, error) {
	reqCtx, cancel := context.WithTimeout(ctx, cc.timeout)
	defer cancel()

	start := time.Now()
	chainID, err := cc.client.ChainID(reqCtx)
	cc.record("eth_chainId", err, time.Since(start))
	return chainID, err
}

// Close closes the underlying client
func (cc *ChainConnection) Close() error {
	if cc.client != nil {
		cc.client.Close()
		cc.client = nil
	}
	cc.logger.Debug("Connection closed")
	return nil
}

// Stats returns a snapshot of the request statistics
func (cc *ChainConnection) Stats() ConnectionStats {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	return cc.stats
}

func (cc *ChainConnection) record(method string, err error, duration time.Duration) {
	cc.mu.Lock()
	cc.stats.TotalRequests++
	if err != nil {
		cc.stats.FailedRequests++
	}
	cc.mu.Unlock()

	status := "success"
	if err != nil {
		status = "error"
		cc.logger.WithField("method", method).WithError(err).Debug("RPC request failed")
	}
	cc.metricsManager.RecordRPCRequest(cc.role, method, status, duration)
}

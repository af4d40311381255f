// File: internal/verify/verifier.go
package verify

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/chainsound/evmirror/internal/metrics"
	"github.com/chainsound/evmirror/internal/models"
	"github.com/chainsound/evmirror/pkg/utils"
)

// ChainBackend extends LogSource with the two extra calls the verifier
// makes per chain: head lookup for default ranges and best-effort chain
// identification.
type ChainBackend interface {
	LogSource
	BlockNumber(ctx context.Context) (uint64, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

// Chain binds one chain role to its backend and block range. A nil Range
// means the verifier resolves a trailing window from the chain head.
type Chain struct {
	Role     string
	Endpoint string
	Backend  ChainBackend
	Range    *BlockRange
}

// Options tunes a verification run
type Options struct {
	Step           uint64
	AllowedDrift   uint64
	Concurrency    int
	Retry          RetryPolicy
	TrailingWindow uint64
}

// Verifier runs the three-phase mirror check: hash the signature once,
// count matching logs on both chains in parallel, compare the counts.
// Either fetch failing fails the whole run; no partial verdicts.
type Verifier struct {
	source      Chain
	destination Chain
	opts        Options
	logger      *logrus.Entry
	metrics     *metrics.Manager
}

// NewVerifier creates a verifier for a source/destination chain pair
func NewVerifier(source, destination Chain, opts Options) *Verifier {
	if opts.Step == 0 {
		opts.Step = 1
	}
	if opts.TrailingWindow == 0 {
		opts.TrailingWindow = 10000
	}
	return &Verifier{
		source:      source,
		destination: destination,
		opts:        opts,
		logger:      utils.ComponentLogger("verifier"),
	}
}

// SetMetrics attaches a metrics manager. Optional.
func (v *Verifier) SetMetrics(m *metrics.Manager) {
	v.metrics = m
}

// Run executes one verification and returns the completed run record.
// The two chain fetches are independent; the first failure cancels the
// other chain's in-flight queries.
func (v *Verifier) Run(ctx context.Context, signature string, contract common.Address) (*models.VerificationRun, error) {
	start := time.Now()

	topic := TopicOf(signature)
	v.logger.WithFields(logrus.Fields{
		"contract":  contract.Hex(),
		"signature": signature,
		"topic0":    topic.Hex(),
	}).Info("Starting mirror verification")

	observations := make([]models.ChainObservation, 2)

	g, gctx := errgroup.WithContext(ctx)
	for i, chain := range []Chain{v.source, v.destination} {
		i, chain := i, chain
		g.Go(func() error {
			obs, err := v.observeChain(gctx, chain, contract, topic)
			if err != nil {
				return err
			}
			observations[i] = *obs
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		v.metrics.RecordVerification("failed", 0, time.Since(start))
		return nil, err
	}

	src, dst := observations[0], observations[1]
	verdict := Compare(src.Count, dst.Count, v.opts.AllowedDrift)

	outcome := "sound"
	if !verdict.Sound {
		outcome = "mismatch"
	}
	v.metrics.RecordVerification(outcome, verdict.Drift, time.Since(start))

	v.logger.WithFields(logrus.Fields{
		"src_count": verdict.SrcCount,
		"dst_count": verdict.DstCount,
		"drift":     verdict.Drift,
		"sound":     verdict.Sound,
	}).Info("Mirror verification completed")

	id, err := utils.GenerateID()
	if err != nil {
		return nil, utils.NewAppError(utils.ErrCodeInternal, "Failed to generate run ID", err.Error())
	}

	return &models.VerificationRun{
		ID:          id,
		Contract:    contract.Hex(),
		Signature:   signature,
		Topic:       topic.Hex(),
		Source:      src,
		Destination: dst,
		Verdict:     verdict,
		Elapsed:     time.Since(start),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

// observeChain resolves the chain's block range, counts matching logs and
// attaches best-effort chain metadata.
func (v *Verifier) observeChain(ctx context.Context, chain Chain, contract common.Address, topic common.Hash) (*models.ChainObservation, error) {
	rng, err := v.resolveRange(ctx, chain)
	if err != nil {
		return nil, err
	}

	fetcher := NewLogFetcher(chain.Backend, chain.Role, chain.Endpoint, v.opts.Retry, v.opts.Concurrency)
	fetcher.SetMetrics(v.metrics)

	count, err := fetcher.FetchCount(ctx, contract, topic, *rng, v.opts.Step)
	if err != nil {
		return nil, err
	}

	obs := &models.ChainObservation{
		Role:      chain.Role,
		Endpoint:  chain.Endpoint,
		FromBlock: rng.From,
		ToBlock:   rng.To,
		Count:     count,
	}

	// Chain ID is diagnostic only; endpoints that don't support it are fine.
	if chainID, err := chain.Backend.ChainID(ctx); err == nil && chainID != nil {
		id := chainID.Uint64()
		obs.ChainID = &id
	} else if err != nil {
		v.logger.WithField("chain", chain.Role).WithError(err).Debug("Chain ID lookup failed")
	}

	return obs, nil
}

// resolveRange returns the configured range, or a trailing window ending
// at the current head when no bounds were supplied.
func (v *Verifier) resolveRange(ctx context.Context, chain Chain) (*BlockRange, error) {
	if chain.Range != nil {
		return chain.Range, nil
	}

	latest, err := chain.Backend.BlockNumber(ctx)
	if err != nil {
		return nil, &FetchError{
			Role:     chain.Role,
			Endpoint: chain.Endpoint,
			Err:      utils.NewAppError(utils.ErrCodeBlockchain, "Failed to resolve chain head", err.Error()),
		}
	}

	from := uint64(0)
	if latest > v.opts.TrailingWindow {
		from = latest - v.opts.TrailingWindow
	}

	rng := BlockRange{From: from, To: latest}
	v.logger.WithFields(logrus.Fields{
		"chain": chain.Role,
		"from":  rng.From,
		"to":    rng.To,
	}).Debug("Resolved trailing block window")

	return &rng, nil
}

package client

import (
	"context"
	"fmt"
	"time"

	"github.com/drand/drand/v2/common/log"
	clock "github.com/jonboulle/clockwork"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/drand"
	"github.com/drand/go-beacon/internal/metrics"
)

// Chain is a randomness chain together with the trusted metadata its rounds
// are verified against. A Chain is read-only and safe for concurrent use.
type Chain struct {
	Hash string
	Info chain.Info

	fetcher  Fetcher
	verifier chain.Verifier
	clk      clock.Clock
	l        log.Logger
}

// NewChain builds a Chain from metadata the caller already trusts, such as
// pinned chain info. It fails with drand.ErrInvalidChainHash if info does not
// describe the chain identified by hash, and fails if info does not validate.
func NewChain(hash string, info *chain.Info, options ...Option) (*Chain, error) {
	if info != nil {
		if err := info.Validate(); err != nil {
			return nil, fmt.Errorf("chain %s: %w", hash, err)
		}
	}
	cfg, err := newConfig(options...)
	if err != nil {
		return nil, err
	}
	return newChain(cfg, hash, info)
}

func newChain(cfg *clientConfig, hash string, info *chain.Info) (*Chain, error) {
	if info == nil {
		return nil, fmt.Errorf("chain %s: no chain info", hash)
	}
	if err := info.CheckHash(hash); err != nil {
		return nil, err
	}
	return &Chain{
		Hash:     hash,
		Info:     *info,
		fetcher:  cfg.fetcher,
		verifier: cfg.verifier,
		clk:      cfg.clock,
		l:        cfg.log.With("chain", hash),
	}, nil
}

// Latest fetches and verifies the latest round.
func (c *Chain) Latest(ctx context.Context) (*chain.VerifiedRandomness, error) {
	return c.Round(ctx, 0)
}

// Round fetches round from the network and verifies it against the chain
// public key; round 0 means the latest round.
//
// A nil result with a nil error means the server answered with a round that
// does not verify: it must not be trusted.
//
//nolint:nilnil // a nil result without error is the rejected outcome
func (c *Chain) Round(ctx context.Context, round uint64) (*chain.VerifiedRandomness, error) {
	raw, err := c.fetcher.Public(ctx, c.Hash, round)
	if err != nil {
		return nil, err
	}

	if round != 0 && raw.Round != round {
		metrics.Verifications.WithLabelValues(c.Hash, metrics.OutcomeError).Inc()
		return nil, &drand.InvalidResponseError{
			Raw: fmt.Sprintf("%+v", *raw),
			Err: fmt.Errorf("round mismatch (malicious relay): %d != %d", raw.Round, round),
		}
	}

	vr, err := raw.Verify(&c.Info, c.verifier)
	switch {
	case err != nil:
		metrics.Verifications.WithLabelValues(c.Hash, metrics.OutcomeError).Inc()
		c.l.Warnw("", "chain", "cannot verify round", "round", raw.Round, "err", err)
		return nil, err
	case vr == nil:
		metrics.Verifications.WithLabelValues(c.Hash, metrics.OutcomeRejected).Inc()
		c.l.Warnw("", "chain", "round failed verification", "round", raw.Round, "signature", raw.Signature)
		return nil, nil
	}

	metrics.Verifications.WithLabelValues(c.Hash, metrics.OutcomeVerified).Inc()
	metrics.ObserveVerifiedRound(c.Hash, vr.GetRound())
	c.l.Debugw("", "chain", "verified round", "round", vr.GetRound())
	return vr, nil
}

// RoundAt returns the round that is current at t.
func (c *Chain) RoundAt(t time.Time) uint64 {
	return c.Info.RoundAt(t)
}

// CurrentRound returns the round expected to be the latest one now.
func (c *Chain) CurrentRound() uint64 {
	return c.Info.RoundAt(c.clk.Now())
}

// NextRoundTime returns when the round after the current one is emitted.
func (c *Chain) NextRoundTime() time.Time {
	return c.Info.TimeOfRound(c.CurrentRound() + 1)
}

// Close releases the transport of the chain. Chains of a Registry share it.
func (c *Chain) Close() error {
	return closeFetcher(c.fetcher)
}

func (c *Chain) String() string {
	return fmt.Sprintf("Chain(%s, period=%ds)", c.Hash, c.Info.Period)
}

package client

import (
	"context"
	"fmt"
	"strings"

	"github.com/drand/go-beacon/drand"
)

// LeagueOfEntropyHash is the hash of the default League of Entropy chain.
// See https://drand.love/developer/http-api/#public-endpoints
const LeagueOfEntropyHash = "8990e7a9aaed2ffed73dbd7092123d6f289930540d7651336225dc172e51b2ce"

// Registry is a set of chains with their metadata attached.
type Registry struct {
	Chains []*Chain

	fetcher Fetcher
}

// Close releases the transport shared by the chains of the registry.
func (r *Registry) Close() error {
	return closeFetcher(r.fetcher)
}

// AvailableChains lists the chains served by the beacon network and fetches
// the info of each of them, one after the other. Chains keep the order of the
// listing.
func AvailableChains(ctx context.Context, options ...Option) (*Registry, error) {
	cfg, err := newConfig(options...)
	if err != nil {
		return nil, err
	}

	hashes, err := cfg.fetcher.Chains(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chains: %w", err)
	}
	cfg.log.Debugw("", "registry", "discovered chains", "count", len(hashes))

	chains := make([]*Chain, 0, len(hashes))
	for _, hash := range hashes {
		c, err := retrieveChain(ctx, cfg, hash)
		if err != nil {
			return nil, err
		}
		chains = append(chains, c)
	}
	return &Registry{Chains: chains, fetcher: cfg.fetcher}, nil
}

// WellKnownChain returns a registry holding only the League of Entropy
// default chain.
func WellKnownChain(ctx context.Context, options ...Option) (*Registry, error) {
	cfg, err := newConfig(options...)
	if err != nil {
		return nil, err
	}

	c, err := retrieveChain(ctx, cfg, LeagueOfEntropyHash)
	if err != nil {
		return nil, err
	}
	return &Registry{Chains: []*Chain{c}, fetcher: cfg.fetcher}, nil
}

// ForChain returns a registry holding the single chain identified by hash,
// with its info fetched from the network.
func ForChain(ctx context.Context, hash string, options ...Option) (*Registry, error) {
	cfg, err := newConfig(options...)
	if err != nil {
		return nil, err
	}

	c, err := retrieveChain(ctx, cfg, hash)
	if err != nil {
		return nil, err
	}
	return &Registry{Chains: []*Chain{c}, fetcher: cfg.fetcher}, nil
}

func retrieveChain(ctx context.Context, cfg *clientConfig, hash string) (*Chain, error) {
	info, err := cfg.fetcher.Info(ctx, hash)
	if err != nil {
		return nil, fmt.Errorf("retrieving info of chain %s: %w", hash, err)
	}
	if err := info.Validate(); err != nil {
		return nil, fmt.Errorf("info of chain %s: %w", hash, &drand.InvalidResponseError{Raw: fmt.Sprintf("%+v", *info), Err: err})
	}
	return newChain(cfg, hash, info)
}

// Chain looks a chain up by hash, ignoring case.
func (r *Registry) Chain(hash string) (*Chain, bool) {
	for _, c := range r.Chains {
		if strings.EqualFold(c.Hash, hash) {
			return c, true
		}
	}
	return nil, false
}

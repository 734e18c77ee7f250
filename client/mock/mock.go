package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/client/test/result/mock"
)

// Fetcher provides a mocked beacon network backed by generated chains.
type Fetcher struct {
	sync.Mutex
	// Served are the chains of the mocked network.
	Served []*mock.Chain
	// Calls records every request, e.g. "chains", "info/<hash>" or
	// "public/<hash>/<round>".
	Calls []string
	// Delay causes results to be delivered after this period of time has
	// passed.
	Delay time.Duration
	// Err, when set, is returned by every call.
	Err error
	// Closed counts calls to Close.
	Closed int
}

// FetcherWithChains returns a fetcher serving the given chains.
func FetcherWithChains(chains ...*mock.Chain) *Fetcher {
	return &Fetcher{Served: chains}
}

func (m *Fetcher) String() string {
	return "Mock"
}

// Close records that the fetcher was released.
func (m *Fetcher) Close() error {
	m.Lock()
	defer m.Unlock()
	m.Closed++
	return nil
}

func (m *Fetcher) call(ctx context.Context, name string) error {
	m.Lock()
	m.Calls = append(m.Calls, name)
	err := m.Err
	m.Unlock()

	if m.Delay > 0 {
		t := time.NewTimer(m.Delay)
		defer t.Stop()
		select {
		case <-t.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

func (m *Fetcher) find(hash string) *mock.Chain {
	for _, c := range m.Served {
		if c.Hash() == hash {
			return c
		}
	}
	return nil
}

// Chains returns the hashes of the mocked chains.
func (m *Fetcher) Chains(ctx context.Context) ([]string, error) {
	if err := m.call(ctx, "chains"); err != nil {
		return nil, err
	}
	hashes := make([]string, 0, len(m.Served))
	for _, c := range m.Served {
		hashes = append(hashes, c.Hash())
	}
	return hashes, nil
}

// Info returns the info of a mocked chain.
func (m *Fetcher) Info(ctx context.Context, hash string) (*chain.Info, error) {
	if err := m.call(ctx, "info/"+hash); err != nil {
		return nil, err
	}
	c := m.find(hash)
	if c == nil {
		return nil, errors.New("unknown chain (mock fetcher info)")
	}
	info := *c.Info
	return &info, nil
}

// Public returns a round of a mocked chain, the latest for round 0.
func (m *Fetcher) Public(ctx context.Context, hash string, round uint64) (*chain.RawRandomness, error) {
	if err := m.call(ctx, fmt.Sprintf("public/%s/%d", hash, round)); err != nil {
		return nil, err
	}
	c := m.find(hash)
	if c == nil {
		return nil, errors.New("unknown chain (mock fetcher public)")
	}
	r, ok := c.Round(round)
	if !ok {
		return nil, errors.New("no result available")
	}
	return &r, nil
}

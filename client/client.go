package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	nhttp "net/http"

	"github.com/drand/drand/v2/common/log"
	clock "github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/client/http"
	"github.com/drand/go-beacon/internal/metrics"
)

// DefaultEndpoint is the beacon network queried when no endpoint is given.
const DefaultEndpoint = "https://drand.cloudflare.com"

// Fetcher retrieves chain data from a beacon network without verifying it.
// Each call performs a single request.
type Fetcher interface {
	// Chains lists the hashes of the chains served, in the order served.
	Chains(ctx context.Context) ([]string, error)
	// Info fetches the metadata of a chain.
	Info(ctx context.Context, hash string) (*chain.Info, error)
	// Public fetches a round of a chain, the latest one for round 0.
	Public(ctx context.Context, hash string, round uint64) (*chain.RawRandomness, error)
}

// LoggingFetcher is a Fetcher whose log output can be configured.
type LoggingFetcher interface {
	SetLog(log.Logger)
}

func closeFetcher(f Fetcher) error {
	if c, ok := f.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func trySetLog(f any, l log.Logger) {
	if lf, ok := f.(LoggingFetcher); ok {
		lf.SetLog(l)
	}
}

type clientConfig struct {
	// endpoint is the root URL of the HTTP API, used when no fetcher is set.
	endpoint string
	// transport is the round tripper used by the default HTTP fetcher.
	transport nhttp.RoundTripper
	// instrument wraps the default HTTP transport with tracing.
	instrument bool
	// fetcher overrides the HTTP fetcher, e.g. with a gRPC one.
	fetcher Fetcher
	// verifier checks round signatures.
	verifier chain.Verifier
	// customized client log.
	log log.Logger
	// clock used for round timing.
	clock clock.Clock
	// prometheus is an interface to a Prometheus system
	prometheus prometheus.Registerer
}

func newConfig(options ...Option) (*clientConfig, error) {
	cfg := &clientConfig{
		endpoint: DefaultEndpoint,
	}
	for _, opt := range options {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.log == nil {
		cfg.log = log.DefaultLogger()
	}
	if cfg.clock == nil {
		cfg.clock = clock.NewRealClock()
	}
	if cfg.verifier == nil {
		v, err := chain.DefaultVerifier()
		if err != nil {
			return nil, err
		}
		cfg.verifier = v
	}
	if cfg.fetcher == nil {
		transport := cfg.transport
		if cfg.instrument {
			transport = http.Instrument(transport)
		}
		hc, err := http.New(cfg.log, cfg.endpoint, transport)
		if err != nil {
			return nil, err
		}
		cfg.fetcher = hc
	}
	trySetLog(cfg.fetcher, cfg.log)

	// bind prometheus metrics if a registerer was provided
	if cfg.prometheus != nil {
		if err := metrics.RegisterClientMetrics(cfg.prometheus); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	return cfg, nil
}

// Option is an option configuring a client.
type Option func(cfg *clientConfig) error

// WithEndpoint sets the root URL of the beacon HTTP API.
// Default DefaultEndpoint.
func WithEndpoint(endpoint string) Option {
	return func(cfg *clientConfig) error {
		if endpoint == "" {
			return errors.New("empty endpoint")
		}
		cfg.endpoint = endpoint
		return nil
	}
}

// WithHTTPTransport sets the round tripper used to reach the HTTP API.
func WithHTTPTransport(rt nhttp.RoundTripper) Option {
	return func(cfg *clientConfig) error {
		cfg.transport = rt
		return nil
	}
}

// WithInstrumentation traces HTTP requests with OpenTelemetry.
func WithInstrumentation() Option {
	return func(cfg *clientConfig) error {
		cfg.instrument = true
		return nil
	}
}

// WithFetcher replaces the HTTP API with another source of chain data.
// WithEndpoint and WithHTTPTransport are then ignored.
func WithFetcher(f Fetcher) Option {
	return func(cfg *clientConfig) error {
		if f == nil {
			return errors.New("nil fetcher")
		}
		cfg.fetcher = f
		return nil
	}
}

// WithVerifier overrides the signature verification capability.
func WithVerifier(v chain.Verifier) Option {
	return func(cfg *clientConfig) error {
		cfg.verifier = v
		return nil
	}
}

// WithLogger overrides the logging options for the client,
// allowing specification of additional tags, or redirection / configuration
// of logging level and output. The fetcher's logger is also set if it
// satisfies the LoggingFetcher interface.
func WithLogger(l log.Logger) Option {
	return func(cfg *clientConfig) error {
		cfg.log = l
		return nil
	}
}

// WithClock sets the clock used to compute current rounds.
func WithClock(clk clock.Clock) Option {
	return func(cfg *clientConfig) error {
		cfg.clock = clk
		return nil
	}
}

// WithPrometheus specifies a registry into which to report metrics
func WithPrometheus(r prometheus.Registerer) Option {
	return func(cfg *clientConfig) error {
		cfg.prometheus = r
		return nil
	}
}

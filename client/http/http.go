package http

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	nhttp "net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/drand/drand/v2/common/log"
	json "github.com/nikkolasg/hexjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/drand"
	"github.com/drand/go-beacon/internal/metrics"
)

const (
	transportName = "http"
	// maxBodySize bounds how much of a response is read.
	maxBodySize = 1 << 20
	// defaultTimeout bounds every request, on top of the caller context.
	defaultTimeout = 10 * time.Second
)

// Client fetches chains, chain info and rounds over drand's JSON HTTP API.
// It performs no verification and no retries.
type Client struct {
	root   *url.URL
	client nhttp.Client
	l      log.Logger
}

// New creates an HTTP client rooted at endpoint. A nil transport means
// http.DefaultTransport.
func New(l log.Logger, endpoint string, transport nhttp.RoundTripper) (*Client, error) {
	root, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parsing endpoint %q: %w", endpoint, err)
	}
	if root.Scheme != "http" && root.Scheme != "https" {
		return nil, fmt.Errorf("endpoint %q: unsupported scheme %q", endpoint, root.Scheme)
	}
	if transport == nil {
		transport = nhttp.DefaultTransport
	}
	if l == nil {
		l = log.DefaultLogger()
	}

	return &Client{
		root: root,
		client: nhttp.Client{
			Timeout:   defaultTimeout,
			Transport: transport,
		},
		l: l,
	}, nil
}

// Instrument wraps a transport so that every request is traced.
func Instrument(transport nhttp.RoundTripper) nhttp.RoundTripper {
	if transport == nil {
		transport = nhttp.DefaultTransport
	}
	return otelhttp.NewTransport(transport)
}

// String returns the name of this client.
func (h *Client) String() string {
	return fmt.Sprintf("HTTP(%q)", h.root.String())
}

// Close drops the idle connections of the client.
func (h *Client) Close() error {
	h.client.CloseIdleConnections()
	return nil
}

// SetLog configures the client log output
func (h *Client) SetLog(l log.Logger) {
	h.l = l
}

// Chains lists the hashes of the chains served by the endpoint.
func (h *Client) Chains(ctx context.Context) ([]string, error) {
	body, err := h.get(ctx, "chains", "chains")
	if err != nil {
		return nil, err
	}

	var hashes []string
	if err := json.Unmarshal(body, &hashes); err != nil {
		return nil, &drand.InvalidResponseError{Raw: string(body), Err: err}
	}
	if hashes == nil {
		return nil, &drand.InvalidResponseError{Raw: string(body), Err: errors.New("expected an array of chain hashes")}
	}
	return hashes, nil
}

// Info fetches the metadata of the chain identified by hash.
func (h *Client) Info(ctx context.Context, hash string) (*chain.Info, error) {
	body, err := h.get(ctx, "info", hash, "info")
	if err != nil {
		return nil, err
	}
	return chain.InfoFromJSON(bytes.NewReader(body))
}

type publicJSON struct {
	Round             *uint64 `json:"round"`
	Randomness        *string `json:"randomness"`
	Signature         *string `json:"signature"`
	PreviousSignature *string `json:"previous_signature"`
}

// Public fetches a round of the chain identified by hash. Round 0 is the
// latest round.
func (h *Client) Public(ctx context.Context, hash string, round uint64) (*chain.RawRandomness, error) {
	r := "latest"
	if round != 0 {
		r = strconv.FormatUint(round, 10)
	}

	body, err := h.get(ctx, "public", hash, "public", r)
	if err != nil {
		return nil, err
	}

	var p publicJSON
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, &drand.InvalidResponseError{Raw: string(body), Err: err}
	}
	if p.Round == nil || p.Randomness == nil || p.Signature == nil || p.PreviousSignature == nil {
		return nil, &drand.InvalidResponseError{
			Raw: string(body),
			Err: errors.New("expected round, randomness, signature and previous_signature"),
		}
	}

	return &chain.RawRandomness{
		Round:             *p.Round,
		Randomness:        *p.Randomness,
		Signature:         *p.Signature,
		PreviousSignature: *p.PreviousSignature,
	}, nil
}

// get issues exactly one GET request for the resource at root/parts.
func (h *Client) get(ctx context.Context, kind string, parts ...string) ([]byte, error) {
	u := h.root.JoinPath(parts...).String()
	start := time.Now()
	metrics.FetchRequests.WithLabelValues(transportName, kind).Inc()
	defer func() {
		metrics.FetchLatency.WithLabelValues(transportName, kind).Observe(time.Since(start).Seconds())
	}()

	body, err := h.do(ctx, u)
	if err != nil {
		metrics.FetchErrors.WithLabelValues(transportName, kind).Inc()
		h.l.Debugw("", "http_client", "request failed", "url", u, "err", err)
		return nil, err
	}
	h.l.Debugw("", "http_client", "fetched", "url", u, "bytes", len(body))
	return body, nil
}

func (h *Client) do(ctx context.Context, u string) ([]byte, error) {
	req, err := nhttp.NewRequestWithContext(ctx, nhttp.MethodGet, u, nhttp.NoBody)
	if err != nil {
		return nil, &drand.TransportError{URL: u, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, &drand.TransportError{URL: u, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &drand.TransportError{URL: u, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &drand.TransportError{URL: u, Err: err}
	}
	return body, nil
}

// IsServerReady waits until the beacon HTTP API at addr answers.
func IsServerReady(ctx context.Context, addr string) error {
	counter := 0
	for {
		req, err := nhttp.NewRequestWithContext(ctx, nhttp.MethodGet, "http://"+addr+"/chains", nhttp.NoBody)
		if err != nil {
			return err
		}
		resp, err := nhttp.DefaultClient.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			return nil
		}

		counter++
		if counter == 10 {
			return fmt.Errorf("timeout waiting for http server to be ready: %w", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

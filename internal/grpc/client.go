package grpc

import (
	"context"
	"crypto/tls"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	grpcProm "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	grpcInsec "google.golang.org/grpc/credentials/insecure"

	"github.com/drand/drand/v2/common/log"
	"github.com/drand/drand/v2/crypto"
	proto "github.com/drand/drand/v2/protobuf/drand"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/drand"
	"github.com/drand/go-beacon/internal/metrics"
)

const (
	transportName      = "grpc"
	grpcDefaultTimeout = 5 * time.Second
)

// Client fetches chain info and rounds from a drand node's public gRPC
// service. It performs no verification.
type Client struct {
	address string
	client  proto.PublicClient
	conn    *grpc.ClientConn
	l       log.Logger
}

// New creates a client backed by a gRPC connection to address.
func New(address string, insecure bool) (*Client, error) {
	var opts []grpc.DialOption
	if insecure {
		opts = append(opts, grpc.WithTransportCredentials(grpcInsec.NewCredentials()))
	} else {
		opts = append(opts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	}
	opts = append(opts,
		grpc.WithUnaryInterceptor(grpcProm.UnaryClientInterceptor),
		grpc.WithStreamInterceptor(grpcProm.StreamClientInterceptor),
		grpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	)
	conn, err := grpc.NewClient(address, opts...)
	if err != nil {
		return nil, err
	}

	return &Client{address, proto.NewPublicClient(conn), conn, log.DefaultLogger()}, nil
}

// String returns the name of this client.
func (g *Client) String() string {
	return fmt.Sprintf("GRPC(%q)", g.address)
}

// Chains is not part of the public gRPC service.
func (g *Client) Chains(_ context.Context) ([]string, error) {
	return nil, fmt.Errorf("listing chains over gRPC: %w", drand.ErrUnsupported)
}

// Info returns information about the chain identified by hash.
func (g *Client) Info(ctx context.Context, hash string) (*chain.Info, error) {
	md, err := metadata(hash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	metrics.FetchRequests.WithLabelValues(transportName, "info").Inc()
	p, err := g.client.ChainInfo(ctx, &proto.ChainInfoRequest{Metadata: md})
	if err != nil {
		metrics.FetchErrors.WithLabelValues(transportName, "info").Inc()
		return nil, &drand.TransportError{URL: g.address, Err: err}
	}
	if p == nil || len(p.GetPublicKey()) == 0 || len(p.GetHash()) == 0 {
		return nil, &drand.InvalidResponseError{
			Raw: fmt.Sprintf("%v", p),
			Err: errors.New("no received chain info - unexpected gRPC response"),
		}
	}

	return &chain.Info{
		PublicKey:   hex.EncodeToString(p.GetPublicKey()),
		Period:      uint64(p.GetPeriod()),
		GenesisTime: p.GetGenesisTime(),
		Hash:        hex.EncodeToString(p.GetHash()),
		GroupHash:   hex.EncodeToString(p.GetGroupHash()),
		SchemeID:    p.GetSchemeID(),
	}, nil
}

// Public returns the randomness at `round` or an error. Round 0 is the latest.
func (g *Client) Public(ctx context.Context, hash string, round uint64) (*chain.RawRandomness, error) {
	md, err := metadata(hash)
	if err != nil {
		return nil, err
	}

	ctx, cancel := withDefaultTimeout(ctx)
	defer cancel()

	metrics.FetchRequests.WithLabelValues(transportName, "public").Inc()
	curr, err := g.client.PublicRand(ctx, &proto.PublicRandRequest{Round: round, Metadata: md})
	if err != nil {
		metrics.FetchErrors.WithLabelValues(transportName, "public").Inc()
		g.l.Debugw("", "grpc_client", "public rand", "round", round, "err", err)
		return nil, &drand.TransportError{URL: g.address, Err: err}
	}
	if curr == nil {
		return nil, &drand.InvalidResponseError{Err: errors.New("no received randomness - unexpected gRPC response")}
	}

	return asRaw(curr), nil
}

// asRaw hex encodes a response so that it goes through the same decoding as
// rounds received over HTTP.
func asRaw(r *proto.PublicRandResponse) *chain.RawRandomness {
	return &chain.RawRandomness{
		Round:             r.GetRound(),
		Randomness:        hex.EncodeToString(crypto.RandomnessFromSignature(r.GetSignature())),
		Signature:         hex.EncodeToString(r.GetSignature()),
		PreviousSignature: hex.EncodeToString(r.GetPreviousSignature()),
	}
}

func metadata(hash string) (*proto.Metadata, error) {
	chainHash, err := hex.DecodeString(hash)
	if err != nil {
		return nil, &drand.MalformedHexError{Field: "hash", Err: err}
	}
	return &proto.Metadata{ChainHash: chainHash}, nil
}

func withDefaultTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, grpcDefaultTimeout)
}

// SetLog configures the client log output
func (g *Client) SetLog(l log.Logger) {
	g.l = l
}

// Close tears down the gRPC connection and all underlying connections.
func (g *Client) Close() error {
	return g.conn.Close()
}

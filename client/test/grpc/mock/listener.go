package mock

import (
	"context"
	"encoding/hex"
	"net"
	"testing"

	grpcmiddleware "github.com/grpc-ecosystem/go-grpc-middleware"
	grpcrecovery "github.com/grpc-ecosystem/go-grpc-middleware/recovery"
	grpcprometheus "github.com/grpc-ecosystem/go-grpc-prometheus"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/drand/drand/v2/protobuf/drand"

	"github.com/drand/go-beacon/client/test/result/mock"
)

// Listener is a mock drand node serving the public gRPC service.
type Listener struct {
	drand.UnimplementedPublicServer

	chains     []*mock.Chain
	grpcServer *grpc.Server
	lis        net.Listener
}

// NewGRPCListener starts a gRPC server for the given chains on a local port.
// It is stopped when the test ends.
func NewGRPCListener(t *testing.T, chains ...*mock.Chain) *Listener {
	t.Helper()

	lis, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.UnaryInterceptor(
			grpcmiddleware.ChainUnaryServer(
				grpcprometheus.UnaryServerInterceptor,
				grpcrecovery.UnaryServerInterceptor(),
			),
		),
	)
	g := &Listener{
		chains:     chains,
		grpcServer: grpcServer,
		lis:        lis,
	}
	drand.RegisterPublicServer(grpcServer, g)

	go func() {
		_ = grpcServer.Serve(lis)
	}()
	t.Cleanup(g.Stop)
	return g
}

// Addr is the host:port the server listens on.
func (g *Listener) Addr() string {
	return g.lis.Addr().String()
}

// Stop shuts the server down.
func (g *Listener) Stop() {
	g.grpcServer.Stop()
}

func (g *Listener) chain(md *drand.Metadata) (*mock.Chain, error) {
	hash := hex.EncodeToString(md.GetChainHash())
	for _, c := range g.chains {
		if c.Hash() == hash {
			return c, nil
		}
	}
	return nil, status.Errorf(codes.NotFound, "unknown chain %q", hash)
}

// ChainInfo returns the info of the requested chain.
func (g *Listener) ChainInfo(_ context.Context, req *drand.ChainInfoRequest) (*drand.ChainInfoPacket, error) {
	c, err := g.chain(req.GetMetadata())
	if err != nil {
		return nil, err
	}
	pk, err := hex.DecodeString(c.Info.PublicKey)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	hash, err := hex.DecodeString(c.Info.Hash)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &drand.ChainInfoPacket{
		PublicKey:   pk,
		Period:      uint32(c.Info.Period),
		GenesisTime: c.Info.GenesisTime,
		Hash:        hash,
		SchemeID:    c.Info.SchemeID,
	}, nil
}

// PublicRand returns the requested round, the latest one for round 0.
func (g *Listener) PublicRand(_ context.Context, req *drand.PublicRandRequest) (*drand.PublicRandResponse, error) {
	c, err := g.chain(req.GetMetadata())
	if err != nil {
		return nil, err
	}
	raw, ok := c.Round(req.GetRound())
	if !ok {
		return nil, status.Errorf(codes.NotFound, "round %d not found", req.GetRound())
	}

	sig, err := hex.DecodeString(raw.Signature)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	prev, err := hex.DecodeString(raw.PreviousSignature)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}

	return &drand.PublicRandResponse{
		Round:             raw.Round,
		Signature:         sig,
		PreviousSignature: prev,
	}, nil
}

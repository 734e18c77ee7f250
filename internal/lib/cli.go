package lib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/urfave/cli/v2"

	"github.com/drand/drand/v2/common/log"

	"github.com/drand/go-beacon/chain"
	"github.com/drand/go-beacon/client"
	"github.com/drand/go-beacon/drand"
	"github.com/drand/go-beacon/internal/grpc"
)

var (
	// URLFlag is the CLI flag for the root URL of the beacon HTTP API.
	URLFlag = &cli.StringFlag{
		Name:    "url",
		Usage:   "root URL for fetching randomness",
		Value:   client.DefaultEndpoint,
		EnvVars: []string{"DRAND_URL"},
	}
	// GRPCConnectFlag is the CLI flag for host:port to dial a gRPC randomness
	// provider.
	GRPCConnectFlag = &cli.StringFlag{
		Name:  "grpc-connect",
		Usage: "host:port to dial a gRPC randomness provider instead of using the HTTP API",
	}
	// HashFlag is the CLI flag for the hash (in hex) of the targeted chain.
	HashFlag = &cli.StringFlag{
		Name:    "chain-hash",
		Usage:   "The hash (in hex) of the chain to follow, the League of Entropy default chain if not set",
		Aliases: []string{"hash"},
		EnvVars: []string{"DRAND_CHAIN_HASH"},
	}
	// ChainInfoFlag is the CLI flag for specifying the path to trusted chain info (TOML or JSON encoded).
	ChainInfoFlag = &cli.PathFlag{
		Name: "chain-info",
		Usage: "Path to trusted chain info (TOML or JSON encoded). The info is used as root of trust" +
			" instead of being fetched from the network",
	}
	// InsecureFlag is the CLI flag to dial gRPC providers without TLS.
	InsecureFlag = &cli.BoolFlag{
		Name:  "insecure",
		Usage: "Dial the gRPC provider without TLS",
	}
	// TraceFlag enables OpenTelemetry instrumentation of HTTP requests.
	TraceFlag = &cli.BoolFlag{
		Name:  "trace",
		Usage: "Trace HTTP requests with OpenTelemetry",
	}

	// JSONFlag is the value of the CLI flag `json` enabling JSON output of the loggers
	JSONFlag = &cli.BoolFlag{
		Name:  "json",
		Usage: "Set the output as json format",
	}

	VerboseFlag = &cli.BoolFlag{
		Name:    "verbose",
		Usage:   "If set, verbosity is at the debug level",
		EnvVars: []string{"DRAND_VERBOSE"},
	}
)

// ClientFlags is a list of common flags for client creation
var ClientFlags = []cli.Flag{
	URLFlag,
	GRPCConnectFlag,
	HashFlag,
	ChainInfoFlag,
	InsecureFlag,
	TraceFlag,
	JSONFlag,
	VerboseFlag,
}

// Logger builds the logger selected by the verbose and json flags.
func Logger(c *cli.Context) log.Logger {
	level := log.WarnLevel
	if c.Bool(VerboseFlag.Name) {
		level = log.DebugLevel
	}
	return log.New(nil, level, c.Bool(JSONFlag.Name))
}

// Options translates the transport flags into client options. The returned
// closer releases the connection opened for --grpc-connect, if any; it is nil
// otherwise.
func Options(c *cli.Context, l log.Logger, withInstrumentation bool) ([]client.Option, io.Closer, error) {
	opts := []client.Option{client.WithLogger(l)}

	if addr := c.String(GRPCConnectFlag.Name); addr != "" {
		gc, err := grpc.New(addr, c.Bool(InsecureFlag.Name))
		if err != nil {
			return nil, nil, fmt.Errorf("dialing %s: %w", addr, err)
		}
		l.Infow("", "client", "using gRPC provider", "addr", addr)
		return append(opts, client.WithFetcher(gc)), gc, nil
	}

	opts = append(opts, client.WithEndpoint(c.String(URLFlag.Name)))
	if withInstrumentation || c.Bool(TraceFlag.Name) {
		opts = append(opts, client.WithInstrumentation())
	}
	return opts, nil, nil
}

func closeOnError(closer io.Closer, err error) {
	if err != nil && closer != nil {
		_ = closer.Close()
	}
}

// Create builds the chain selected by the flags, and can be invoked from a
// cli action supplied with ClientFlags. Callers must Close the chain.
func Create(c *cli.Context, withInstrumentation bool, opts ...client.Option) (ch *client.Chain, err error) {
	ctx := c.Context
	l := Logger(c)

	base, closer, err := Options(c, l, withInstrumentation)
	if err != nil {
		return nil, err
	}
	defer func() { closeOnError(closer, err) }()
	opts = append(base, opts...)

	hash := c.String(HashFlag.Name)

	if infoPath := c.Path(ChainInfoFlag.Name); infoPath != "" {
		info, err := chainInfoFromTOML(infoPath)
		if err != nil {
			l.Infow("Got a chain info file that is not a toml file. Trying it as a json file.", "path", infoPath)
			info, err = chainInfoFromJSON(infoPath)
			if err != nil {
				return nil, fmt.Errorf("failed to decode chain info (%s) : %w", infoPath, err)
			}
		}
		if err := info.Validate(); err != nil {
			return nil, fmt.Errorf("invalid chain info (%s): %w", infoPath, err)
		}
		if hash == "" {
			hash = info.Hash
		}
		if !strings.EqualFold(hash, info.Hash) {
			return nil, fmt.Errorf("%w: expected %s != info %s", drand.ErrInvalidChainHash, hash, info.Hash)
		}
		return client.NewChain(hash, info, opts...)
	}

	if hash == "" {
		hash = client.LeagueOfEntropyHash
	}
	reg, err := client.ForChain(ctx, hash, opts...)
	if err != nil {
		return nil, err
	}
	return reg.Chains[0], nil
}

// CreateRegistry lists every chain of the beacon network selected by the flags.
// Callers must Close the registry.
func CreateRegistry(c *cli.Context, withInstrumentation bool, opts ...client.Option) (reg *client.Registry, err error) {
	if c.Path(ChainInfoFlag.Name) != "" {
		return nil, errors.New("listing chains does not use trusted chain info")
	}
	l := Logger(c)
	base, closer, err := Options(c, l, withInstrumentation)
	if err != nil {
		return nil, err
	}
	defer func() { closeOnError(closer, err) }()
	return client.AvailableChains(c.Context, append(base, opts...)...)
}

// chainInfoFromTOML reads chain info from a TOML file.
func chainInfoFromTOML(filePath string) (*chain.Info, error) {
	info := &chain.Info{}
	md, err := toml.DecodeFile(filePath, info)
	if err != nil {
		return nil, err
	}
	if !md.IsDefined("public_key") || !md.IsDefined("hash") {
		return nil, errors.New("missing public_key or hash")
	}
	return info, nil
}

func chainInfoFromJSON(filePath string) (*chain.Info, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return chain.InfoFromJSON(f)
}

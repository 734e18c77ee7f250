package drand

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/urfave/cli/v2"

	"github.com/drand/drand/v2/common"

	"github.com/drand/go-beacon/internal/lib"
)

// Automatically set through -ldflags
// Example: go install -ldflags "-X main.buildDate=$(date -u +%d/%m/%Y@%H:%M:%S) -X main.gitCommit=$(git rev-parse HEAD)"
var (
	gitCommit = "none"
	buildDate = "unknown"
)

var SetVersionPrinter sync.Once

var roundFlag = &cli.Uint64Flag{
	Name: "round",
	Usage: "Request the public randomness generated at round num. If the beacon does not have the requested value," +
		" it returns an error. If not specified, the current randomness is returned.",
	EnvVars: []string{"DRAND_ROUND"},
}

var hashOnly = &cli.BoolFlag{
	Name:  "hash-only",
	Usage: "Only print the hash of the chain",
}

var appCommands = []*cli.Command{
	{
		Name: "get",
		Usage: "get allows for public information retrieval from a remote " +
			"beacon network.\n",
		Subcommands: []*cli.Command{
			{
				Name: "public",
				Usage: "Get the latest public randomness from the beacon and " +
					"verify it against the public key of its chain. Exits with " +
					"an error if the round does not verify.\n",
				Flags:  toArray(append(lib.ClientFlags, roundFlag)...),
				Action: getPublicRandomness,
			},
			{
				Name:   "chain-info",
				Usage:  "Get the binding chain information of a chain",
				Flags:  toArray(append(lib.ClientFlags, hashOnly)...),
				Action: getChainInfo,
			},
		},
	},
	{
		Name:   "chains",
		Usage:  "List the chains served by the beacon network, with their information",
		Flags:  toArray(lib.ClientFlags...),
		Action: listChains,
	},
}

// CLI runs the beacon client app
func CLI() *cli.App {
	version := common.GetAppVersion()

	app := cli.NewApp()
	app.Name = "drand-beacon"

	// See https://cli.urfave.org/v2/examples/bash-completions/#enabling for how to turn on.
	app.EnableBashCompletion = true

	SetVersionPrinter.Do(func() {
		cli.VersionPrinter = func(c *cli.Context) {
			fmt.Fprintf(c.App.Writer, "drand-beacon %s (date %v, commit %v)\n", version, buildDate, gitCommit)
		}
	})

	app.ExitErrHandler = func(context *cli.Context, err error) {
		// override to prevent default behavior of calling OS.exit(1),
		// when tests expect to be able to run multiple commands.
	}
	app.Version = version.String()
	app.Usage = "verified public randomness client"
	// =====Commands=====
	// we need to copy the underlying commands to avoid races, cli sadly doesn't support concurrent executions well
	appComm := make([]*cli.Command, len(appCommands))
	for i, p := range appCommands {
		if p == nil {
			continue
		}
		v := *p
		appComm[i] = &v
	}
	app.Commands = appComm
	return app
}

func toArray(flags ...cli.Flag) []cli.Flag {
	return flags
}

func getPublicRandomness(c *cli.Context) error {
	ch, err := lib.Create(c, false)
	if err != nil {
		return err
	}
	defer ch.Close()

	round := c.Uint64(roundFlag.Name)
	vr, err := ch.Round(c.Context, round)
	if err != nil {
		return fmt.Errorf("fetching round %d of chain %s: %w", round, ch.Hash, err)
	}
	if vr == nil {
		return fmt.Errorf("round %d of chain %s failed verification: do not trust it", round, ch.Hash)
	}

	if c.Bool(lib.JSONFlag.Name) {
		return printJSON(c.App.Writer, vr)
	}
	fmt.Fprintf(c.App.Writer, "round: %d\nrandomness: %s\n", vr.GetRound(), hex.EncodeToString(vr.GetRandomness()))
	return nil
}

func getChainInfo(c *cli.Context) error {
	ch, err := lib.Create(c, false)
	if err != nil {
		return err
	}
	defer ch.Close()

	if c.Bool(hashOnly.Name) {
		fmt.Fprintln(c.App.Writer, ch.Hash)
		return nil
	}
	return printJSON(c.App.Writer, ch.Info)
}

func listChains(c *cli.Context) error {
	reg, err := lib.CreateRegistry(c, false)
	if err != nil {
		return err
	}
	defer reg.Close()

	if c.Bool(lib.JSONFlag.Name) {
		infos := make([]interface{}, 0, len(reg.Chains))
		for _, ch := range reg.Chains {
			infos = append(infos, ch.Info)
		}
		return printJSON(c.App.Writer, infos)
	}
	for _, ch := range reg.Chains {
		fmt.Fprintf(c.App.Writer, "%s period=%ds genesis=%d current_round=%d\n",
			ch.Hash, ch.Info.Period, ch.Info.GenesisTime, ch.CurrentRound())
	}
	return nil
}

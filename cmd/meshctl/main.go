// Command meshctl is the offline control tool for a meshnoded data
// directory: it inspects persisted state and imports/exports legacy friend
// descriptor files, the way cmd/lncli provides a command-line surface over
// lnd, grounded on its urfave/cli command table and go-pretty tabular
// output.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"

	"github.com/creditmesh/meshnode/persist"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[meshctl] %v\n", err)
	os.Exit(1)
}

func main() {
	app := cli.NewApp()
	app.Name = "meshctl"
	app.Version = "0.1"
	app.Usage = "inspect and administer a meshnoded data directory"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "datadir",
			Value: defaultDataDir,
			Usage: "path to meshnoded's data directory",
		},
	}
	app.Commands = []cli.Command{
		listFriendsCommand,
		addFriendCommand,
		exportFriendCommand,
	}

	if err := app.Run(os.Args); err != nil {
		fatal(err)
	}
}

func openStore(ctx *cli.Context) (*persist.BoltStore, error) {
	return persist.OpenBolt(ctx.GlobalString("datadir"))
}

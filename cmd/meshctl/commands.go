package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/urfave/cli"

	"github.com/creditmesh/meshnode/persist"
)

var listFriendsCommand = cli.Command{
	Name:  "listfriends",
	Usage: "list every friend in the last saved snapshot",
	Action: func(ctx *cli.Context) error {
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, ok, err := store.LoadSnapshot()
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no snapshot saved yet")
			return nil
		}

		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Public Key", "Name", "Disabled", "Currencies"})
		for _, f := range snap.Friends {
			currencies := make([]string, 0, len(f.Units))
			for _, u := range f.Units {
				currencies = append(currencies, string(u.Currency))
			}
			t.AppendRow(table.Row{f.RemotePK.String(), f.Name, f.Disabled, currencies})
		}
		t.Render()
		return nil
	},
}

var addFriendCommand = cli.Command{
	Name:      "addfriend",
	Usage:     "register a friend from a legacy friend descriptor file",
	ArgsUsage: "--file path",
	Flags: []cli.Flag{
		cli.StringFlag{Name: "file", Usage: "path to a friend descriptor file"},
	},
	Action: func(ctx *cli.Context) error {
		path := ctx.String("file")
		if path == "" {
			return fmt.Errorf("addfriend requires --file")
		}
		fd, err := persist.LoadFriendDescriptorFile(path)
		if err != nil {
			return err
		}

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		if _, err := store.AppendMutation(&persist.AddFriendMutation{
			RemotePK: fd.PublicKey,
			Name:     fd.Name,
		}); err != nil {
			return err
		}
		fmt.Printf("queued addfriend mutation for %s (%s)\n", fd.Name, fd.PublicKey)
		fmt.Println("restart meshnoded to pick it up")
		return nil
	},
}

var exportFriendCommand = cli.Command{
	Name:      "exportfriend",
	Usage:     "write a friend descriptor file for one friend in the last snapshot",
	ArgsUsage: "pubkey-hex out-path",
	Action: func(ctx *cli.Context) error {
		if ctx.NArg() != 2 {
			return fmt.Errorf("exportfriend requires pubkey-hex and out-path")
		}
		pkHex := ctx.Args().Get(0)
		outPath := ctx.Args().Get(1)

		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		snap, ok, err := store.LoadSnapshot()
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no snapshot saved yet")
		}

		for _, f := range snap.Friends {
			if f.RemotePK.String() != pkHex {
				continue
			}
			return persist.WriteFriendDescriptorFile(outPath, &persist.FriendDescriptor{
				PublicKey: f.RemotePK,
				Name:      f.Name,
			})
		}
		return fmt.Errorf("no friend %s in last snapshot", pkHex)
	},
}

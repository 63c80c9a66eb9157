// Command symoffload-bench exercises the symmetric crypto offload core on the software engine.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"sort"

	"github.com/urfave/cli/v2"
	"github.com/usnistgov/symoffload/core/gqlserver"
	"github.com/usnistgov/symoffload/core/logging"
	"github.com/usnistgov/symoffload/core/version"
	"github.com/usnistgov/symoffload/core/yamlflag"
	"golang.org/x/sys/unix"
)

var (
	rigCfg  rigConfig
	stopGql context.CancelFunc = func() {}
)

var app = &cli.App{
	Version: version.V.String(),
	Usage:   "Exercise the symmetric crypto offload core on the software engine.",
	Flags: []cli.Flag{
		&cli.GenericFlag{
			Name:  "config",
			Usage: "driver and engine configuration `YAML`, inline or @file",
			Value: yamlflag.New(&rigCfg),
		},
		&cli.StringFlag{
			Name:    "gqlserver",
			Usage:   "serve GraphQL at `address` while running",
			EnvVars: []string{"GQLSERVER"},
		},
	},
	Before: func(c *cli.Context) error {
		addr := c.String("gqlserver")
		if addr == "" {
			return nil
		}
		var ctx context.Context
		ctx, stopGql = context.WithCancel(c.Context)
		go func() {
			if e := gqlserver.ListenAndServe(ctx, addr); e != nil {
				log.Print(e)
			}
		}()
		return nil
	},
	After: func(c *cli.Context) error {
		stopGql()
		return nil
	},
}

func defineCommand(command *cli.Command) {
	app.Commands = append(app.Commands, command)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), unix.SIGINT, unix.SIGTERM)
	defer stop()
	defer logging.Sync()

	sort.Sort(cli.CommandsByName(app.Commands))
	if e := app.RunContext(ctx, os.Args); e != nil {
		log.Fatal(e)
	}
}

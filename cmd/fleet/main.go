package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/urfave/cli/v3"

	"github.com/jorge-barreto/fleet/internal/ux"
)

func main() {
	app := &cli.Command{
		Name:        "fleet",
		Usage:       "Load-aware host selection and task distribution over ssh",
		Description: "Run 'fleet docs' for documentation on scoring, selection, plans, and configuration.",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "Debug logging to stderr"},
			&cli.BoolFlag{Name: "json", Usage: "Print machine-readable JSON"},
			&cli.StringFlag{Name: "env-file", Value: ".env", Usage: "Load FLEET_* settings from this file if it exists"},
		},
		Commands: []*cli.Command{
			loadCmd(),
			pickCmd(),
			capacityCmd(),
			distributeCmd(),
			runPlanCmd(),
			restartCmd(),
			statusCmd(),
			execCmd(),
			pushCmd(),
			pullCmd(),
			backupCmd(),
			syncCmd(),
			peersCmd(),
			doctorCmd(),
			serveCmd(),
			initCmd(),
			docsCmd(),
		},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)
	err := app.Run(ctx, os.Args)
	stop()
	if err != nil {
		ux.Error(err)
		os.Exit(1)
	}
}

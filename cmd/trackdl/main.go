package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

func newApp(runner *Runner) *cli.Command {
	return &cli.Command{
		Name:    "trackdl",
		Usage:   "Download a track with lyrics and cover art",
		Version: "0.1.0",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to settings.json",
			},
			&cli.StringFlag{
				Name:  "metrics-addr",
				Usage: "Serve Prometheus metrics on this address (e.g. :9090)",
			},
		},
		Before:   runner.setup,
		After:    runner.teardown,
		Commands: runner.register(),
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp(NewRunner(RunnerOpts{})).Run(ctx, os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "trackdl: %v\n", err)
		os.Exit(1)
	}
}

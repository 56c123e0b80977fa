package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
)

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show recent downloads",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of entries to show",
				Value: 20,
			},
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.History,
		Commands: []*cli.Command{
			{
				Name:   "clear",
				Usage:  "Delete all history entries",
				Action: r.ClearHistory,
			},
		},
	}
}

// History prints the most recent download outcomes
func (r *Runner) History(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("download history is disabled (history.enabled=false)")
	}

	entries, err := r.history.Recent(ctx, int(cmd.Int("limit")))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
		return r.writePlainln("%s", data)
	}

	if len(entries) == 0 {
		return r.writePlainln("no downloads yet")
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-9s %s - %s [%s]",
			e.DownloadedAt.Local().Format("2006-01-02 15:04"), e.Status, e.Title, e.Artist, e.Quality)
		switch {
		case e.FilePath != "":
			line += "  " + e.FilePath
		case e.ErrorMessage != "":
			line += "  " + e.ErrorMessage
		}
		if err := r.writePlainln("%s", line); err != nil {
			return err
		}
		for _, w := range e.Warnings {
			r.writePlainln("    warning: %s", w)
		}
	}
	return nil
}

// ClearHistory removes every recorded download
func (r *Runner) ClearHistory(ctx context.Context, cmd *cli.Command) error {
	if r.history == nil {
		return fmt.Errorf("download history is disabled (history.enabled=false)")
	}
	if err := r.history.Clear(ctx); err != nil {
		return err
	}
	return r.writePlainln("history cleared")
}

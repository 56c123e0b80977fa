package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v3"
)

func configCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Show the effective configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "path",
				Usage: "Print only the settings file path",
			},
		},
		Action: r.ShowConfig,
	}
}

// ShowConfig prints the settings path and the merged configuration
func (r *Runner) ShowConfig(ctx context.Context, cmd *cli.Command) error {
	if cmd.Bool("path") {
		return r.writePlainln("%s", r.configPath)
	}

	data, err := json.MarshalIndent(r.config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := r.writePlainln("# %s", r.configPath); err != nil {
		return err
	}
	return r.writePlainln("%s", data)
}

package main

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/deemusic/trackdl/internal/config"
	"github.com/deemusic/trackdl/internal/monitoring"
	"github.com/deemusic/trackdl/internal/store"
)

// Runner holds the dependencies shared by every command
type Runner struct {
	config     *config.Config
	configPath string
	logger     *zap.Logger
	db         *sql.DB
	history    *store.HistoryStore
	input      terminal.FileReader
	output     io.Writer
}

// RunnerOpts overrides the defaults used by NewRunner
type RunnerOpts struct {
	Input  terminal.FileReader
	Output io.Writer
}

// NewRunner creates a runner; configuration is loaded later in setup
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	return &Runner{
		input:  opts.Input,
		output: opts.Output,
		logger: zap.NewNop(),
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		downloadCommand, historyCommand, configCommand,
	} {
		commands = append(commands, fn(r))
	}
	return commands
}

// setup loads configuration and opens the logger and history database
func (r *Runner) setup(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	r.configPath = cmd.String("config")
	if r.configPath == "" {
		r.configPath = config.GetConfigPath()
	}

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return ctx, fmt.Errorf("failed to load config: %w", err)
	}
	r.config = cfg

	logger, err := monitoring.NewLogger(cfg.Logging)
	if err != nil {
		return ctx, fmt.Errorf("failed to create logger: %w", err)
	}
	r.logger = logger

	if cfg.History.Enabled {
		db, err := store.InitDB(cfg.History.DBPath)
		if err != nil {
			return ctx, fmt.Errorf("failed to open history: %w", err)
		}
		r.db = db
		r.history = store.NewHistoryStore(db)
	}

	if addr := cmd.String("metrics-addr"); addr != "" {
		go func() {
			if err := monitoring.ServeMetrics(ctx, addr); err != nil {
				r.logger.Warn("Metrics server stopped", zap.Error(err))
			}
		}()
	}

	r.logger.Debug("Runner ready",
		zap.String("config", r.configPath),
		zap.Bool("history", cfg.History.Enabled))
	return ctx, nil
}

func (r *Runner) teardown(ctx context.Context, cmd *cli.Command) error {
	if r.db != nil {
		r.db.Close()
	}
	_ = r.logger.Sync()
	return nil
}

// chooser prompts on the runner's terminal. The menu is drawn on the output
// when it is a terminal file and on stderr otherwise.
func (r *Runner) chooser() *surveyChooser {
	out, ok := r.output.(terminal.FileWriter)
	if !ok {
		out = os.Stderr
	}
	return &surveyChooser{in: r.input, out: out, errOut: os.Stderr}
}

func (r *Runner) sourceTimeout() time.Duration {
	return time.Duration(r.config.Network.Timeout) * time.Second
}

func (r *Runner) writePlain(format string, args ...any) error {
	if _, err := fmt.Fprintf(r.output, format, args...); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	return r.writePlain(format+"\n", args...)
}

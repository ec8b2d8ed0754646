package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"timesplit/internal/app"
	"timesplit/internal/config"
)

var (
	verbose bool
	cfg     config.Config
	logger  *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "timesplit",
	Short: "Split Harvest time entries across projects by note prefix",
	Long: `timesplit reads a day's Harvest timers and splits the ones whose notes start
with a configured prefix, spreading their hours evenly across the projects the
prefix maps to.

  timesplit rules add SPLIT 1234 5678   # "SPLIT ..." notes go half to each project
  timesplit timers --date 2017-07-23    # preview which timers would split
  timesplit split --date 2017-07-23     # split them in Harvest

Harvest credentials come from HARVEST_SUBDOMAIN, HARVEST_USERNAME and
HARVEST_PASSWORD. Split rules are stored according to STORE_BACKEND.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger = newLogger(cfg.LogLevel, verbose)
		slog.SetDefault(logger)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(timersCmd)
	rootCmd.AddCommand(splitCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
}

// newLogger logs to stderr so command output on stdout stays clean.
func newLogger(level string, verbose bool) *slog.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	if verbose {
		lvl = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// openApp wires the application. Commands that talk to Harvest pass
// needHarvest so missing credentials fail before any work is done.
func openApp(cmd *cobra.Command, needHarvest bool) (*app.App, error) {
	if needHarvest {
		if err := cfg.ValidateHarvest(); err != nil {
			return nil, err
		}
	}
	a, err := app.New(cmd.Context(), logger, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize app: %w", err)
	}
	return a, nil
}

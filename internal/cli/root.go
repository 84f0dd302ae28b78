// Package cli defines the getout command line: serve (the default) and migrate.
package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/getout/app/internal/config"
	"github.com/getout/app/internal/logger"
)

// DefaultConfigPath is read when --config is not given. A missing file is fine.
const DefaultConfigPath = "config.yaml"

type rootOptions struct {
	configPath string
}

// NewRootCommand builds the command tree. Running it without a subcommand serves.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:           "getout [command]",
		Short:         "getout message service",
		Long:          "getout serves a health endpoint over a SQLite-backed message and user store.",
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
	root.PersistentFlags().StringVar(&opts.configPath, "config", DefaultConfigPath, "path to configuration file")

	root.AddCommand(newServeCommand(opts))
	root.AddCommand(newMigrateCommand(opts))

	return root
}

// setup loads configuration and installs the process-wide logger.
func (o *rootOptions) setup() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, err
	}

	log := logger.NewLogger(cfg.Log.Level, cfg.Log.Format)
	log.Debug("Logger initialized", "level", cfg.Log.Level, "format", cfg.Log.Format)
	return cfg, log, nil
}

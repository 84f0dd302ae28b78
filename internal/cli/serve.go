package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getout/app/internal/app"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start server",
		Long:  "Apply pending migrations, then run the HTTP server and scheduler until interrupted.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, log, err := opts.setup()
	if err != nil {
		return err
	}

	a, err := app.New(log, cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	return a.Run(cmd.Context())
}

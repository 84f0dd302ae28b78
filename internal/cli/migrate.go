package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/getout/app/internal/database"
)

const (
	directionUp   = "up"
	directionDown = "down"
)

func newMigrateCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|down]",
		Short:     "Apply database migrations",
		Long:      "Apply (up, the default) or roll back (down) every database migration.",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{directionUp, directionDown},
		RunE: func(_ *cobra.Command, args []string) error {
			direction := directionUp
			if len(args) == 1 {
				direction = args[0]
			}

			cfg, log, err := opts.setup()
			if err != nil {
				return err
			}

			db, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer database.CloseDB(db)

			dbName := database.ExtractDBNameFromPath(cfg.Database.Path)
			switch direction {
			case directionUp:
				err = database.ApplyMigrations(db.DB, dbName)
			case directionDown:
				err = database.RollbackMigrations(db.DB, dbName)
			default:
				err = fmt.Errorf("unknown migration direction %q", direction)
			}
			if err != nil {
				return fmt.Errorf("migrate %s: %w", direction, err)
			}

			version, dirty, err := database.SchemaVersion(db.DB, dbName)
			if err != nil {
				return err
			}
			log.Info("Migrations complete", "direction", direction, "version", version, "dirty", dirty)
			return nil
		},
	}
}

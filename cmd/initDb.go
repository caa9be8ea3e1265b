package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
)

var initDbCmd = &cobra.Command{
	Use:   "init-db",
	Short: "Create or migrate the review, document, scan queue and event tables",
	Long: `init-db migrates every table scholarflow owns. It is safe to run again
after an upgrade; existing rows are kept.`,
	RunE: withApp(func(cmd *cobra.Command, app *bootstrap.App, _ *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))
		logging.Info(ctx, "start init-db")

		if err := app.InitSchema(ctx); err != nil {
			logging.Error(ctx, "initialize schema failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "initialize schema")
		}

		logging.Info(ctx, "init-db finished",
			slog.String("database_driver", app.Config.Database.Driver),
			slog.String("database_dsn", app.Config.Database.DSN),
		)
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "database schema initialized (%s): %s\n", app.Config.Database.Driver, app.Config.Database.DSN); err != nil {
			return errs.Wrap(err, "write init-db output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(initDbCmd)
}

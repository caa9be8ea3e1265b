package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Worker runtime commands",
}

var workerRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the scan queue and the event relay until interrupted",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		ctx = logging.WithAttrs(ctx, slog.String("command", cmd.CommandPath()))

		relayInterval, _ := cmd.Flags().GetDuration("relay-interval")
		noRelay, _ := cmd.Flags().GetBool("no-relay")

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			return svcs.Scanning.Run(gctx)
		})
		if !noRelay {
			g.Go(func() error {
				return svcs.Relay.Run(gctx, relayInterval)
			})
		}
		if err := g.Wait(); err != nil {
			return errs.Wrap(err, "worker stopped")
		}
		logging.Info(ctx, "worker stopped")
		return nil
	}),
}

var workerScanOnceCmd = &cobra.Command{
	Use:   "scan-once",
	Short: "Process one batch of due scan jobs and exit",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		processed, err := svcs.Scanning.ProcessOnce(cmd.Context())
		if err != nil {
			return errs.Wrap(err, "process scan jobs")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "processed scan jobs: %d\n", processed); err != nil {
			return errs.Wrap(err, "write scan output")
		}
		return nil
	}),
}

var workerRelayOnceCmd = &cobra.Command{
	Use:   "relay-once",
	Short: "Deliver pending events to every publisher once",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		result, err := svcs.Relay.SyncOnce(ctx)
		if err != nil {
			return errs.Wrap(err, "relay events")
		}
		for _, p := range result.Publishers {
			status := "ok"
			if p.Err != nil {
				status = p.Err.Error()
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "relay publisher=%s cursor=%d->%d delivered=%d status=%s\n",
				p.Publisher, p.CursorBefore, p.CursorAfter, p.Delivered, status); err != nil {
				return errs.Wrap(err, "write relay output")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(workerCmd)
	workerCmd.AddCommand(workerRunCmd, workerScanOnceCmd, workerRelayOnceCmd)

	workerRunCmd.Flags().Duration("relay-interval", 5*time.Second, "Polling interval for the event relay")
	workerRunCmd.Flags().Bool("no-relay", false, "Run only the scan queue")
}

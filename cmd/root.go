package cmd

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "scholarflow",
	Short: "Scholarship application review and document scanning",
	Long: `scholarflow runs the committee review of scholarship applications and the
security scanning of the documents students upload with them.

Staff commands (application, review, reviewer, document) act on the shared
database; "worker run" drains the scan queue and relays events to the
configured publishers.`,
	Example: `  scholarflow init-db
  scholarflow application open --applicant student-42
  scholarflow review decide --application <id> --stage academic_review --principal aca-1 --verdict approved
  scholarflow worker run --relay-interval 5s`,
	SilenceUsage: true,
}

// Execute runs the command tree under ctx.
func Execute(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}

	logger := slog.New(slog.NewTextHandler(rootCmd.ErrOrStderr(), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	ctx = logging.WithLogger(ctx, logger)
	ctx = logging.WithAttrs(ctx, slog.String("app", "scholarflow"))

	rootCmd.SetContext(ctx)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logging.Error(ctx, "command execution failed", slog.Any("err", errs.Loggable(err)))
		return errs.Wrap(err, "execute root command")
	}

	return nil
}

// effectiveLogLevel prefers --log-level over the configured level.
func effectiveLogLevel(configured string) string {
	if level := strings.TrimSpace(logLevel); level != "" {
		return level
	}
	return configured
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "configs/config.yaml", "Config file path (SF_* env vars override it)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log.level: debug, info, warn or error")
}

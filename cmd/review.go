package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
	"scholarflow/internal/usecase/workflow"
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Record and inspect stage decisions",
}

var reviewDecideCmd = &cobra.Command{
	Use:   "decide",
	Short: "Record a reviewer verdict on one stage",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		applicationID, _ := cmd.Flags().GetString("application")
		stage, _ := cmd.Flags().GetString("stage")
		principal, _ := cmd.Flags().GetString("principal")
		name, _ := cmd.Flags().GetString("name")
		verdict, _ := cmd.Flags().GetString("verdict")
		rawPayload, _ := cmd.Flags().GetString("payload")

		notes, err := resolveNotes(cmd, false)
		if err != nil {
			return err
		}
		payload, err := parsePayload(rawPayload)
		if err != nil {
			return err
		}

		outcome, err := svcs.Workflow.Decide(ctx, workflow.DecideInput{
			ApplicationID: applicationID,
			Stage:         stage,
			Principal:     workflow.Principal{ID: principal, Name: name},
			Verdict:       verdict,
			Notes:         notes,
			Payload:       payload,
		})
		if err != nil {
			logging.Error(ctx, "record stage decision failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "record stage decision")
		}

		if _, err := fmt.Fprintf(
			cmd.OutOrStdout(),
			"decided %s on %s: %s (record #%d) status=%s unlocked_final=%t finalized=%t\n",
			stage,
			outcome.Application.ID,
			outcome.Record.Decision,
			outcome.Record.Sequence,
			outcome.Application.Status,
			outcome.UnlockedFinal,
			outcome.Finalized,
		); err != nil {
			return errs.Wrap(err, "write decide output")
		}
		return nil
	}),
}

var reviewListCmd = &cobra.Command{
	Use:   "list",
	Short: "List review records of an application in decision order",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		applicationID, _ := cmd.Flags().GetString("application")
		records, err := svcs.Workflow.ListReviews(ctx, applicationID)
		if err != nil {
			return errs.Wrap(err, "list reviews")
		}
		if len(records) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no reviews"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}
		for _, rec := range records {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "#%d %s %s by=%s at=%s\n",
				rec.Sequence, rec.Stage, rec.Decision, rec.ReviewerID,
				rec.DecidedAt.Format("2006-01-02T15:04:05Z07:00")); err != nil {
				return errs.Wrap(err, "write review item")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reviewCmd)
	reviewCmd.AddCommand(reviewDecideCmd, reviewListCmd)

	reviewDecideCmd.Flags().String("application", "", "Application id")
	reviewDecideCmd.Flags().String("stage", "", "Stage to decide")
	reviewDecideCmd.Flags().String("principal", "", "Authenticated reviewer id")
	reviewDecideCmd.Flags().String("name", "", "Reviewer display name")
	reviewDecideCmd.Flags().String("verdict", "", "approved or rejected")
	reviewDecideCmd.Flags().String("notes", "", "Reviewer notes")
	reviewDecideCmd.Flags().String("notes-file", "", "Read reviewer notes from file")
	reviewDecideCmd.Flags().String("payload", "", "Stage-specific payload as a JSON object")
	for _, name := range []string{"application", "stage", "principal", "verdict"} {
		_ = reviewDecideCmd.MarkFlagRequired(name)
	}

	reviewListCmd.Flags().String("application", "", "Application id")
	_ = reviewListCmd.MarkFlagRequired("application")
}

package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
)

var applicationCmd = &cobra.Command{
	Use:   "application",
	Short: "Open and hand off scholarship applications",
}

var applicationOpenCmd = &cobra.Command{
	Use:   "open",
	Short: "Open a draft application for an applicant",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		applicant, _ := cmd.Flags().GetString("applicant")
		app, err := svcs.Workflow.Open(ctx, applicant)
		if err != nil {
			logging.Error(ctx, "open application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "open application")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "opened application: %s status=%s\n", app.ID, app.Status); err != nil {
			return errs.Wrap(err, "write open output")
		}
		return nil
	}),
}

var applicationSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Mark a draft application as submitted by the student",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("id")
		app, err := svcs.Workflow.Submit(ctx, id)
		if err != nil {
			logging.Error(ctx, "submit application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "submit application")
		}
		return printApplicationStatus(cmd, app)
	}),
}

var applicationEndorseCmd = &cobra.Command{
	Use:   "endorse",
	Short: "Endorse a submitted application to the committee",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("id")
		app, err := svcs.Workflow.Endorse(ctx, id)
		if err != nil {
			logging.Error(ctx, "endorse application failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "endorse application")
		}
		return printApplicationStatus(cmd, app)
	}),
}

var applicationShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show application stages, review history and documents",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("id")
		detail, err := svcs.Workflow.GetApplication(ctx, id)
		if err != nil {
			return errs.Wrap(err, "show application")
		}

		out := cmd.OutOrStdout()
		app := detail.Application
		if _, err := fmt.Fprintf(out, "%s applicant=%s status=%s version=%d all_required=%t\n",
			app.ID, app.ApplicantID, app.Status, app.Version, app.AllRequiredStagesCompleted); err != nil {
			return errs.Wrap(err, "write application header")
		}
		for _, stage := range svcs.Workflow.Topology().Stages() {
			state := app.Stages[stage]
			if _, err := fmt.Fprintf(out, "  stage %-24s %-9s by=%s\n", stage, state.Decision, orDash(state.DecidedBy)); err != nil {
				return errs.Wrap(err, "write stage line")
			}
		}
		for _, rec := range detail.Reviews {
			if _, err := fmt.Fprintf(out, "  review #%d %s %s by=%s role=%s at=%s notes=%s\n",
				rec.Sequence, rec.Stage, rec.Decision, rec.ReviewerID, rec.ReviewerRole,
				rec.DecidedAt.Format("2006-01-02T15:04:05Z07:00"), orDash(rec.Notes)); err != nil {
				return errs.Wrap(err, "write review line")
			}
		}
		for _, doc := range detail.Documents {
			if _, err := fmt.Fprintf(out, "  document %s %s status=%s\n", doc.ID, doc.FileName, doc.Status); err != nil {
				return errs.Wrap(err, "write document line")
			}
		}
		return nil
	}),
}

func printApplicationStatus(cmd *cobra.Command, app review.Application) error {
	if _, err := fmt.Fprintf(cmd.OutOrStdout(), "application: %s status=%s version=%d\n", app.ID, app.Status, app.Version); err != nil {
		return errs.Wrap(err, "write application output")
	}
	return nil
}

func init() {
	rootCmd.AddCommand(applicationCmd)
	applicationCmd.AddCommand(applicationOpenCmd, applicationSubmitCmd, applicationEndorseCmd, applicationShowCmd)

	applicationOpenCmd.Flags().String("applicant", "", "Applicant (student) id")
	_ = applicationOpenCmd.MarkFlagRequired("applicant")

	for _, c := range []*cobra.Command{applicationSubmitCmd, applicationEndorseCmd, applicationShowCmd} {
		c.Flags().String("id", "", "Application id")
		_ = c.MarkFlagRequired("id")
	}
}

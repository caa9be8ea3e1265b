package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

var reviewerCmd = &cobra.Command{
	Use:   "reviewer",
	Short: "Manage reviewer stage assignments",
}

var reviewerAssignCmd = &cobra.Command{
	Use:   "assign",
	Short: "Allow a principal to decide a stage",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		principal, _ := cmd.Flags().GetString("principal")
		stage, _ := cmd.Flags().GetString("stage")
		role, _ := cmd.Flags().GetString("role")

		if err := svcs.Admin.Assign(cmd.Context(), ports.ReviewerAssignment{
			PrincipalID: principal,
			Stage:       stage,
			Role:        role,
		}); err != nil {
			return errs.Wrap(err, "assign reviewer")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "assigned %s to %s\n", principal, stage); err != nil {
			return errs.Wrap(err, "write assign output")
		}
		return nil
	}),
}

var reviewerDeactivateCmd = &cobra.Command{
	Use:   "deactivate",
	Short: "Revoke a principal's stage assignment",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		principal, _ := cmd.Flags().GetString("principal")
		stage, _ := cmd.Flags().GetString("stage")

		if err := svcs.Admin.Deactivate(cmd.Context(), principal, stage); err != nil {
			return errs.Wrap(err, "deactivate reviewer")
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "deactivated %s on %s\n", principal, stage); err != nil {
			return errs.Wrap(err, "write deactivate output")
		}
		return nil
	}),
}

var reviewerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List reviewer assignments",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		principal, _ := cmd.Flags().GetString("principal")

		items, err := svcs.Admin.ListAssignments(cmd.Context(), principal)
		if err != nil {
			return errs.Wrap(err, "list reviewer assignments")
		}
		for _, item := range items {
			state := "active"
			if !item.Active {
				state = "inactive"
			}
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s %s role=%s [%s]\n", item.PrincipalID, item.Stage, item.Role, state); err != nil {
				return errs.Wrap(err, "write assignment")
			}
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(reviewerCmd)
	reviewerCmd.AddCommand(reviewerAssignCmd, reviewerDeactivateCmd, reviewerListCmd)

	for _, c := range []*cobra.Command{reviewerAssignCmd, reviewerDeactivateCmd} {
		c.Flags().String("principal", "", "Principal id")
		c.Flags().String("stage", "", "Stage")
		_ = c.MarkFlagRequired("principal")
		_ = c.MarkFlagRequired("stage")
	}
	reviewerAssignCmd.Flags().String("role", "", "Expected role; must match the committee profile when set")
	reviewerListCmd.Flags().String("principal", "", "Only this principal")
}

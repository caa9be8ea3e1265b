package cmd

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"scholarflow/internal/bootstrap"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/errs"
	"scholarflow/internal/usecase/scanning"
	"scholarflow/internal/usecase/workflow"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Upload, inspect and release supporting documents",
}

var documentSubmitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Upload a file and queue its malware scan",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		applicationID, _ := cmd.Flags().GetString("application")
		student, _ := cmd.Flags().GetString("student")
		path, _ := cmd.Flags().GetString("file")
		name, _ := cmd.Flags().GetString("name")
		if name == "" {
			name = path
		}

		f, err := os.Open(path)
		if err != nil {
			return errs.Wrapf(err, "open upload %q", path)
		}
		defer f.Close()

		doc, err := svcs.Scanning.SubmitDocument(ctx, scanning.SubmitDocumentInput{
			ApplicationID: applicationID,
			StudentID:     student,
			FileName:      name,
			Content:       f,
		})
		if err != nil {
			logging.Error(ctx, "submit document failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "submit document")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "submitted document: %s status=%s sha256=%s\n", doc.ID, doc.Status, doc.SHA256); err != nil {
			return errs.Wrap(err, "write submit output")
		}
		return nil
	}),
}

var documentShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show document status, scan result and scan jobs",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		id, _ := cmd.Flags().GetString("id")
		detail, err := svcs.Scanning.GetDocument(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "show document")
		}

		out := cmd.OutOrStdout()
		doc := detail.Document
		if _, err := fmt.Fprintf(out, "%s %s application=%s status=%s size=%d\n",
			doc.ID, doc.FileName, doc.ApplicationID, doc.Status, doc.SizeBytes); err != nil {
			return errs.Wrap(err, "write document header")
		}
		if doc.StatusReason != "" {
			if _, err := fmt.Fprintf(out, "  reason: %s\n", doc.StatusReason); err != nil {
				return errs.Wrap(err, "write reason")
			}
		}
		if r := detail.ScanResult; r != nil {
			if _, err := fmt.Fprintf(out, "  scan: clean=%t threat=%s backend=%s duration=%s\n",
				r.Clean, orDash(r.ThreatName), r.Backend, r.Duration); err != nil {
				return errs.Wrap(err, "write scan result")
			}
		}
		for _, job := range detail.Jobs {
			if _, err := fmt.Fprintf(out, "  job %s %s attempts=%d last_error=%s\n",
				job.ID, job.State, job.Attempts, orDash(job.LastError)); err != nil {
				return errs.Wrap(err, "write job line")
			}
		}
		return nil
	}),
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents of an application",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		applicationID, _ := cmd.Flags().GetString("application")
		docs, err := svcs.Scanning.ListDocuments(cmd.Context(), applicationID)
		if err != nil {
			return errs.Wrap(err, "list documents")
		}
		if len(docs) == 0 {
			if _, err := fmt.Fprintln(cmd.OutOrStdout(), "no documents"); err != nil {
				return errs.Wrap(err, "write list output")
			}
			return nil
		}
		for _, doc := range docs {
			if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s [%s] %s\n", doc.ID, doc.Status, doc.FileName); err != nil {
				return errs.Wrap(err, "write document item")
			}
		}
		return nil
	}),
}

var documentFetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Copy a cleared document to a local path",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		id, _ := cmd.Flags().GetString("id")
		outPath, _ := cmd.Flags().GetString("out")

		rc, doc, err := svcs.Scanning.OpenDocument(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "open document")
		}
		defer rc.Close()

		dst, err := os.OpenFile(outPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
		if err != nil {
			return errs.Wrapf(err, "create %q", outPath)
		}
		n, err := io.Copy(dst, rc)
		if cerr := dst.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return errs.Wrap(err, "copy document")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "fetched %s (%s, %d bytes) to %s\n", doc.ID, doc.FileName, n, outPath); err != nil {
			return errs.Wrap(err, "write fetch output")
		}
		return nil
	}),
}

var documentOverrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Release a document stuck in manual review after staff inspection",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		ctx := logging.WithAttrs(cmd.Context(), slog.String("command", cmd.CommandPath()))

		id, _ := cmd.Flags().GetString("id")
		principal, _ := cmd.Flags().GetString("principal")
		notes, err := resolveNotes(cmd, true)
		if err != nil {
			return err
		}

		doc, err := svcs.Workflow.OverrideDocument(ctx, workflow.OverrideDocumentInput{
			DocumentID: id,
			Principal:  workflow.Principal{ID: principal},
			Note:       notes,
		})
		if err != nil {
			logging.Error(ctx, "override document failed", slog.Any("err", errs.Loggable(err)))
			return errs.Wrap(err, "override document")
		}

		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "document %s status=%s\n", doc.ID, doc.Status); err != nil {
			return errs.Wrap(err, "write override output")
		}
		return nil
	}),
}

var documentEnqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Queue a scan for a document unless one is already pending",
	RunE: withApp(func(cmd *cobra.Command, _ *bootstrap.App, svcs *bootstrap.Services) error {
		id, _ := cmd.Flags().GetString("id")
		created, err := svcs.Scanning.Enqueue(cmd.Context(), id)
		if err != nil {
			return errs.Wrap(err, "enqueue scan")
		}
		msg := "scan queued"
		if !created {
			msg = "scan already pending"
		}
		if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", msg, id); err != nil {
			return errs.Wrap(err, "write enqueue output")
		}
		return nil
	}),
}

func init() {
	rootCmd.AddCommand(documentCmd)
	documentCmd.AddCommand(documentSubmitCmd, documentShowCmd, documentListCmd, documentFetchCmd, documentOverrideCmd, documentEnqueueCmd)

	documentSubmitCmd.Flags().String("application", "", "Application id")
	documentSubmitCmd.Flags().String("student", "", "Uploading student id")
	documentSubmitCmd.Flags().String("file", "", "Local file to upload")
	documentSubmitCmd.Flags().String("name", "", "Declared file name (defaults to --file)")
	for _, name := range []string{"application", "student", "file"} {
		_ = documentSubmitCmd.MarkFlagRequired(name)
	}

	for _, c := range []*cobra.Command{documentShowCmd, documentFetchCmd, documentOverrideCmd, documentEnqueueCmd} {
		c.Flags().String("id", "", "Document id")
		_ = c.MarkFlagRequired("id")
	}
	documentListCmd.Flags().String("application", "", "Application id")
	_ = documentListCmd.MarkFlagRequired("application")

	documentFetchCmd.Flags().String("out", "", "Destination path; must not exist")
	_ = documentFetchCmd.MarkFlagRequired("out")

	documentOverrideCmd.Flags().String("principal", "", "Staff principal id")
	documentOverrideCmd.Flags().String("notes", "", "Inspection note")
	documentOverrideCmd.Flags().String("notes-file", "", "Read the inspection note from file")
	_ = documentOverrideCmd.MarkFlagRequired("principal")
}

package cmd

import (
	"encoding/json"
	"errors"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"scholarflow/internal/errs"
)

// resolveNotes reads --notes or --notes-file; they are mutually exclusive.
func resolveNotes(cmd *cobra.Command, required bool) (string, error) {
	inline, _ := cmd.Flags().GetString("notes")
	notesFile, _ := cmd.Flags().GetString("notes-file")

	if strings.TrimSpace(inline) != "" && strings.TrimSpace(notesFile) != "" {
		return "", errors.New("notes and notes-file are mutually exclusive")
	}

	if strings.TrimSpace(notesFile) != "" {
		raw, err := os.ReadFile(notesFile)
		if err != nil {
			return "", errs.Wrapf(err, "read notes file %q", notesFile)
		}
		inline = string(raw)
	}

	if required && strings.TrimSpace(inline) == "" {
		return "", errors.New("notes are required (set --notes or --notes-file)")
	}
	return inline, nil
}

func parsePayload(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return nil, errs.Wrap(err, "parse --payload as a JSON object")
	}
	return payload, nil
}

func orDash(v string) string {
	if strings.TrimSpace(v) == "" {
		return "-"
	}
	return v
}

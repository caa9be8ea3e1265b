package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
)

func newNotesCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "notes"}
	cmd.Flags().String("notes", "", "")
	cmd.Flags().String("notes-file", "", "")
	return cmd
}

func TestReviewDecideFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "decide"}
	cmd.Flags().AddFlagSet(reviewDecideCmd.Flags())
	if err := cmd.ParseFlags([]string{
		"--application", "app-1",
		"--stage", "financial_review",
		"--principal", "fin-1",
		"--verdict", "approved",
		"--payload", `{"award_amount": 2500}`,
	}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}

	stage, _ := cmd.Flags().GetString("stage")
	if stage != "financial_review" {
		t.Fatalf("stage = %q, want financial_review", stage)
	}
	raw, _ := cmd.Flags().GetString("payload")
	payload, err := parsePayload(raw)
	if err != nil {
		t.Fatalf("parsePayload() error = %v", err)
	}
	if payload["award_amount"] != float64(2500) {
		t.Fatalf("payload = %v", payload)
	}
}

func TestParsePayloadRejectsNonObject(t *testing.T) {
	if _, err := parsePayload(`[1,2]`); err == nil {
		t.Fatalf("parsePayload() expected error for array")
	}
	payload, err := parsePayload("  ")
	if err != nil || payload != nil {
		t.Fatalf("parsePayload(blank) = %v, %v", payload, err)
	}
}

func TestResolveNotes(t *testing.T) {
	notesFile := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(notesFile, []byte("checked by hand"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	cmd := newNotesCmd()
	if err := cmd.ParseFlags([]string{"--notes-file", notesFile}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	notes, err := resolveNotes(cmd, true)
	if err != nil || notes != "checked by hand" {
		t.Fatalf("resolveNotes() = %q, %v", notes, err)
	}

	both := newNotesCmd()
	if err := both.ParseFlags([]string{"--notes", "x", "--notes-file", notesFile}); err != nil {
		t.Fatalf("ParseFlags() error = %v", err)
	}
	if _, err := resolveNotes(both, false); err == nil {
		t.Fatalf("resolveNotes() expected mutual exclusion error")
	}

	if _, err := resolveNotes(newNotesCmd(), true); err == nil {
		t.Fatalf("resolveNotes() expected required error")
	}
}

func TestCommandTreeRegistersDomainCommands(t *testing.T) {
	want := map[string]bool{"init-db": false, "application": false, "review": false, "reviewer": false, "document": false, "worker": false}
	for _, c := range rootCmd.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

func TestEffectiveLogLevelPrefersFlag(t *testing.T) {
	t.Cleanup(func() { logLevel = "" })

	if got := effectiveLogLevel("warn"); got != "warn" {
		t.Fatalf("effectiveLogLevel() = %q, want configured warn", got)
	}
	logLevel = " debug "
	if got := effectiveLogLevel("warn"); got != "debug" {
		t.Fatalf("effectiveLogLevel() = %q, want flag debug", got)
	}
	if f := rootCmd.PersistentFlags().Lookup("log-level"); f == nil {
		t.Fatalf("--log-level not registered")
	}
}

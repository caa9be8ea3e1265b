package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"scholarflow/internal/domain/document"
)

// CLI runs a clamscan-compatible program with the file path appended to its
// arguments. Exit code 0 is clean, 1 is infected, anything else is an error.
type CLI struct {
	program string
	args    []string
}

func NewCLI(program string, args []string) (*CLI, error) {
	program = strings.TrimSpace(program)
	if program == "" {
		return nil, errors.New("scanner program is required")
	}
	return &CLI{program: program, args: append([]string(nil), args...)}, nil
}

func (c *CLI) Name() string {
	return "cli"
}

func (c *CLI) Scan(ctx context.Context, filePath string, _ string) (document.ScanResult, error) {
	args := append(append([]string(nil), c.args...), filePath)
	cmd := exec.CommandContext(ctx, c.program, args...)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	runErr := cmd.Run()
	if runErr != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return document.ScanResult{}, fmt.Errorf("%w: %s", document.ErrScanTimeout, c.program)
	}
	if runErr == nil {
		return document.ScanResult{Clean: true}, nil
	}

	var exitErr *exec.ExitError
	if !errors.As(runErr, &exitErr) {
		// The program could not be started at all.
		return document.ScanResult{}, fmt.Errorf("%w: start %s: %v", document.ErrScannerUnavailable, c.program, runErr)
	}

	if exitErr.ExitCode() == 1 {
		return document.ScanResult{Clean: false, ThreatName: parseFoundLine(stdout.String())}, nil
	}

	summary := firstLine(strings.TrimSpace(stderr.String()))
	if summary == "" {
		summary = runErr.Error()
	}
	return document.ScanResult{}, fmt.Errorf("%s exited with %d: %s", c.program, exitErr.ExitCode(), summary)
}

// parseFoundLine extracts the signature from "path: Signature FOUND".
func parseFoundLine(out string) string {
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasSuffix(line, " FOUND") {
			continue
		}
		line = strings.TrimSuffix(line, " FOUND")
		if idx := strings.LastIndex(line, ": "); idx >= 0 {
			line = line[idx+2:]
		}
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return s
}

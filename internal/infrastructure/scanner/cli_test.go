package scanner

import (
	"context"
	"errors"
	"runtime"
	"testing"

	"scholarflow/internal/domain/document"
)

const fakeClamscan = `case "$(cat "$1")" in
*EICAR*) echo "$1: Eicar-Test-Signature FOUND"; exit 1 ;;
*BROKEN*) echo "cannot read" >&2; exit 2 ;;
*) echo "$1: OK"; exit 0 ;;
esac`

func TestCLIScan(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}
	cli, err := NewCLI("sh", []string{"-c", fakeClamscan, "clamscan"})
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}
	ctx := context.Background()

	result, err := cli.Scan(ctx, writeSample(t, "hello"), "a.pdf")
	if err != nil || !result.Clean {
		t.Fatalf("Scan(clean) = %+v err=%v", result, err)
	}

	result, err = cli.Scan(ctx, writeSample(t, "EICAR"), "b.pdf")
	if err != nil {
		t.Fatalf("Scan(infected) error = %v", err)
	}
	if result.Clean || result.ThreatName != "Eicar-Test-Signature" {
		t.Fatalf("Scan(infected) = %+v", result)
	}

	if _, err := cli.Scan(ctx, writeSample(t, "BROKEN"), "c.pdf"); err == nil {
		t.Fatalf("Scan(exit 2) expected error")
	}
}

func TestCLIMissingProgramIsUnavailable(t *testing.T) {
	cli, err := NewCLI("scholarflow-no-such-scanner", nil)
	if err != nil {
		t.Fatalf("NewCLI() error = %v", err)
	}
	_, err = cli.Scan(context.Background(), writeSample(t, "x"), "x.pdf")
	if !errors.Is(err, document.ErrScannerUnavailable) {
		t.Fatalf("Scan() error = %v", err)
	}
}

func TestParseFoundLine(t *testing.T) {
	got := parseFoundLine("/tmp/a b.pdf: Win.Test.EICAR_HDB-1 FOUND\n\n----------- SCAN SUMMARY -----------\n")
	if got != "Win.Test.EICAR_HDB-1" {
		t.Fatalf("parseFoundLine() = %q", got)
	}
}

package scanner

import (
	"context"
	"errors"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

type funcBackend struct {
	name string
	scan func(ctx context.Context) (document.ScanResult, error)
}

func (f funcBackend) Name() string { return f.name }

func (f funcBackend) Scan(ctx context.Context, _ string, _ string) (document.ScanResult, error) {
	return f.scan(ctx)
}

func writeSample(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sample.pdf")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write sample: %v", err)
	}
	return path
}

func TestEngineStampsResult(t *testing.T) {
	engine := NewEngine(funcBackend{name: "fake", scan: func(context.Context) (document.ScanResult, error) {
		return document.ScanResult{Clean: false}, nil
	}}, time.Second)

	result, err := engine.Scan(context.Background(), writeSample(t, "x"), "sample.pdf")
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	if result.Backend != "fake" || result.ScannedAt.IsZero() {
		t.Fatalf("Scan() result = %+v", result)
	}
	if result.ThreatName == "" {
		t.Fatalf("Scan() infected result without threat name")
	}
}

func TestEngineTimeout(t *testing.T) {
	engine := NewEngine(funcBackend{name: "slow", scan: func(ctx context.Context) (document.ScanResult, error) {
		<-ctx.Done()
		return document.ScanResult{}, ctx.Err()
	}}, 20*time.Millisecond)

	_, err := engine.Scan(context.Background(), writeSample(t, "x"), "sample.pdf")
	if !errors.Is(err, document.ErrScanTimeout) {
		t.Fatalf("Scan() error = %v", err)
	}
}

func TestEngineClassifiesFailures(t *testing.T) {
	path := writeSample(t, "x")
	cases := []struct {
		name string
		err  error
		want error
	}{
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, want: document.ErrScannerUnavailable},
		{name: "unavailable kept", err: document.ErrScannerUnavailable, want: document.ErrScannerUnavailable},
		{name: "generic kept", err: ErrNoVerdict, want: ErrNoVerdict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			engine := NewEngine(funcBackend{name: "fake", scan: func(context.Context) (document.ScanResult, error) {
				return document.ScanResult{Clean: true}, tc.err
			}}, time.Second)
			result, err := engine.Scan(context.Background(), path, "sample.pdf")
			if !errors.Is(err, tc.want) {
				t.Fatalf("Scan() error = %v, want %v", err, tc.want)
			}
			if result.Clean {
				t.Fatalf("Scan() reported clean on error")
			}
		})
	}
}

func TestEngineMissingFileIsPermanent(t *testing.T) {
	engine := NewEngine(Disabled{}, time.Second)
	_, err := engine.Scan(context.Background(), filepath.Join(t.TempDir(), "gone.pdf"), "gone.pdf")
	if !errors.Is(err, ErrFileMissing) || !errs.IsPermanent(err) {
		t.Fatalf("Scan() error = %v", err)
	}
}

func TestEngineWithoutBackendIsUnavailable(t *testing.T) {
	_, err := NewEngine(nil, time.Second).Scan(context.Background(), writeSample(t, "x"), "x")
	if !errors.Is(err, document.ErrScannerUnavailable) {
		t.Fatalf("Scan() error = %v", err)
	}
}

package scanner

import (
	"context"
	"log/slog"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
)

// Disabled reports every file clean. It exists for local and test
// environments and logs a warning on each use.
type Disabled struct{}

func (Disabled) Name() string {
	return "disabled"
}

func (Disabled) Scan(ctx context.Context, filePath string, declaredName string) (document.ScanResult, error) {
	logging.Warn(logging.WithAttrs(ctx, slog.String("component", "infrastructure.scanner")),
		"scanner disabled, file admitted without scanning",
		slog.String("path", filePath),
		slog.String("file_name", declaredName),
	)
	return document.ScanResult{Clean: true}, nil
}

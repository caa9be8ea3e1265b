package events

import (
	"context"
	"log/slog"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/event"
)

// LogPublisher writes each event as a structured log line.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Name() string { return "log" }

func (p *LogPublisher) Publish(ctx context.Context, evt event.Event) error {
	attrs := []slog.Attr{
		slog.Uint64("event_id", evt.ID),
		slog.String("event_type", string(evt.Type)),
		slog.String("aggregate_id", evt.AggregateID),
		slog.String("actor", evt.Actor),
		slog.Any("payload", evt.Payload),
	}
	ctx = logging.WithComponent(ctx, "infrastructure.events")
	if isSecurityEvent(evt.Type) {
		logging.Warn(ctx, "event", attrs...)
		return nil
	}
	logging.Info(ctx, "event", attrs...)
	return nil
}

func isSecurityEvent(t event.Type) bool {
	switch t {
	case event.MaliciousFileDetected, event.QuarantineFailed, event.ScanRetriesExhausted, event.ScanFallbackApplied:
		return true
	default:
		return false
	}
}

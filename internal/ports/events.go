package ports

import (
	"context"

	"scholarflow/internal/domain/event"
)

// EventLog persists events in the same transaction as the state change that
// produced them.
type EventLog interface {
	Append(ctx context.Context, events ...event.Event) error
	ListAfter(ctx context.Context, afterID uint64, limit int) ([]event.Event, error)
}

// Publisher delivers events to the notification collaborator.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, evt event.Event) error
}

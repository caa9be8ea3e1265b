package repository

import (
	"context"

	"gorm.io/gorm"

	"scholarflow/internal/domain/event"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

type EventLog struct {
	db *gorm.DB
}

var _ ports.EventLog = (*EventLog)(nil)

func NewEventLog(db *gorm.DB) *EventLog {
	return &EventLog{db: db}
}

func (l *EventLog) Append(ctx context.Context, events ...event.Event) error {
	if len(events) == 0 {
		return nil
	}
	db, err := dbFromContext(ctx, l.db)
	if err != nil {
		return err
	}

	rows := make([]model.Event, 0, len(events))
	for _, evt := range events {
		payload, err := encodePayload(evt.Payload)
		if err != nil {
			return err
		}
		rows = append(rows, model.Event{
			Type:        string(evt.Type),
			AggregateID: evt.AggregateID,
			Actor:       evt.Actor,
			Payload:     payload,
			CreatedAt:   evt.CreatedAt.UTC(),
		})
	}
	if err := db.Create(&rows).Error; err != nil {
		return errs.Wrap(err, "insert events")
	}
	return nil
}

func (l *EventLog) ListAfter(ctx context.Context, afterID uint64, limit int) ([]event.Event, error) {
	db, err := dbFromContext(ctx, l.db)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	var rows []model.Event
	if err := db.
		Where("event_id > ?", afterID).
		Order("event_id asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query events")
	}

	out := make([]event.Event, 0, len(rows))
	for _, row := range rows {
		payload, err := decodePayload(row.Payload)
		if err != nil {
			return nil, err
		}
		out = append(out, event.Event{
			ID:          row.EventID,
			Type:        event.Type(row.Type),
			AggregateID: row.AggregateID,
			Actor:       row.Actor,
			Payload:     payload,
			CreatedAt:   row.CreatedAt.UTC(),
		})
	}
	return out, nil
}

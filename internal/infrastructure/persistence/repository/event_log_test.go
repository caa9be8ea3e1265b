package repository

import (
	"context"
	"errors"
	"testing"

	"scholarflow/internal/domain/event"
	"scholarflow/internal/infrastructure/persistence/uow"
)

func TestEventLogAppendAndListAfter(t *testing.T) {
	db := setupDB(t)
	log := NewEventLog(db)
	ctx := context.Background()

	if err := log.Append(ctx,
		event.NewStageDecided("app-1", "academic_review", "approved", "aca-1", testNow),
		event.NewApplicationFinalized("app-1", "approved", "board-1", testNow),
	); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := log.Append(ctx, event.NewMaliciousFileDetected("doc-1", "app-1", "Eicar", testNow)); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	items, err := log.ListAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListAfter() error = %v", err)
	}
	if len(items) != 3 {
		t.Fatalf("ListAfter() len = %d", len(items))
	}
	if items[0].Type != event.StageDecided || items[0].Payload["stage"] != "academic_review" {
		t.Fatalf("ListAfter()[0] = %+v", items[0])
	}

	rest, err := log.ListAfter(ctx, items[0].ID, 10)
	if err != nil {
		t.Fatalf("ListAfter(cursor) error = %v", err)
	}
	if len(rest) != 2 || rest[1].Type != event.MaliciousFileDetected {
		t.Fatalf("ListAfter(cursor) = %+v", rest)
	}
}

func TestEventLogRollsBackWithStateChange(t *testing.T) {
	db := setupDB(t)
	log := NewEventLog(db)
	unit := uow.NewUnitOfWork(db)
	ctx := context.Background()

	boom := errors.New("boom")
	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if err := log.Append(txCtx, event.NewStageDecided("app-1", "academic_review", "approved", "aca-1", testNow)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	items, err := log.ListAfter(ctx, 0, 10)
	if err != nil {
		t.Fatalf("ListAfter() error = %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("ListAfter() after rollback = %+v", items)
	}
}

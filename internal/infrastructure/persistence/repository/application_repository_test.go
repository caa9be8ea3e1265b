package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/infrastructure/persistence/uow"
	"scholarflow/internal/ports"
)

func TestApplicationRepositoryRoundTrip(t *testing.T) {
	db := setupDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()
	topo := review.DefaultTopology()

	app := review.NewApplication(topo, "app-1", "student-1", testNow)
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, "app-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != review.StatusDraft || got.Version != 0 {
		t.Fatalf("Get() = status %s version %d", got.Status, got.Version)
	}
	if len(got.Stages) != 4 || got.Stages[review.StageFinalApproval].Decision != review.DecisionPending {
		t.Fatalf("Get() stages = %+v", got.Stages)
	}
	if !got.CreatedAt.Equal(testNow) {
		t.Fatalf("Get() created_at = %s", got.CreatedAt)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, review.ErrApplicationNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
}

func TestApplicationRepositoryCompareAndSwap(t *testing.T) {
	db := setupDB(t)
	repo := NewApplicationRepository(db)
	ctx := context.Background()
	topo := review.DefaultTopology()

	app := review.NewApplication(topo, "app-1", "student-1", testNow)
	if err := repo.Create(ctx, app); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	submitted, err := review.Submit(app, testNow.Add(time.Minute))
	if err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	stored, err := repo.CompareAndSwap(ctx, submitted, 0)
	if err != nil {
		t.Fatalf("CompareAndSwap() error = %v", err)
	}
	if stored.Version != 1 {
		t.Fatalf("CompareAndSwap() version = %d", stored.Version)
	}

	// A writer still holding version 0 loses.
	if _, err := repo.CompareAndSwap(ctx, submitted, 0); !errors.Is(err, review.ErrStaleStageState) {
		t.Fatalf("CompareAndSwap(stale) error = %v", err)
	}

	got, err := repo.Get(ctx, "app-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != review.StatusSubmitted || got.Version != 1 {
		t.Fatalf("Get() = status %s version %d", got.Status, got.Version)
	}
}

func TestApplicationRepositoryRollsBackWithUnitOfWork(t *testing.T) {
	db := setupDB(t)
	repo := NewApplicationRepository(db)
	unit := uow.NewUnitOfWork(db)
	ctx := context.Background()
	topo := review.DefaultTopology()

	boom := errors.New("boom")
	err := unit.WithTx(ctx, func(txCtx context.Context) error {
		if ports.TxFromContext(txCtx) == nil {
			t.Fatalf("WithTx() ctx has no tx")
		}
		if err := repo.Create(txCtx, review.NewApplication(topo, "app-1", "student-1", testNow)); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("WithTx() error = %v", err)
	}

	if _, err := repo.Get(ctx, "app-1"); !errors.Is(err, review.ErrApplicationNotFound) {
		t.Fatalf("Get() after rollback error = %v", err)
	}
}

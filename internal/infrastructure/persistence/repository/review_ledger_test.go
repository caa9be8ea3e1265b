package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

func TestReviewLedgerAppendAndList(t *testing.T) {
	db := setupDB(t)
	ledger := NewReviewLedger(db)
	ctx := context.Background()

	first, err := ledger.Append(ctx, ports.ReviewRecord{
		ApplicationID: "app-1",
		Stage:         review.StageFinancialReview,
		ReviewerID:    "fin-1",
		ReviewerRole:  "financial_committee",
		Decision:      review.DecisionApproved,
		Notes:         "income verified",
		Payload:       map[string]any{"household_size": float64(4)},
		DecidedAt:     testNow.Add(2 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if first.Sequence == 0 {
		t.Fatalf("Append() sequence not assigned")
	}

	if _, err := ledger.Append(ctx, ports.ReviewRecord{
		ApplicationID: "app-1",
		Stage:         review.StageAcademicReview,
		ReviewerID:    "aca-1",
		ReviewerRole:  "academic_committee",
		Decision:      review.DecisionApproved,
		DecidedAt:     testNow.Add(time.Hour),
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if _, err := ledger.Append(ctx, ports.ReviewRecord{
		ApplicationID: "app-2",
		Stage:         review.StageAcademicReview,
		ReviewerID:    "aca-1",
		Decision:      review.DecisionRejected,
		DecidedAt:     testNow,
	}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	items, err := ledger.List(ctx, "app-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("List() len = %d", len(items))
	}
	if items[0].Stage != review.StageAcademicReview || items[1].Stage != review.StageFinancialReview {
		t.Fatalf("List() order = %s, %s", items[0].Stage, items[1].Stage)
	}
	if items[1].Payload["household_size"] != float64(4) || items[1].Notes != "income verified" {
		t.Fatalf("List() record = %+v", items[1])
	}
}

func TestReviewLedgerRowsAreImmutable(t *testing.T) {
	db := setupDB(t)
	ledger := NewReviewLedger(db)
	ctx := context.Background()

	rec, err := ledger.Append(ctx, ports.ReviewRecord{
		ApplicationID: "app-1",
		Stage:         review.StageAcademicReview,
		ReviewerID:    "aca-1",
		Decision:      review.DecisionApproved,
		DecidedAt:     testNow,
	})
	if err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	err = db.Model(&model.ReviewRecord{}).Where("sequence = ?", rec.Sequence).Update("decision", "rejected").Error
	if !errors.Is(err, model.ErrReviewRecordImmutable) {
		t.Fatalf("update error = %v", err)
	}
	err = db.Where("sequence = ?", rec.Sequence).Delete(&model.ReviewRecord{}).Error
	if !errors.Is(err, model.ErrReviewRecordImmutable) {
		t.Fatalf("delete error = %v", err)
	}

	items, err := ledger.List(ctx, "app-1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(items) != 1 || items[0].Decision != review.DecisionApproved {
		t.Fatalf("List() = %+v", items)
	}
}

func TestReviewLedgerRequiresIdentity(t *testing.T) {
	ledger := NewReviewLedger(setupDB(t))
	if _, err := ledger.Append(context.Background(), ports.ReviewRecord{ApplicationID: "app-1"}); err == nil {
		t.Fatalf("Append() expected error for missing stage and reviewer")
	}
}

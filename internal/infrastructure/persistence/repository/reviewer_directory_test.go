package repository

import (
	"context"
	"errors"
	"testing"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

func TestReviewerDirectoryAuthorize(t *testing.T) {
	db := setupDB(t)
	dir := NewReviewerDirectory(db, review.DefaultTopology())
	ctx := context.Background()

	if err := dir.Assign(ctx, ports.ReviewerAssignment{PrincipalID: "aca-1", Stage: review.StageAcademicReview}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}

	got, ok, err := dir.Authorize(ctx, "aca-1", review.StageAcademicReview)
	if err != nil {
		t.Fatalf("Authorize() error = %v", err)
	}
	if !ok || got.Role != "academic_committee" {
		t.Fatalf("Authorize() = %+v, %v", got, ok)
	}

	// Assignments do not carry over to other stages.
	if _, ok, err := dir.Authorize(ctx, "aca-1", review.StageFinancialReview); err != nil || ok {
		t.Fatalf("Authorize(other stage) ok=%v err=%v", ok, err)
	}
	if _, ok, err := dir.Authorize(ctx, "aca-1", "scholarship_interview"); err != nil || ok {
		t.Fatalf("Authorize(unknown stage) ok=%v err=%v", ok, err)
	}

	if err := dir.Deactivate(ctx, "aca-1", review.StageAcademicReview); err != nil {
		t.Fatalf("Deactivate() error = %v", err)
	}
	if _, ok, err := dir.Authorize(ctx, "aca-1", review.StageAcademicReview); err != nil || ok {
		t.Fatalf("Authorize(after deactivate) ok=%v err=%v", ok, err)
	}

	// Re-assigning reactivates.
	if err := dir.Assign(ctx, ports.ReviewerAssignment{PrincipalID: "aca-1", Stage: review.StageAcademicReview}); err != nil {
		t.Fatalf("Assign(again) error = %v", err)
	}
	if _, ok, err := dir.Authorize(ctx, "aca-1", review.StageAcademicReview); err != nil || !ok {
		t.Fatalf("Authorize(reassigned) ok=%v err=%v", ok, err)
	}
}

func TestReviewerDirectoryIgnoresStaleRole(t *testing.T) {
	db := setupDB(t)
	dir := NewReviewerDirectory(db, review.DefaultTopology())
	ctx := context.Background()

	row := model.ReviewerAssignment{
		PrincipalID: "fin-1",
		Stage:       review.StageFinancialReview,
		Role:        "bursar",
		Active:      true,
		UpdatedAt:   testNow,
	}
	if err := db.Create(&row).Error; err != nil {
		t.Fatalf("insert assignment: %v", err)
	}

	if _, ok, err := dir.Authorize(ctx, "fin-1", review.StageFinancialReview); err != nil || ok {
		t.Fatalf("Authorize() ok=%v err=%v", ok, err)
	}
}

func TestReviewerDirectoryAssignValidation(t *testing.T) {
	dir := NewReviewerDirectory(setupDB(t), review.DefaultTopology())
	ctx := context.Background()

	if err := dir.Assign(ctx, ports.ReviewerAssignment{PrincipalID: "x", Stage: "interview"}); !errors.Is(err, review.ErrUnknownStage) {
		t.Fatalf("Assign(unknown stage) error = %v", err)
	}
	if err := dir.Assign(ctx, ports.ReviewerAssignment{PrincipalID: "x", Stage: review.StageFinalApproval, Role: "registrar"}); err == nil {
		t.Fatalf("Assign(wrong role) expected error")
	}
	if err := dir.Assign(ctx, ports.ReviewerAssignment{Stage: review.StageFinalApproval}); err == nil {
		t.Fatalf("Assign(no principal) expected error")
	}
	if err := dir.Deactivate(ctx, "nobody", review.StageFinalApproval); err == nil {
		t.Fatalf("Deactivate(missing) expected error")
	}

	if err := dir.Assign(ctx, ports.ReviewerAssignment{PrincipalID: "board-1", Stage: review.StageFinalApproval}); err != nil {
		t.Fatalf("Assign() error = %v", err)
	}
	items, err := dir.ListAssignments(ctx, "")
	if err != nil {
		t.Fatalf("ListAssignments() error = %v", err)
	}
	if len(items) != 1 || items[0].Role != "scholarship_board" || !items[0].Active {
		t.Fatalf("ListAssignments() = %+v", items)
	}
}

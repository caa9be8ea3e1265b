package repository

import (
	"context"
	"testing"

	"scholarflow/internal/domain/document"
)

func TestQuarantineRepository(t *testing.T) {
	repo := NewQuarantineRepository(setupDB(t))
	ctx := context.Background()

	if _, found, err := repo.GetByOriginalPath(ctx, "/uploads/doc-1.pdf"); err != nil || found {
		t.Fatalf("GetByOriginalPath(empty) found=%v err=%v", found, err)
	}

	rec := document.QuarantineRecord{
		ID:             "q-1",
		DocumentID:     "doc-1",
		OriginalPath:   "/uploads/doc-1.pdf",
		QuarantinePath: "/quarantine/q-1",
		ThreatName:     "Eicar-Test-Signature",
		QuarantinedAt:  testNow,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, rec); err == nil {
		t.Fatalf("Create(dup) expected unique violation")
	}

	got, found, err := repo.GetByOriginalPath(ctx, "/uploads/doc-1.pdf")
	if err != nil || !found {
		t.Fatalf("GetByOriginalPath() found=%v err=%v", found, err)
	}
	if got.ThreatName != "Eicar-Test-Signature" || got.QuarantinePath != "/quarantine/q-1" {
		t.Fatalf("GetByOriginalPath() = %+v", got)
	}

	got, found, err = repo.GetByDocument(ctx, "doc-1")
	if err != nil || !found || got.ID != "q-1" {
		t.Fatalf("GetByDocument() = %+v found=%v err=%v", got, found, err)
	}
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

type DocumentRepository struct {
	db *gorm.DB
}

var _ ports.DocumentRepository = (*DocumentRepository)(nil)

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(ctx context.Context, doc document.Document) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.Document{
		DocumentID:    doc.ID,
		ApplicationID: doc.ApplicationID,
		StudentID:     doc.StudentID,
		FileName:      doc.FileName,
		StoragePath:   doc.StoragePath,
		SizeBytes:     doc.SizeBytes,
		SHA256:        doc.SHA256,
		Status:        string(doc.Status),
		StatusReason:  doc.StatusReason,
		ScanResultID:  doc.ScanResultID,
		CreatedAt:     doc.CreatedAt.UTC(),
		UpdatedAt:     doc.UpdatedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert document")
	}
	return nil
}

func (r *DocumentRepository) Get(ctx context.Context, documentID string) (document.Document, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return document.Document{}, err
	}

	var row model.Document
	if err := db.Where("document_id = ?", documentID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return document.Document{}, fmt.Errorf("%w: %s", document.ErrDocumentNotFound, documentID)
		}
		return document.Document{}, errs.Wrap(err, "query document")
	}
	return mapDocument(row), nil
}

func (r *DocumentRepository) ListByApplication(ctx context.Context, applicationID string) ([]document.Document, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.Document
	if err := db.
		Where("application_id = ?", applicationID).
		Order("created_at asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query application documents")
	}

	out := make([]document.Document, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapDocument(row))
	}
	return out, nil
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, documentID string, status document.Status, reason string, scanResultID *uint64, at time.Time) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	updates := map[string]any{
		"status":        string(status),
		"status_reason": reason,
		"updated_at":    at.UTC(),
	}
	if scanResultID != nil {
		updates["scan_result_id"] = *scanResultID
	}

	res := db.Model(&model.Document{}).Where("document_id = ?", documentID).Updates(updates)
	if res.Error != nil {
		return errs.Wrap(res.Error, "update document status")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", document.ErrDocumentNotFound, documentID)
	}
	return nil
}

func (r *DocumentRepository) SaveScanResult(ctx context.Context, result document.ScanResult) (document.ScanResult, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return document.ScanResult{}, err
	}

	row := model.ScanResult{
		DocumentID: result.DocumentID,
		Clean:      result.Clean,
		ThreatName: result.ThreatName,
		DurationMS: result.Duration.Milliseconds(),
		Backend:    result.Backend,
		ScannedAt:  result.ScannedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return document.ScanResult{}, errs.Wrap(err, "insert scan result")
	}
	result.ID = row.ScanResultID
	return result, nil
}

func (r *DocumentRepository) GetScanResult(ctx context.Context, scanResultID uint64) (document.ScanResult, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return document.ScanResult{}, err
	}

	var row model.ScanResult
	if err := db.Where("scan_result_id = ?", scanResultID).Take(&row).Error; err != nil {
		return document.ScanResult{}, errs.Wrapf(err, "query scan result %d", scanResultID)
	}
	return document.ScanResult{
		ID:         row.ScanResultID,
		DocumentID: row.DocumentID,
		Clean:      row.Clean,
		ThreatName: row.ThreatName,
		Duration:   time.Duration(row.DurationMS) * time.Millisecond,
		Backend:    row.Backend,
		ScannedAt:  row.ScannedAt.UTC(),
	}, nil
}

func mapDocument(row model.Document) document.Document {
	return document.Document{
		ID:            row.DocumentID,
		ApplicationID: row.ApplicationID,
		StudentID:     row.StudentID,
		FileName:      row.FileName,
		StoragePath:   row.StoragePath,
		SizeBytes:     row.SizeBytes,
		SHA256:        row.SHA256,
		Status:        document.Status(row.Status),
		StatusReason:  row.StatusReason,
		ScanResultID:  row.ScanResultID,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

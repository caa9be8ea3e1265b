package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

type QuarantineRepository struct {
	db *gorm.DB
}

var _ ports.QuarantineRepository = (*QuarantineRepository)(nil)

func NewQuarantineRepository(db *gorm.DB) *QuarantineRepository {
	return &QuarantineRepository{db: db}
}

func (r *QuarantineRepository) Create(ctx context.Context, record document.QuarantineRecord) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row := model.QuarantineRecord{
		QuarantineID:   record.ID,
		DocumentID:     record.DocumentID,
		OriginalPath:   record.OriginalPath,
		QuarantinePath: record.QuarantinePath,
		ThreatName:     record.ThreatName,
		QuarantinedAt:  record.QuarantinedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert quarantine record")
	}
	return nil
}

func (r *QuarantineRepository) GetByDocument(ctx context.Context, documentID string) (document.QuarantineRecord, bool, error) {
	return r.find(ctx, "document_id = ?", documentID)
}

func (r *QuarantineRepository) GetByOriginalPath(ctx context.Context, path string) (document.QuarantineRecord, bool, error) {
	return r.find(ctx, "original_path = ?", path)
}

func (r *QuarantineRepository) find(ctx context.Context, query string, arg string) (document.QuarantineRecord, bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return document.QuarantineRecord{}, false, err
	}

	var row model.QuarantineRecord
	if err := db.Where(query, arg).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return document.QuarantineRecord{}, false, nil
		}
		return document.QuarantineRecord{}, false, errs.Wrap(err, "query quarantine record")
	}
	return document.QuarantineRecord{
		ID:             row.QuarantineID,
		DocumentID:     row.DocumentID,
		OriginalPath:   row.OriginalPath,
		QuarantinePath: row.QuarantinePath,
		ThreatName:     row.ThreatName,
		QuarantinedAt:  row.QuarantinedAt.UTC(),
	}, true, nil
}

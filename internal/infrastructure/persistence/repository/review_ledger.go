package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

// ReviewLedger stores review records. It deliberately has no update or
// delete methods; the model hooks refuse them as well.
type ReviewLedger struct {
	db *gorm.DB
}

var _ ports.ReviewLedger = (*ReviewLedger)(nil)

func NewReviewLedger(db *gorm.DB) *ReviewLedger {
	return &ReviewLedger{db: db}
}

func (l *ReviewLedger) Append(ctx context.Context, record ports.ReviewRecord) (ports.ReviewRecord, error) {
	db, err := dbFromContext(ctx, l.db)
	if err != nil {
		return ports.ReviewRecord{}, err
	}
	if record.ApplicationID == "" || record.Stage == "" || record.ReviewerID == "" {
		return ports.ReviewRecord{}, errors.New("review record requires application, stage and reviewer")
	}

	payload, err := encodePayload(record.Payload)
	if err != nil {
		return ports.ReviewRecord{}, err
	}

	row := model.ReviewRecord{
		ApplicationID: record.ApplicationID,
		Stage:         record.Stage,
		ReviewerID:    record.ReviewerID,
		ReviewerRole:  record.ReviewerRole,
		Decision:      string(record.Decision),
		Notes:         record.Notes,
		Payload:       payload,
		SupersedesSeq: record.SupersedesSeq,
		DecidedAt:     record.DecidedAt.UTC(),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.ReviewRecord{}, errs.Wrap(err, "insert review record")
	}

	record.Sequence = row.Sequence
	return record, nil
}

func (l *ReviewLedger) List(ctx context.Context, applicationID string) ([]ports.ReviewRecord, error) {
	db, err := dbFromContext(ctx, l.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ReviewRecord
	if err := db.
		Where("application_id = ?", applicationID).
		Order("decided_at asc").
		Order("sequence asc").
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query review records")
	}

	items := make([]ports.ReviewRecord, 0, len(rows))
	for _, row := range rows {
		payload, err := decodePayload(row.Payload)
		if err != nil {
			return nil, err
		}
		items = append(items, ports.ReviewRecord{
			Sequence:      row.Sequence,
			ApplicationID: row.ApplicationID,
			Stage:         row.Stage,
			ReviewerID:    row.ReviewerID,
			ReviewerRole:  row.ReviewerRole,
			Decision:      review.Decision(row.Decision),
			Notes:         row.Notes,
			Payload:       payload,
			SupersedesSeq: row.SupersedesSeq,
			DecidedAt:     row.DecidedAt.UTC(),
		})
	}
	return items, nil
}

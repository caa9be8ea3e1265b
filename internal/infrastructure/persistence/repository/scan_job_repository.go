package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

var ErrScanJobNotFound = errors.New("scan job not found")

type ScanJobRepository struct {
	db *gorm.DB
}

var _ ports.ScanJobRepository = (*ScanJobRepository)(nil)

func NewScanJobRepository(db *gorm.DB) *ScanJobRepository {
	return &ScanJobRepository{db: db}
}

func (r *ScanJobRepository) EnqueueIfIdle(ctx context.Context, job document.ScanJob) (bool, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return false, err
	}

	activeKey := job.DocumentID
	row := model.ScanJob{
		JobID:         job.ID,
		DocumentID:    job.DocumentID,
		ActiveKey:     &activeKey,
		FilePath:      job.FilePath,
		State:         string(document.JobQueued),
		Attempts:      0,
		NextAttemptAt: job.NextAttemptAt.UTC(),
		CreatedAt:     job.CreatedAt.UTC(),
		UpdatedAt:     job.CreatedAt.UTC(),
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "active_key"}},
		DoNothing: true,
	}).Create(&row)
	if res.Error != nil {
		return false, errs.Wrap(res.Error, "insert scan job")
	}
	return res.RowsAffected == 1, nil
}

func (r *ScanJobRepository) ClaimDue(ctx context.Context, now time.Time, limit int) ([]document.ScanJob, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 1
	}

	var rows []model.ScanJob
	if err := db.
		Where("state = ? AND next_attempt_at <= ?", string(document.JobQueued), now.UTC()).
		Order("next_attempt_at asc").
		Order("created_at asc").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query due scan jobs")
	}

	claimed := make([]document.ScanJob, 0, len(rows))
	for _, row := range rows {
		res := db.Model(&model.ScanJob{}).
			Where("job_id = ? AND state = ?", row.JobID, string(document.JobQueued)).
			Updates(map[string]any{
				"state":      string(document.JobRunning),
				"updated_at": now.UTC(),
			})
		if res.Error != nil {
			return nil, errs.Wrapf(res.Error, "claim scan job %s", row.JobID)
		}
		if res.RowsAffected == 0 {
			// Another worker got there first.
			continue
		}
		row.State = string(document.JobRunning)
		claimed = append(claimed, mapScanJob(row))
	}
	return claimed, nil
}

func (r *ScanJobRepository) Reschedule(ctx context.Context, jobID string, attempts int, nextAttemptAt time.Time, lastError string) error {
	return r.transition(ctx, jobID, document.JobQueued, map[string]any{
		"state":           string(document.JobQueued),
		"attempts":        attempts,
		"next_attempt_at": nextAttemptAt.UTC(),
		"last_error":      lastError,
		"updated_at":      time.Now().UTC(),
	})
}

func (r *ScanJobRepository) Finish(ctx context.Context, jobID string, state document.JobState, attempts int, lastError string) error {
	if !state.IsTerminal() {
		return fmt.Errorf("%w: finish with non-terminal state %s", document.ErrInvalidJobTransition, state)
	}
	return r.transition(ctx, jobID, state, map[string]any{
		"state":      string(state),
		"active_key": nil,
		"attempts":   attempts,
		"last_error": lastError,
		"updated_at": time.Now().UTC(),
	})
}

func (r *ScanJobRepository) transition(ctx context.Context, jobID string, to document.JobState, updates map[string]any) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}
	if err := document.CheckJobTransition(document.JobRunning, to); err != nil {
		return err
	}

	res := db.Model(&model.ScanJob{}).
		Where("job_id = ? AND state = ?", jobID, string(document.JobRunning)).
		Updates(updates)
	if res.Error != nil {
		return errs.Wrapf(res.Error, "move scan job %s to %s", jobID, to)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: job %s is not running", document.ErrInvalidJobTransition, jobID)
	}
	return nil
}

func (r *ScanJobRepository) Get(ctx context.Context, jobID string) (document.ScanJob, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return document.ScanJob{}, err
	}

	var row model.ScanJob
	if err := db.Where("job_id = ?", jobID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return document.ScanJob{}, fmt.Errorf("%w: %s", ErrScanJobNotFound, jobID)
		}
		return document.ScanJob{}, errs.Wrap(err, "query scan job")
	}
	return mapScanJob(row), nil
}

func (r *ScanJobRepository) ListByDocument(ctx context.Context, documentID string) ([]document.ScanJob, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return nil, err
	}

	var rows []model.ScanJob
	if err := db.Where("document_id = ?", documentID).Order("created_at asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query document scan jobs")
	}
	out := make([]document.ScanJob, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapScanJob(row))
	}
	return out, nil
}

func (r *ScanJobRepository) RequeueRunning(ctx context.Context, now time.Time) (int, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return 0, err
	}

	res := db.Model(&model.ScanJob{}).
		Where("state = ?", string(document.JobRunning)).
		Updates(map[string]any{
			"state":           string(document.JobQueued),
			"next_attempt_at": now.UTC(),
			"updated_at":      now.UTC(),
		})
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "requeue running scan jobs")
	}
	return int(res.RowsAffected), nil
}

func mapScanJob(row model.ScanJob) document.ScanJob {
	return document.ScanJob{
		ID:            row.JobID,
		DocumentID:    row.DocumentID,
		FilePath:      row.FilePath,
		State:         document.JobState(row.State),
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt.UTC(),
		LastError:     row.LastError,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

type ApplicationRepository struct {
	db *gorm.DB
}

var _ ports.ApplicationRepository = (*ApplicationRepository)(nil)

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) Create(ctx context.Context, app review.Application) error {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return err
	}

	row, err := toApplicationRow(app)
	if err != nil {
		return err
	}
	if err := db.Create(&row).Error; err != nil {
		return errs.Wrap(err, "insert application")
	}
	return nil
}

func (r *ApplicationRepository) Get(ctx context.Context, applicationID string) (review.Application, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return review.Application{}, err
	}

	var row model.Application
	if err := db.Where("application_id = ?", applicationID).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return review.Application{}, fmt.Errorf("%w: %s", review.ErrApplicationNotFound, applicationID)
		}
		return review.Application{}, errs.Wrap(err, "query application")
	}
	return fromApplicationRow(row)
}

func (r *ApplicationRepository) CompareAndSwap(ctx context.Context, next review.Application, expectedVersion int64) (review.Application, error) {
	db, err := dbFromContext(ctx, r.db)
	if err != nil {
		return review.Application{}, err
	}

	stages, err := json.Marshal(next.Stages)
	if err != nil {
		return review.Application{}, errs.Wrap(err, "encode stage map")
	}

	res := db.Model(&model.Application{}).
		Where("application_id = ? AND version = ?", next.ID, expectedVersion).
		Updates(map[string]any{
			"status":                        string(next.Status),
			"stages":                        datatypes.JSON(stages),
			"all_required_stages_completed": next.AllRequiredStagesCompleted,
			"ready_for_final_at":            next.ReadyForFinalAt,
			"finalized_at":                  next.FinalizedAt,
			"updated_at":                    next.UpdatedAt,
			"version":                       expectedVersion + 1,
		})
	if res.Error != nil {
		return review.Application{}, errs.Wrap(res.Error, "update application")
	}
	if res.RowsAffected == 0 {
		return review.Application{}, fmt.Errorf("%w: application %s changed since version %d", review.ErrStaleStageState, next.ID, expectedVersion)
	}

	stored := next.Clone()
	stored.Version = expectedVersion + 1
	return stored, nil
}

func toApplicationRow(app review.Application) (model.Application, error) {
	stages, err := json.Marshal(app.Stages)
	if err != nil {
		return model.Application{}, errs.Wrap(err, "encode stage map")
	}
	return model.Application{
		ApplicationID:              app.ID,
		ApplicantID:                app.ApplicantID,
		Status:                     string(app.Status),
		Stages:                     datatypes.JSON(stages),
		AllRequiredStagesCompleted: app.AllRequiredStagesCompleted,
		ReadyForFinalAt:            app.ReadyForFinalAt,
		FinalizedAt:                app.FinalizedAt,
		Version:                    app.Version,
		CreatedAt:                  app.CreatedAt,
		UpdatedAt:                  app.UpdatedAt,
	}, nil
}

func fromApplicationRow(row model.Application) (review.Application, error) {
	stages := make(map[string]review.StageState)
	if len(row.Stages) > 0 {
		if err := json.Unmarshal(row.Stages, &stages); err != nil {
			return review.Application{}, errs.Wrapf(err, "decode stage map of application %s", row.ApplicationID)
		}
	}
	return review.Application{
		ID:                         row.ApplicationID,
		ApplicantID:                row.ApplicantID,
		Status:                     review.Status(row.Status),
		Stages:                     stages,
		AllRequiredStagesCompleted: row.AllRequiredStagesCompleted,
		ReadyForFinalAt:            utcPtr(row.ReadyForFinalAt),
		FinalizedAt:                utcPtr(row.FinalizedAt),
		Version:                    row.Version,
		CreatedAt:                  row.CreatedAt.UTC(),
		UpdatedAt:                  row.UpdatedAt.UTC(),
	}, nil
}

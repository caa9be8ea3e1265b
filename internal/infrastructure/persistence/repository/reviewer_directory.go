package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
	"scholarflow/internal/infrastructure/persistence/model"
	"scholarflow/internal/ports"
)

// ReviewerDirectory authorizes principals against reviewer_assignments. An
// assignment only counts when its role is the role the topology binds to the
// stage, so renaming a committee role revokes stale grants.
type ReviewerDirectory struct {
	db       *gorm.DB
	topology review.Topology
}

var (
	_ ports.ReviewerDirectory = (*ReviewerDirectory)(nil)
	_ ports.ReviewerAdmin     = (*ReviewerDirectory)(nil)
)

func NewReviewerDirectory(db *gorm.DB, topology review.Topology) *ReviewerDirectory {
	return &ReviewerDirectory{db: db, topology: topology}
}

func (d *ReviewerDirectory) Authorize(ctx context.Context, principalID string, stage string) (ports.ReviewerAssignment, bool, error) {
	db, err := dbFromContext(ctx, d.db)
	if err != nil {
		return ports.ReviewerAssignment{}, false, err
	}

	principalID = strings.TrimSpace(principalID)
	role, ok := d.topology.RoleFor(stage)
	if principalID == "" || !ok {
		return ports.ReviewerAssignment{}, false, nil
	}

	var row model.ReviewerAssignment
	err = db.
		Where("principal_id = ? AND stage = ? AND active = ?", principalID, stage, true).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ports.ReviewerAssignment{}, false, nil
	}
	if err != nil {
		return ports.ReviewerAssignment{}, false, errs.Wrap(err, "query reviewer assignment")
	}
	if row.Role != role {
		return ports.ReviewerAssignment{}, false, nil
	}
	return mapAssignment(row), true, nil
}

func (d *ReviewerDirectory) Assign(ctx context.Context, assignment ports.ReviewerAssignment) error {
	db, err := dbFromContext(ctx, d.db)
	if err != nil {
		return err
	}

	principalID := strings.TrimSpace(assignment.PrincipalID)
	if principalID == "" {
		return errors.New("principal id is required")
	}
	role, ok := d.topology.RoleFor(assignment.Stage)
	if !ok {
		return errs.Wrapf(review.ErrUnknownStage, "assign %s", assignment.Stage)
	}
	if assignment.Role != "" && assignment.Role != role {
		return fmt.Errorf("role %s cannot decide stage %s (expects %s)", assignment.Role, assignment.Stage, role)
	}

	row := model.ReviewerAssignment{
		PrincipalID: principalID,
		Stage:       assignment.Stage,
		Role:        role,
		Active:      true,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "principal_id"}, {Name: "stage"}},
		DoUpdates: clause.Assignments(map[string]any{
			"role":       row.Role,
			"active":     true,
			"updated_at": row.UpdatedAt,
		}),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "upsert reviewer assignment")
	}
	return nil
}

func (d *ReviewerDirectory) Deactivate(ctx context.Context, principalID string, stage string) error {
	db, err := dbFromContext(ctx, d.db)
	if err != nil {
		return err
	}

	res := db.Model(&model.ReviewerAssignment{}).
		Where("principal_id = ? AND stage = ?", strings.TrimSpace(principalID), stage).
		Updates(map[string]any{"active": false, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return errs.Wrap(res.Error, "deactivate reviewer assignment")
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("no assignment for %s on %s", principalID, stage)
	}
	return nil
}

func (d *ReviewerDirectory) ListAssignments(ctx context.Context, principalID string) ([]ports.ReviewerAssignment, error) {
	db, err := dbFromContext(ctx, d.db)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.ReviewerAssignment{})
	if p := strings.TrimSpace(principalID); p != "" {
		query = query.Where("principal_id = ?", p)
	}

	var rows []model.ReviewerAssignment
	if err := query.Order("principal_id asc").Order("stage asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query reviewer assignments")
	}
	out := make([]ports.ReviewerAssignment, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapAssignment(row))
	}
	return out, nil
}

func mapAssignment(row model.ReviewerAssignment) ports.ReviewerAssignment {
	return ports.ReviewerAssignment{
		PrincipalID: row.PrincipalID,
		Role:        row.Role,
		Stage:       row.Stage,
		Active:      row.Active,
		UpdatedAt:   row.UpdatedAt.UTC(),
	}
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

type Application struct {
	ApplicationID              string         `gorm:"column:application_id;type:varchar(64);primaryKey"`
	ApplicantID                string         `gorm:"column:applicant_id;type:varchar(64);not null;index"`
	Status                     string         `gorm:"column:status;type:varchar(32);not null;index"`
	Stages                     datatypes.JSON `gorm:"column:stages;not null"`
	AllRequiredStagesCompleted bool           `gorm:"column:all_required_stages_completed;not null;default:false"`
	ReadyForFinalAt            *time.Time     `gorm:"column:ready_for_final_at"`
	FinalizedAt                *time.Time     `gorm:"column:finalized_at"`
	Version                    int64          `gorm:"column:version;not null;default:0"`
	CreatedAt                  time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt                  time.Time      `gorm:"column:updated_at;not null"`
}

func (Application) TableName() string {
	return "applications"
}

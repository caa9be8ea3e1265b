package model

import "time"

type ReviewerAssignment struct {
	PrincipalID string    `gorm:"column:principal_id;type:varchar(128);primaryKey"`
	Stage       string    `gorm:"column:stage;type:varchar(64);primaryKey"`
	Role        string    `gorm:"column:role;type:varchar(64);not null"`
	Active      bool      `gorm:"column:active;not null;default:true"`
	UpdatedAt   time.Time `gorm:"column:updated_at;not null"`
}

func (ReviewerAssignment) TableName() string {
	return "reviewer_assignments"
}

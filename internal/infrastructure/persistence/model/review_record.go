package model

import (
	"errors"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var ErrReviewRecordImmutable = errors.New("review records are append-only")

type ReviewRecord struct {
	Sequence      uint64         `gorm:"column:sequence;primaryKey;autoIncrement"`
	ApplicationID string         `gorm:"column:application_id;type:varchar(64);not null;index:idx_review_app_decided,priority:1"`
	Stage         string         `gorm:"column:stage;type:varchar(64);not null"`
	ReviewerID    string         `gorm:"column:reviewer_id;type:varchar(128);not null;index"`
	ReviewerRole  string         `gorm:"column:reviewer_role;type:varchar(64);not null"`
	Decision      string         `gorm:"column:decision;type:varchar(16);not null"`
	Notes         string         `gorm:"column:notes;type:text;not null"`
	Payload       datatypes.JSON `gorm:"column:payload"`
	SupersedesSeq *uint64        `gorm:"column:supersedes_seq"`
	DecidedAt     time.Time      `gorm:"column:decided_at;not null;index:idx_review_app_decided,priority:2"`
}

func (ReviewRecord) TableName() string {
	return "review_records"
}

func (ReviewRecord) BeforeUpdate(*gorm.DB) error {
	return ErrReviewRecordImmutable
}

func (ReviewRecord) BeforeDelete(*gorm.DB) error {
	return ErrReviewRecordImmutable
}

package model

import (
	"time"

	"gorm.io/datatypes"
)

type Event struct {
	EventID     uint64         `gorm:"column:event_id;primaryKey;autoIncrement"`
	Type        string         `gorm:"column:type;type:varchar(64);not null;index"`
	AggregateID string         `gorm:"column:aggregate_id;type:varchar(64);not null;index"`
	Actor       string         `gorm:"column:actor;type:varchar(128);not null"`
	Payload     datatypes.JSON `gorm:"column:payload;not null"`
	CreatedAt   time.Time      `gorm:"column:created_at;not null"`
}

func (Event) TableName() string {
	return "events"
}

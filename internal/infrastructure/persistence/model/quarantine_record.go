package model

import "time"

type QuarantineRecord struct {
	QuarantineID   string    `gorm:"column:quarantine_id;type:varchar(64);primaryKey"`
	DocumentID     string    `gorm:"column:document_id;type:varchar(64);not null;uniqueIndex"`
	OriginalPath   string    `gorm:"column:original_path;type:varchar(768);not null;uniqueIndex"`
	QuarantinePath string    `gorm:"column:quarantine_path;type:varchar(1024);not null"`
	ThreatName     string    `gorm:"column:threat_name;type:varchar(255);not null"`
	QuarantinedAt  time.Time `gorm:"column:quarantined_at;not null"`
}

func (QuarantineRecord) TableName() string {
	return "quarantine_records"
}

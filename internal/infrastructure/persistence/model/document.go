package model

import "time"

type Document struct {
	DocumentID    string    `gorm:"column:document_id;type:varchar(64);primaryKey"`
	ApplicationID string    `gorm:"column:application_id;type:varchar(64);not null;index"`
	StudentID     string    `gorm:"column:student_id;type:varchar(64);not null"`
	FileName      string    `gorm:"column:file_name;type:varchar(255);not null"`
	StoragePath   string    `gorm:"column:storage_path;type:varchar(1024);not null"`
	SizeBytes     int64     `gorm:"column:size_bytes;not null"`
	SHA256        string    `gorm:"column:sha256;type:varchar(64);not null"`
	Status        string    `gorm:"column:status;type:varchar(32);not null;index"`
	StatusReason  string    `gorm:"column:status_reason;type:text;not null"`
	ScanResultID  *uint64   `gorm:"column:scan_result_id"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (Document) TableName() string {
	return "documents"
}

type ScanResult struct {
	ScanResultID uint64    `gorm:"column:scan_result_id;primaryKey;autoIncrement"`
	DocumentID   string    `gorm:"column:document_id;type:varchar(64);not null;index"`
	Clean        bool      `gorm:"column:clean;not null"`
	ThreatName   string    `gorm:"column:threat_name;type:varchar(255);not null"`
	DurationMS   int64     `gorm:"column:duration_ms;not null"`
	Backend      string    `gorm:"column:backend;type:varchar(32);not null"`
	ScannedAt    time.Time `gorm:"column:scanned_at;not null"`
}

func (ScanResult) TableName() string {
	return "scan_results"
}

package model

import "time"

type ScanJob struct {
	JobID      string `gorm:"column:job_id;type:varchar(64);primaryKey"`
	DocumentID string `gorm:"column:document_id;type:varchar(64);not null;index"`
	// ActiveKey holds the document id while the job is queued or running and
	// NULL afterwards; the unique index allows one active job per document.
	ActiveKey     *string   `gorm:"column:active_key;type:varchar(64);uniqueIndex"`
	FilePath      string    `gorm:"column:file_path;type:varchar(1024);not null"`
	State         string    `gorm:"column:state;type:varchar(16);not null;index:idx_scan_jobs_due,priority:1"`
	Attempts      int       `gorm:"column:attempts;not null;default:0"`
	NextAttemptAt time.Time `gorm:"column:next_attempt_at;not null;index:idx_scan_jobs_due,priority:2"`
	LastError     string    `gorm:"column:last_error;type:text;not null"`
	CreatedAt     time.Time `gorm:"column:created_at;not null"`
	UpdatedAt     time.Time `gorm:"column:updated_at;not null"`
}

func (ScanJob) TableName() string {
	return "scan_jobs"
}

package ports

import (
	"context"
	"io"
	"time"

	"scholarflow/internal/domain/document"
)

type DocumentRepository interface {
	Create(ctx context.Context, doc document.Document) error
	// Get returns document.ErrDocumentNotFound for unknown ids.
	Get(ctx context.Context, documentID string) (document.Document, error)
	ListByApplication(ctx context.Context, applicationID string) ([]document.Document, error)
	UpdateStatus(ctx context.Context, documentID string, status document.Status, reason string, scanResultID *uint64, at time.Time) error
	SaveScanResult(ctx context.Context, result document.ScanResult) (document.ScanResult, error)
	GetScanResult(ctx context.Context, scanResultID uint64) (document.ScanResult, error)
}

type ScanJobRepository interface {
	// EnqueueIfIdle inserts job unless the document already has a queued or
	// running job. created is false for the no-op case.
	EnqueueIfIdle(ctx context.Context, job document.ScanJob) (created bool, err error)
	// ClaimDue moves up to limit due queued jobs to running and returns them.
	ClaimDue(ctx context.Context, now time.Time, limit int) ([]document.ScanJob, error)
	Reschedule(ctx context.Context, jobID string, attempts int, nextAttemptAt time.Time, lastError string) error
	Finish(ctx context.Context, jobID string, state document.JobState, attempts int, lastError string) error
	Get(ctx context.Context, jobID string) (document.ScanJob, error)
	ListByDocument(ctx context.Context, documentID string) ([]document.ScanJob, error)
	// RequeueRunning returns jobs orphaned in running back to queued.
	RequeueRunning(ctx context.Context, now time.Time) (int, error)
}

// Scanner is one malware-scanning backend. Implementations return
// document.ErrScannerUnavailable or document.ErrScanTimeout instead of a
// clean result when they cannot give an answer.
type Scanner interface {
	Name() string
	Scan(ctx context.Context, filePath string, declaredName string) (document.ScanResult, error)
}

type QuarantineRepository interface {
	Create(ctx context.Context, record document.QuarantineRecord) error
	GetByDocument(ctx context.Context, documentID string) (document.QuarantineRecord, bool, error)
	GetByOriginalPath(ctx context.Context, path string) (document.QuarantineRecord, bool, error)
}

type QuarantineStore interface {
	Quarantine(ctx context.Context, doc document.Document, result document.ScanResult) (document.QuarantineRecord, error)
	// IsQuarantined is the only authority on whether path may be served.
	IsQuarantined(ctx context.Context, path string) (bool, error)
}

type StoredFile struct {
	Path      string
	SizeBytes int64
	SHA256    string
}

type FileStorage interface {
	Save(ctx context.Context, applicationID string, fileName string, content io.Reader) (StoredFile, error)
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	Remove(ctx context.Context, path string) error
}

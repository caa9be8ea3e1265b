package ports

import (
	"context"
	"time"

	"scholarflow/internal/domain/review"
)

type ApplicationRepository interface {
	Create(ctx context.Context, app review.Application) error
	// Get returns review.ErrApplicationNotFound for unknown ids.
	Get(ctx context.Context, applicationID string) (review.Application, error)
	// CompareAndSwap stores next only if the stored version still equals
	// expectedVersion and returns next with its new version. A mismatch is
	// review.ErrStaleStageState.
	CompareAndSwap(ctx context.Context, next review.Application, expectedVersion int64) (review.Application, error)
}

type ReviewRecord struct {
	Sequence      uint64
	ApplicationID string
	Stage         string
	ReviewerID    string
	ReviewerRole  string
	Decision      review.Decision
	Notes         string
	Payload       map[string]any
	SupersedesSeq *uint64
	DecidedAt     time.Time
}

// ReviewLedger is append-only: there is no update or delete.
type ReviewLedger interface {
	Append(ctx context.Context, record ReviewRecord) (ReviewRecord, error)
	// List returns records ordered by decision time, then sequence.
	List(ctx context.Context, applicationID string) ([]ReviewRecord, error)
}

type ReviewerAssignment struct {
	PrincipalID string
	Role        string
	Stage       string
	Active      bool
	UpdatedAt   time.Time
}

// ReviewerDirectory answers whether a principal may decide a stage.
type ReviewerDirectory interface {
	Authorize(ctx context.Context, principalID string, stage string) (ReviewerAssignment, bool, error)
}

// ReviewerAdmin is the administrative write side, used by seeding commands.
type ReviewerAdmin interface {
	Assign(ctx context.Context, assignment ReviewerAssignment) error
	Deactivate(ctx context.Context, principalID string, stage string) error
	ListAssignments(ctx context.Context, principalID string) ([]ReviewerAssignment, error)
}

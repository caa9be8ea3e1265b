package document

import (
	"errors"
	"fmt"
	"time"
)

type JobState string

const (
	JobQueued   JobState = "queued"
	JobRunning  JobState = "running"
	JobClean    JobState = "clean"
	JobInfected JobState = "infected"
	JobFailed   JobState = "failed"
)

func (s JobState) IsActive() bool {
	return s == JobQueued || s == JobRunning
}

func (s JobState) IsTerminal() bool {
	return s == JobClean || s == JobInfected || s == JobFailed
}

var ErrInvalidJobTransition = errors.New("invalid scan job transition")

var jobTransitions = map[JobState][]JobState{
	JobQueued:  {JobRunning},
	JobRunning: {JobQueued, JobClean, JobInfected, JobFailed},
}

// CheckJobTransition enforces queued -> running -> {clean, infected, failed},
// with running -> queued for a retry.
func CheckJobTransition(from JobState, to JobState) error {
	for _, allowed := range jobTransitions[from] {
		if allowed == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidJobTransition, from, to)
}

type ScanJob struct {
	ID            string
	DocumentID    string
	FilePath      string
	State         JobState
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Verdict is what the job executor settles on once an attempt (or the retry
// budget) is finished.
type Verdict string

const (
	VerdictClean          Verdict = "clean"
	VerdictInfected       Verdict = "infected"
	VerdictRetry          Verdict = "retry"
	VerdictFallbackReject Verdict = "fallback_reject"
	VerdictFallbackAllow  Verdict = "fallback_allow"
	VerdictManualReview   Verdict = "manual_review"
)

// SettleAttempt maps the outcome of one scan attempt to what happens next.
// scanErr is nil when result is usable. attempt is 1-based.
func SettleAttempt(result ScanResult, scanErr error, attempt int, maxAttempts int, policy FallbackPolicy) Verdict {
	if scanErr == nil {
		if result.Clean {
			return VerdictClean
		}
		return VerdictInfected
	}
	if attempt < maxAttempts {
		return VerdictRetry
	}
	if errors.Is(scanErr, ErrScannerUnavailable) {
		if policy == FallbackAllow {
			return VerdictFallbackAllow
		}
		return VerdictFallbackReject
	}
	return VerdictManualReview
}

package document

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrDocumentNotServable  = errors.New("document is not servable")
	ErrScannerUnavailable   = errors.New("scanner unavailable")
	ErrScanTimeout          = errors.New("scan timed out")
	ErrQuarantineFailure    = errors.New("quarantine failed")
	ErrScanRetriesExhausted = errors.New("scan retries exhausted")
	ErrInvalidOverride      = errors.New("document is not awaiting manual review")
	ErrScanNotAllowed       = errors.New("document cannot be queued for scanning")
	ErrInvalidFallback      = errors.New("fallback policy must be reject or allow")
)

type Status string

const (
	StatusPending            Status = "pending"
	StatusCleanPendingReview Status = "clean_pending_review"
	StatusVerified           Status = "verified"
	StatusRejected           Status = "rejected"
	// StatusNeedsManualReview is terminal for the scan pipeline: the file was
	// never certified and a human must decide.
	StatusNeedsManualReview Status = "needs_manual_review"
)

// ClearedForReview reports whether a document can count toward the document
// verification stage.
func (s Status) ClearedForReview() bool {
	return s == StatusCleanPendingReview || s == StatusVerified
}

// Student-facing reasons. Raw scanner output never reaches these.
const (
	ReasonMalicious        = "This file was flagged by our security scan and has been removed. Please upload a different copy."
	ReasonScanUnavailable  = "We could not verify this file because the security scanner was unavailable. Please upload it again later."
	ReasonNeedsManualCheck = "This file could not be checked automatically and needs manual review by staff."
	ReasonSecurityHold     = "This file is on a security hold pending staff review."
)

type Document struct {
	ID            string
	ApplicationID string
	StudentID     string
	FileName      string
	StoragePath   string
	SizeBytes     int64
	SHA256        string
	Status        Status
	StatusReason  string
	ScanResultID  *uint64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Rescannable reports whether a new scan job may be queued for d. Settled
// documents and security holds are never rescanned.
func (d Document) Rescannable() bool {
	switch d.Status {
	case StatusPending:
		return true
	case StatusNeedsManualReview:
		return d.StatusReason != ReasonSecurityHold
	default:
		return false
	}
}

type ScanResult struct {
	ID         uint64
	DocumentID string
	Clean      bool
	ThreatName string
	Duration   time.Duration
	Backend    string
	ScannedAt  time.Time
}

type QuarantineRecord struct {
	ID             string
	DocumentID     string
	OriginalPath   string
	QuarantinePath string
	ThreatName     string
	QuarantinedAt  time.Time
}

// FallbackPolicy decides what an engine outage means for a document.
type FallbackPolicy string

const (
	FallbackReject FallbackPolicy = "reject"
	FallbackAllow  FallbackPolicy = "allow"
)

func ParseFallbackPolicy(raw string) (FallbackPolicy, error) {
	switch FallbackPolicy(strings.ToLower(strings.TrimSpace(raw))) {
	case FallbackReject, "":
		return FallbackReject, nil
	case FallbackAllow:
		return FallbackAllow, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidFallback, raw)
	}
}

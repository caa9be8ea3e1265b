package event

import "time"

type Type string

const (
	StageDecided          Type = "StageDecided"
	ApplicationFinalized  Type = "ApplicationFinalized"
	MaliciousFileDetected Type = "MaliciousFileDetected"
	ScanFallbackApplied   Type = "ScanFallbackApplied"
	ScanRetriesExhausted  Type = "ScanRetriesExhausted"
	QuarantineFailed      Type = "QuarantineFailed"
	DocumentOverridden    Type = "DocumentOverridden"
)

// Event is one entry of the persisted event log handed to the notification
// collaborator. AggregateID is the application or document id.
type Event struct {
	ID          uint64
	Type        Type
	AggregateID string
	Actor       string
	Payload     map[string]any
	CreatedAt   time.Time
}

func NewStageDecided(applicationID string, stage string, verdict string, actor string, at time.Time) Event {
	return Event{
		Type:        StageDecided,
		AggregateID: applicationID,
		Actor:       actor,
		Payload: map[string]any{
			"application_id": applicationID,
			"stage":          stage,
			"verdict":        verdict,
		},
		CreatedAt: at,
	}
}

func NewApplicationFinalized(applicationID string, outcome string, actor string, at time.Time) Event {
	return Event{
		Type:        ApplicationFinalized,
		AggregateID: applicationID,
		Actor:       actor,
		Payload: map[string]any{
			"application_id": applicationID,
			"outcome":        outcome,
		},
		CreatedAt: at,
	}
}

func NewMaliciousFileDetected(documentID string, applicationID string, threatName string, at time.Time) Event {
	return Event{
		Type:        MaliciousFileDetected,
		AggregateID: documentID,
		Actor:       "scan-queue",
		Payload: map[string]any{
			"document_id":    documentID,
			"application_id": applicationID,
			"threat_name":    threatName,
		},
		CreatedAt: at,
	}
}

func NewScanFallbackApplied(documentID string, policy string, resultStatus string, cause string, at time.Time) Event {
	return Event{
		Type:        ScanFallbackApplied,
		AggregateID: documentID,
		Actor:       "scan-queue",
		Payload: map[string]any{
			"document_id":     documentID,
			"policy":          policy,
			"document_status": resultStatus,
			"cause":           cause,
		},
		CreatedAt: at,
	}
}

func NewScanRetriesExhausted(documentID string, attempts int, lastError string, at time.Time) Event {
	return Event{
		Type:        ScanRetriesExhausted,
		AggregateID: documentID,
		Actor:       "scan-queue",
		Payload: map[string]any{
			"document_id": documentID,
			"attempts":    attempts,
			"last_error":  lastError,
		},
		CreatedAt: at,
	}
}

func NewQuarantineFailed(documentID string, path string, cause string, at time.Time) Event {
	return Event{
		Type:        QuarantineFailed,
		AggregateID: documentID,
		Actor:       "scan-queue",
		Payload: map[string]any{
			"document_id": documentID,
			"path":        path,
			"cause":       cause,
		},
		CreatedAt: at,
	}
}

func NewDocumentOverridden(documentID string, applicationID string, actor string, note string, at time.Time) Event {
	return Event{
		Type:        DocumentOverridden,
		AggregateID: documentID,
		Actor:       actor,
		Payload: map[string]any{
			"document_id":    documentID,
			"application_id": applicationID,
			"note":           note,
		},
		CreatedAt: at,
	}
}

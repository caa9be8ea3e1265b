package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

// Service is the application workflow: stage decisions, lifecycle hand-off
// from the intake layer, and the staff override for unscannable documents.
type Service struct {
	apps       ports.ApplicationRepository
	ledger     ports.ReviewLedger
	directory  ports.ReviewerDirectory
	docs       ports.DocumentRepository
	quarantine ports.QuarantineStore
	events     ports.EventLog
	uow        ports.UnitOfWork
	cache      ports.Cache
	topology   review.Topology
	now        func() time.Time
	newID      func() string
}

// NewService wires the workflow with its repositories. cache may be nil.
func NewService(
	apps ports.ApplicationRepository,
	ledger ports.ReviewLedger,
	directory ports.ReviewerDirectory,
	docs ports.DocumentRepository,
	quarantine ports.QuarantineStore,
	events ports.EventLog,
	uow ports.UnitOfWork,
	cache ports.Cache,
	topology review.Topology,
) *Service {
	return &Service{
		apps:       apps,
		ledger:     ledger,
		directory:  directory,
		docs:       docs,
		quarantine: quarantine,
		events:     events,
		uow:        uow,
		cache:      cache,
		topology:   topology,
		now:        time.Now,
		newID:      newUUID,
	}
}

// Principal is an identity already authenticated by the caller.
type Principal struct {
	ID   string
	Name string
}

func (p Principal) label() string {
	if name := strings.TrimSpace(p.Name); name != "" {
		return name
	}
	return strings.TrimSpace(p.ID)
}

type DecideInput struct {
	ApplicationID string
	Stage         string
	Principal     Principal
	Verdict       string
	Notes         string
	Payload       map[string]any
}

type StageOutcome struct {
	Application       review.Application
	Record            ports.ReviewRecord
	UnlockedFinal     bool
	Finalized         bool
	VerifiedDocuments []string
}

type OverrideDocumentInput struct {
	DocumentID string
	Principal  Principal
	Note       string
}

func (s *Service) Topology() review.Topology {
	return s.topology
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.apps == nil {
		return errors.New("application repository is required")
	}
	if s.ledger == nil {
		return errors.New("review ledger is required")
	}
	if s.directory == nil {
		return errors.New("reviewer directory is required")
	}
	if s.docs == nil {
		return errors.New("document repository is required")
	}
	if s.quarantine == nil {
		return errors.New("quarantine store is required")
	}
	if s.events == nil {
		return errors.New("event log is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, key string, value string) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, key, value, 0)
}

func cacheApplicationStatusKey(applicationID string) string {
	return "application:" + applicationID + ":status"
}

func cacheDocumentStatusKey(documentID string) string {
	return "document:" + documentID + ":status"
}

// documentGate returns the documents that approval of the document stage
// verifies, or ErrDocumentsNotCleared if any live document is not cleared.
// A quarantined file never counts as cleared, whatever its status says.
func (s *Service) documentGate(ctx context.Context, docs []document.Document) ([]document.Document, error) {
	cleared := make([]document.Document, 0, len(docs))
	for _, doc := range docs {
		switch {
		case doc.Status == document.StatusRejected:
			continue
		case doc.Status.ClearedForReview():
			quarantined, err := s.quarantine.IsQuarantined(ctx, doc.StoragePath)
			if err != nil {
				return nil, errs.Wrap(err, "check quarantine")
			}
			if quarantined {
				return nil, errs.Wrapf(review.ErrDocumentsNotCleared, "document %s is quarantined", doc.ID)
			}
			cleared = append(cleared, doc)
		default:
			return nil, errs.Wrapf(review.ErrDocumentsNotCleared, "document %s is %s", doc.ID, doc.Status)
		}
	}
	if len(cleared) == 0 {
		return nil, errs.Wrap(review.ErrDocumentsNotCleared, "no cleared documents on file")
	}
	return cleared, nil
}

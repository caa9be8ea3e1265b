package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/event"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
)

// OverrideDocument lets a document-stage reviewer clear a document the scan
// pipeline gave up on. Security holds are never overridable here.
func (s *Service) OverrideDocument(ctx context.Context, input OverrideDocumentInput) (document.Document, error) {
	if err := s.checkReady(ctx); err != nil {
		return document.Document{}, err
	}
	if s.topology.DocumentStage == "" {
		return document.Document{}, errors.New("topology has no document stage")
	}
	documentID := strings.TrimSpace(input.DocumentID)
	note := strings.TrimSpace(input.Note)
	if note == "" {
		return document.Document{}, errors.New("override note is required")
	}

	assignment, ok, err := s.directory.Authorize(ctx, input.Principal.ID, s.topology.DocumentStage)
	if err != nil {
		return document.Document{}, errs.Wrap(err, "authorize reviewer")
	}
	if !ok {
		return document.Document{}, fmt.Errorf("%w: %s may not override documents", review.ErrUnauthorizedReviewer, input.Principal.ID)
	}

	now := s.now().UTC()
	var updated document.Document
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		doc, err := s.docs.Get(txCtx, documentID)
		if err != nil {
			return err
		}
		if doc.Status != document.StatusNeedsManualReview || doc.StatusReason == document.ReasonSecurityHold {
			return fmt.Errorf("%w: document %s is %s", document.ErrInvalidOverride, doc.ID, doc.Status)
		}
		quarantined, err := s.quarantine.IsQuarantined(txCtx, doc.StoragePath)
		if err != nil {
			return errs.Wrap(err, "check quarantine")
		}
		if quarantined {
			return fmt.Errorf("%w: document %s is quarantined", document.ErrInvalidOverride, doc.ID)
		}

		if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusCleanPendingReview, "", doc.ScanResultID, now); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, event.NewDocumentOverridden(doc.ID, doc.ApplicationID, assignment.PrincipalID, note, now)); err != nil {
			return err
		}

		updated = doc
		updated.Status = document.StatusCleanPendingReview
		updated.StatusReason = ""
		updated.UpdatedAt = now
		return nil
	}); err != nil {
		return document.Document{}, err
	}

	s.setCacheBestEffort(ctx, cacheDocumentStatusKey(updated.ID), string(updated.Status))
	logging.Warn(logging.WithAttrs(ctx, slog.String("component", "usecase.workflow")), "document cleared by manual override",
		slog.String("document_id", updated.ID),
		slog.String("principal", assignment.PrincipalID),
		slog.String("note", note),
	)
	return updated, nil
}

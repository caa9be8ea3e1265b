package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/event"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

// Decide records one reviewer's verdict on one stage. The application
// snapshot is read outside the transaction and written back with a version
// check, so a concurrent writer surfaces as review.ErrStaleStageState.
func (s *Service) Decide(ctx context.Context, input DecideInput) (StageOutcome, error) {
	if err := s.checkReady(ctx); err != nil {
		return StageOutcome{}, err
	}

	applicationID := strings.TrimSpace(input.ApplicationID)
	if applicationID == "" {
		return StageOutcome{}, fmt.Errorf("%w: application id is required", review.ErrApplicationNotFound)
	}
	stage := strings.TrimSpace(input.Stage)
	if !s.topology.IsKnown(stage) {
		return StageOutcome{}, fmt.Errorf("%w: %q", review.ErrUnknownStage, input.Stage)
	}
	verdict, err := review.ParseVerdict(input.Verdict)
	if err != nil {
		return StageOutcome{}, err
	}

	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.workflow"),
		slog.String("application_id", applicationID),
		slog.String("stage", stage),
	)

	assignment, ok, err := s.directory.Authorize(ctx, input.Principal.ID, stage)
	if err != nil {
		return StageOutcome{}, errs.Wrap(err, "authorize reviewer")
	}
	if !ok {
		logging.Warn(logCtx, "unauthorized stage decision", slog.String("principal", input.Principal.ID))
		return StageOutcome{}, fmt.Errorf("%w: %s may not decide %s", review.ErrUnauthorizedReviewer, input.Principal.ID, stage)
	}

	snapshot, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return StageOutcome{}, err
	}

	now := s.now().UTC()
	result, err := review.Decide(s.topology, snapshot, review.DecisionInput{
		Stage:    stage,
		Reviewer: assignment.PrincipalID,
		Verdict:  verdict,
		Notes:    strings.TrimSpace(input.Notes),
		At:       now,
	})
	if err != nil {
		return StageOutcome{}, err
	}

	var out StageOutcome
	err = s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var verified []document.Document
		if stage == s.topology.DocumentStage && verdict == review.DecisionApproved {
			docs, err := s.docs.ListByApplication(txCtx, applicationID)
			if err != nil {
				return err
			}
			verified, err = s.documentGate(txCtx, docs)
			if err != nil {
				return err
			}
		}

		stored, err := s.apps.CompareAndSwap(txCtx, result.Application, snapshot.Version)
		if err != nil {
			return err
		}

		record, err := s.ledger.Append(txCtx, ports.ReviewRecord{
			ApplicationID: applicationID,
			Stage:         stage,
			ReviewerID:    assignment.PrincipalID,
			ReviewerRole:  assignment.Role,
			Decision:      verdict,
			Notes:         strings.TrimSpace(input.Notes),
			Payload:       input.Payload,
			DecidedAt:     now,
		})
		if err != nil {
			return err
		}

		events := []event.Event{
			event.NewStageDecided(applicationID, stage, string(verdict), input.Principal.label(), now),
		}
		if result.Finalized {
			events = append(events, event.NewApplicationFinalized(applicationID, string(stored.Status), input.Principal.label(), now))
		}
		if err := s.events.Append(txCtx, events...); err != nil {
			return err
		}

		ids := make([]string, 0, len(verified))
		for _, doc := range verified {
			if doc.Status == document.StatusVerified {
				continue
			}
			if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusVerified, "", doc.ScanResultID, now); err != nil {
				return err
			}
			ids = append(ids, doc.ID)
		}

		out = StageOutcome{
			Application:       stored,
			Record:            record,
			UnlockedFinal:     result.UnlockedFinal,
			Finalized:         result.Finalized,
			VerifiedDocuments: ids,
		}
		return nil
	})
	if err != nil {
		return StageOutcome{}, err
	}

	s.setCacheBestEffort(ctx, cacheApplicationStatusKey(applicationID), string(out.Application.Status))
	for _, id := range out.VerifiedDocuments {
		s.setCacheBestEffort(ctx, cacheDocumentStatusKey(id), string(document.StatusVerified))
	}

	logging.Info(logCtx, "stage decided",
		slog.String("principal", assignment.PrincipalID),
		slog.String("verdict", string(verdict)),
		slog.String("status", string(out.Application.Status)),
		slog.Bool("final_unlocked", out.UnlockedFinal),
	)
	return out, nil
}

package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/review"
)

// Open creates a draft application with every stage pending.
func (s *Service) Open(ctx context.Context, applicantID string) (review.Application, error) {
	if err := s.checkReady(ctx); err != nil {
		return review.Application{}, err
	}
	applicantID = strings.TrimSpace(applicantID)
	if applicantID == "" {
		return review.Application{}, errors.New("applicant id is required")
	}

	app := review.NewApplication(s.topology, s.newID(), applicantID, s.now().UTC())
	if err := s.apps.Create(ctx, app); err != nil {
		return review.Application{}, err
	}

	s.setCacheBestEffort(ctx, cacheApplicationStatusKey(app.ID), string(app.Status))
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.workflow")), "application opened",
		slog.String("application_id", app.ID),
		slog.String("applicant_id", applicantID),
	)
	return app, nil
}

// Submit moves a draft to submitted.
func (s *Service) Submit(ctx context.Context, applicationID string) (review.Application, error) {
	return s.advance(ctx, applicationID, "submit", review.Submit)
}

// Endorse hands a submitted application to the committee, opening the
// required stages for decisions.
func (s *Service) Endorse(ctx context.Context, applicationID string) (review.Application, error) {
	return s.advance(ctx, applicationID, "endorse", review.Endorse)
}

func (s *Service) advance(
	ctx context.Context,
	applicationID string,
	action string,
	step func(review.Application, time.Time) (review.Application, error),
) (review.Application, error) {
	if err := s.checkReady(ctx); err != nil {
		return review.Application{}, err
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return review.Application{}, fmt.Errorf("%w: application id is required", review.ErrApplicationNotFound)
	}

	snapshot, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return review.Application{}, err
	}
	next, err := step(snapshot, s.now().UTC())
	if err != nil {
		return review.Application{}, err
	}

	var stored review.Application
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		stored, err = s.apps.CompareAndSwap(txCtx, next, snapshot.Version)
		return err
	}); err != nil {
		return review.Application{}, err
	}

	s.setCacheBestEffort(ctx, cacheApplicationStatusKey(applicationID), string(stored.Status))
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.workflow")), "application "+action,
		slog.String("application_id", applicationID),
		slog.String("status", string(stored.Status)),
	)
	return stored, nil
}

package workflow

import (
	"context"
	"fmt"
	"strings"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/ports"
)

type ApplicationDetail struct {
	Application review.Application
	Reviews     []ports.ReviewRecord
	Documents   []document.Document
}

func (s *Service) GetApplication(ctx context.Context, applicationID string) (ApplicationDetail, error) {
	if err := s.checkReady(ctx); err != nil {
		return ApplicationDetail{}, err
	}
	applicationID = strings.TrimSpace(applicationID)
	if applicationID == "" {
		return ApplicationDetail{}, fmt.Errorf("%w: application id is required", review.ErrApplicationNotFound)
	}

	app, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	reviews, err := s.ledger.List(ctx, applicationID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	docs, err := s.docs.ListByApplication(ctx, applicationID)
	if err != nil {
		return ApplicationDetail{}, err
	}
	return ApplicationDetail{
		Application: app,
		Reviews:     reviews,
		Documents:   docs,
	}, nil
}

// ListReviews returns the audit trail ordered by decision time.
func (s *Service) ListReviews(ctx context.Context, applicationID string) ([]ports.ReviewRecord, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if _, err := s.apps.Get(ctx, strings.TrimSpace(applicationID)); err != nil {
		return nil, err
	}
	return s.ledger.List(ctx, strings.TrimSpace(applicationID))
}

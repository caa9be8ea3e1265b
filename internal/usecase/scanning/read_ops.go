package scanning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"scholarflow/internal/domain/document"
)

type DocumentDetail struct {
	Document   document.Document
	ScanResult *document.ScanResult
	Jobs       []document.ScanJob
}

func (s *Service) GetDocument(ctx context.Context, documentID string) (DocumentDetail, error) {
	if err := s.checkReady(ctx); err != nil {
		return DocumentDetail{}, err
	}

	doc, err := s.docs.Get(ctx, strings.TrimSpace(documentID))
	if err != nil {
		return DocumentDetail{}, err
	}
	detail := DocumentDetail{Document: doc}
	if doc.ScanResultID != nil {
		result, err := s.docs.GetScanResult(ctx, *doc.ScanResultID)
		if err != nil {
			return DocumentDetail{}, err
		}
		detail.ScanResult = &result
	}
	detail.Jobs, err = s.jobs.ListByDocument(ctx, doc.ID)
	if err != nil {
		return DocumentDetail{}, err
	}
	return detail, nil
}

func (s *Service) ListDocuments(ctx context.Context, applicationID string) ([]document.Document, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	return s.docs.ListByApplication(ctx, strings.TrimSpace(applicationID))
}

// OpenDocument serves a document only when it has cleared scanning and the
// quarantine store does not hold its path.
func (s *Service) OpenDocument(ctx context.Context, documentID string) (io.ReadCloser, document.Document, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, document.Document{}, err
	}
	if s.storage == nil || s.quarantine == nil {
		return nil, document.Document{}, errors.New("file storage and quarantine store are required")
	}

	doc, err := s.docs.Get(ctx, strings.TrimSpace(documentID))
	if err != nil {
		return nil, document.Document{}, err
	}
	quarantined, err := s.quarantine.IsQuarantined(ctx, doc.StoragePath)
	if err != nil {
		return nil, document.Document{}, err
	}
	if quarantined {
		return nil, document.Document{}, fmt.Errorf("%w: document %s is quarantined", document.ErrDocumentNotServable, doc.ID)
	}
	if !doc.Status.ClearedForReview() {
		return nil, document.Document{}, fmt.Errorf("%w: document %s is %s", document.ErrDocumentNotServable, doc.ID, doc.Status)
	}

	rc, err := s.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, document.Document{}, err
	}
	return rc, doc, nil
}

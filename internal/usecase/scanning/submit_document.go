package scanning

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
)

type SubmitDocumentInput struct {
	ApplicationID string
	StudentID     string
	FileName      string
	Content       io.Reader
}

// SubmitDocument stores an upload, records it as pending and queues its scan.
// It returns once the job is durable; scanning happens on the worker pool.
func (s *Service) SubmitDocument(ctx context.Context, input SubmitDocumentInput) (document.Document, error) {
	if err := s.checkReady(ctx); err != nil {
		return document.Document{}, err
	}
	if s.storage == nil {
		return document.Document{}, errors.New("file storage is required")
	}

	applicationID := strings.TrimSpace(input.ApplicationID)
	if applicationID == "" {
		return document.Document{}, errors.New("application id is required")
	}
	studentID := strings.TrimSpace(input.StudentID)
	if studentID == "" {
		return document.Document{}, errors.New("student id is required")
	}
	fileName := filepath.Base(strings.TrimSpace(input.FileName))
	if fileName == "" || fileName == "." || fileName == string(filepath.Separator) {
		return document.Document{}, errors.New("file name is required")
	}
	if input.Content == nil {
		return document.Document{}, errors.New("file content is required")
	}
	if err := s.checkApplicationOpen(ctx, applicationID); err != nil {
		return document.Document{}, err
	}

	stored, err := s.storage.Save(ctx, applicationID, fileName, input.Content)
	if err != nil {
		return document.Document{}, errs.Wrap(err, "store upload")
	}

	now := s.now().UTC()
	doc := document.Document{
		ID:            s.newID(),
		ApplicationID: applicationID,
		StudentID:     studentID,
		FileName:      fileName,
		StoragePath:   stored.Path,
		SizeBytes:     stored.SizeBytes,
		SHA256:        stored.SHA256,
		Status:        document.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		if err := s.docs.Create(txCtx, doc); err != nil {
			return err
		}
		_, err := s.enqueue(txCtx, doc.ID, doc.StoragePath, now)
		return err
	}); err != nil {
		_ = s.storage.Remove(ctx, stored.Path)
		return document.Document{}, err
	}

	s.setCacheBestEffort(ctx, doc.ID, doc.Status)
	logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.scanning")), "document submitted",
		slog.String("document_id", doc.ID),
		slog.String("application_id", applicationID),
		slog.Int64("size_bytes", doc.SizeBytes),
	)
	return doc, nil
}

// Enqueue schedules a scan for documentID unless one is already queued or
// running. created is false for the no-op case. Only pending documents and
// documents awaiting manual review (outside a security hold) can be queued;
// the latter go back to pending.
func (s *Service) Enqueue(ctx context.Context, documentID string) (bool, error) {
	if err := s.checkReady(ctx); err != nil {
		return false, err
	}
	if s.quarantine == nil {
		return false, errs.Wrap(errQuarantineMissing, "enqueue scan")
	}
	doc, err := s.docs.Get(ctx, strings.TrimSpace(documentID))
	if err != nil {
		return false, err
	}
	if !doc.Rescannable() {
		return false, fmt.Errorf("%w: document %s is %s", document.ErrScanNotAllowed, doc.ID, doc.Status)
	}
	quarantined, err := s.quarantine.IsQuarantined(ctx, doc.StoragePath)
	if err != nil {
		return false, errs.Wrap(err, "check quarantine")
	}
	if quarantined {
		return false, fmt.Errorf("%w: document %s is quarantined", document.ErrScanNotAllowed, doc.ID)
	}

	now := s.now().UTC()
	var created bool
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		created, err = s.enqueue(txCtx, doc.ID, doc.StoragePath, now)
		if err != nil || !created || doc.Status == document.StatusPending {
			return err
		}
		return s.docs.UpdateStatus(txCtx, doc.ID, document.StatusPending, "", doc.ScanResultID, now)
	}); err != nil {
		return false, err
	}

	if created {
		s.setCacheBestEffort(ctx, doc.ID, document.StatusPending)
		logging.Info(logging.WithAttrs(ctx, slog.String("component", "usecase.scanning")), "document queued for scanning",
			slog.String("document_id", doc.ID),
			slog.String("previous_status", string(doc.Status)),
		)
	}
	return created, nil
}

// checkApplicationOpen refuses uploads for unknown or finalized applications.
func (s *Service) checkApplicationOpen(ctx context.Context, applicationID string) error {
	if s.apps == nil {
		return errors.New("application repository is required")
	}
	app, err := s.apps.Get(ctx, applicationID)
	if err != nil {
		return err
	}
	if app.Status.IsTerminal() {
		return fmt.Errorf("%w: application %s is %s", review.ErrApplicationAlreadyFinalized, app.ID, app.Status)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, documentID string, path string, now time.Time) (bool, error) {
	return s.jobs.EnqueueIfIdle(ctx, document.ScanJob{
		ID:            s.newID(),
		DocumentID:    documentID,
		FilePath:      path,
		State:         document.JobQueued,
		NextAttemptAt: now,
		CreatedAt:     now,
	})
}

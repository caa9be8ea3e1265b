package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/event"
	"scholarflow/internal/errs"
)

var (
	errScannerMissing    = errors.New("scanner is required")
	errQuarantineMissing = errors.New("quarantine store is required")
)

const fallbackThreat = "unverified:scanner-unavailable"

func (s *Service) runJob(ctx context.Context, job document.ScanJob) {
	logCtx := logging.WithAttrs(ctx,
		slog.String("component", "usecase.scanning.executor"),
		slog.String("job_id", job.ID),
		slog.String("document_id", job.DocumentID),
	)

	if err := s.execute(logCtx, job); err != nil {
		logging.Error(logCtx, "scan job failed to settle", slog.Any("err", errs.Loggable(err)))
		// Leave the attempt count alone; the job is retried after the
		// initial backoff.
		next := s.now().UTC().Add(s.opts.BackoffInitial)
		if rerr := s.jobs.Reschedule(context.WithoutCancel(ctx), job.ID, job.Attempts, next, err.Error()); rerr != nil {
			logging.Error(logCtx, "reschedule scan job failed", slog.Any("err", errs.Loggable(rerr)))
		}
	}
}

func (s *Service) execute(ctx context.Context, job document.ScanJob) error {
	doc, err := s.docs.Get(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	if doc.Status != document.StatusPending {
		return s.settleSkipped(context.WithoutCancel(ctx), job, doc)
	}
	quarantined, err := s.quarantine.IsQuarantined(ctx, doc.StoragePath)
	if err != nil {
		return errs.Wrap(err, "check quarantine")
	}
	if quarantined {
		// A previous attempt moved the file but did not finish settling.
		return s.resumeQuarantined(context.WithoutCancel(ctx), job, doc)
	}

	attempt := job.Attempts + 1
	attemptCtx, cancel := context.WithTimeout(ctx, s.opts.AttemptTimeout)
	result, scanErr := s.scanner.Scan(attemptCtx, job.FilePath, doc.FileName)
	attemptErr := attemptCtx.Err()
	cancel()

	if ctx.Err() != nil {
		// Shutdown, not a failed attempt.
		return errs.Wrap(ctx.Err(), "scan interrupted")
	}
	if scanErr != nil && errors.Is(attemptErr, context.DeadlineExceeded) && !errors.Is(scanErr, document.ErrScanTimeout) {
		scanErr = fmt.Errorf("%w: attempt exceeded %s: %v", document.ErrScanTimeout, s.opts.AttemptTimeout, scanErr)
	}

	budget := s.opts.MaxAttempts
	if scanErr != nil && errs.IsPermanent(scanErr) {
		budget = attempt
	}
	if scanErr == nil {
		result.DocumentID = doc.ID
	}

	// Settlement runs even if the caller is shutting down.
	ctx = context.WithoutCancel(ctx)

	switch verdict := document.SettleAttempt(result, scanErr, attempt, budget, s.opts.Fallback); verdict {
	case document.VerdictClean:
		return s.settleClean(ctx, job, doc, result, attempt)
	case document.VerdictInfected:
		return s.settleInfected(ctx, job, doc, result, attempt)
	case document.VerdictRetry:
		return s.settleRetry(ctx, job, attempt, scanErr)
	case document.VerdictFallbackReject, document.VerdictFallbackAllow:
		return s.settleFallback(ctx, job, doc, attempt, scanErr, verdict)
	default:
		return s.settleManualReview(ctx, job, doc, attempt, scanErr)
	}
}

func (s *Service) settleClean(ctx context.Context, job document.ScanJob, doc document.Document, result document.ScanResult, attempt int) error {
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		saved, err := s.docs.SaveScanResult(txCtx, result)
		if err != nil {
			return err
		}
		if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusCleanPendingReview, "", &saved.ID, s.now().UTC()); err != nil {
			return err
		}
		return s.jobs.Finish(txCtx, job.ID, document.JobClean, attempt, "")
	}); err != nil {
		return err
	}

	s.setCacheBestEffort(ctx, doc.ID, document.StatusCleanPendingReview)
	logging.Info(ctx, "document scanned clean",
		slog.String("backend", result.Backend),
		slog.Duration("duration", result.Duration),
		slog.Int("attempt", attempt),
	)
	return nil
}

// settleInfected moves the file into quarantine before anything else is
// written. The quarantine record commits with the move, so a failure in the
// status write leaves a record that the next attempt resumes from.
func (s *Service) settleInfected(ctx context.Context, job document.ScanJob, doc document.Document, result document.ScanResult, attempt int) error {
	if _, err := s.quarantine.Quarantine(ctx, doc, result); err != nil {
		if errors.Is(err, document.ErrQuarantineFailure) {
			return s.escalateQuarantineFailure(ctx, job, doc, attempt, err)
		}
		return err
	}
	return s.recordInfected(ctx, job, doc, result, attempt)
}

func (s *Service) recordInfected(ctx context.Context, job document.ScanJob, doc document.Document, result document.ScanResult, attempt int) error {
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		saved, err := s.docs.SaveScanResult(txCtx, result)
		if err != nil {
			return err
		}
		now := s.now().UTC()
		if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusRejected, document.ReasonMalicious, &saved.ID, now); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, event.NewMaliciousFileDetected(doc.ID, doc.ApplicationID, saved.ThreatName, now)); err != nil {
			return err
		}
		return s.jobs.Finish(txCtx, job.ID, document.JobInfected, attempt, "")
	}); err != nil {
		return err
	}

	s.setCacheBestEffort(ctx, doc.ID, document.StatusRejected)
	logging.Warn(ctx, "malicious file quarantined",
		slog.String("threat", result.ThreatName),
		slog.String("backend", result.Backend),
	)
	return nil
}

func (s *Service) settleRetry(ctx context.Context, job document.ScanJob, attempt int, scanErr error) error {
	delay := s.retryDelay(attempt)
	if err := s.jobs.Reschedule(ctx, job.ID, attempt, s.now().UTC().Add(delay), scanErr.Error()); err != nil {
		return err
	}
	logging.Warn(ctx, "scan attempt failed, retrying",
		slog.Int("attempt", attempt),
		slog.Int("max_attempts", s.opts.MaxAttempts),
		slog.Duration("retry_in", delay),
		slog.Any("err", errs.Loggable(scanErr)),
	)
	return nil
}

// settleFallback applies the configured outage policy once the retry budget
// is spent on an unreachable engine.
func (s *Service) settleFallback(ctx context.Context, job document.ScanJob, doc document.Document, attempt int, scanErr error, verdict document.Verdict) error {
	if verdict == document.VerdictFallbackReject {
		if _, err := s.quarantine.Quarantine(ctx, doc, document.ScanResult{DocumentID: doc.ID, ThreatName: fallbackThreat}); err != nil {
			if errors.Is(err, document.ErrQuarantineFailure) {
				return s.escalateQuarantineFailure(ctx, job, doc, attempt, err)
			}
			return err
		}
	}
	return s.recordFallback(ctx, job, doc, attempt, scanErr, verdict)
}

func (s *Service) recordFallback(ctx context.Context, job document.ScanJob, doc document.Document, attempt int, scanErr error, verdict document.Verdict) error {
	status := document.StatusCleanPendingReview
	reason := ""
	policy := document.FallbackAllow
	if verdict == document.VerdictFallbackReject {
		status = document.StatusRejected
		reason = document.ReasonScanUnavailable
		policy = document.FallbackReject
	}

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		now := s.now().UTC()
		if err := s.docs.UpdateStatus(txCtx, doc.ID, status, reason, nil, now); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, event.NewScanFallbackApplied(doc.ID, string(policy), string(status), scanErr.Error(), now)); err != nil {
			return err
		}
		return s.jobs.Finish(txCtx, job.ID, document.JobFailed, attempt, scanErr.Error())
	}); err != nil {
		return err
	}

	s.setCacheBestEffort(ctx, doc.ID, status)
	attrs := []slog.Attr{
		slog.String("policy", string(policy)),
		slog.String("document_status", string(status)),
		slog.Int("attempts", attempt),
		slog.Any("err", errs.Loggable(scanErr)),
	}
	if verdict == document.VerdictFallbackAllow {
		logging.Warn(ctx, "scanner unavailable, fail-open policy admitted an unscanned document", attrs...)
	} else {
		logging.Warn(ctx, "scanner unavailable, fail-closed policy rejected the document", attrs...)
	}
	return nil
}

// resumeQuarantined finishes a settlement whose file move already happened.
// The quarantine record says which outcome it was; the engine is not asked
// again.
func (s *Service) resumeQuarantined(ctx context.Context, job document.ScanJob, doc document.Document) error {
	record, err := s.quarantine.Quarantine(ctx, doc, document.ScanResult{DocumentID: doc.ID})
	if err != nil {
		return err
	}
	attempt := job.Attempts + 1
	logging.Warn(ctx, "resuming settlement of quarantined document",
		slog.String("quarantine_id", record.ID),
		slog.Int("attempt", attempt),
	)

	if record.ThreatName == fallbackThreat {
		cause := fmt.Errorf("%w: settled from quarantine record %s", document.ErrScannerUnavailable, record.ID)
		return s.recordFallback(ctx, job, doc, attempt, cause, document.VerdictFallbackReject)
	}
	return s.recordInfected(ctx, job, doc, document.ScanResult{
		DocumentID: doc.ID,
		ThreatName: record.ThreatName,
		Backend:    "quarantine",
		ScannedAt:  record.QuarantinedAt,
	}, attempt)
}

// settleSkipped closes a job whose document was settled some other way
// after the job was queued. The document is left as it is.
func (s *Service) settleSkipped(ctx context.Context, job document.ScanJob, doc document.Document) error {
	reason := fmt.Sprintf("document is %s, scan skipped", doc.Status)
	if err := s.jobs.Finish(ctx, job.ID, document.JobFailed, job.Attempts, reason); err != nil {
		return err
	}
	logging.Warn(ctx, "scan job skipped for settled document", slog.String("document_status", string(doc.Status)))
	return nil
}

func (s *Service) settleManualReview(ctx context.Context, job document.ScanJob, doc document.Document, attempt int, scanErr error) error {
	exhausted := fmt.Errorf("%w after %d attempts: %v", document.ErrScanRetriesExhausted, attempt, scanErr)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		now := s.now().UTC()
		if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusNeedsManualReview, document.ReasonNeedsManualCheck, nil, now); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, event.NewScanRetriesExhausted(doc.ID, attempt, scanErr.Error(), now)); err != nil {
			return err
		}
		return s.jobs.Finish(txCtx, job.ID, document.JobFailed, attempt, exhausted.Error())
	}); err != nil {
		return err
	}

	s.setCacheBestEffort(ctx, doc.ID, document.StatusNeedsManualReview)
	logging.Error(ctx, "scan retries exhausted, document needs manual review", slog.Any("err", errs.Loggable(exhausted)))
	return nil
}

// escalateQuarantineFailure puts the document on a security hold. Isolation
// could not be guaranteed, so nothing about the job is retried.
func (s *Service) escalateQuarantineFailure(ctx context.Context, job document.ScanJob, doc document.Document, attempt int, cause error) error {
	logging.Error(ctx, "quarantine failed, document placed on security hold",
		slog.String("path", doc.StoragePath),
		slog.Any("err", errs.Loggable(errs.WithStack(cause))),
	)

	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		now := s.now().UTC()
		if err := s.docs.UpdateStatus(txCtx, doc.ID, document.StatusNeedsManualReview, document.ReasonSecurityHold, nil, now); err != nil {
			return err
		}
		if err := s.events.Append(txCtx, event.NewQuarantineFailed(doc.ID, doc.StoragePath, cause.Error(), now)); err != nil {
			return err
		}
		return s.jobs.Finish(txCtx, job.ID, document.JobFailed, attempt, cause.Error())
	}); err != nil {
		return errs.Wrap(err, "record quarantine failure")
	}

	s.setCacheBestEffort(ctx, doc.ID, document.StatusNeedsManualReview)
	return nil
}

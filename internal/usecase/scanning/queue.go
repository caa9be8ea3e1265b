package scanning

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/errgroup"

	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
)

// Run polls for due scan jobs until ctx is cancelled. Jobs left running by a
// previous process are requeued first.
func (s *Service) Run(ctx context.Context) error {
	if err := s.checkReady(ctx); err != nil {
		return err
	}
	logCtx := logging.WithAttrs(ctx, slog.String("component", "usecase.scanning.queue"))

	requeued, err := s.jobs.RequeueRunning(ctx, s.now().UTC())
	if err != nil {
		return errs.Wrap(err, "requeue orphaned scan jobs")
	}
	if requeued > 0 {
		logging.Warn(logCtx, "requeued scan jobs left running", slog.Int("count", requeued))
	}
	logging.Info(logCtx, "scan queue started",
		slog.Int("workers", s.opts.Workers),
		slog.Int("max_attempts", s.opts.MaxAttempts),
		slog.String("fallback_policy", string(s.opts.Fallback)),
	)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	// The pool outlives each poll; a poll only claims as many jobs as there
	// are idle workers, so one slow scan never holds back the rest.
	var (
		pool errgroup.Group
		busy atomic.Int64
	)
	pool.SetLimit(s.opts.Workers)

	for {
		idle := s.opts.Workers - int(busy.Load())
		claimed := 0
		if idle > 0 {
			jobs, err := s.claimDue(ctx, min(idle, s.opts.BatchSize))
			if err != nil && ctx.Err() == nil {
				logging.Error(logCtx, "scan queue poll failed", slog.Any("err", errs.Loggable(err)))
			}
			for _, job := range jobs {
				busy.Add(1)
				pool.Go(func() error {
					defer busy.Add(-1)
					s.runJob(ctx, job)
					return nil
				})
			}
			claimed = len(jobs)
		}
		// Idle workers were all filled, so more work is probably waiting.
		if claimed > 0 && claimed == idle && ctx.Err() == nil {
			continue
		}

		select {
		case <-ctx.Done():
			_ = pool.Wait()
			logging.Info(logCtx, "scan queue stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce claims one batch of due jobs, runs them on the worker pool
// and waits for all of them to settle.
func (s *Service) ProcessOnce(ctx context.Context) (int, error) {
	jobs, err := s.claimDue(ctx, s.opts.BatchSize)
	if err != nil {
		return 0, err
	}

	var g errgroup.Group
	g.SetLimit(s.opts.Workers)
	for _, job := range jobs {
		g.Go(func() error {
			s.runJob(ctx, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(jobs), nil
}

func (s *Service) claimDue(ctx context.Context, limit int) ([]document.ScanJob, error) {
	if err := s.checkReady(ctx); err != nil {
		return nil, err
	}
	if s.scanner == nil {
		return nil, errs.Wrap(errScannerMissing, "process scan jobs")
	}
	if s.quarantine == nil {
		return nil, errs.Wrap(errQuarantineMissing, "process scan jobs")
	}
	return s.jobs.ClaimDue(ctx, s.now().UTC(), limit)
}

// retryDelay is the exponential backoff before attempt+1.
func (s *Service) retryDelay(attempt int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.opts.BackoffInitial
	b.MaxInterval = s.opts.BackoffMax
	b.Reset()

	delay := b.NextBackOff()
	for i := 1; i < attempt; i++ {
		delay = b.NextBackOff()
	}
	return delay
}

package scanning

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"scholarflow/internal/domain/document"
	"scholarflow/internal/errs"
	"scholarflow/internal/ports"
)

// Options tune the scan queue. Zero values fall back to DefaultOptions.
type Options struct {
	Workers        int
	MaxAttempts    int
	AttemptTimeout time.Duration
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	PollInterval   time.Duration
	BatchSize      int
	Fallback       document.FallbackPolicy
}

func DefaultOptions() Options {
	return Options{
		Workers:        4,
		MaxAttempts:    3,
		AttemptTimeout: 5 * time.Minute,
		BackoffInitial: 10 * time.Second,
		BackoffMax:     5 * time.Minute,
		PollInterval:   2 * time.Second,
		BatchSize:      16,
		Fallback:       document.FallbackReject,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.Workers <= 0 {
		o.Workers = def.Workers
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = def.AttemptTimeout
	}
	if o.BackoffInitial <= 0 {
		o.BackoffInitial = def.BackoffInitial
	}
	if o.BackoffMax < o.BackoffInitial {
		o.BackoffMax = o.BackoffInitial
	}
	if o.PollInterval <= 0 {
		o.PollInterval = def.PollInterval
	}
	if o.BatchSize <= 0 {
		o.BatchSize = def.BatchSize
	}
	if o.Fallback == "" {
		o.Fallback = def.Fallback
	}
	return o
}

// Service owns upload ingress and the scan job queue. Documents and scan
// results are written only from here.
type Service struct {
	apps       ports.ApplicationRepository
	docs       ports.DocumentRepository
	jobs       ports.ScanJobRepository
	scanner    ports.Scanner
	quarantine ports.QuarantineStore
	storage    ports.FileStorage
	events     ports.EventLog
	uow        ports.UnitOfWork
	cache      ports.Cache
	opts       Options
	now        func() time.Time
	newID      func() string
}

type Deps struct {
	Applications ports.ApplicationRepository
	Documents    ports.DocumentRepository
	Jobs         ports.ScanJobRepository
	Scanner      ports.Scanner
	Quarantine   ports.QuarantineStore
	Storage      ports.FileStorage
	Events       ports.EventLog
	UnitOfWork   ports.UnitOfWork
	Cache        ports.Cache
}

func NewService(deps Deps, opts Options) *Service {
	return &Service{
		apps:       deps.Applications,
		docs:       deps.Documents,
		jobs:       deps.Jobs,
		scanner:    deps.Scanner,
		quarantine: deps.Quarantine,
		storage:    deps.Storage,
		events:     deps.Events,
		uow:        deps.UnitOfWork,
		cache:      deps.Cache,
		opts:       opts.withDefaults(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) Options() Options {
	return s.opts
}

func (s *Service) checkReady(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return errs.Wrap(err, "check context")
	}
	if s.docs == nil {
		return errors.New("document repository is required")
	}
	if s.jobs == nil {
		return errors.New("scan job repository is required")
	}
	if s.events == nil {
		return errors.New("event log is required")
	}
	if s.uow == nil {
		return errors.New("unit of work is required")
	}
	return nil
}

func (s *Service) setCacheBestEffort(ctx context.Context, documentID string, status document.Status) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Set(ctx, "document:"+documentID+":status", string(status), 0)
}

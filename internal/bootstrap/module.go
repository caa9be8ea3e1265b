package bootstrap

import (
	"context"
	"log/slog"

	"go.uber.org/fx"
	"gorm.io/gorm"

	"scholarflow/internal/bootstrap/config"
	"scholarflow/internal/bootstrap/database"
	"scholarflow/internal/bootstrap/logging"
	"scholarflow/internal/domain/document"
	"scholarflow/internal/domain/review"
	cacheinfra "scholarflow/internal/infrastructure/cache"
	"scholarflow/internal/infrastructure/events"
	"scholarflow/internal/infrastructure/persistence/repository"
	"scholarflow/internal/infrastructure/persistence/uow"
	"scholarflow/internal/infrastructure/quarantine"
	"scholarflow/internal/infrastructure/scanner"
	"scholarflow/internal/infrastructure/storage"
	"scholarflow/internal/ports"
	"scholarflow/internal/usecase/notify"
	"scholarflow/internal/usecase/scanning"
	"scholarflow/internal/usecase/workflow"
)

var Module = fx.Options(
	fx.Provide(provideConfig),
	fx.Provide(provideDatabase),
	fx.Provide(provideApp),
	fx.Provide(provideTopology),
	fx.Provide(
		fx.Annotate(repository.NewApplicationRepository, fx.As(new(ports.ApplicationRepository))),
		fx.Annotate(repository.NewReviewLedger, fx.As(new(ports.ReviewLedger))),
		fx.Annotate(repository.NewDocumentRepository, fx.As(new(ports.DocumentRepository))),
		fx.Annotate(repository.NewScanJobRepository, fx.As(new(ports.ScanJobRepository))),
		fx.Annotate(repository.NewQuarantineRepository, fx.As(new(ports.QuarantineRepository))),
		fx.Annotate(repository.NewEventLog, fx.As(new(ports.EventLog))),
		repository.NewReviewerDirectory,
	),
	fx.Provide(
		fx.Annotate(
			uow.NewUnitOfWork,
			fx.As(new(ports.UnitOfWork)),
		),
	),
	fx.Provide(
		fx.Annotate(
			cacheinfra.NewKVCache,
			fx.As(new(ports.Cache)),
		),
	),
	fx.Provide(provideScanner),
	fx.Provide(provideStorage),
	fx.Provide(provideQuarantine),
	fx.Provide(providePublishers),
	fx.Provide(provideWorkflow),
	fx.Provide(provideScanning),
	fx.Provide(provideRelay),
	fx.Provide(provideServices),
)

type configParams struct {
	fx.In

	Ctx        context.Context
	ConfigFile string `name:"configFile"`
}

func provideConfig(p configParams) (config.Config, error) {
	ctx := logging.WithAttrs(p.Ctx, slog.String("component", "bootstrap.fx"))
	return config.Load(ctx, p.ConfigFile)
}

func provideDatabase(lc fx.Lifecycle, ctx context.Context, cfg config.Config) (*gorm.DB, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	db, err := database.Open(logCtx, cfg.Database)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(_ context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.Close()
		},
	})

	return db, nil
}

func provideApp(cfg config.Config, db *gorm.DB) *App {
	return &App{
		Config: cfg,
		DB:     db,
	}
}

func provideTopology(cfg config.Config) (review.Topology, error) {
	return workflow.LoadTopology(cfg.Workflow.Profile)
}

func provideScanner(cfg config.Config) (ports.Scanner, error) {
	engine, err := scanner.New(cfg.Scanner, cfg.IsNonProduction())
	if err != nil {
		return nil, err
	}
	return engine, nil
}

func provideStorage(cfg config.Config) (ports.FileStorage, error) {
	local, err := storage.NewLocal(cfg.Storage.UploadDir)
	if err != nil {
		return nil, err
	}
	return local, nil
}

func provideQuarantine(cfg config.Config, records ports.QuarantineRepository) (ports.QuarantineStore, error) {
	store, err := quarantine.NewStore(cfg.Storage.QuarantineDir, records)
	if err != nil {
		return nil, err
	}
	return store, nil
}

func providePublishers(ctx context.Context, cfg config.Config) ([]ports.Publisher, error) {
	logCtx := logging.WithAttrs(ctx, slog.String("component", "bootstrap.fx"))

	var out []ports.Publisher
	if cfg.Notify.Log.Enabled {
		out = append(out, events.NewLogPublisher())
	}
	if cfg.Notify.Mail.Enabled {
		p, err := events.NewMailPublisher(cfg.Notify.Mail)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if cfg.Notify.CloudEvents.Enabled {
		p, err := events.NewCloudEventsPublisher(cfg.Notify.CloudEvents)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		logging.Warn(logCtx, "no event publishers enabled, events stay in the log only")
	}
	return out, nil
}

type workflowParams struct {
	fx.In

	Apps       ports.ApplicationRepository
	Ledger     ports.ReviewLedger
	Directory  *repository.ReviewerDirectory
	Documents  ports.DocumentRepository
	Quarantine ports.QuarantineStore
	Events     ports.EventLog
	UoW        ports.UnitOfWork
	Cache      ports.Cache
	Topology   review.Topology
}

func provideWorkflow(p workflowParams) *workflow.Service {
	return workflow.NewService(p.Apps, p.Ledger, p.Directory, p.Documents, p.Quarantine, p.Events, p.UoW, p.Cache, p.Topology)
}

type scanningParams struct {
	fx.In

	Config     config.Config
	Apps       ports.ApplicationRepository
	Documents  ports.DocumentRepository
	Jobs       ports.ScanJobRepository
	Scanner    ports.Scanner
	Quarantine ports.QuarantineStore
	Storage    ports.FileStorage
	Events     ports.EventLog
	UoW        ports.UnitOfWork
	Cache      ports.Cache
}

func provideScanning(p scanningParams) (*scanning.Service, error) {
	fallback, err := document.ParseFallbackPolicy(p.Config.ScanQueue.FallbackPolicy)
	if err != nil {
		return nil, err
	}
	q := p.Config.ScanQueue
	return scanning.NewService(scanning.Deps{
		Applications: p.Apps,
		Documents:    p.Documents,
		Jobs:         p.Jobs,
		Scanner:      p.Scanner,
		Quarantine:   p.Quarantine,
		Storage:      p.Storage,
		Events:       p.Events,
		UnitOfWork:   p.UoW,
		Cache:        p.Cache,
	}, scanning.Options{
		Workers:        q.Workers,
		MaxAttempts:    q.MaxAttempts,
		AttemptTimeout: q.AttemptTimeout,
		BackoffInitial: q.BackoffInitial,
		BackoffMax:     q.BackoffMax,
		PollInterval:   q.PollInterval,
		BatchSize:      q.BatchSize,
		Fallback:       fallback,
	}), nil
}

func provideRelay(cfg config.Config, log ports.EventLog, cache ports.Cache, publishers []ports.Publisher) *notify.Relay {
	return notify.NewRelay(log, cache, publishers, cfg.Notify.BatchSize)
}

func provideServices(wf *workflow.Service, sc *scanning.Service, relay *notify.Relay, directory *repository.ReviewerDirectory) *Services {
	return &Services{Workflow: wf, Scanning: sc, Relay: relay, Admin: directory}
}

package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"TenderMonitor/internal/classifier"
	"TenderMonitor/internal/config"
	"TenderMonitor/internal/domain"
	"TenderMonitor/internal/enricher"
	"TenderMonitor/internal/infrastructure/httpapi"
	"TenderMonitor/internal/infrastructure/mercadopublico"
	"TenderMonitor/internal/infrastructure/scheduler"
	"TenderMonitor/internal/infrastructure/storage"
	"TenderMonitor/internal/infrastructure/telegram"
	"TenderMonitor/internal/logging"
	"TenderMonitor/internal/ports"
	"TenderMonitor/internal/usecase"
)

const shutdownTimeout = 15 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	pipeline  *usecase.Pipeline
	scheduler *usecase.Scheduler
	server    *httpapi.Server
	closers   []func()
}

// New opens the storage backends and builds every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level, cfg.Logging.Format)
	}
	a := &Application{cfg: cfg, logger: baseLogger}
	loc := cfg.Scheduler.Location()

	lifecycle, cache, err := a.openStorage(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	client := mercadopublico.NewClient(mercadopublico.Options{
		BaseURL:           cfg.API.BaseURL,
		Ticket:            cfg.API.Ticket,
		Timeout:           cfg.API.Timeout,
		MaxAttempts:       cfg.API.MaxAttempts,
		BackoffBase:       cfg.API.BackoffBase,
		RequestsPerSecond: cfg.API.RequestsPerSecond,
		Location:          loc,
		Logger:            baseLogger.With("component", "mercadopublico"),
	})

	var sources enricher.Sources
	if cfg.API.FichaEnabled {
		sources.Ficha = mercadopublico.NewFichaScraper(cfg.API.FichaURL, nil)
	}
	if cfg.API.OCDSEnabled {
		sources.OCDS = mercadopublico.NewOCDSClient(cfg.API.OCDSURL, nil, loc, baseLogger.With("component", "ocds"))
	}

	details := enricher.New(client, cache, sources, enricher.Config{
		Workers:            cfg.Enricher.Workers,
		RetryWorkers:       cfg.Enricher.RetryWorkers,
		RetryWaves:         cfg.Enricher.RetryWaves,
		RetryDelay:         cfg.Enricher.RetryDelay,
		RefreshCloseWithin: cfg.Enricher.RefreshCloseWithin,
		Retryable:          mercadopublico.IsTransient,
	}, baseLogger.With("component", "enricher"))

	a.pipeline = usecase.NewPipeline(usecase.PipelineDeps{
		API:        client,
		Classifier: classifier.New(keywords(cfg.Classifier), cfg.Classifier.Exclusions),
		Lifecycle:  lifecycle,
		Enricher:   details,
		UTMValue:   cfg.Amount.UTMValue,
		Location:   loc,
		Logger:     baseLogger.With("component", "pipeline"),
	})

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		tg := cfg.Notifications.Telegram
		notifier = telegram.NewNotifier(tg.APIBase, tg.BotToken, tg.ChatID)
	}

	var driver ports.Scheduler
	if cfg.Scheduler.Enabled {
		driver = scheduler.NewCronScheduler(cfg.Scheduler.CronExpression, scheduler.Options{
			Location:   loc,
			RunOnStart: cfg.Scheduler.RunOnStart,
			Logger:     baseLogger.With("component", "scheduler"),
		})
	}
	a.scheduler = usecase.NewScheduler(driver, a.pipeline, notifier, cfg.Scheduler.LookbackDays, baseLogger.With("component", "scheduler"))
	a.server = httpapi.New(a.pipeline, loc, baseLogger.With("component", "httpapi"))

	return a, nil
}

// Run starts the scheduler and the HTTP API and blocks until ctx is done or the listener fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	listenErr := make(chan error, 1)
	go func() {
		listenErr <- a.server.Listen(a.cfg.Server.Addr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-listenErr:
		runErr = fmt.Errorf("http api: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("http api shutdown", "error", err)
	}
	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", "error", err)
	}
	return runErr
}

// RunOnce performs a single refresh and writes the result as JSON to w.
func (a *Application) RunOnce(ctx context.Context, req domain.RefreshRequest, w io.Writer) error {
	result, err := a.pipeline.Refresh(ctx, req)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	return nil
}

// Location is the timezone tender dates are interpreted in.
func (a *Application) Location() *time.Location {
	return a.cfg.Scheduler.Location()
}

// Close releases storage handles in reverse order of opening.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *Application) openStorage(ctx context.Context) (ports.LifecycleStore, ports.DetailCache, error) {
	st := a.cfg.Storage
	logger := a.logger.With("component", "storage")

	if st.AutoMigrate && (st.Backend == config.BackendPostgres || st.DetailCache == config.BackendPostgres) {
		if err := storage.Migrate(st.DSN); err != nil {
			return nil, nil, err
		}
		logger.Info("migrations applied")
	}

	var lifecycle ports.LifecycleStore
	switch st.Backend {
	case config.BackendPostgres:
		db, err := storage.OpenPostgres(ctx, st.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		lifecycle = storage.NewPostgresLifecycle(db)
	case config.BackendMemory:
		logger.Warn("lifecycle store is in memory; hidden, saved and seen sets are lost on exit")
		lifecycle = storage.NewMemoryLifecycle()
	default:
		return nil, nil, fmt.Errorf("unsupported storage backend %q", st.Backend)
	}

	var cache ports.DetailCache
	switch st.DetailCache {
	case config.BackendPostgres:
		pool, err := storage.NewPostgresPool(ctx, st.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, pool.Close)
		cache = storage.NewPostgresDetailCache(pool, logger)
	case config.BackendRedis:
		rdb, err := storage.NewRedisClient(ctx, st.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		cache = storage.NewRedisDetailCache(rdb, logger)
	case config.BackendMemory:
		cache = storage.NewMemoryDetailCache(logger)
	default:
		return nil, nil, errors.New("unsupported detail cache backend " + st.DetailCache)
	}

	return lifecycle, cache, nil
}

func keywords(cfg config.ClassifierConfig) []classifier.Keyword {
	out := make([]classifier.Keyword, 0, len(cfg.Keywords))
	for _, kw := range cfg.Keywords {
		out = append(out, classifier.Keyword{Phrase: kw.Phrase, Category: kw.Category, Strict: kw.Strict})
	}
	return out
}

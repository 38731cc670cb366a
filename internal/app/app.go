package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"HotlistTracker/internal/config"
	"HotlistTracker/internal/domain"
	"HotlistTracker/internal/infrastructure/parser"
	"HotlistTracker/internal/infrastructure/scheduler"
	"HotlistTracker/internal/infrastructure/storage"
	"HotlistTracker/internal/infrastructure/telegram"
	"HotlistTracker/internal/metrics"
	"HotlistTracker/internal/pagination"
	"HotlistTracker/internal/ports"
	"HotlistTracker/internal/reconcile"
	"HotlistTracker/internal/scanner"
	"HotlistTracker/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.SQLStore
	metrics   *metrics.Recorder
	collector *usecase.Collector
}

// OpenStore connects to the configured database and applies the schema.
func OpenStore(ctx context.Context, cfg config.DatabaseConfig) (*storage.SQLStore, error) {
	dialect, err := storage.ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dialect, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}
	return store, nil
}

// New builds the application over an opened store.
func New(ctx context.Context, cfg config.Config, baseLogger *zap.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = zap.NewNop()
	}

	store, err := OpenStore(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	engineCfg := reconcile.Config{
		DedupWindow:              cfg.Reconcile.DedupWindow,
		TitleSimilarityThreshold: cfg.Reconcile.TitleSimilarityThreshold,
		MaxTitleLength:           cfg.Reconcile.MaxTitleLength,
		MaxTagsCount:             cfg.Reconcile.MaxTagsCount,
	}
	if err := engineCfg.Validate(); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("reconcile config: %w", err)
	}
	engine := reconcile.New(store, engineCfg, baseLogger)

	fetcher := parser.NewFetcher(&http.Client{Timeout: cfg.HTTP.Timeout}, parser.FetcherConfig{
		UserAgent:  cfg.HTTP.UserAgent,
		RateLimit:  cfg.HTTP.RateLimit,
		Burst:      cfg.HTTP.Burst,
		MaxRetries: cfg.HTTP.MaxRetries,
	})
	registry := scanner.NewRegistry(
		parser.NewJSONScanner(fetcher),
		parser.NewHTMLScanner(fetcher),
		parser.NewFileScanner(),
	)

	enabled := cfg.EnabledPlatforms()
	source := parser.NewStrategySource(registry, enabled, parser.Limits{
		MaxTitleLength: engine.Config().MaxTitleLength,
		MaxTags:        engine.Config().MaxTagsCount,
	}, baseLogger)

	recorder := metrics.New()

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram, nil)
	}

	collector := usecase.NewCollector(usecase.CollectorDeps{
		Source:       source,
		Reconciler:   engine,
		Logs:         store,
		Observer:     recorder,
		Notifier:     notifier,
		Logger:       baseLogger,
		Targets:      Targets(enabled),
		Disabled:     len(cfg.Platforms) - len(enabled),
		MaxParallel:  cfg.Collector.MaxParallel,
		CycleTimeout: cfg.Collector.CycleTimeout,
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		metrics:   recorder,
		collector: collector,
	}, nil
}

// Targets turns platform configs into collection targets.
func Targets(platforms []config.PlatformConfig) []usecase.Target {
	out := make([]usecase.Target, 0, len(platforms))
	for _, p := range platforms {
		categories := make([]string, 0, len(p.Categories))
		for _, c := range p.Categories {
			categories = append(categories, c.Name)
		}
		out = append(out, usecase.Target{
			Platform:   p.Name,
			Categories: categories,
			Policy: pagination.Policy{
				StartPage: p.StartPage,
				PageSize:  p.PageSize,
				MaxPages:  p.MaxPages,
			},
		})
	}
	return out
}

// Store exposes the topic store for read-only commands.
func (a *Application) Store() *storage.SQLStore {
	return a.store
}

// RunOnce performs a single collection pass.
func (a *Application) RunOnce(ctx context.Context) (domain.PassSummary, error) {
	return a.collector.RunOnce(ctx)
}

// Run starts the cron scheduler and the metrics endpoint, then blocks until ctx is done.
func (a *Application) Run(ctx context.Context) error {
	driver := scheduler.NewCronScheduler(
		a.cfg.Scheduler.CronExpression,
		a.cfg.Scheduler.Location(),
		a.cfg.Scheduler.RunOnStart,
		a.logger,
	)
	sched := usecase.NewScheduler(driver, a.collector, a.logger)

	var srv *http.Server
	serveErr := make(chan error, 1)
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Addr != "" {
		srv = a.metrics.Server(a.cfg.Metrics.Addr)
		go func() {
			a.logger.Info("metrics endpoint listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()
	}

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	a.logger.Info("scheduler started", zap.String("cron", a.cfg.Scheduler.CronExpression))

	var runErr error
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		runErr = fmt.Errorf("metrics server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := sched.Stop(shutdownCtx); err != nil {
		a.logger.Warn("scheduler stop", zap.Error(err))
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Warn("metrics server shutdown", zap.Error(err))
		}
	}
	a.logger.Info("scheduler stopped")
	return runErr
}

// Close releases the store.
func (a *Application) Close() error {
	return a.store.Close()
}

package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"ContentFactory/internal/config"
	"ContentFactory/internal/dispatcher"
	"ContentFactory/internal/domain"
	"ContentFactory/internal/governor"
	"ContentFactory/internal/health"
	"ContentFactory/internal/httpapi"
	"ContentFactory/internal/infrastructure/parser"
	"ContentFactory/internal/infrastructure/publisher"
	"ContentFactory/internal/infrastructure/renderer"
	"ContentFactory/internal/infrastructure/scheduler"
	"ContentFactory/internal/infrastructure/storage"
	"ContentFactory/internal/infrastructure/system"
	"ContentFactory/internal/infrastructure/telegram"
	"ContentFactory/internal/logging"
	"ContentFactory/internal/optimizer"
	"ContentFactory/internal/planner"
	"ContentFactory/internal/platform"
	"ContentFactory/internal/ports"
	"ContentFactory/internal/scanner"
	"ContentFactory/internal/usecase"
)

type resultStore interface {
	ports.ResultLog
	ports.ResultReader
}

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	factory   *usecase.Factory
	scheduler *usecase.Scheduler
	server    *http.Server
	closers   []io.Closer
}

// New opens storage, builds every adapter and the factory.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	a := &Application{cfg: cfg, logger: baseLogger}

	results, err := a.openResultLog(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	ledger, err := a.openLedger()
	if err != nil {
		a.Close()
		return nil, err
	}

	store := storage.NewYAMLScheduleStore(cfg.Storage.SchedulePath, baseLogger.With("component", "schedules"))
	opt, err := NewOptimizer(ctx, cfg, store, baseLogger)
	if err != nil {
		a.Close()
		return nil, err
	}
	baseLogger.Debug("schedules loaded", "path", store.Path(), "platforms", len(opt.Schedules()))

	backends := platform.NewRegistry()
	if cfg.Publisher.Endpoint != "" {
		for _, name := range cfg.Publisher.Platforms {
			backends.Register(publisher.NewHTTPBackend(name, cfg.Publisher.Endpoint, cfg.Publisher.APIKey))
		}
		baseLogger.Info("publisher backends registered", "platforms", backends.Platforms())
	} else {
		baseLogger.Warn("publisher endpoint not configured, publications will fail")
	}

	disp := dispatcher.New(dispatcher.Config{
		MaxRetryAttempts: cfg.Publisher.MaxRetryAttempts,
		BaseDelay:        cfg.Publisher.BaseDelay,
		MaxWait:          cfg.Publisher.MaxWait,
		RateLimitCalls:   cfg.Publisher.RateLimitCalls,
		RateLimitWindow:  cfg.Publisher.RateLimitWindow,
		Privacy:          cfg.Publisher.Privacy,
	}, backends, results, baseLogger.With("component", "dispatcher"),
		dispatcher.WithCredentials(func(accountID string) map[string]string {
			acc, _ := cfg.Account(accountID)
			return acc.Credentials
		}))

	var render ports.Renderer
	if cfg.Renderer.Endpoint != "" {
		render = renderer.NewHTTPRenderer(cfg.Renderer.Endpoint, cfg.Renderer.APIKey, cfg.Renderer.Timeout)
	} else {
		baseLogger.Warn("renderer endpoint not configured, producing placeholder content")
		render = renderer.NewFallbackRenderer(cfg.Renderer.OutputDir)
	}

	var trends ports.TrendSignalProvider
	if cfg.Trends.Enabled {
		registry := scanner.NewRegistry()
		registry.Register(parser.NewHTMLTrendScanner(nil))
		trendLogger := baseLogger.With("component", "trends")
		trendLogger.Info("trend scanning enabled", "scanners", registry.Names(), "sites", len(cfg.Trends.Sites))
		trends = parser.NewStrategySource(registry, cfg.Trends.Sites, trendLogger)
	}

	var notifier ports.Notifier
	if cfg.Notifications.Telegram.Enabled() {
		notifier = telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
	}

	state := usecase.NewFactoryState(
		governor.New(governor.Config{
			MinLimit:     cfg.Governor.MinLimit,
			MaxLimit:     cfg.Governor.MaxLimit,
			DefaultLimit: cfg.Governor.DefaultLimit,
		}, baseLogger.With("component", "governor")),
		health.NewMonitor(cfg.Health.CriticalSamples, baseLogger.With("component", "health")),
		time.Now().In(cfg.Scheduler.Location()).Format(planner.DateLayout),
	)

	a.factory = usecase.NewFactory(cfg, usecase.Deps{
		State:     state,
		Renderer:  render,
		Trends:    trends,
		Ledger:    ledger,
		Optimizer: opt,
		Publisher: disp,
		Sampler:   system.NewSampler(time.Second),
		Analytics: backends.AnalyticsSources(),
		Schedules: store,
		Reports:   &health.FileReportWriter{Dir: cfg.Storage.ReportDir},
		Notifier:  notifier,
		Logger:    baseLogger.With("component", "factory"),
	})

	planH, planM, err := config.ParseClock(cfg.Scheduler.PlanningTime)
	if err != nil {
		a.Close()
		return nil, err
	}
	reportH, reportM, err := config.ParseClock(cfg.Scheduler.ReportTime)
	if err != nil {
		a.Close()
		return nil, err
	}
	loc := cfg.Scheduler.Location()
	a.scheduler = usecase.NewScheduler(
		scheduler.NewDailyScheduler(planH, planM, loc),
		scheduler.NewDailyScheduler(reportH, reportM, loc),
		a.factory,
		baseLogger.With("component", "scheduler"),
	)

	if cfg.HTTP.Addr != "" {
		a.server = &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           httpapi.Router(a.factory, results),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return a, nil
}

// Run plans today, starts the daily jobs and the status API, and blocks in
// the factory until ctx ends or the factory stops.
func (a *Application) Run(ctx context.Context) error {
	if _, err := a.factory.RunPlanningCycle(ctx, time.Now()); err != nil {
		return fmt.Errorf("initial planning: %w", err)
	}
	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := a.scheduler.Stop(stopCtx); err != nil {
			a.logger.Warn("scheduler stop", "error", err)
		}
	}()

	g, gctx := errgroup.WithContext(ctx)
	factoryDone := make(chan struct{})
	g.Go(func() error {
		defer close(factoryDone)
		return a.factory.Run(gctx)
	})

	if a.server != nil {
		g.Go(func() error {
			a.logger.Info("status api listening", "addr", a.server.Addr)
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.factory.Stop()
				return fmt.Errorf("status api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			select {
			case <-gctx.Done():
			case <-factoryDone:
			}
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return a.server.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

// Close releases storage handles and the log file.
func (a *Application) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			a.logger.Warn("close resource", "error", err)
		}
	}
	a.closers = nil
}

// AddCloser registers a resource released by Close.
func (a *Application) AddCloser(c io.Closer) {
	if c != nil {
		a.closers = append(a.closers, c)
	}
}

// openResultLog prefers Postgres when a DSN is configured.
func (a *Application) openResultLog(ctx context.Context) (resultStore, error) {
	if a.cfg.Storage.DatabaseDSN == "" {
		log, err := storage.NewJSONLResultLog(a.cfg.Storage.ResultLogPath)
		if err != nil {
			return nil, err
		}
		return log, nil
	}

	db, err := sql.Open("postgres", a.cfg.Storage.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("open result database: %w", err)
	}
	a.AddCloser(db)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("ping result database: %w", err)
	}

	log := storage.NewPostgresResultLog(db)
	if err := log.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return log, nil
}

func (a *Application) openLedger() (*storage.TaskLedger, error) {
	if err := os.MkdirAll(filepath.Dir(a.cfg.Storage.LedgerPath), 0o755); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	db, err := gorm.Open(sqlite.Open(a.cfg.Storage.LedgerPath), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open task ledger: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("task ledger handle: %w", err)
	}
	a.AddCloser(sqlDB)

	ledger := storage.NewTaskLedger(db)
	if err := ledger.AutoMigrate(); err != nil {
		return nil, fmt.Errorf("migrate task ledger: %w", err)
	}
	return ledger, nil
}

// NewOptimizer loads the platform schedules, seeding the store with the
// built-in tables when it is empty, and builds the optimizer.
func NewOptimizer(ctx context.Context, cfg config.Config, store ports.ScheduleStore, logger *slog.Logger) (*optimizer.Optimizer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schedules, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load schedules: %w", err)
	}
	if len(schedules) == 0 {
		schedules = optimizer.DefaultSchedules()
		if err := store.Save(ctx, schedules); err != nil {
			logger.Warn("could not seed schedule store", "error", err)
		}
	}
	return optimizer.New(schedules, Audience(cfg.Audience), optimizer.WithLogger(logger.With("component", "optimizer"))), nil
}

// Audience converts the configured audience analytics.
func Audience(cfg config.AudienceConfig) optimizer.Audience {
	out := optimizer.Audience{
		TimezoneShare:  cfg.TimezoneShare,
		PreferredHours: make(map[domain.ContentType][]int, len(cfg.PreferredHours)),
	}
	for ct, hours := range cfg.PreferredHours {
		out.PreferredHours[domain.ContentType(ct)] = hours
	}
	if len(out.TimezoneShare) == 0 && len(out.PreferredHours) == 0 {
		return optimizer.DefaultAudience()
	}
	return out
}

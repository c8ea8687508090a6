package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"

	"PersonaPipeline/internal/acquisition"
	"PersonaPipeline/internal/api"
	"PersonaPipeline/internal/config"
	"PersonaPipeline/internal/domain"
	"PersonaPipeline/internal/infrastructure/llm"
	"PersonaPipeline/internal/infrastructure/lock"
	"PersonaPipeline/internal/infrastructure/scheduler"
	"PersonaPipeline/internal/infrastructure/storage"
	"PersonaPipeline/internal/infrastructure/telegram"
	"PersonaPipeline/internal/infrastructure/twitter"
	"PersonaPipeline/internal/infrastructure/whisper"
	"PersonaPipeline/internal/infrastructure/youtube"
	"PersonaPipeline/internal/logging"
	"PersonaPipeline/internal/ports"
	"PersonaPipeline/internal/usecase"
	stdlogger "PersonaPipeline/pkg/logger"
)

const daemonLockName = "persona-pipeline.lock"

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg       config.Config
	logger    *slog.Logger
	store     *storage.Store
	guard     ports.RunGuard
	runner    *usecase.Runner
	scheduler *usecase.RefreshScheduler
	personas  *usecase.PersonaService
	cancel    context.CancelFunc
}

// New opens the store and builds every adapter and use case. Nothing runs
// until Serve or one of the foreground service calls.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.LogLevel)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if err := os.MkdirAll(cfg.Pipeline.AudioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio dir: %w", err)
	}

	dialect, err := storage.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(ctx, dialect, cfg.Database.URL)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, err
	}

	guard, err := newGuard(ctx, cfg, logging.Component(baseLogger, "guard"))
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	yt := youtube.NewClient(youtube.Config{
		ServiceURL:    cfg.Services.YouTubeDLURL,
		AudioDir:      cfg.Pipeline.AudioDir,
		ListTimeout:   cfg.Services.ListTimeout,
		AudioTimeout:  cfg.Services.AudioTimeout,
		DisableScrape: cfg.Services.DisablePageScraper,
	}, logging.Component(baseLogger, "youtube"))
	tw := twitter.NewClient(cfg.Services.ApifyURL, cfg.Services.ApifyAPIKey, cfg.Services.ListTimeout)
	transcriber := whisper.NewClient(cfg.Services.WhisperURL, cfg.Services.TranscribeTimeout)
	model := llm.NewClient(llm.Config{
		BaseURL: cfg.LLM.BaseURL,
		APIKey:  cfg.LLM.APIKey,
		Model:   cfg.LLM.Model,
		Timeout: cfg.LLM.Timeout,
	}, logging.Component(baseLogger, "llm"))

	registry := acquisition.NewRegistry(logging.Component(baseLogger, "acquisition"))
	registry.Register(acquisition.ChannelSource{Lister: yt})
	registry.Register(acquisition.ProfileSource{Lister: tw})

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Repository:  store,
		Acquirer:    registry,
		Fetcher:     yt,
		Transcriber: transcriber,
		Analyzer:    model,
		Logger:      logging.Component(baseLogger, "pipeline"),
	})

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	runner := usecase.NewRunner(runCtx, pipeline, guard, logging.Component(baseLogger, "runner"))

	driver := scheduler.NewCronScheduler(cfg.Scheduler.Location(), stdlogger.New("scheduler"))
	refresh := usecase.NewRefreshScheduler(driver, store, runner, cfg.Scheduler.CronExpression,
		logging.Component(baseLogger, "scheduler"))
	runner.OnFinished(refresh.HandleReport)

	if cfg.Notifications.Telegram.Enabled() {
		notifier := telegram.NewNotifier(cfg.Notifications.Telegram.BotToken, cfg.Notifications.Telegram.ChatID)
		notifyLogger := logging.Component(baseLogger, "telegram")
		runner.OnFinished(func(ctx context.Context, report domain.RunReport) {
			if err := notifier.PublishRunReport(ctx, report); err != nil {
				notifyLogger.Warn("publish run report", "persona_id", report.PersonaID, "error", err)
			}
		})
	}

	personas := usecase.NewPersonaService(usecase.PersonaServiceDeps{
		Repository:       store,
		Runner:           runner,
		Scheduler:        refresh,
		Responder:        model,
		DefaultMaxVideos: cfg.Pipeline.MaxVideosDefault,
		Logger:           logging.Component(baseLogger, "personas"),
	})

	return &Application{
		cfg:       cfg,
		logger:    baseLogger,
		store:     store,
		guard:     guard,
		runner:    runner,
		scheduler: refresh,
		personas:  personas,
		cancel:    cancel,
	}, nil
}

func newGuard(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.RunGuard, error) {
	switch cfg.Guard.Kind {
	case config.GuardMemory:
		return lock.NewMemoryGuard(), nil
	case config.GuardRedis:
		guard, err := lock.NewRedisGuard(ctx, lock.RedisConfig{
			Addr:     cfg.Guard.RedisAddr,
			Password: cfg.Guard.RedisPassword,
			DB:       cfg.Guard.RedisDB,
			TTL:      cfg.Guard.TTL,
		}, logger)
		if err != nil {
			return nil, err
		}
		return guard, nil
	default:
		guard, err := lock.NewFileGuard(cfg.LockDir(), logger)
		if err != nil {
			return nil, err
		}
		return guard, nil
	}
}

// Personas exposes the trigger-facing service for foreground commands.
func (a *Application) Personas() *usecase.PersonaService {
	return a.personas
}

// Serve runs the daemon: refresh scheduler plus HTTP API, until ctx ends.
// Only one daemon per data directory may run at a time.
func (a *Application) Serve(ctx context.Context) error {
	if err := os.MkdirAll(a.cfg.Pipeline.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	lockPath := filepath.Join(a.cfg.Pipeline.DataDir, daemonLockName)
	daemonLock := flock.New(lockPath)
	ok, err := daemonLock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another persona-pipeline daemon is already running")
	}
	defer func() {
		if err := daemonLock.Unlock(); err != nil {
			a.logger.Warn("failed to release daemon lock", "error", err)
		}
	}()

	if err := a.scheduler.Start(ctx); err != nil {
		a.logger.Error("scheduler disabled", "error", err)
	}
	defer a.scheduler.Stop()

	server := api.NewServer(a.cfg.API.Bind, a.cfg.API.APIKey, a.personas, a.scheduler,
		logging.Component(a.logger, "api"))
	if err := server.Start(ctx); err != nil {
		return err
	}
	a.logger.Info("persona pipeline started", "lock", lockPath, "bind", server.Addr())

	<-ctx.Done()
	a.logger.Info("persona pipeline shutting down")
	server.Stop()
	return nil
}

// Close interrupts dispatched runs, waits for them and releases resources.
func (a *Application) Close() error {
	a.cancel()
	a.runner.Wait()

	var errs []error
	if closer, ok := a.guard.(io.Closer); ok {
		errs = append(errs, closer.Close())
	}
	errs = append(errs, a.store.Close())
	return errors.Join(errs...)
}

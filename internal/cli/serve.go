package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dmytrogajewski/ett-summary/internal/api"
	"github.com/dmytrogajewski/ett-summary/internal/api/handlers"
	"github.com/dmytrogajewski/ett-summary/internal/config"
	"github.com/dmytrogajewski/ett-summary/internal/database"
	"github.com/dmytrogajewski/ett-summary/internal/metrics"
	"github.com/dmytrogajewski/ett-summary/internal/providers/factory"
	"github.com/dmytrogajewski/ett-summary/internal/repository"
	"github.com/dmytrogajewski/ett-summary/internal/repository/bolt"
	"github.com/dmytrogajewski/ett-summary/internal/repository/memory"
	"github.com/dmytrogajewski/ett-summary/internal/repository/postgres"
	"github.com/dmytrogajewski/ett-summary/internal/services"
	"github.com/dmytrogajewski/ett-summary/internal/systems"
	"github.com/dmytrogajewski/ett-summary/internal/transcription"
	"github.com/dmytrogajewski/ett-summary/internal/webhook"
)

const (
	serviceName     = "summaryd"
	shutdownTimeout = 15 * time.Second
)

func newServeCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the summary server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runServe(ctx, *configPath, cmd.ErrOrStderr())
		},
	}
}

func runServe(ctx context.Context, configPath string, logOut io.Writer) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.Logging, logOut)
	if err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	srv, err := newServer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return srv.Run(ctx)
}

// server holds the wired components of a running instance
type server struct {
	cfg     *config.Config
	logger  *logrus.Logger
	app     *fiber.App
	store   repository.SummaryRepository
	manager *services.SessionManager
	reaper  *services.InactivityReaper
	hub     *api.Hub
}

func newServer(ctx context.Context, cfg *config.Config, logger *logrus.Logger) (*server, error) {
	registry, err := systems.NewRegistry(cfg.Systems)
	if err != nil {
		return nil, err
	}

	provider, err := factory.CreateRetryingProvider(cfg.Provider, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create provider: %w", err)
	}

	store, err := openStore(cfg, logger)
	if err != nil {
		return nil, err
	}

	collector := metrics.NewCollector()
	dispatcher := webhook.NewDispatcher(cfg.Webhook, logger, collector)
	if !dispatcher.Enabled() {
		logger.Warn("No webhook URL configured, summary updates will not be pushed")
	}
	hub := api.NewHub(logger)

	manager, err := services.NewSessionManager(services.SessionManagerConfig{
		Registry:  registry,
		Store:     store,
		Provider:  provider,
		Model:     cfg.Provider.Model,
		Notifiers: []services.Notifier{dispatcher, hub},
		Logger:    logger,
		Metrics:   collector,
	})
	if err != nil {
		store.Close()
		return nil, err
	}
	if err := manager.Rehydrate(ctx); err != nil {
		store.Close()
		return nil, err
	}

	app := api.NewApp(cfg.Server, logger)
	api.SetupRoutes(app, api.Routes{
		Summaries:       handlers.NewSummaryHandler(manager, transcription.NewWhisperClient(cfg.Transcription), logger),
		Status:          handlers.NewStatusHandler(serviceName, Version, len(registry.Keys()), collector),
		Hub:             hub,
		UploadRateLimit: cfg.Server.UploadRateLimit,
		Logger:          logger,
	})

	logger.WithFields(logrus.Fields{
		"provider": provider.Name(),
		"model":    cfg.Provider.Model,
		"store":    cfg.Store.Backend,
		"systems":  registry.Keys(),
	}).Info("Server initialized")

	return &server{
		cfg:     cfg,
		logger:  logger,
		app:     app,
		store:   store,
		manager: manager,
		reaper:  services.NewInactivityReaper(manager, store, cfg.Reaper.IdleThreshold, cfg.Reaper.Interval, logger),
		hub:     hub,
	}, nil
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *server) Run(ctx context.Context) error {
	s.reaper.Start(ctx)

	listenErr := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", s.cfg.Server.Addr()).Info("Summary server starting")
		listenErr <- s.app.Listen(s.cfg.Server.Addr())
	}()

	var runErr error
	select {
	case err := <-listenErr:
		runErr = fmt.Errorf("server stopped: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutdown requested")
	}

	return errors.Join(runErr, s.shutdown())
}

// shutdown stops intake first, then drains deliveries and closes the store
func (s *server) shutdown() error {
	var errs []error

	s.hub.Close()
	if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	s.reaper.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.manager.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("draining notifications: %w", err))
	}

	if err := s.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing store: %w", err))
	}

	s.logger.Info("Summary server stopped")
	return errors.Join(errs...)
}

func openStore(cfg *config.Config, logger *logrus.Logger) (repository.SummaryRepository, error) {
	switch cfg.Store.Backend {
	case config.StoreMemory:
		logger.Warn("Using the in-memory store, summaries will not survive a restart")
		return memory.NewStore(), nil

	case config.StoreBolt:
		store, err := bolt.NewStore(cfg.Store.BoltPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open bolt store: %w", err)
		}
		return store, nil

	default:
		db, err := database.NewConnection(cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.RunMigrations(cfg.Database); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return postgres.NewSummaryRepository(db.DB), nil
	}
}

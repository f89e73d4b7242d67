package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/inspection-audit/internal/api/http"
	"github.com/spec-kit/inspection-audit/internal/api/http/handlers"
	"github.com/spec-kit/inspection-audit/internal/audit"
	"github.com/spec-kit/inspection-audit/internal/auth"
	"github.com/spec-kit/inspection-audit/internal/config"
	"github.com/spec-kit/inspection-audit/internal/events"
	"github.com/spec-kit/inspection-audit/internal/observability"
	"github.com/spec-kit/inspection-audit/internal/persistence"
	"github.com/spec-kit/inspection-audit/internal/repository"
	"github.com/spec-kit/inspection-audit/internal/service"
	"github.com/spec-kit/inspection-audit/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metrics := observability.NewMetrics()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations && pg.PoolHandle() != nil {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	var (
		bus   events.Bus
		redis *persistence.Redis
	)
	switch cfg.Audit.EventBus {
	case config.EventBusRedis:
		redis = persistence.NewRedis(cfg.Redis, logger)
		defer redis.Close()
		bus = events.NewRedisBus(redis.Client, logger)
	default:
		dispatcher := events.NewInMemoryDispatcher(logger)
		worker.StartDropMonitor(dispatcher, metrics, logger)
		bus = dispatcher
	}

	var (
		userRepo       repository.UserRepository
		inspectionRepo repository.InspectionRepository
		historyRepo    repository.ChangeHistoryRepository
	)
	if pool := pg.PoolHandle(); pool != nil {
		userRepo = repository.NewUserRepository(pool)
		inspectionRepo = repository.NewInspectionRepository(pool)
		historyRepo = repository.NewChangeHistoryRepository(pool)
	} else {
		logger.Warn("using in-memory repositories")
		users := repository.NewMemoryUsers()
		userRepo = users
		inspectionRepo = repository.NewMemoryInspections()
		historyRepo = repository.NewMemoryChangeHistory(users)
	}

	store := service.NewChangeStore(historyRepo, bus, logger)
	recorder := audit.NewRecorder(cfg.Audit, audit.RecorderDependencies{
		Store:   store,
		Logger:  logger,
		Metrics: metrics,
	})

	authService := service.NewAuthService(*cfg, service.AuthDependencies{UserRepo: userRepo})
	if err := service.Seed(ctx, cfg.Seed, authService, inspectionRepo, logger); err != nil {
		logger.Fatal("failed to seed", zap.Error(err))
	}
	inspectionService := service.NewInspectionService(service.InspectionDependencies{
		InspectionRepo: inspectionRepo,
		Store:          store,
		Recorder:       recorder,
		Publisher:      bus,
		Logger:         logger,
	})
	authMiddleware := auth.NewAuthMiddleware(authService.TokenManager(), userRepo)

	inspectionsHandler := handlers.NewInspectionsHandler(inspectionService, func() *audit.Session {
		return audit.NewSession(cfg.Audit, audit.SessionDependencies{
			Store:    store,
			Bus:      bus,
			Recorder: recorder,
			Logger:   logger,
			Metrics:  metrics,
		})
	}, cfg.App.StreamKeepAlive, logger)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Auth:           handlers.NewAuthHandler(authService),
		Inspections:    inspectionsHandler,
		AuthMiddleware: authMiddleware,
		Metrics:        metrics.Handler(),
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	inspectionsHandler.Close()
	_ = app.Shutdown()
	recorder.Wait()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

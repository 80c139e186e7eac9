package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/query-routing-service/internal/api/http"
	"github.com/spec-kit/query-routing-service/internal/api/http/handlers"
	"github.com/spec-kit/query-routing-service/internal/auth"
	"github.com/spec-kit/query-routing-service/internal/config"
	"github.com/spec-kit/query-routing-service/internal/events"
	"github.com/spec-kit/query-routing-service/internal/observability"
	"github.com/spec-kit/query-routing-service/internal/persistence"
	"github.com/spec-kit/query-routing-service/internal/repository"
	"github.com/spec-kit/query-routing-service/internal/scheduler"
	"github.com/spec-kit/query-routing-service/internal/service"
	"github.com/spec-kit/query-routing-service/internal/worker"
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

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(cfg.Redis, logger)
	defer redis.Close()

	pool := pg.PoolHandle()
	queryRepo := repository.NewQueryRepository(pool)
	historyRepo := repository.NewQueryHistoryRepository(pool)
	instituteRepo := repository.NewInstituteRepository(pool)
	roleRepo := repository.NewRoleRepository(pool)
	subscriberRepo := repository.NewSubscriberRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()

	routingService := service.NewRoutingService(service.RoutingDependencies{
		QueryRepo:     queryRepo,
		InstituteRepo: instituteRepo,
		RoleRepo:      roleRepo,
		Dispatcher:    dispatcher,
	})
	viewService := service.NewViewService(service.ViewDependencies{
		QueryRepo:     queryRepo,
		HistoryRepo:   historyRepo,
		InstituteRepo: instituteRepo,
		RoleRepo:      roleRepo,
	})
	notificationService := service.NewNotificationService(dispatcher, subscriberRepo, notificationRepo, redis.Client, logger, cfg.Notification)
	statsService := service.NewStatsService(dispatcher, redis.Client, logger)
	worker.StartEventHandlers(notificationService, statsService)

	escalator := scheduler.NewEscalator(queryRepo, instituteRepo, dispatcher, logger, metrics, cfg.Scheduler)
	closer := scheduler.NewStalenessCloser(queryRepo, dispatcher, logger, metrics, cfg.Scheduler)
	go escalator.Run(ctx)
	go closer.Run(ctx)

	tokenManager := auth.NewTokenManager(cfg.Auth.JWTSecret)
	authMiddleware := auth.NewAuthMiddleware(tokenManager)

	app := fiber.New()
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Queries:        handlers.NewQueriesHandler(routingService, historyRepo),
		Institutes:     handlers.NewInstitutesHandler(viewService),
		AuthMiddleware: authMiddleware,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	cancel()
	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/routing-engine/internal/api/http"
	"github.com/spec-kit/routing-engine/internal/api/http/handlers"
	"github.com/spec-kit/routing-engine/internal/auth"
	"github.com/spec-kit/routing-engine/internal/config"
	"github.com/spec-kit/routing-engine/internal/events"
	"github.com/spec-kit/routing-engine/internal/observability"
	"github.com/spec-kit/routing-engine/internal/persistence"
	"github.com/spec-kit/routing-engine/internal/repository"
	"github.com/spec-kit/routing-engine/internal/service"
	"github.com/spec-kit/routing-engine/internal/worker"
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
	ruleRepo := repository.NewRuleRepository(pool)
	ticketRepo := repository.NewTicketRepository(pool)
	agentRepo := repository.NewAgentRepository(pool)
	departmentRepo := repository.NewDepartmentRepository(pool)
	cursorRepo := repository.NewCursorRepository(pool)
	notificationRepo := repository.NewNotificationRepository(pool)

	dispatcher := events.NewInMemoryDispatcher()
	metrics := observability.NewMetrics()

	routingService := service.NewRoutingService(service.RoutingDependencies{
		RuleRepo:       ruleRepo,
		TicketRepo:     ticketRepo,
		AgentRepo:      agentRepo,
		DepartmentRepo: departmentRepo,
		CursorRepo:     cursorRepo,
		CursorLock:     persistence.NewRedisLocker(redis, cfg.Routing.CursorLockTTL()),
		Dispatcher:     dispatcher,
		Metrics:        metrics,
		RuleCache:      service.NewRuleCache(redis.Client, cfg.Routing.RuleCacheTTL(), logger),
		Logger:         logger,
	})

	notifier := service.NewNotificationService(notificationRepo, dispatcher, logger, cfg.Notification, cfg.SLA.DedupWindow())
	notifier.RegisterHandlers(dispatcher)

	slaService := service.NewSLAService(service.SLADependencies{
		TicketRepo:     ticketRepo,
		DepartmentRepo: departmentRepo,
		Notifier:       notifier,
		Logger:         logger,
	})
	slaService.RegisterHandlers(dispatcher)

	monitor := worker.NewSLAMonitor(ticketRepo, slaService, metrics, cfg.SLA.SweepInterval(), logger)
	go monitor.Run(ctx)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authMiddleware := auth.NewAuthMiddleware(tokens)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, pg, redis),
		Rules:          handlers.NewRulesHandler(routingService),
		Tickets:        handlers.NewTicketsHandler(routingService, slaService),
		SLA:            handlers.NewSLAHandler(slaService),
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

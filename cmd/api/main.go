package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/identity-service/internal/api/http"
	"github.com/spec-kit/identity-service/internal/api/http/handlers"
	"github.com/spec-kit/identity-service/internal/auth"
	"github.com/spec-kit/identity-service/internal/authz"
	"github.com/spec-kit/identity-service/internal/config"
	"github.com/spec-kit/identity-service/internal/events"
	"github.com/spec-kit/identity-service/internal/observability"
	"github.com/spec-kit/identity-service/internal/persistence"
	"github.com/spec-kit/identity-service/internal/ratelimit"
	"github.com/spec-kit/identity-service/internal/repository"
	"github.com/spec-kit/identity-service/internal/service"
	"github.com/spec-kit/identity-service/internal/worker"
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

	pool, err := persistence.OpenPostgres(ctx, cfg.Postgres, cfg.App.Name, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pool.Close()

	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, os.DirFS(cfg.Postgres.MigrationsDir), logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redisClient := persistence.OpenRedis(ctx, cfg.Redis, logger)
	if redisClient != nil {
		defer redisClient.Close() //nolint:errcheck
	}

	metrics := observability.NewMetrics()

	userRepo := repository.NewUserRepository(pool)
	profileRepo := repository.NewProfileRepository(pool)
	codeRepo := repository.NewVerificationCodeRepository(pool)

	generator, err := service.NewRandomCodeGenerator(cfg.Verification.CodeAlphabet, cfg.Verification.CodeLength)
	if err != nil {
		logger.Fatal("invalid verification code settings", zap.Error(err))
	}
	verificationService := service.NewVerificationService(cfg.Verification, service.VerificationDependencies{
		CodeRepo:  codeRepo,
		Generator: generator,
		Metrics:   metrics,
		Logger:    logger,
	})

	dispatcher := events.NewDispatcher()
	service.NewNotificationService(dispatcher, logger).RegisterHandlers()

	deps := service.AccountDependencies{
		UserRepo:     userRepo,
		ProfileRepo:  profileRepo,
		Verification: verificationService,
		Notifier:     service.NewNotifier(cfg.Notification, logger),
		Dispatcher:   dispatcher,
		Logger:       logger,
	}
	if redisClient != nil {
		deps.Limiter = ratelimit.NewLimiter(redisClient, "verification", cfg.RateLimit)
		deps.AttemptLimiter = ratelimit.NewLimiter(redisClient, "confirm", cfg.ConfirmLimit)
	}
	accountService := service.NewAccountService(*cfg, deps)

	sweeper, err := worker.NewCodeSweeper(cfg.Verification.SweepSchedule, verificationService, logger)
	if err != nil {
		logger.Fatal("invalid sweep schedule", zap.Error(err))
	}
	sweeper.Start()

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version,
			handlers.DependencyCheck{Name: "postgres", Ping: pool.Ping},
			handlers.DependencyCheck{Name: "redis", Ping: persistence.RedisPing(redisClient)},
		),
		Accounts:       handlers.NewAccountsHandler(accountService),
		Users:          handlers.NewUsersHandler(accountService),
		AuthMiddleware: auth.NewAuthMiddleware(accountService.TokenManager(), userRepo, profileRepo),
		Authorizer:     auth.NewAuthorizer(authz.NewEngine(logger), metrics),
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	sweeper.Stop(shutdownCtx)
	_ = app.ShutdownWithContext(shutdownCtx)
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

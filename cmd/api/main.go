package main

import (
	"context"
	"log"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/session-gate/internal/api/http"
	"github.com/spec-kit/session-gate/internal/api/http/handlers"
	"github.com/spec-kit/session-gate/internal/auth"
	"github.com/spec-kit/session-gate/internal/config"
	"github.com/spec-kit/session-gate/internal/events"
	"github.com/spec-kit/session-gate/internal/observability"
	"github.com/spec-kit/session-gate/internal/persistence"
	"github.com/spec-kit/session-gate/internal/repository"
	"github.com/spec-kit/session-gate/internal/service"
	"github.com/spec-kit/session-gate/internal/worker"
	"github.com/spec-kit/session-gate/migrations"
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

	pool := pg.PoolHandle()
	if cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pool, migrations.Files, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis := persistence.NewRedis(ctx, cfg.Redis, logger)
	defer redis.Close()

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	worker.StartAuditWorker(dispatcher, logger)

	userRepo := repository.NewUserRepository(pool)
	refreshRepo := repository.NewRefreshTokenRepository(redis.Client)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret)
	if len(cfg.Auth.FederatedProviders) == 0 {
		logger.Info("federated sign-in disabled: no providers configured")
	}

	authService := service.NewAuthService(*cfg, service.AuthDependencies{
		UserRepo:    userRepo,
		RefreshRepo: refreshRepo,
		Tokens:      tokens,
		Identities:  auth.NewJWTIdentityVerifier(cfg.Auth.FederatedProviders, cfg.Auth.FederatedAudience),
		Events:      dispatcher,
	})
	userService := service.NewUserService(userRepo, dispatcher)

	var refresher auth.Refresher = authService
	if cfg.Auth.RefreshURL != "" {
		refresher = auth.NewHTTPRefresher(cfg.Auth.RefreshURL, &nethttp.Client{Timeout: cfg.Auth.RefreshTimeout})
		logger.Info("renewing sessions through remote endpoint", zap.String("url", cfg.Auth.RefreshURL))
	}

	lifecycle := auth.NewLifecycleManager(auth.LifecycleOptions{
		SessionDuration:  cfg.Auth.Session.Duration,
		RenewalThreshold: cfg.Auth.Session.RenewalThreshold,
		RefreshTimeout:   cfg.Auth.RefreshTimeout,
		FailureHold:      cfg.Auth.RefreshFailHold,
	}, auth.LifecycleDependencies{
		Refresher: refresher,
		Finder:    userRepo,
		Logger:    logger,
		Metrics:   metrics,
	})

	extractor := auth.NewTokenExtractor(tokens, cfg.Auth.CookieName, cfg.Auth.RefreshCookieName)
	cookie := auth.SessionCookie{
		Name:        cfg.Auth.CookieName,
		RefreshName: cfg.Auth.RefreshCookieName,
		RefreshTTL:  cfg.Auth.RefreshTokenTTL,
		Secure:      cfg.Auth.CookieSecure,
	}
	gate := auth.NewGate(extractor, logger, metrics)

	app := fiber.New(fiber.Config{AppName: cfg.App.Name})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
			"postgres": pg,
			"redis":    redis,
		}),
		Auth:      handlers.NewAuthHandler(authService, gate, extractor, cookie),
		Admin:     handlers.NewAdminHandler(userService),
		Protected: handlers.NewProtectedHandler(),
		Gate:      gate,
		Sessions:  auth.NewSessionRefresher(extractor, tokens, lifecycle, cookie, logger),
		LoginRate: httptransport.NewRateLimiter(cfg.RateLimit.LoginPerMinute),
		Metrics:   metrics,
	})

	logger.Info("session policy",
		zap.String("profile", cfg.Auth.SessionProfile),
		zap.Duration("duration", cfg.Auth.Session.Duration),
		zap.Duration("renewal_threshold", cfg.Auth.Session.RenewalThreshold),
	)

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/harborline/harborline/internal/app"
	"github.com/harborline/harborline/internal/federation"
	"github.com/harborline/harborline/internal/identity"
	identityhttp "github.com/harborline/harborline/internal/identity/http"
	"github.com/harborline/harborline/internal/observability"
	"github.com/harborline/harborline/internal/platform/cache"
	"github.com/harborline/harborline/internal/platform/db"
	"github.com/harborline/harborline/internal/shared"
	"github.com/harborline/harborline/internal/users"
	"github.com/harborline/harborline/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "harborline_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	directory := identity.NewPGDirectory(dbpool)
	hasher := identity.NewBcryptHasher(0)
	verifier := identity.NewVerifier(directory, hasher)
	resolver := identity.NewResolver(directory)
	registrar := identity.NewRegistrar(directory, hasher)
	principals := identity.NewPrincipalStore(directory)
	auditLogger := shared.NewAuditLogger(dbpool)

	registry := federation.NewRegistry(
		federation.GoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret),
		federation.GitHubProvider(cfg.GitHubClientID, cfg.GitHubClientSecret),
	)
	handshake := federation.NewHandshake(registry, cfg.BaseURL+"/auth/oauth/%s/callback")

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()

	identityHandler := identityhttp.NewHandler(identityhttp.HandlerParams{
		Logger:     logger,
		Verifier:   verifier,
		Resolver:   resolver,
		Registrar:  registrar,
		Principals: principals,
		Directory:  directory,
		Sessions:   sessionManager,
		CSRF:       csrfManager,
		Handshake:  handshake,
		Audit:      auditLogger,
		Metrics:    metrics,
		Welcome:    jobClient,
	})

	usersRepo := users.NewRepository(dbpool)
	usersService := users.NewService(usersRepo)
	usersHandler := users.NewHandler(logger, usersService)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Principals:      principals,
		IdentityHandler: identityHandler,
		UsersHandler:    usersHandler,
		JobHandler:      jobHandler,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/httprate"

	"github.com/pym-escuchas/escuchas/internal/app"
	"github.com/pym-escuchas/escuchas/internal/audit"
	audithttp "github.com/pym-escuchas/escuchas/internal/audit/http"
	"github.com/pym-escuchas/escuchas/internal/auth"
	"github.com/pym-escuchas/escuchas/internal/backend"
	"github.com/pym-escuchas/escuchas/internal/dashboard"
	"github.com/pym-escuchas/escuchas/internal/listing"
	"github.com/pym-escuchas/escuchas/internal/observability"
	"github.com/pym-escuchas/escuchas/internal/platform/cache"
	"github.com/pym-escuchas/escuchas/internal/records"
	"github.com/pym-escuchas/escuchas/internal/shared"
	"github.com/pym-escuchas/escuchas/internal/theme"
	"github.com/pym-escuchas/escuchas/internal/users"
	"github.com/pym-escuchas/escuchas/internal/view"
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
	slog.SetDefault(logger)

	redisClient, err := cache.Connect(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	sessionManager := shared.NewSessionManager(redisClient, "escuchas_session", cfg.SessionSecret, cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	templates, err := view.NewEngine()
	if err != nil {
		logger.Error("parse templates", slog.Any("error", err))
		os.Exit(1)
	}

	metrics := observability.NewMetrics()
	client, err := backend.New(cfg.BackendURL, cfg.BackendTimeout,
		backend.WithObserver(metrics.ObserveBackend),
		backend.WithLogger(logger),
	)
	if err != nil {
		logger.Error("backend client", slog.Any("error", err))
		os.Exit(1)
	}

	store := auth.NewStore(client, logger, cfg.SessionCheckWait)
	guard := auth.NewGuard(store, templates, logger)
	authHandler := auth.NewHandler(logger, store, templates, csrfManager, httprate.LimitByIP(cfg.LoginRateLimit, time.Minute))

	tracker := listing.NewTracker(redisClient, cfg.SessionTTL)
	recordSnapshots := listing.NewSnapshots[records.Record](redisClient, tracker, "records", cfg.SnapshotTTL)
	userSnapshots := listing.NewSnapshots[users.Account](redisClient, tracker, "users", cfg.SnapshotTTL)

	recordsHandler := records.NewHandler(logger, records.NewService(logger, cfg.SQLDefaultCoordinator), store, recordSnapshots,
		records.NewDrafts(redisClient, tracker, cfg.SessionTTL), templates, csrfManager)
	dashboardHandler := dashboard.NewHandler(logger, store, dashboard.NewMemory(redisClient, tracker, cfg.SessionTTL), templates, csrfManager)
	usersHandler := users.NewHandler(logger, users.NewService(), store, userSnapshots, templates, csrfManager)
	auditHandler := audithttp.NewHandler(logger, audit.NewService(), store, templates, csrfManager)

	router := app.NewRouter(app.RouterParams{
		Logger:           logger,
		Config:           cfg,
		Templates:        templates,
		SessionManager:   sessionManager,
		CSRFManager:      csrfManager,
		Guard:            guard,
		AuthHandler:      authHandler,
		ThemeHandler:     theme.NewHandler(cfg.IsProduction()),
		RecordsHandler:   recordsHandler,
		DashboardHandler: dashboardHandler,
		UsersHandler:     usersHandler,
		AuditHandler:     auditHandler,
		Metrics:          metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr), slog.String("backend", cfg.BackendURL))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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

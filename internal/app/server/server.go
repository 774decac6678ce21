package server

import (
	"context"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgxpool"

	"privacyhub/internal/domain/activities"
	"privacyhub/internal/domain/assets"
	"privacyhub/internal/domain/catalog"
	"privacyhub/internal/domain/changes"
	"privacyhub/internal/domain/documents"
	"privacyhub/internal/domain/geography"
	"privacyhub/internal/domain/organizations"
	"privacyhub/internal/domain/orgunits"
	"privacyhub/internal/domain/recipients"
	"privacyhub/internal/platform/config"
	"privacyhub/internal/platform/db"
	"privacyhub/internal/platform/jobs"
	"privacyhub/internal/platform/logging"
	"privacyhub/internal/platform/metrics"
	activitieshandler "privacyhub/internal/transport/http/handlers/activities"
	assetshandler "privacyhub/internal/transport/http/handlers/assets"
	cataloghandler "privacyhub/internal/transport/http/handlers/catalog"
	changeshandler "privacyhub/internal/transport/http/handlers/changes"
	documentshandler "privacyhub/internal/transport/http/handlers/documents"
	geographyhandler "privacyhub/internal/transport/http/handlers/geography"
	jobshandler "privacyhub/internal/transport/http/handlers/jobs"
	organizationshandler "privacyhub/internal/transport/http/handlers/organizations"
	orgunitshandler "privacyhub/internal/transport/http/handlers/orgunits"
	recipientshandler "privacyhub/internal/transport/http/handlers/recipients"
	"privacyhub/internal/transport/http/middleware"
	"privacyhub/internal/transport/http/shared"
)

type App struct {
	Config config.Config
	Logger *slog.Logger
	DB     *pgxpool.Pool
	Jobs   *jobs.Service
}

// Run loads configuration, migrates, starts the impact scan scheduler and
// serves HTTP until SIGINT or SIGTERM.
func Run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}
	logger := logging.New(cfg)
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		return errors.Wrap(err, "db connect")
	}
	defer pool.Close()

	if cfg.RunMigrations {
		if err := db.Migrate(ctx, pool); err != nil {
			return errors.Wrap(err, "migrate")
		}
	}
	if cfg.MetricsEnabled {
		metrics.Init()
	}

	jobService := jobs.New(pool, cfg, logger)
	jobService.Start(ctx)

	app := App{Config: cfg, Logger: logger, DB: pool, Jobs: jobService}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "listen")
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a App) Router() http.Handler {
	cfg := a.Config
	paging := shared.Paging{Default: cfg.DefaultPageSize, Max: cfg.MaxPageSize}

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger(a.Logger))
	router.Use(middleware.Recoverer(a.Logger))
	if cfg.MetricsEnabled {
		router.Use(metrics.Instrument(routePattern))
	}
	router.Use(middleware.SecureHeaders(cfg.Environment == config.Production))
	router.Use(middleware.BodyLimit(cfg.MaxBodyBytes))

	router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	router.Get("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if a.DB == nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := a.DB.Ping(ctx); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	if cfg.MetricsEnabled {
		router.Handle(cfg.MetricsPath, metrics.Handler())
	}

	ledger := changes.NewLedger(a.DB)

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

		organizationshandler.NewHandler(organizations.NewStore(a.DB)).RegisterRoutes(r)
		cataloghandler.NewHandler(catalog.NewStore(a.DB), paging).RegisterRoutes(r)
		activitieshandler.NewHandler(activities.NewStore(a.DB), paging).RegisterRoutes(r)
		assetshandler.NewHandler(assets.NewStore(a.DB), paging).RegisterRoutes(r)
		recipientshandler.NewHandler(recipients.NewStore(a.DB), paging).RegisterRoutes(r)
		orgunitshandler.NewHandler(orgunits.NewStore(a.DB), paging).RegisterRoutes(r)
		documentshandler.NewHandler(documents.NewStore(a.DB), ledger, paging).RegisterRoutes(r)
		changeshandler.NewHandler(ledger, paging).RegisterRoutes(r)
		geographyhandler.NewHandler(geography.NewStore(a.DB)).RegisterRoutes(r)
		if a.Jobs != nil {
			jobshandler.NewHandler(a.Jobs).RegisterRoutes(r)
		}
	})

	return router
}

// routePattern labels metrics with the matched chi pattern instead of the raw
// path so ids do not explode label cardinality.
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

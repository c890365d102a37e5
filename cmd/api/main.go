// Package main is the entrypoint for the Dynalinks API server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/dynalinks/dynalinks/internal/analytics"
	"github.com/dynalinks/dynalinks/internal/cache"
	"github.com/dynalinks/dynalinks/internal/config"
	"github.com/dynalinks/dynalinks/internal/geoip"
	"github.com/dynalinks/dynalinks/internal/handler"
	"github.com/dynalinks/dynalinks/internal/metrics"
	"github.com/dynalinks/dynalinks/internal/middleware"
	"github.com/dynalinks/dynalinks/internal/repository"
	"github.com/dynalinks/dynalinks/internal/server"
	"github.com/dynalinks/dynalinks/internal/service"
	"github.com/dynalinks/dynalinks/internal/shortcode"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	ctx := context.Background()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Initialize logger
	logger := initLogger(cfg)

	// Initialize database
	repo, err := repository.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error(
			"failed to connect to database",
			slog.String("error", sanitizeError(err, cfg.DatabaseURL)),
			slog.String("database_url", redactURL(cfg.DatabaseURL)),
		)
		os.Exit(1)
	}
	defer repo.Close()
	logger.Info("connected to database")

	// Initialize cache
	cacheClient, err := cache.New(ctx, cfg.RedisURL)
	if err != nil {
		logger.Error(
			"failed to connect to Redis",
			slog.String("error", sanitizeError(err, cfg.RedisURL)),
			slog.String("redis_url", redactURL(cfg.RedisURL)),
		)
		os.Exit(1)
	}
	defer cacheClient.Close()
	logger.Info("connected to Redis")

	// Initialize services
	metricsRecorder := metrics.NewInMemory()
	clickRepo := repository.NewClickEventRepository(repo)
	linkService := service.NewLinkService(
		repo,
		cacheClient,
		shortcode.NewGenerator(repo),
		logger,
		metricsRecorder,
		service.Options{
			CacheTTL:       cfg.LinkCacheTTL,
			NegCacheTTL:    cfg.NegativeCacheTTL,
			ResolveTimeout: cfg.ResolveTimeout,
		},
	)

	// Initialize analytics pipeline
	var publisher *analytics.Publisher
	var worker *analytics.Worker
	if cfg.AnalyticsEnabled {
		publisher = analytics.NewPublisher(cacheClient.Client(), logger, metricsRecorder)
		worker = analytics.NewWorker(cacheClient.Client(), clickRepo, logger, analytics.NewConsumerID(), metricsRecorder)
	} else {
		logger.Info("analytics pipeline disabled")
	}

	// Initialize handlers
	healthHandler := handler.NewHealthHandler(repo, cacheClient, cfg.AppEnv, version)
	linkHandler := handler.NewLinkHandler(linkService, cfg.BaseURL, logger)
	// A disabled pipeline must hand the handler a nil interface, not a
	// nil *Publisher wrapped in one.
	var clickPublisher handler.ClickPublisher
	if publisher != nil {
		clickPublisher = publisher
	}
	redirectHandler := handler.NewRedirectHandler(linkService, clickPublisher, geoip.NoopResolver{}, cfg.IPHashSecret, logger)
	analyticsHandler := handler.NewAnalyticsHandler(linkService, clickRepo, logger)
	metricsHandler := handler.NewMetricsHandler(metricsRecorder)

	// Setup router
	r := setupRouter(routerDeps{
		health:    healthHandler,
		links:     linkHandler,
		redirect:  redirectHandler,
		analytics: analyticsHandler,
		metrics:   metricsHandler,
		limiter:   cacheClient,
		recorder:  metricsRecorder,
		cfg:       cfg,
		logger:    logger,
	})

	// Create server
	srv := server.New(
		r,
		cfg.AppPort,
		cfg.ReadTimeout,
		cfg.WriteTimeout,
		cfg.ShutdownTimeout,
		logger,
	)

	// Start the analytics worker; it drains after the HTTP server stops.
	if worker != nil {
		go func() {
			if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("analytics worker exited", "error", err)
			}
		}()
		srv.OnShutdown("analytics worker", worker.Shutdown)
	}

	logger.Info("starting server",
		"port", cfg.AppPort,
		"base_url", cfg.BaseURL,
		"env", cfg.AppEnv,
		"version", version,
	)

	if err := srv.Run(); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// initLogger initializes the slog logger based on configuration.
func initLogger(cfg *config.Config) *slog.Logger {
	var h slog.Handler

	opts := &slog.HandlerOptions{
		Level: parseLogLevel(cfg.LogLevel),
	}

	if cfg.LogFormat == "json" {
		h = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		h = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(h)
	slog.SetDefault(logger)

	return logger
}

// parseLogLevel converts string log level to slog.Level.
func parseLogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type routerDeps struct {
	health    *handler.HealthHandler
	links     *handler.LinkHandler
	redirect  *handler.RedirectHandler
	analytics *handler.AnalyticsHandler
	metrics   *handler.MetricsHandler
	limiter   middleware.Limiter
	recorder  metrics.Recorder
	cfg       *config.Config
	logger    *slog.Logger
}

// setupRouter configures the chi router with all routes and middleware.
func setupRouter(d routerDeps) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger(d.logger))
	r.Use(middleware.Recoverer(d.logger))
	r.Use(middleware.Security(middleware.SecurityConfig{
		IsDevelopment:      d.cfg.IsDevelopment(),
		MaxRequestBodySize: d.cfg.MaxRequestBodySize,
	}))
	r.Use(middleware.MaxBodySize(d.cfg.MaxRequestBodySize))

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowedOrigins = d.cfg.GetCORSAllowedOrigins()
	r.Use(middleware.CORS(corsCfg))

	redirectRateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Logger:     d.logger,
		Limiter:    d.limiter,
		Metrics:    d.recorder,
		Enabled:    d.cfg.RateLimitEnabled,
		PerMinute:  d.cfg.RateLimitPerMinute,
		Scope:      "redirect",
		HashSecret: d.cfg.IPHashSecret,
	})
	apiRateLimit := middleware.RateLimit(middleware.RateLimitConfig{
		Logger:     d.logger,
		Limiter:    d.limiter,
		Metrics:    d.recorder,
		Enabled:    d.cfg.RateLimitEnabled,
		PerMinute:  d.cfg.RateLimitAPIPerMinute,
		Scope:      "api",
		HashSecret: d.cfg.IPHashSecret,
	})

	// Operational endpoints
	r.Get("/healthz", d.health.Healthz)
	r.Get("/readyz", d.health.Readyz)
	r.Get("/metrics", d.metrics.Metrics)

	// API v1 routes, metered separately from the redirect path
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiRateLimit)

		r.Get("/health", d.health.Health)

		r.Route("/links", func(r chi.Router) {
			r.Post("/", d.links.Create)
			r.Get("/", d.links.List)
			r.Get("/{shortCode}", d.links.Get)
			r.Patch("/{shortCode}", d.links.Update)
			r.Delete("/{shortCode}", d.links.Deactivate)
			r.Get("/{shortCode}/analytics", d.analytics.LinkAnalytics)
		})
	})

	// Redirect endpoint with per-client rate limiting
	r.With(redirectRateLimit).Get("/{shortCode}", d.redirect.Redirect)

	// 404 and 405 handlers
	r.NotFound(handler.NotFound)
	r.MethodNotAllowed(handler.MethodNotAllowed)

	return r
}

var passwordPattern = regexp.MustCompile(`(?i)password=\S+`)

// redactURL drops the password component of a connection URL so the
// DSN can be logged.
func redactURL(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	if parsed.User != nil {
		parsed.User = url.User(parsed.User.Username())
	}
	return parsed.String()
}

// sanitizeError replaces connection strings embedded in driver errors
// with their redacted form before logging.
func sanitizeError(err error, secrets ...string) string {
	msg := err.Error()
	for _, secret := range secrets {
		if secret != "" {
			msg = strings.ReplaceAll(msg, secret, redactURL(secret))
		}
	}
	return passwordPattern.ReplaceAllString(msg, "password=redacted")
}

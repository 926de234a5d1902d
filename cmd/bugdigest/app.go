package main

import (
	"context"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/bugdigest/bug-digest/internal/adapters/chat"
	"github.com/bugdigest/bug-digest/internal/adapters/desk"
	"github.com/bugdigest/bug-digest/internal/adapters/teamwork"
	httptransport "github.com/bugdigest/bug-digest/internal/api/http"
	"github.com/bugdigest/bug-digest/internal/api/http/handlers"
	"github.com/bugdigest/bug-digest/internal/auth"
	"github.com/bugdigest/bug-digest/internal/config"
	"github.com/bugdigest/bug-digest/internal/enrich"
	"github.com/bugdigest/bug-digest/internal/events"
	"github.com/bugdigest/bug-digest/internal/observability"
	"github.com/bugdigest/bug-digest/internal/persistence"
	"github.com/bugdigest/bug-digest/internal/report"
	"github.com/bugdigest/bug-digest/internal/service"
)

// app holds the wired components shared by every command.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
	backend *persistence.Backend
	reports *service.ReportService
}

func newApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*app, error) {
	backend, err := persistence.Open(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewInMemoryDispatcher()
	service.NewNotificationService(dispatcher, logger, metrics).RegisterHandlers()

	timeout := cfg.HTTPClient.Timeout()
	tasks := teamwork.NewClient(cfg.TaskSource, timeout, logger)
	tickets := desk.NewClient(cfg.TicketSource, timeout, logger)
	enricher := enrich.NewTicketEnricher(tickets, throttle(cfg.Enrichment), logger,
		enrich.WithFailureHook(service.TicketFailureHook(dispatcher, nil)))

	loc, err := time.LoadLocation(cfg.Schedule.Timezone)
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("load timezone %q: %w", cfg.Schedule.Timezone, err)
	}

	reports := service.NewReportService(service.ReportDependencies{
		Catalog:    report.NewCatalog(cfg.Reports, cfg.Webhooks),
		Tasks:      enrich.NewPipeline(tasks, enricher, logger),
		Publisher:  chat.NewClient(timeout, logger),
		Locker:     backend.Locker,
		History:    backend.History,
		Dispatcher: dispatcher,
		Metrics:    metrics,
		Logger:     logger,
		Rows:       report.TaskRow{BaseURL: cfg.TaskSource.BaseURL, Location: loc},
		TaskListID: cfg.TaskSource.TaskListID,
		TeamID:     cfg.TaskSource.AssigneeTeamID,
	})

	return &app{cfg: cfg, logger: logger, metrics: metrics, backend: backend, reports: reports}, nil
}

func (a *app) close() {
	a.backend.Close()
}

// server builds the HTTP surface. Report routes are only mounted when a token secret
// is configured.
func (a *app) server() *fiber.App {
	srv := fiber.New(fiber.Config{
		AppName:               a.cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(srv, a.logger, a.metrics, a.cfg.App.RequestTimeout())

	routes := httptransport.RouteConfig{
		Health:  handlers.NewHealthHandler(a.cfg.App.Name, a.cfg.App.Version, a.backend),
		Reports: handlers.NewReportsHandler(a.reports, a.metrics),
		Metrics: handlers.NewMetricsHandler(a.metrics),
	}
	if a.cfg.Auth.JWTSecret != "" {
		routes.AuthMiddleware = auth.NewMiddleware(auth.NewTokenManager(a.cfg.Auth.JWTSecret, a.cfg.Auth.TokenTTLMinutes))
	} else {
		a.logger.Warn("AUTH_JWT_SECRET not set; report routes disabled")
	}
	httptransport.RegisterRoutes(srv, routes)
	return srv
}

func throttle(cfg config.EnrichmentConfig) enrich.Throttle {
	t := enrich.Throttle{BatchSize: cfg.BatchSize, Pause: cfg.BatchPause}
	if cfg.RatePerSecond > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		t.Limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), burst)
	}
	return t
}

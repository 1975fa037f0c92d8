package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/decorhub/storefront/config"
	redisadapter "github.com/decorhub/storefront/internal/adapters/redis"
	httpx "github.com/decorhub/storefront/internal/http"
	"github.com/decorhub/storefront/internal/observability/metrics"
	"github.com/decorhub/storefront/internal/observability/prom"
	"github.com/decorhub/storefront/internal/observability/statsd"
	"github.com/decorhub/storefront/internal/ports"
	"github.com/decorhub/storefront/internal/service"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Auth         *service.AuthService
	Access       *service.AccessService
	Registry     *service.SessionRegistry
	RoleEvents   ports.RoleEvents
	Metrics      statsd.Sink
	HealthChecks map[string]httpx.HealthCheck
	// MetricsHandler serves Prometheus metrics; nil when disabled.
	MetricsHandler http.Handler

	// ProviderLogoutURL is the identity provider's end-session URL, if any.
	ProviderLogoutURL string

	metricsClient *statsd.Client
}

// Close releases resources held by the services.
func (c ServiceContainer) Close() {
	if c.Registry != nil {
		c.Registry.Close()
	}
	if c.metricsClient != nil {
		_ = c.metricsClient.Close()
	}
}

// ServiceDeps groups dependencies for service initialization.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

type metricsSinks struct {
	sink   statsd.Sink
	statsd *statsd.Client
	prom   *prom.Sink
}

// buildMetrics fans out to every enabled backend. The combined sink is nil
// when none is enabled, so emitters skip work entirely.
func buildMetrics(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) metricsSinks {
	var out metricsSinks
	var sinks []statsd.Sink
	if cfg.StatsdEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Address:       cfg.StatsdAddress,
			Prefix:        cfg.Prefix,
			FlushInterval: cfg.StatsdFlushInterval,
			Logger:        logger,
		})
		if err != nil {
			logger.Error("failed to initialise statsd client", "error", err)
		} else {
			out.statsd = client
			sinks = append(sinks, client)
		}
	}
	if cfg.Prometheus {
		out.prom = prom.New(prom.Config{Namespace: cfg.Prefix, Labels: metrics.Labels(), Logger: logger})
		sinks = append(sinks, out.prom)
	}
	out.sink = statsd.Combine(sinks...)
	return out
}

// NewServices wires the storefront services from configuration.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps missing AppConfig")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ms := buildMetrics(logger, cfg.Observability.Metrics)
	sink := ms.sink

	routes, err := cfg.Routes.Load()
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("load route table: %w", err)
	}

	roles, err := BuildRoleStore(RoleStoreConfig{
		RoleStore:   cfg.RoleStore,
		DB:          deps.DB,
		RedisClient: deps.RedisClient,
		Logger:      logger,
	})
	if err != nil {
		return ServiceContainer{}, err
	}

	resolver := service.NewRoleResolver(service.RoleResolverOptions{
		Store:           roles.Store,
		StoreName:       string(cfg.RoleStore.Mode),
		NotFoundPolicy:  service.NotFoundPolicy(cfg.RoleStore.NotFoundPolicy),
		MaxAttempts:     cfg.Access.RoleRetryLimit,
		InitialInterval: cfg.Access.RoleRetryInitial,
		MaxInterval:     cfg.Access.RoleRetryMax,
		AttemptTimeout:  cfg.Access.RoleAttemptTimeout,
		Metrics:         sink,
		Logger:          logger,
	})
	registry := service.NewSessionRegistry(service.SessionRegistryOptions{
		Resolver:         resolver,
		Size:             cfg.Access.RegistrySize,
		IdleTTL:          cfg.Access.RegistryIdleTTL,
		FailedRetryAfter: cfg.Access.RoleFailedRetry,
		EventsRetryMax:   cfg.Access.EventsRetryMax,
		Logger:           logger,
	})

	var events ports.RoleEvents
	if deps.RedisClient != nil {
		events = redisadapter.NewRoleEvents(deps.RedisClient, redisadapter.RoleEventsOptions{
			Channel: cfg.RoleEventsChannel,
			Logger:  logger,
		})
	}

	auth := BuildAuthService(AuthConfig{
		Auth:        cfg.Auth,
		RedisClient: deps.RedisClient,
		Registry:    registry,
		Logger:      logger,
	})

	opts := service.AccessServiceOptions{
		Routes:   routes,
		Registry: registry,
		Events:   events,
		RoleWait: cfg.Access.RoleWait,
		Metrics:  sink,
		Logger:   logger,
	}
	if auth != nil {
		opts.Sessions = auth
	}
	if roles.Cache != nil {
		opts.RoleCache = roles.Cache
	}

	svc := ServiceContainer{
		Auth:              auth,
		Access:            service.NewAccessService(opts),
		Registry:          registry,
		RoleEvents:        events,
		Metrics:           sink,
		HealthChecks:      buildHealthChecks(deps.DB, deps.RedisClient),
		ProviderLogoutURL: ProviderLogoutURL(cfg.Auth),
		metricsClient:     ms.statsd,
	}
	if ms.prom != nil {
		svc.MetricsHandler = ms.prom.Handler()
	}
	return svc, nil
}

func buildHealthChecks(db *sql.DB, client redis.UniversalClient) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck, 2)
	if client != nil {
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if db != nil {
		checks["postgres"] = db.PingContext
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for service orchestration.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown serves HTTP and applies role-change notifications
// until SIGINT/SIGTERM or until either fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RunServices(ctx, cfg)
}

// RunServices is RunServicesWithShutdown driven by ctx instead of signals.
func RunServices(ctx context.Context, cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handler, err := buildHTTPHandler(httpHandlerConfig{
		Logger:   logger,
		Services: routerServices(cfg.Config, cfg.Services, logger),
		HTTP:     cfg.Config.HTTP,
		Metrics:  cfg.Services.Metrics,
	})
	if err != nil {
		return fmt.Errorf("build http handler: %w", err)
	}
	server := newServer(handler, cfg.Config.HTTP)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		return serve(server)
	})
	g.Go(func() error {
		if cfg.Services.Registry == nil {
			return nil
		}
		// Subscription failures are retried inside; only shutdown ends it.
		return cfg.Services.Registry.RunRoleEvents(gctx, cfg.Services.RoleEvents)
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down services...")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), cfg.Config.HTTP.ShutdownTimeout)
		defer cancel()
		return ShutdownHTTPServer(ShutdownConfig{Context: shutdownCtx, Server: server, Logger: logger})
	})

	err = g.Wait()
	cfg.Services.Close()
	if err != nil {
		logger.Error("service error", "error", err)
	}
	return err
}

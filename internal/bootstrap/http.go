package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/decorhub/storefront/config"
	httpx "github.com/decorhub/storefront/internal/http"
	"github.com/decorhub/storefront/internal/observability/statsd"
)

func routerServices(cfg *config.AppConfig, svc ServiceContainer, logger *slog.Logger) httpx.RouterServices {
	rs := httpx.RouterServices{
		CookieDomain:      cfg.HTTP.CookieDomain,
		TrustedOrigins:    []string{cfg.HTTP.BaseURL},
		ProviderLogoutURL: svc.ProviderLogoutURL,
		HealthChecks:      svc.HealthChecks,
		MetricsHandler:    svc.MetricsHandler,
		IsDev:             cfg.IsDev,
		Logger:            logger,
	}
	if svc.Access != nil {
		rs.Access = svc.Access
	}
	if svc.Auth != nil {
		rs.Auth = svc.Auth
	}
	return rs
}

type httpHandlerConfig struct {
	Logger   *slog.Logger
	Services httpx.RouterServices
	HTTP     config.HTTPConfig
	Metrics  statsd.Sink
}

func buildHTTPHandler(cfg httpHandlerConfig) (http.Handler, error) {
	router, err := httpx.NewRouter(cfg.Services)
	if err != nil {
		return nil, err
	}

	// Outermost first.
	chain := []func(http.Handler) http.Handler{
		httpx.Recover(cfg.Logger),
		httpx.Logging(cfg.Logger),
		httpx.RequestMetrics(cfg.Metrics),
	}
	if cfg.HTTP.CompressionEnabled {
		cfg.Logger.Info("HTTP compression enabled", "level", cfg.HTTP.CompressionLevel)
		chain = append(chain, httpx.Compression(httpx.CompressionConfig{Level: cfg.HTTP.CompressionLevel, Logger: cfg.Logger}))
	}

	var h http.Handler = router
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h, nil
}

func newServer(handler http.Handler, cfg config.HTTPConfig) *http.Server {
	return &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}

func serve(server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownConfig contains dependencies for HTTP server shutdown.
type ShutdownConfig struct {
	Context context.Context
	Server  *http.Server
	Logger  *slog.Logger
}

// ShutdownHTTPServer gracefully shuts down the HTTP server.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	ctx := cfg.Context
	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("shutting down HTTP server")
	}
	if err := cfg.Server.Shutdown(ctx); err != nil {
		return err
	}
	if cfg.Logger != nil {
		cfg.Logger.Info("HTTP server stopped")
	}
	return nil
}

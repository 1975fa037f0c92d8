package bootstrap

import (
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/decorhub/storefront/config"
	"github.com/decorhub/storefront/internal/adapters/devauth"
	"github.com/decorhub/storefront/internal/adapters/oidc"
	redisadapter "github.com/decorhub/storefront/internal/adapters/redis"
	"github.com/decorhub/storefront/internal/ports"
	"github.com/decorhub/storefront/internal/service"
)

// AuthConfig contains configuration for auth service.
type AuthConfig struct {
	Auth        config.AuthConfig
	RedisClient redis.UniversalClient
	Registry    *service.SessionRegistry
	Logger      *slog.Logger
}

// BuildAuthService creates an auth service based on the configured auth mode.
// Returns nil if auth is not configured or configuration is invalid; the
// storefront then serves public pages only.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.RedisClient == nil {
		logger.Warn("auth service disabled: redis client not configured", "mode", cfg.Auth.Mode)
		return nil
	}

	var (
		prov ports.AuthProvider
		err  error
	)
	switch cfg.Auth.Mode {
	case config.AuthModeMock:
		prov, err = devauth.NewProvider(devauth.Config{
			Email:           cfg.Auth.DevAuth.Email,
			DisplayName:     cfg.Auth.DevAuth.DisplayName,
			PhotoURL:        cfg.Auth.DevAuth.PhotoURL,
			Accounts:        cfg.Auth.DevAuth.Accounts,
			SessionDuration: cfg.Auth.SessionTTL,
		})
	case config.AuthModeOAuth:
		prov, err = buildOIDCProvider(cfg.Auth.OAuth, logger)
	default:
		return nil
	}
	if err != nil {
		logger.Warn("failed to create identity provider, auth disabled", "mode", cfg.Auth.Mode, "error", err)
		return nil
	}
	if prov == nil {
		return nil
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:   prov,
		Sessions:   redisadapter.NewSessionStore(cfg.RedisClient),
		Registry:   cfg.Registry,
		SessionTTL: cfg.Auth.SessionTTL,
	})
}

//nolint:ireturn,nilnil // a nil provider means "not configured", which is not an error
func buildOIDCProvider(oauth config.OAuthConfig, logger *slog.Logger) (ports.AuthProvider, error) {
	if !oauth.Complete() {
		logger.Warn("AuthModeOAuth selected but required config missing; auth disabled",
			"discovery_url_empty", oauth.DiscoveryURL == "",
			"client_id_empty", oauth.ClientID == "",
			"client_secret_empty", oauth.ClientSecret == "",
		)
		return nil, nil
	}
	return oidc.NewProvider(oidc.ProviderConfig{
		ClientID:     oauth.ClientID,
		ClientSecret: oauth.ClientSecret,
		RedirectURL:  oauth.RedirectURL,
		Scope:        oauth.Scope,
		DiscoveryURL: oauth.DiscoveryURL,
		LogoutURL:    oauth.LogoutURL,

		PKCE:                 oauth.PKCE,
		AllowUnverifiedEmail: oauth.AllowUnverifiedEmail,
		DiscoveryAttempts:    oauth.DiscoveryAttempts,
	})
}

// ProviderLogoutURL is the end-session URL offered on the signed-out page.
func ProviderLogoutURL(cfg config.AuthConfig) string {
	if cfg.Mode != config.AuthModeOAuth {
		return ""
	}
	return cfg.OAuth.LogoutURL
}

package bootstrap

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"

	"github.com/decorhub/storefront/config"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// lazyRedis returns a client that never dials until a command is issued.
func lazyRedis(t *testing.T) redis.UniversalClient {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestBuildAuthServiceReturnsNilWithoutRedis(t *testing.T) {
	tests := []struct {
		name string
		auth config.AuthConfig
	}{
		{
			name: "dev auth mode",
			auth: config.AuthConfig{
				Mode:    config.AuthModeMock,
				DevAuth: config.DevAuthConfig{Email: "dev@example.com"},
			},
		},
		{
			name: "oauth mode",
			auth: config.AuthConfig{
				Mode: config.AuthModeOAuth,
				OAuth: config.OAuthConfig{
					ClientID:     "client-id",
					ClientSecret: "client-secret",
					DiscoveryURL: "https://issuer.example.com",
					RedirectURL:  "https://shop.example.com/auth/callback",
					Scope:        "openid",
				},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := BuildAuthService(AuthConfig{Auth: tt.auth, Logger: discardLogger()})
			assert.Nil(t, svc)
		})
	}
}

func TestBuildAuthServiceMockMode(t *testing.T) {
	svc := BuildAuthService(AuthConfig{
		Auth: config.AuthConfig{
			Mode:       config.AuthModeMock,
			DevAuth:    config.DevAuthConfig{Email: "dev@example.com", DisplayName: "Dev"},
			SessionTTL: time.Hour,
		},
		RedisClient: lazyRedis(t),
		Logger:      discardLogger(),
	})
	assert.NotNil(t, svc)
}

func TestBuildAuthServiceMockModeWithoutEmail(t *testing.T) {
	svc := BuildAuthService(AuthConfig{
		Auth:        config.AuthConfig{Mode: config.AuthModeMock},
		RedisClient: lazyRedis(t),
		Logger:      discardLogger(),
	})
	assert.Nil(t, svc)
}

func TestBuildAuthServiceOAuthIncomplete(t *testing.T) {
	tests := []struct {
		name  string
		oauth config.OAuthConfig
	}{
		{"no discovery url", config.OAuthConfig{ClientID: "id", ClientSecret: "secret"}},
		{"no client id", config.OAuthConfig{DiscoveryURL: "https://issuer.example.com", ClientSecret: "secret"}},
		{"no client secret", config.OAuthConfig{DiscoveryURL: "https://issuer.example.com", ClientID: "id"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := BuildAuthService(AuthConfig{
				Auth:        config.AuthConfig{Mode: config.AuthModeOAuth, OAuth: tt.oauth},
				RedisClient: lazyRedis(t),
				Logger:      discardLogger(),
			})
			assert.Nil(t, svc)
		})
	}
}

func TestProviderLogoutURL(t *testing.T) {
	oauth := config.OAuthConfig{LogoutURL: "https://issuer.example.com/logout"}

	assert.Equal(t, "https://issuer.example.com/logout",
		ProviderLogoutURL(config.AuthConfig{Mode: config.AuthModeOAuth, OAuth: oauth}))
	assert.Empty(t, ProviderLogoutURL(config.AuthConfig{Mode: config.AuthModeMock, OAuth: oauth}))
}

package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redis/go-redis/v9"

	"github.com/decorhub/storefront/config"
	"github.com/decorhub/storefront/internal/adapters/authroles"
	redisadapter "github.com/decorhub/storefront/internal/adapters/redis"
	"github.com/decorhub/storefront/internal/adapters/rolestore"
	"github.com/decorhub/storefront/internal/ports"
)

// RoleStoreConfig contains what is needed to build the role store.
type RoleStoreConfig struct {
	RoleStore   config.RoleStoreConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// RoleStoreResult is the role store plus the cache in front of it, if any.
type RoleStoreResult struct {
	Store ports.RoleStore
	// Cache is nil when caching is disabled or Redis is unavailable.
	Cache *redisadapter.RoleCache
}

// BuildRoleStore selects the role store for the configured mode and puts a
// Redis cache in front of remote stores.
func BuildRoleStore(cfg RoleStoreConfig) (RoleStoreResult, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var store ports.RoleStore
	switch cfg.RoleStore.Mode {
	case config.RoleStoreModeStatic:
		roles, err := authroles.ParseAssignments(cfg.RoleStore.StaticAssignments)
		if err != nil {
			return RoleStoreResult{}, fmt.Errorf("static role assignments: %w", err)
		}
		logger.Info("using static role store", "assignments", len(roles))
		// Static lookups are local; caching them would only delay role changes.
		return RoleStoreResult{Store: authroles.NewStaticStore(roles)}, nil

	case config.RoleStoreModePostgres:
		if cfg.DB == nil {
			return RoleStoreResult{}, errors.New("postgres role store selected but no database connection")
		}
		store = rolestore.NewPostgresStore(cfg.DB)

	default:
		httpStore, err := rolestore.NewHTTPStore(rolestore.HTTPConfig{
			BaseURL:     cfg.RoleStore.URL,
			RolePath:    cfg.RoleStore.RolePath,
			NamePath:    cfg.RoleStore.NamePath,
			PhotoPath:   cfg.RoleStore.PhotoPath,
			BearerToken: cfg.RoleStore.BearerToken,
			HTTPClient:  &http.Client{Timeout: cfg.RoleStore.Timeout},
		})
		if err != nil {
			return RoleStoreResult{}, fmt.Errorf("http role store: %w", err)
		}
		store = httpStore
	}

	if cfg.RedisClient == nil || cfg.RoleStore.CacheTTL <= 0 {
		return RoleStoreResult{Store: store}, nil
	}
	cache := redisadapter.NewRoleCache(cfg.RedisClient, store, redisadapter.RoleCacheOptions{
		TTL:    cfg.RoleStore.CacheTTL,
		Logger: logger,
	})
	return RoleStoreResult{Store: cache, Cache: cache}, nil
}

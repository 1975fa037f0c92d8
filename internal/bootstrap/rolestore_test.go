package bootstrap

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decorhub/storefront/config"
	"github.com/decorhub/storefront/internal/adapters/authroles"
	"github.com/decorhub/storefront/internal/adapters/rolestore"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
)

func TestBuildRoleStoreStatic(t *testing.T) {
	res, err := BuildRoleStore(RoleStoreConfig{
		RoleStore: config.RoleStoreConfig{
			Mode:              config.RoleStoreModeStatic,
			StaticAssignments: []string{"ada@example.com=admin", "bob@example.com=user"},
			CacheTTL:          time.Minute,
		},
		RedisClient: lazyRedis(t),
		Logger:      discardLogger(),
	})
	require.NoError(t, err)
	assert.Nil(t, res.Cache, "static stores are not cached")
	require.IsType(t, &authroles.StaticStore{}, res.Store)

	rec, err := res.Store.Lookup(context.Background(), "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, rec.Role)
}

func TestBuildRoleStoreStaticInvalidAssignment(t *testing.T) {
	_, err := BuildRoleStore(RoleStoreConfig{
		RoleStore: config.RoleStoreConfig{
			Mode:              config.RoleStoreModeStatic,
			StaticAssignments: []string{"ada@example.com=owner"},
		},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "static role assignments")
}

func TestBuildRoleStorePostgresRequiresDB(t *testing.T) {
	_, err := BuildRoleStore(RoleStoreConfig{
		RoleStore: config.RoleStoreConfig{Mode: config.RoleStoreModePostgres},
	})
	require.Error(t, err)
}

func TestBuildRoleStorePostgres(t *testing.T) {
	db, err := sql.Open("pgx", "postgres://u:p@127.0.0.1:1/none?sslmode=disable")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	res, err := BuildRoleStore(RoleStoreConfig{
		RoleStore: config.RoleStoreConfig{Mode: config.RoleStoreModePostgres},
		DB:        db,
	})
	require.NoError(t, err)
	assert.IsType(t, &rolestore.PostgresStore{}, res.Store)
	assert.Nil(t, res.Cache)
}

func TestBuildRoleStoreHTTPCaching(t *testing.T) {
	base := config.RoleStoreConfig{
		Mode:     config.RoleStoreModeHTTP,
		URL:      "http://users.internal",
		RolePath: "role",
		Timeout:  time.Second,
	}

	t.Run("cached with redis and ttl", func(t *testing.T) {
		cfg := base
		cfg.CacheTTL = time.Minute
		res, err := BuildRoleStore(RoleStoreConfig{RoleStore: cfg, RedisClient: lazyRedis(t)})
		require.NoError(t, err)
		require.NotNil(t, res.Cache)
		assert.Same(t, res.Cache, res.Store)
	})

	t.Run("uncached without ttl", func(t *testing.T) {
		res, err := BuildRoleStore(RoleStoreConfig{RoleStore: base, RedisClient: lazyRedis(t)})
		require.NoError(t, err)
		assert.Nil(t, res.Cache)
		assert.IsType(t, &rolestore.HTTPStore{}, res.Store)
	})

	t.Run("uncached without redis", func(t *testing.T) {
		cfg := base
		cfg.CacheTTL = time.Minute
		res, err := BuildRoleStore(RoleStoreConfig{RoleStore: cfg})
		require.NoError(t, err)
		assert.Nil(t, res.Cache)
	})

	t.Run("bad role path", func(t *testing.T) {
		cfg := base
		cfg.RolePath = "[[["
		_, err := BuildRoleStore(RoleStoreConfig{RoleStore: cfg})
		require.Error(t, err)
	})
}

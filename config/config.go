// Package config holds the storefront's environment-driven settings. Each
// concern lives in its own file with its own Sanitize guardrails.
package config

import (
	"os"
	"slices"
	"strings"
)

const defaultRoleEventsChannel = "role-changes"

// AppConfig is parsed from the environment with github.com/caarlos0/env.
type AppConfig struct {
	// IsDev enables template reloading and insecure cookies. NODE_ENV=development
	// or NODE_ENV=dev also turns it on.
	IsDev bool `env:"DEV" envDefault:"false"`

	Auth AuthConfig
	HTTP HTTPConfig

	Postgres DBConfig    `envPrefix:"DB_"`
	Redis    RedisConfig `envPrefix:"REDIS_"`

	RoleStore RoleStoreConfig `envPrefix:"ROLE_STORE_"`
	Access    AccessConfig    `envPrefix:"ACCESS_"`

	// RoleEventsChannel is the Redis pub/sub channel carrying role-change emails.
	RoleEventsChannel string `env:"ROLE_EVENTS_CHANNEL" envDefault:"role-changes"`

	Routes        RoutesConfig
	Observability ObservabilityConfig
}

// Sanitize clamps every section to usable values. Call it once after parsing.
func (c *AppConfig) Sanitize() {
	for _, s := range []interface{ Sanitize() }{
		&c.HTTP, &c.Postgres, &c.Redis, &c.Auth,
		&c.RoleStore, &c.Access, &c.Routes, &c.Observability,
	} {
		s.Sanitize()
	}
	c.RoleEventsChannel = strings.TrimSpace(c.RoleEventsChannel)
	if c.RoleEventsChannel == "" {
		c.RoleEventsChannel = defaultRoleEventsChannel
	}
	c.IsDev = c.IsDev || devNodeEnv(os.Getenv("NODE_ENV"))
}

func devNodeEnv(v string) bool {
	return slices.Contains([]string{"development", "dev"}, strings.ToLower(strings.TrimSpace(v)))
}

// NeedsPostgres reports whether any configured component reads from Postgres.
func (c *AppConfig) NeedsPostgres() bool {
	return c.RoleStore.Mode == RoleStoreModePostgres
}

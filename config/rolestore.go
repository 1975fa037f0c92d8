package config

import (
	"fmt"
	"strings"
	"time"
)

// RoleStoreMode selects where roles are read from.
type RoleStoreMode string

const (
	// RoleStoreModeHTTP reads roles from the marketplace REST API.
	RoleStoreModeHTTP RoleStoreMode = "http"
	// RoleStoreModePostgres reads roles from the role_profiles table.
	RoleStoreModePostgres RoleStoreMode = "postgres"
	// RoleStoreModeStatic reads roles from ROLE_STORE_STATIC_ASSIGNMENTS (development only).
	RoleStoreModeStatic RoleStoreMode = "static"
)

// UnmarshalText implements encoding.TextUnmarshaler for RoleStoreMode.
func (m *RoleStoreMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch RoleStoreMode(v) {
	case RoleStoreModeHTTP, RoleStoreModePostgres, RoleStoreModeStatic:
		*m = RoleStoreMode(v)
		return nil
	default:
		return fmt.Errorf("invalid RoleStoreMode: %q (valid options: http, postgres, static)", v)
	}
}

// NotFoundPolicy decides what a missing role record means.
type NotFoundPolicy string

const (
	// NotFoundPolicyDeny treats a missing record as a failed role (fail closed).
	NotFoundPolicyDeny NotFoundPolicy = "deny"
	// NotFoundPolicyUser treats a missing record as the user role.
	NotFoundPolicyUser NotFoundPolicy = "user"
)

// UnmarshalText implements encoding.TextUnmarshaler for NotFoundPolicy.
func (p *NotFoundPolicy) UnmarshalText(text []byte) error {
	v := strings.ToLower(strings.TrimSpace(string(text)))
	switch NotFoundPolicy(v) {
	case NotFoundPolicyDeny, NotFoundPolicyUser:
		*p = NotFoundPolicy(v)
		return nil
	default:
		return fmt.Errorf("invalid NotFoundPolicy: %q (valid options: deny, user)", v)
	}
}

// RoleStoreConfig configures the role store. Variables are prefixed ROLE_STORE_.
type RoleStoreConfig struct {
	Mode RoleStoreMode `env:"MODE" envDefault:"http"`

	// URL is the REST API base; lookups go to {URL}/users/{email}.
	URL string `env:"URL" envDefault:"http://localhost:5000"`
	// RolePath, NamePath and PhotoPath are JMESPath expressions over the response body.
	RolePath    string        `env:"ROLE_PATH"    envDefault:"role"`
	NamePath    string        `env:"NAME_PATH"`
	PhotoPath   string        `env:"PHOTO_PATH"`
	BearerToken string        `env:"BEARER_TOKEN"`
	Timeout     time.Duration `env:"TIMEOUT"      envDefault:"5s"`

	NotFoundPolicy NotFoundPolicy `env:"NOT_FOUND_POLICY" envDefault:"deny"`

	// StaticAssignments lists "email=role" pairs separated by ';' (static mode).
	StaticAssignments []string `env:"STATIC_ASSIGNMENTS" envSeparator:";"`

	// CacheTTL is how long looked-up roles are shared through Redis. Zero disables the cache.
	CacheTTL time.Duration `env:"CACHE_TTL" envDefault:"1m"`
}

// Sanitize applies guardrails to role store configuration values.
func (r *RoleStoreConfig) Sanitize() {
	r.URL = strings.TrimSpace(r.URL)
	if r.RolePath = strings.TrimSpace(r.RolePath); r.RolePath == "" {
		r.RolePath = "role"
	}
	if r.Timeout <= 0 {
		r.Timeout = 5 * time.Second
	}
	if r.NotFoundPolicy == "" {
		r.NotFoundPolicy = NotFoundPolicyDeny
	}
	if r.CacheTTL < 0 {
		r.CacheTTL = 0
	}
}

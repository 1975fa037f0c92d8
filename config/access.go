package config

import "time"

// AccessConfig tunes role resolution and the per-session state registry.
// Variables are prefixed ACCESS_.
type AccessConfig struct {
	// RoleWait bounds how long a page request waits for a pending role before
	// rendering the pending view.
	RoleWait time.Duration `env:"ROLE_WAIT" envDefault:"750ms"`

	// RoleRetryLimit bounds role store lookups per fetch, including the first.
	RoleRetryLimit uint `env:"ROLE_RETRY_LIMIT" envDefault:"3"`

	RoleRetryInitial   time.Duration `env:"ROLE_RETRY_INITIAL"   envDefault:"100ms"`
	RoleRetryMax       time.Duration `env:"ROLE_RETRY_MAX"       envDefault:"2s"`
	RoleAttemptTimeout time.Duration `env:"ROLE_ATTEMPT_TIMEOUT" envDefault:"5s"`
	RoleFailedRetry    time.Duration `env:"ROLE_FAILED_RETRY"    envDefault:"30s"`

	// RegistrySize bounds the number of live session states held in memory.
	RegistrySize    int           `env:"REGISTRY_SIZE"     envDefault:"10000"`
	RegistryIdleTTL time.Duration `env:"REGISTRY_IDLE_TTL" envDefault:"30m"`

	// EventsRetryMax caps the wait between role-change resubscription attempts.
	EventsRetryMax time.Duration `env:"EVENTS_RETRY_MAX" envDefault:"30s"`
}

// Sanitize applies guardrails to access configuration values.
func (a *AccessConfig) Sanitize() {
	if a.RoleWait < 0 {
		a.RoleWait = 0
	}
	if a.RoleWait > 10*time.Second {
		a.RoleWait = 10 * time.Second
	}
	if a.RoleRetryLimit < 1 {
		a.RoleRetryLimit = 1
	}
	if a.RoleRetryLimit > 10 {
		a.RoleRetryLimit = 10
	}
	if a.RoleRetryInitial <= 0 {
		a.RoleRetryInitial = 100 * time.Millisecond
	}
	if a.RoleRetryMax < a.RoleRetryInitial {
		a.RoleRetryMax = a.RoleRetryInitial
	}
	if a.RoleAttemptTimeout <= 0 {
		a.RoleAttemptTimeout = 5 * time.Second
	}
	if a.RoleFailedRetry < 0 {
		a.RoleFailedRetry = 0
	}
	if a.RegistrySize < 1 {
		a.RegistrySize = 1
	}
	if a.RegistryIdleTTL < time.Minute {
		a.RegistryIdleTTL = time.Minute
	}
	if a.EventsRetryMax < time.Second {
		a.EventsRetryMax = time.Second
	}
}

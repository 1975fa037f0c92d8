package config

import (
	"strings"
	"time"
)

// ObservabilityConfig groups configuration that controls metrics and logging.
type ObservabilityConfig struct {
	Metrics ObservabilityMetricsConfig

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
	// LogFormat is json or text.
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
}

// Sanitize applies guardrails to observability sub-configs.
func (c *ObservabilityConfig) Sanitize() {
	c.Metrics.Sanitize()
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		c.LogLevel = "info"
	}
	if c.LogFormat = strings.ToLower(strings.TrimSpace(c.LogFormat)); c.LogFormat != "text" {
		c.LogFormat = "json"
	}
}

// ObservabilityMetricsConfig selects the metric sinks. StatsD and Prometheus
// may run side by side.
type ObservabilityMetricsConfig struct {
	Enabled             bool          `env:"OBSERVABILITY_METRICS_ENABLED"                envDefault:"false"`
	StatsdAddress       string        `env:"OBSERVABILITY_METRICS_STATSD_ADDRESS"         envDefault:"127.0.0.1:8125"`
	StatsdFlushInterval time.Duration `env:"OBSERVABILITY_METRICS_STATSD_FLUSH_INTERVAL"  envDefault:"1s"`
	Prefix              string        `env:"OBSERVABILITY_METRICS_PREFIX"                 envDefault:"storefront"`
	// Prometheus serves /metrics independently of the StatsD switch.
	Prometheus bool `env:"OBSERVABILITY_METRICS_PROMETHEUS_ENABLED" envDefault:"false"`
}

// Sanitize normalises derived fields and enforces safe defaults.
func (c *ObservabilityMetricsConfig) Sanitize() {
	c.StatsdAddress = strings.TrimSpace(c.StatsdAddress)
	if c.StatsdAddress == "" {
		c.Enabled = false
	}
	if c.StatsdFlushInterval <= 0 {
		c.StatsdFlushInterval = time.Second
	}
	c.Prefix = strings.TrimSpace(c.Prefix)
}

// StatsdEnabled reports whether StatsD emission is active after sanitisation.
func (c *ObservabilityMetricsConfig) StatsdEnabled() bool {
	return c.Enabled && c.StatsdAddress != ""
}

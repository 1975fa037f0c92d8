package config

import (
	_ "embed"
	"strings"

	"github.com/decorhub/storefront/internal/domain/route"
)

//go:embed routes.yaml
var defaultRoutes []byte

// DefaultRoutesYAML returns the embedded route table document.
func DefaultRoutesYAML() []byte {
	out := make([]byte, len(defaultRoutes))
	copy(out, defaultRoutes)
	return out
}

// RoutesConfig selects the route table source.
type RoutesConfig struct {
	// File overrides the embedded table with a YAML file on disk.
	File string `env:"ROUTES_FILE"`
}

// Sanitize trims the file path.
func (r *RoutesConfig) Sanitize() {
	r.File = strings.TrimSpace(r.File)
}

// Load builds the route table from File, or from the embedded default.
func (r RoutesConfig) Load() (*route.Table, error) {
	if r.File != "" {
		return route.LoadFile(r.File)
	}
	return route.Parse(defaultRoutes)
}

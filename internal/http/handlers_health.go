package httpx

import (
	"context"
	"io"
	"net/http"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

const (
	healthResponse      = `{"status":"ok"}`
	readyCheckTimeout   = 2 * time.Second
	readyCheckFailedMsg = "failed"
)

// HealthCheck probes one dependency. A nil error means ready.
type HealthCheck func(ctx context.Context) error

// healthHandler returns a simple 200 OK status for liveness checks.
func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.WriteString(w, healthResponse); err != nil {
		// Nothing more to do if the client connection is gone.
		return
	}
}

// readyHandler runs every check concurrently and answers 503 if any fails.
// Check errors are not echoed to the caller.
func readyHandler(checks map[string]HealthCheck) http.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
		defer cancel()

		results := make([]string, len(names))
		var g errgroup.Group
		for i, name := range names {
			g.Go(func() error {
				results[i] = "ok"
				if err := checks[name](ctx); err != nil {
					results[i] = readyCheckFailedMsg
				}
				return nil
			})
		}
		_ = g.Wait()

		status, code := "ok", http.StatusOK
		out := make(map[string]string, len(names))
		for i, name := range names {
			out[name] = results[i]
			if results[i] != "ok" {
				status, code = "unavailable", http.StatusServiceUnavailable
			}
		}
		WriteJSON(w, code, map[string]any{"status": status, "checks": out})
	}
}

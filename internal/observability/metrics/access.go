package metrics

import (
	"time"

	obserrors "github.com/decorhub/storefront/internal/observability/errors"
	"github.com/decorhub/storefront/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess  = "success"
	ResultError    = "error"
	ResultNotFound = "not_found"
)

// DecisionMetric captures one guard decision for metric emission.
type DecisionMetric struct {
	Outcome string
	Shell   string
	Reason  string
	// Waited is how long the request blocked on a pending role, if at all.
	Waited time.Duration
}

// EmitDecision emits standardised access decision metrics.
func EmitDecision(sink statsd.Sink, in DecisionMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"outcome": in.Outcome,
		"shell":   in.Shell,
	}
	if in.Reason != "" {
		tags["reason"] = in.Reason
	}

	sink.Count("access.decision", 1, tags)

	if in.Waited > 0 {
		sink.Timing("access.role_wait", in.Waited, CloneTags(tags))
	}
}

// RoleFetchMetric captures one role store lookup for metric emission.
type RoleFetchMetric struct {
	Store    string
	Result   string
	Attempts int
	Duration time.Duration
	Err      error
}

// EmitRoleFetch emits standardised role fetch metrics.
func EmitRoleFetch(sink statsd.Sink, in RoleFetchMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"store":  in.Store,
		"result": in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("role.fetch", 1, tags)
	if in.Attempts > 1 {
		sink.Count("role.fetch_retries", int64(in.Attempts-1), CloneTags(tags))
	}

	if in.Duration > 0 {
		sink.Timing("role.fetch_duration", in.Duration, CloneTags(tags))
	}
}

// HTTPRequestMetric captures one served request.
type HTTPRequestMetric struct {
	Method   string
	Route    string // mux pattern, never the raw path
	Status   int
	Duration time.Duration
}

// EmitHTTPRequest emits request count and latency tagged by route and
// status class.
func EmitHTTPRequest(sink statsd.Sink, in HTTPRequestMetric) {
	if sink == nil {
		return
	}
	route := in.Route
	if route == "" {
		route = "unmatched"
	}
	tags := map[string]string{
		"method": in.Method,
		"route":  route,
		"status": statusClass(in.Status),
	}
	sink.Count("http.request", 1, tags)
	sink.Timing("http.request_duration", in.Duration, CloneTags(tags))
}

func statusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return string(rune('0'+code/100)) + "xx"
}

// Labels declares the full tag set of every metric emitted here, for sinks
// that need fixed label names up front.
func Labels() map[string][]string {
	decision := []string{"outcome", "reason", "shell"}
	fetch := []string{"error_class", "result", "store"}
	request := []string{"method", "route", "status"}
	return map[string][]string{
		"access.decision":       decision,
		"access.role_wait":      decision,
		"role.fetch":            fetch,
		"role.fetch_retries":    fetch,
		"role.fetch_duration":   fetch,
		"http.request":          request,
		"http.request_duration": request,
	}
}

// CloneTags creates a shallow copy of a tag map, filtering out empty keys.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		if k == "" {
			continue
		}
		out[k] = v
	}
	return out
}

// Package prom exposes the storefront's metrics in Prometheus format.
//
// Sink implements the same Count/Gauge/Timing surface as the StatsD client so
// emitters stay unaware of the backend. Each metric name becomes one vector.
// Its label names come from Config.Labels, or else from the first
// observation; later observations fill missing labels with "" and ignore
// unknown ones.
package prom

import (
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config controls the Prometheus sink.
type Config struct {
	// Namespace prefixes every metric name, e.g. "storefront".
	Namespace string
	// Registry defaults to a fresh registry with Go and process collectors.
	Registry *prometheus.Registry
	// Labels declares the label names per metric name.
	Labels map[string][]string
	Logger *slog.Logger
}

// Sink records metrics into a Prometheus registry.
type Sink struct {
	namespace string
	registry  *prometheus.Registry
	schema    map[string][]string
	logger    *slog.Logger

	mu         sync.Mutex
	counters   map[string]*vec[*prometheus.CounterVec]
	gauges     map[string]*vec[*prometheus.GaugeVec]
	histograms map[string]*vec[*prometheus.HistogramVec]
}

type vec[T any] struct {
	metric T
	labels []string
}

// New builds a Sink.
func New(cfg Config) *Sink {
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{
		namespace:  metricName(cfg.Namespace),
		registry:   reg,
		schema:     cfg.Labels,
		logger:     logger,
		counters:   map[string]*vec[*prometheus.CounterVec]{},
		gauges:     map[string]*vec[*prometheus.GaugeVec]{},
		histograms: map[string]*vec[*prometheus.HistogramVec]{},
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (s *Sink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{Registry: s.registry})
}

// Count adds value to the counter <name>_total. Negative values are dropped.
func (s *Sink) Count(name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	s.mu.Lock()
	v, ok := s.counters[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		cv := prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: s.namespace,
			Name:      metricName(name) + "_total",
			Help:      "Count of " + name + ".",
		}, labels)
		if !s.register(name, cv) {
			s.mu.Unlock()
			return
		}
		v = &vec[*prometheus.CounterVec]{metric: cv, labels: labels}
		s.counters[name] = v
	}
	s.mu.Unlock()
	v.metric.WithLabelValues(labelValues(v.labels, tags)...).Add(float64(value))
}

// Gauge sets the gauge <name>.
func (s *Sink) Gauge(name string, value float64, tags map[string]string) {
	s.mu.Lock()
	v, ok := s.gauges[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		gv := prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: s.namespace,
			Name:      metricName(name),
			Help:      "Current value of " + name + ".",
		}, labels)
		if !s.register(name, gv) {
			s.mu.Unlock()
			return
		}
		v = &vec[*prometheus.GaugeVec]{metric: gv, labels: labels}
		s.gauges[name] = v
	}
	s.mu.Unlock()
	v.metric.WithLabelValues(labelValues(v.labels, tags)...).Set(value)
}

// Timing observes value in the histogram <name>_seconds.
func (s *Sink) Timing(name string, value time.Duration, tags map[string]string) {
	s.mu.Lock()
	v, ok := s.histograms[name]
	if !ok {
		labels := s.labelsFor(name, tags)
		hv := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: s.namespace,
			Name:      metricName(name) + "_seconds",
			Help:      "Duration of " + name + " in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, labels)
		if !s.register(name, hv) {
			s.mu.Unlock()
			return
		}
		v = &vec[*prometheus.HistogramVec]{metric: hv, labels: labels}
		s.histograms[name] = v
	}
	s.mu.Unlock()
	v.metric.WithLabelValues(labelValues(v.labels, tags)...).Observe(value.Seconds())
}

func (s *Sink) register(name string, c prometheus.Collector) bool {
	if err := s.registry.Register(c); err != nil {
		s.logger.Warn("prometheus metric not registered", "metric", name, "error", err)
		return false
	}
	return true
}

func (s *Sink) labelsFor(name string, tags map[string]string) []string {
	if declared, ok := s.schema[name]; ok {
		set := make(map[string]string, len(declared))
		for _, k := range declared {
			set[k] = ""
		}
		return labelNames(set)
	}
	return labelNames(tags)
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for k := range tags {
		if n := metricName(k); n != "" {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

func labelValues(names []string, tags map[string]string) []string {
	byName := make(map[string]string, len(tags))
	for k, v := range tags {
		byName[metricName(k)] = v
	}
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = byName[n]
	}
	return out
}

// metricName maps a dotted StatsD-style name onto the Prometheus charset.
func metricName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.TrimSpace(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.Trim(b.String(), "_")
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

package statsd

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Sink describes the minimal interface required to emit StatsD-style metrics.
type Sink interface {
	Count(name string, value int64, tags map[string]string)
	Gauge(name string, value float64, tags map[string]string)
	Timing(name string, value time.Duration, tags map[string]string)
}

const (
	// DefaultMaxPacketSize keeps a batch inside a single unfragmented
	// datagram on a 1500-byte MTU.
	DefaultMaxPacketSize = 1432
	DefaultFlushInterval = time.Second
)

// Config describes how to reach a StatsD (DogStatsD tag dialect) agent.
type Config struct {
	Address       string
	Prefix        string
	Tags          map[string]string // added to every line
	MaxPacketSize int
	FlushInterval time.Duration
	Logger        *slog.Logger
}

// Client batches metric lines into UDP packets. Lines are flushed when the
// next one would overflow the packet, on every FlushInterval tick, and on
// Close. It is safe for concurrent use.
type Client struct {
	prefix    string
	constTags map[string]string
	maxPacket int
	logger    *slog.Logger

	mu     sync.Mutex
	conn   net.Conn
	packet []byte

	stop chan struct{}
	done chan struct{}
}

var _ Sink = (*Client)(nil)

// NewClient dials the agent and starts the background flusher.
func NewClient(cfg Config) (*Client, error) {
	address := strings.TrimSpace(cfg.Address)
	if address == "" {
		return nil, fmt.Errorf("statsd: address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	maxPacket := cfg.MaxPacketSize
	if maxPacket <= 0 {
		maxPacket = DefaultMaxPacketSize
	}
	interval := cfg.FlushInterval
	if interval <= 0 {
		interval = DefaultFlushInterval
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, err := (&net.Dialer{}).DialContext(ctx, "udp", address)
	if err != nil {
		return nil, fmt.Errorf("statsd dial %s: %w", address, err)
	}

	c := &Client{
		prefix:    strings.Trim(strings.TrimSpace(cfg.Prefix), "."),
		constTags: cleanTags(cfg.Tags),
		maxPacket: maxPacket,
		logger:    logger,
		conn:      conn,
		packet:    make([]byte, 0, maxPacket),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go c.flushLoop(interval)
	return c, nil
}

func (c *Client) flushLoop(interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.mu.Lock()
			c.flushLocked()
			c.mu.Unlock()
		case <-c.stop:
			return
		}
	}
}

// Count increments a counter metric.
func (c *Client) Count(name string, value int64, tags map[string]string) {
	c.emit(name, strconv.AppendInt(nil, value, 10), "c", tags)
}

// Gauge records the current value for a gauge metric.
func (c *Client) Gauge(name string, value float64, tags map[string]string) {
	c.emit(name, strconv.AppendFloat(nil, value, 'f', -1, 64), "g", tags)
}

// Timing records a timing metric in milliseconds.
func (c *Client) Timing(name string, value time.Duration, tags map[string]string) {
	ms := float64(value) / float64(time.Millisecond)
	c.emit(name, strconv.AppendFloat(nil, ms, 'f', -1, 64), "ms", tags)
}

// Flush sends any buffered lines immediately.
func (c *Client) Flush() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.flushLocked()
}

// Close stops the flusher, sends what is buffered and closes the socket.
// Metrics emitted after Close are dropped.
func (c *Client) Close() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	if c.conn == nil {
		c.mu.Unlock()
		return nil
	}
	c.flushLocked()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()

	close(c.stop)
	<-c.done
	return conn.Close()
}

func (c *Client) emit(name string, value []byte, kind string, tags map[string]string) {
	if c == nil {
		return
	}
	metric := qualify(c.prefix, name)
	if metric == "" {
		return
	}
	line := make([]byte, 0, len(metric)+len(value)+16)
	line = append(line, metric...)
	line = append(line, ':')
	line = append(line, value...)
	line = append(line, '|')
	line = append(line, kind...)
	line = appendTags(line, c.constTags, tags)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return
	}
	if len(c.packet) > 0 && len(c.packet)+1+len(line) > c.maxPacket {
		c.flushLocked()
	}
	if len(c.packet) > 0 {
		c.packet = append(c.packet, '\n')
	}
	c.packet = append(c.packet, line...)
	if len(c.packet) >= c.maxPacket {
		c.flushLocked()
	}
}

func (c *Client) flushLocked() {
	if len(c.packet) == 0 || c.conn == nil {
		return
	}
	if _, err := c.conn.Write(c.packet); err != nil {
		c.logger.Debug("statsd write failed", "error", err, "bytes", len(c.packet))
	}
	c.packet = c.packet[:0]
}

var nameReplacer = strings.NewReplacer(" ", "_", "/", "_", ":", "_", "|", "_", "@", "_", "\n", "_")

// qualify joins prefix and name, replacing protocol delimiters and collapsing
// empty segments.
func qualify(prefix, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	parts := strings.Split(nameReplacer.Replace(name), ".")
	kept := make([]string, 0, len(parts)+1)
	if prefix != "" {
		kept = append(kept, prefix)
	}
	for _, p := range parts {
		if p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, ".")
}

var tagReplacer = strings.NewReplacer(":", "_", "|", "_", ",", "_", "#", "_", "\n", "_")

func cleanTag(s string) string {
	return tagReplacer.Replace(strings.TrimSpace(s))
}

func cleanTags(tags map[string]string) map[string]string {
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		if key := cleanTag(k); key != "" {
			out[key] = cleanTag(v)
		}
	}
	return out
}

// appendTags writes "|#k:v,..." with keys sorted. Per-call tags override
// constant tags of the same key.
func appendTags(dst []byte, constTags, tags map[string]string) []byte {
	if len(constTags)+len(tags) == 0 {
		return dst
	}
	merged := make(map[string]string, len(constTags)+len(tags))
	for k, v := range constTags {
		merged[k] = v
	}
	for k, v := range tags {
		if key := cleanTag(k); key != "" {
			merged[key] = cleanTag(v)
		}
	}
	if len(merged) == 0 {
		return dst
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	dst = append(dst, "|#"...)
	for i, k := range keys {
		if i > 0 {
			dst = append(dst, ',')
		}
		dst = append(dst, k...)
		dst = append(dst, ':')
		dst = append(dst, merged[k]...)
	}
	return dst
}

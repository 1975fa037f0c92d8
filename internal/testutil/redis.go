package testutil

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisCandidates lists addresses tried in order when REDIS_ADDR is unset:
// the CI service name, a stock local Redis, then the compose test profile.
//
//nolint:gochecknoglobals // static read-only lookup
var redisCandidates = []string{"redis:6379", "localhost:6379", "localhost:56379"}

// SetupTestRedis returns a client on an otherwise unused logical database,
// flushed before use. Reservations live in DB 0 so flushing never drops them.
func SetupTestRedis(t testing.TB) *redis.Client {
	t.Helper()

	addr, ok := findRedis()
	if !ok {
		skipOrFail(t, requireRedis(), "Redis not available for testing")
	}

	client := redis.NewClient(&redis.Options{Addr: addr, DB: reserveDB(t, addr)})
	t.Cleanup(func() { _ = client.Close() })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.FlushDB(ctx).Err(); err != nil {
		skipOrFail(t, requireRedis(), "Redis not usable at %s: %v", addr, err)
	}
	return client
}

func findRedis() (string, bool) {
	candidates := redisCandidates
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		candidates = []string{addr}
	}
	for _, addr := range candidates {
		if ping(addr) {
			return addr, true
		}
	}
	return "", false
}

func ping(addr string) bool {
	c := redis.NewClient(&redis.Options{Addr: addr})
	defer func() { _ = c.Close() }()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return c.Ping(ctx).Err() == nil
}

// reserveDB honors TEST_REDIS_DB, else claims the first free DB in 1..15
// with a SETNX lock released on cleanup. Falls back to DB 1.
func reserveDB(t testing.TB, addr string) int {
	if v := os.Getenv("TEST_REDIS_DB"); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i >= 0 {
			return i
		}
	}

	meta := redis.NewClient(&redis.Options{Addr: addr})
	ctx := context.Background()
	for i := 1; i <= 15; i++ {
		key := fmt.Sprintf("storefront:testutil:db_lock:%d", i)
		ok, err := meta.SetNX(ctx, key, os.Getpid(), 30*time.Minute).Result()
		if err != nil || !ok {
			continue
		}
		t.Cleanup(func() {
			_ = meta.Del(context.Background(), key).Err()
			_ = meta.Close()
		})
		return i
	}
	_ = meta.Close()
	t.Logf("no free Redis DB at %s; sharing DB 1", addr)
	return 1
}

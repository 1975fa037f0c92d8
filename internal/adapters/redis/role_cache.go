package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// RoleCache wraps a RoleStore with a short-lived Redis cache shared by all
// instances. Missing records are cached too so a storm of unknown emails
// does not reach the store. Cache failures fall through to the store.
//
// Each email has a version key that Invalidate increments. A fill only lands
// if the version is still the one read before the store was asked, so a
// lookup racing a role change cannot write the old role back.
type RoleCache struct {
	client redis.UniversalClient
	next   ports.RoleStore
	prefix string
	ttl    time.Duration
	logger *slog.Logger
}

// RoleCacheOptions configures RoleCache.
type RoleCacheOptions struct {
	Prefix string
	TTL    time.Duration
	Logger *slog.Logger
}

type cachedRole struct {
	Role        string `json:"role,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
	Missing     bool   `json:"missing,omitempty"`
}

// NewRoleCache creates a RoleCache in front of next.
func NewRoleCache(client redis.UniversalClient, next ports.RoleStore, opts RoleCacheOptions) *RoleCache {
	prefix := opts.Prefix
	if prefix == "" {
		prefix = "role:"
	}
	ttl := opts.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &RoleCache{client: client, next: next, prefix: prefix, ttl: ttl, logger: logger.With("component", "role_cache")}
}

// versionTTL keeps version keys well past any in-flight fill.
const versionTTL = 24 * time.Hour

// storeIfCurrent sets KEYS[1] to ARGV[2] for ARGV[3] ms when the version in
// KEYS[2] (absent means "0") still equals ARGV[1].
var storeIfCurrent = redis.NewScript(`
local v = redis.call('GET', KEYS[2]) or '0'
if v ~= ARGV[1] then
  return 0
end
redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[3])
return 1
`)

// keys returns the entry and version keys. The hash tag keeps both on one
// cluster slot.
func (c *RoleCache) keys(email string) (entry, version string) {
	tag := "{" + strings.ToLower(strings.TrimSpace(email)) + "}"
	return c.prefix + tag, c.prefix + tag + ":v"
}

// Lookup serves from cache when possible and fills it from the wrapped store.
func (c *RoleCache) Lookup(ctx context.Context, email string) (domainauth.RoleProfile, error) {
	entryKey, versionKey := c.keys(email)

	var entry, version *redis.StringCmd
	_, err := c.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		entry = pipe.Get(ctx, entryKey)
		version = pipe.Get(ctx, versionKey)
		return nil
	})
	cacheUp := err == nil || errors.Is(err, redis.Nil)
	if !cacheUp {
		c.logger.Warn("role cache read failed", "error", err)
	}

	if cacheUp {
		if data, getErr := entry.Bytes(); getErr == nil {
			var cr cachedRole
			if json.Unmarshal(data, &cr) == nil {
				if cr.Missing {
					return domainauth.RoleProfile{}, ports.ErrRoleNotFound
				}
				return domainauth.RoleProfile{Role: domainauth.Role(cr.Role), DisplayName: cr.DisplayName, PhotoURL: cr.PhotoURL}, nil
			}
		}
	}

	seen := "0"
	if v, vErr := version.Result(); vErr == nil {
		seen = v
	}

	profile, err := c.next.Lookup(ctx, email)
	if !cacheUp {
		return profile, err
	}
	switch {
	case err == nil:
		c.store(ctx, entryKey, versionKey, seen, cachedRole{Role: string(profile.Role), DisplayName: profile.DisplayName, PhotoURL: profile.PhotoURL})
	case errors.Is(err, ports.ErrRoleNotFound):
		c.store(ctx, entryKey, versionKey, seen, cachedRole{Missing: true})
	}
	return profile, err
}

// Invalidate drops the cached entry for email and bumps its version so fills
// started before the call are discarded.
func (c *RoleCache) Invalidate(ctx context.Context, email string) error {
	entryKey, versionKey := c.keys(email)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, entryKey)
		pipe.Incr(ctx, versionKey)
		pipe.Expire(ctx, versionKey, versionTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis invalidate role: %w", err)
	}
	return nil
}

func (c *RoleCache) store(ctx context.Context, entryKey, versionKey, seen string, cr cachedRole) {
	data, err := json.Marshal(cr)
	if err != nil {
		return
	}
	stored, err := storeIfCurrent.Run(ctx, c.client, []string{entryKey, versionKey}, seen, data, c.ttl.Milliseconds()).Int()
	switch {
	case err != nil:
		c.logger.Warn("role cache write failed", "error", err)
	case stored == 0:
		c.logger.Debug("role cache fill skipped after invalidation")
	}
}

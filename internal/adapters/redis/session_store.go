// Package redis provides Redis-based adapters for the storefront: sessions,
// role-change notifications and a shared role cache.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// ErrNotFound is returned when a session is missing or expired.
var ErrNotFound = ports.ErrSessionNotFound

const (
	DefaultSessionPrefix = "session:"
	// emailIndexSuffix keys the set of session IDs per email:
	// <prefix>by-email:<email>.
	emailIndexSuffix = "by-email:"
)

// SessionStore keeps each session as a JSON string whose Redis TTL follows
// ExpiresAt, plus a per-email set of session IDs used for revocation. Index
// entries may outlive their session; readers prune them lazily.
type SessionStore struct {
	client redis.UniversalClient
	prefix string
}

var (
	_ ports.SessionStore   = (*SessionStore)(nil)
	_ ports.SessionRevoker = (*SessionStore)(nil)
)

// indexAdd adds ARGV[1] to the set KEYS[1] and extends the set's TTL to
// ARGV[2] milliseconds unless it already lives longer.
var indexAdd = redis.NewScript(`
redis.call('SADD', KEYS[1], ARGV[1])
local ttl = redis.call('PTTL', KEYS[1])
if ttl < tonumber(ARGV[2]) then
  redis.call('PEXPIRE', KEYS[1], ARGV[2])
end
return 1
`)

// NewSessionStore creates a session store under DefaultSessionPrefix.
func NewSessionStore(client redis.UniversalClient) *SessionStore {
	return NewSessionStoreWithPrefix(client, DefaultSessionPrefix)
}

// NewSessionStoreWithPrefix creates a session store with a custom key prefix.
func NewSessionStoreWithPrefix(client redis.UniversalClient, prefix string) *SessionStore {
	return &SessionStore{client: client, prefix: prefix}
}

func (s *SessionStore) sessionKey(id string) string { return s.prefix + id }

func (s *SessionStore) indexKey(email string) string {
	return s.prefix + emailIndexSuffix + normalizeEmail(email)
}

// Save writes the session and adds it to its email's index. The two keys may
// live on different cluster slots, so they are pipelined rather than wrapped
// in MULTI. The index lives as long as its longest session.
func (s *SessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if sess.ID == "" {
		return errors.New("session ID cannot be empty")
	}
	ttl := time.Until(sess.ExpiresAt)
	if ttl <= 0 {
		return errors.New("session is expired")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	_, err = s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.ID), data, ttl)
		if email := normalizeEmail(sess.Email); email != "" {
			indexAdd.Eval(ctx, pipe, []string{s.indexKey(email)}, sess.ID, ttl.Milliseconds())
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis save session: %w", err)
	}
	return nil
}

// Get returns ErrNotFound for unknown or expired sessions. Any other error
// means Redis could not answer.
func (s *SessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if id == "" {
		return domainauth.Session{}, ErrNotFound
	}

	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domainauth.Session{}, ErrNotFound
	}
	if err != nil {
		return domainauth.Session{}, fmt.Errorf("redis get: %w", err)
	}

	var sess domainauth.Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return domainauth.Session{}, fmt.Errorf("unmarshal session: %w", err)
	}
	// Clock skew between hosts can leave a short window past the Redis TTL.
	if time.Now().After(sess.ExpiresAt) {
		if err := s.remove(ctx, sess); err != nil {
			return domainauth.Session{}, fmt.Errorf("cleanup expired session: %w", err)
		}
		return domainauth.Session{}, ErrNotFound
	}
	return sess, nil
}

// Delete removes one session and its index entry.
func (s *SessionStore) Delete(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}
	sess, err := s.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return nil
	case err != nil:
		// Unreadable payload; drop the key and leave the index to lazy pruning.
		return s.client.Del(ctx, s.sessionKey(id)).Err()
	}
	return s.remove(ctx, sess)
}

func (s *SessionStore) remove(ctx context.Context, sess domainauth.Session) error {
	_, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sess.ID))
		if email := normalizeEmail(sess.Email); email != "" {
			pipe.SRem(ctx, s.indexKey(email), sess.ID)
		}
		return nil
	})
	return err
}

// SessionIDs lists the live sessions of email, pruning stale index entries.
func (s *SessionStore) SessionIDs(ctx context.Context, email string) ([]string, error) {
	idx := s.indexKey(email)
	ids, err := s.client.SMembers(ctx, idx).Result()
	if err != nil {
		return nil, fmt.Errorf("redis list sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	// One EXISTS per key: a multi-key EXISTS may span slots on a cluster.
	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.Exists(ctx, k)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("redis check sessions: %w", err)
	}

	live := make([]string, 0, len(ids))
	var stale []any
	for i, cmd := range cmds {
		if n, _ := cmd.(*redis.IntCmd).Result(); n > 0 {
			live = append(live, ids[i])
		} else {
			stale = append(stale, ids[i])
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, idx, stale...).Err(); err != nil {
			return nil, fmt.Errorf("redis prune index: %w", err)
		}
	}
	return live, nil
}

// DeleteByEmail ends every session of email and returns how many were live.
func (s *SessionStore) DeleteByEmail(ctx context.Context, email string) (int, error) {
	if normalizeEmail(email) == "" {
		return 0, nil
	}
	ids, err := s.SessionIDs(ctx, email)
	if err != nil {
		return 0, err
	}
	cmds, err := s.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, id := range ids {
			pipe.Del(ctx, s.sessionKey(id))
		}
		pipe.Del(ctx, s.indexKey(email))
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis revoke sessions: %w", err)
	}
	n := 0
	for _, cmd := range cmds[:len(ids)] {
		if deleted, _ := cmd.(*redis.IntCmd).Result(); deleted > 0 {
			n++
		}
	}
	return n, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

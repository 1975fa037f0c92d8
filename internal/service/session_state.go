package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
)

// Snapshot is an immutable view of a SessionState at one generation.
type Snapshot struct {
	// Generation increases on every identity or role invalidation.
	Generation uint64
	Identity   domainauth.Identity
	Status     access.IdentityStatus
	Role       domainauth.Role
	RoleStatus access.RoleStatus
}

// Subject converts the snapshot into the guard's input.
func (s Snapshot) Subject() access.Subject {
	return access.Subject{Identity: s.Status, Role: s.Role, RoleStatus: s.RoleStatus}
}

// SignedIn reports whether the snapshot carries a confirmed identity.
func (s Snapshot) SignedIn() bool { return s.Status == access.IdentitySignedIn }

// SessionState owns the (identity, role) pair of one browser session.
// Every mutation publishes a new snapshot to subscribers; identity changes bump
// the generation and reset the role to pending in the same critical section.
type SessionState struct {
	mu       sync.Mutex
	snap     Snapshot
	subs     map[uint64]chan Snapshot
	nextSub  uint64
	fetching bool
	cancel   context.CancelFunc
	closed   bool
	failedAt time.Time
}

// NewSessionState returns a state whose identity is still resolving.
func NewSessionState() *SessionState {
	return &SessionState{
		snap: Snapshot{Status: access.IdentityResolving},
		subs: map[uint64]chan Snapshot{},
	}
}

// Snapshot returns the current state.
func (s *SessionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap
}

// SetIdentity installs a signed-in identity. When the identity differs from the
// current one (or the state was not signed in) the generation moves on, the role
// becomes pending and any in-flight fetch is cancelled. It returns the current generation.
func (s *SessionState) SetIdentity(id domainauth.Identity) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status == access.IdentitySignedIn && strings.EqualFold(s.snap.Identity.Email, id.Email) {
		s.snap.Identity = id
		return s.snap.Generation
	}
	s.advanceLocked(access.IdentitySignedIn, id)
	return s.snap.Generation
}

// MarkSignedOut clears the identity and role.
func (s *SessionState) MarkSignedOut() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status == access.IdentitySignedOut {
		return s.snap.Generation
	}
	s.advanceLocked(access.IdentitySignedOut, domainauth.Identity{})
	return s.snap.Generation
}

// InvalidateRole keeps the identity but forces the role to be fetched again.
func (s *SessionState) InvalidateRole() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.Status != access.IdentitySignedIn {
		return s.snap.Generation
	}
	s.advanceLocked(access.IdentitySignedIn, s.snap.Identity)
	return s.snap.Generation
}

func (s *SessionState) advanceLocked(status access.IdentityStatus, id domainauth.Identity) {
	s.stopFetchLocked()
	s.snap = Snapshot{
		Generation: s.snap.Generation + 1,
		Identity:   id,
		Status:     status,
		Role:       domainauth.RoleUnresolved,
		RoleStatus: access.RolePending,
	}
	s.publishLocked()
}

// ResolveRole records the fetched role for gen. Results for an older generation
// are dropped and false is returned.
func (s *SessionState) ResolveRole(gen uint64, role domainauth.Role) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.snap.Generation || s.snap.Status != access.IdentitySignedIn {
		return false
	}
	s.fetching, s.cancel = false, nil
	if !role.IsResolved() {
		s.snap.Role = domainauth.RoleUnresolved
		s.snap.RoleStatus = access.RoleFailed
		s.failedAt = time.Now()
	} else {
		s.snap.Role = role
		s.snap.RoleStatus = access.RoleResolved
	}
	s.publishLocked()
	return true
}

// FailRole records that the role could not be fetched for gen.
func (s *SessionState) FailRole(gen uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if gen != s.snap.Generation || s.snap.Status != access.IdentitySignedIn {
		return false
	}
	s.fetching, s.cancel = false, nil
	s.snap.Role = domainauth.RoleUnresolved
	s.snap.RoleStatus = access.RoleFailed
	s.failedAt = time.Now()
	s.publishLocked()
	return true
}

// RetryFailed invalidates a failed role once it has been failed for at least
// after. It reports whether a new generation was started.
func (s *SessionState) RetryFailed(after time.Duration) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.snap.RoleStatus != access.RoleFailed || s.snap.Status != access.IdentitySignedIn {
		return false
	}
	if after > 0 && time.Since(s.failedAt) < after {
		return false
	}
	s.advanceLocked(access.IdentitySignedIn, s.snap.Identity)
	return true
}

// beginFetch claims the role fetch for gen. It fails when gen is stale, the
// role is not pending or a fetch is already running.
func (s *SessionState) beginFetch(gen uint64, cancel context.CancelFunc) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.fetching || gen != s.snap.Generation ||
		s.snap.Status != access.IdentitySignedIn || s.snap.RoleStatus != access.RolePending {
		return false
	}
	s.fetching = true
	s.cancel = cancel
	return true
}

func (s *SessionState) stopFetchLocked() {
	if s.cancel != nil {
		s.cancel()
	}
	s.fetching, s.cancel = false, nil
}

// Subscribe returns a channel receiving the latest snapshot after each change.
// Slow readers only see the most recent snapshot. The returned func unsubscribes.
func (s *SessionState) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch := make(chan Snapshot, 1)
	id := s.nextSub
	s.nextSub++
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.subs, id)
	}
}

func (s *SessionState) publishLocked() {
	for _, ch := range s.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s.snap
	}
}

// Close cancels any in-flight fetch and prevents new ones.
func (s *SessionState) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.stopFetchLocked()
}

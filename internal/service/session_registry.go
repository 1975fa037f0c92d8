package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/hashicorp/golang-lru/v2/expirable"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// SessionRegistryOptions groups dependencies for SessionRegistry.
type SessionRegistryOptions struct {
	Resolver *RoleResolver
	// Size bounds the number of live session states.
	Size int
	// IdleTTL evicts states not touched for this long.
	IdleTTL time.Duration
	// FailedRetryAfter lets a failed role be fetched again on the next sign-in
	// touch once it has been failed this long. Zero disables retrying.
	FailedRetryAfter time.Duration
	// EventsRetryInitial and EventsRetryMax bound the backoff between
	// attempts to re-establish the role-change subscription.
	EventsRetryInitial time.Duration
	EventsRetryMax     time.Duration
	Logger             *slog.Logger
}

// SessionRegistry holds one SessionState per browser session, bounded by size
// and idle time. Evicted states have their in-flight role fetches cancelled.
type SessionRegistry struct {
	mu       sync.Mutex
	states   *expirable.LRU[string, *SessionState]
	resolver *RoleResolver
	logger   *slog.Logger
	retry    time.Duration

	eventsInitial time.Duration
	eventsMax     time.Duration

	// ctx bounds background role fetches; cancelled by Close.
	ctx    context.Context
	cancel context.CancelFunc
}

// NewSessionRegistry constructs a SessionRegistry.
func NewSessionRegistry(opts SessionRegistryOptions) *SessionRegistry {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	size := opts.Size
	if size <= 0 {
		size = 10000
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &SessionRegistry{
		resolver: opts.Resolver,
		logger:   logger.With("component", "session_registry"),
		retry:    opts.FailedRetryAfter,
		ctx:      ctx,
		cancel:   cancel,

		eventsInitial: opts.EventsRetryInitial,
		eventsMax:     opts.EventsRetryMax,
	}
	if r.eventsInitial <= 0 {
		r.eventsInitial = 500 * time.Millisecond
	}
	if r.eventsMax <= 0 {
		r.eventsMax = 30 * time.Second
	}
	r.states = expirable.NewLRU[string, *SessionState](size, func(_ string, st *SessionState) {
		st.Close()
	}, ttl)
	return r
}

// State returns the state for sessionID, creating it if needed.
// Access refreshes the idle TTL.
func (r *SessionRegistry) State(sessionID string) *SessionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states.Get(sessionID)
	if !ok {
		st = NewSessionState()
	}
	r.states.Add(sessionID, st)
	return st
}

// Lookup returns the state for sessionID without creating one.
func (r *SessionRegistry) Lookup(sessionID string) (*SessionState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states.Peek(sessionID)
}

// SignIn installs identity on the session's state and starts resolving its role.
// It is called on every authenticated request; a repeated call with the same
// identity keeps the current generation.
func (r *SessionRegistry) SignIn(sessionID string, id domainauth.Identity) *SessionState {
	st := r.State(sessionID)
	st.SetIdentity(id)
	if r.retry > 0 {
		st.RetryFailed(r.retry)
	}
	r.refresh(st)
	return st
}

// SignOut marks the session signed out and forgets it.
func (r *SessionRegistry) SignOut(sessionID string) {
	r.mu.Lock()
	st, ok := r.states.Peek(sessionID)
	r.mu.Unlock()
	if ok {
		st.MarkSignedOut()
	}
	r.Remove(sessionID)
}

// Remove drops the state for sessionID, cancelling its fetches.
func (r *SessionRegistry) Remove(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states.Remove(sessionID)
}

// refresh starts role resolution for a state whose role is pending.
func (r *SessionRegistry) refresh(st *SessionState) {
	if r.resolver != nil {
		r.resolver.Start(r.ctx, st)
	}
}

// InvalidateEmail forces every session of email to refetch its role.
// It returns the number of sessions affected.
func (r *SessionRegistry) InvalidateEmail(email string) int {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0
	}
	if r.resolver != nil {
		r.resolver.Forget(email)
	}

	r.mu.Lock()
	states := r.states.Values()
	r.mu.Unlock()

	n := 0
	for _, st := range states {
		snap := st.Snapshot()
		if !snap.SignedIn() || !strings.EqualFold(snap.Identity.Email, email) {
			continue
		}
		st.InvalidateRole()
		r.refresh(st)
		n++
	}
	r.logger.Info("role invalidated", "email", email, "sessions", n)
	return n
}

// SignOutEmail signs out every local session of email and returns how many
// there were. Other instances notice on their next session lookup.
func (r *SessionRegistry) SignOutEmail(email string) int {
	email = strings.TrimSpace(email)
	if email == "" {
		return 0
	}
	r.mu.Lock()
	ids := r.states.Keys()
	r.mu.Unlock()

	n := 0
	for _, id := range ids {
		st, ok := r.Lookup(id)
		if !ok {
			continue
		}
		if snap := st.Snapshot(); !snap.SignedIn() || !strings.EqualFold(snap.Identity.Email, email) {
			continue
		}
		r.SignOut(id)
		n++
	}
	return n
}

// stableSubscription is how long a subscription must have lasted for its loss
// to restart the backoff from the initial interval.
const stableSubscription = 30 * time.Second

var errSubscriptionEnded = errors.New("role change subscription ended")

// RunRoleEvents applies role-change notifications until ctx is done. A failed
// or dropped subscription is logged and retried with backoff; it only
// returns once ctx is done.
func (r *SessionRegistry) RunRoleEvents(ctx context.Context, events ports.RoleEvents) error {
	if events == nil {
		<-ctx.Done()
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.eventsInitial
	b.MaxInterval = r.eventsMax

	attempt := 0
	subscribe := func() (struct{}, error) {
		attempt++
		started := time.Now()
		err := events.Subscribe(ctx, func(email string) {
			r.InvalidateEmail(email)
		})
		if ctx.Err() != nil {
			return struct{}{}, nil
		}
		if err == nil {
			err = errSubscriptionEnded
		}
		r.logger.Warn("role change subscription lost", "error", err, "attempt", attempt)
		if time.Since(started) >= stableSubscription {
			attempt = 0
			return struct{}{}, &backoff.RetryAfterError{Duration: r.eventsInitial}
		}
		return struct{}{}, err
	}
	// Retry only gives up when ctx is done.
	_, _ = backoff.Retry(ctx, subscribe, backoff.WithBackOff(b), backoff.WithMaxElapsedTime(0))
	return nil
}

// Len reports the number of live states.
func (r *SessionRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states.Len()
}

// Close cancels all background fetches and drops every state.
func (r *SessionRegistry) Close() {
	r.cancel()
	r.mu.Lock()
	defer r.mu.Unlock()
	r.states.Purge()
}

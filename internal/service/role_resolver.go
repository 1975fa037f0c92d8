package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v5"
	"golang.org/x/sync/singleflight"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/observability/metrics"
	"github.com/decorhub/storefront/internal/observability/statsd"
	"github.com/decorhub/storefront/internal/ports"
)

// NotFoundPolicy decides what a role store miss means.
type NotFoundPolicy string

const (
	// NotFoundDeny treats a missing record as a failed fetch.
	NotFoundDeny NotFoundPolicy = "deny"
	// NotFoundUser treats a missing record as the user role.
	NotFoundUser NotFoundPolicy = "user"
)

// ErrInvalidRole is returned when the role store answers with a value outside the role enum.
var ErrInvalidRole = errors.New("role store returned an invalid role")

// RoleResolverOptions groups dependencies for RoleResolver.
type RoleResolverOptions struct {
	Store          ports.RoleStore
	StoreName      string
	NotFoundPolicy NotFoundPolicy
	// MaxAttempts bounds lookups per fetch, including the first.
	MaxAttempts     uint
	InitialInterval time.Duration
	MaxInterval     time.Duration
	// AttemptTimeout bounds each individual lookup.
	AttemptTimeout time.Duration
	Metrics        statsd.Sink
	Logger         *slog.Logger
}

// RoleResolver fetches roles from the role store with bounded retry and
// collapses concurrent fetches for the same email.
type RoleResolver struct {
	store           ports.RoleStore
	storeName       string
	notFound        NotFoundPolicy
	maxAttempts     uint
	initialInterval time.Duration
	maxInterval     time.Duration
	attemptTimeout  time.Duration
	metrics         statsd.Sink
	logger          *slog.Logger
	group           singleflight.Group
}

// NewRoleResolver constructs a RoleResolver with defaults for unset options.
func NewRoleResolver(opts RoleResolverOptions) *RoleResolver {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	r := &RoleResolver{
		store:           opts.Store,
		storeName:       opts.StoreName,
		notFound:        opts.NotFoundPolicy,
		maxAttempts:     opts.MaxAttempts,
		initialInterval: opts.InitialInterval,
		maxInterval:     opts.MaxInterval,
		attemptTimeout:  opts.AttemptTimeout,
		metrics:         opts.Metrics,
		logger:          logger.With("component", "role_resolver"),
	}
	if r.storeName == "" {
		r.storeName = "default"
	}
	if r.notFound == "" {
		r.notFound = NotFoundDeny
	}
	if r.maxAttempts == 0 {
		r.maxAttempts = 3
	}
	if r.initialInterval <= 0 {
		r.initialInterval = 100 * time.Millisecond
	}
	if r.maxInterval <= 0 {
		r.maxInterval = 2 * time.Second
	}
	if r.attemptTimeout <= 0 {
		r.attemptTimeout = 3 * time.Second
	}
	return r
}

// Fetch returns the role for email. Concurrent calls for the same email share
// one upstream fetch; a caller whose ctx ends stops waiting without affecting the others.
func (r *RoleResolver) Fetch(ctx context.Context, email string) (domainauth.Role, error) {
	key := normalizeEmail(email)
	if key == "" {
		return domainauth.RoleUnresolved, apperrors.Validation("email is required")
	}

	shared := context.WithoutCancel(ctx)
	ch := r.group.DoChan(key, func() (any, error) {
		return r.fetchWithRetry(shared, key)
	})

	select {
	case <-ctx.Done():
		return domainauth.RoleUnresolved, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return domainauth.RoleUnresolved, res.Err
		}
		role, _ := res.Val.(domainauth.Role)
		return role, nil
	}
}

func (r *RoleResolver) fetchWithRetry(ctx context.Context, email string) (domainauth.Role, error) {
	start := time.Now()
	attempts := 0

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = r.initialInterval
	b.MaxInterval = r.maxInterval

	op := func() (domainauth.Role, error) {
		attempts++
		actx, cancel := context.WithTimeout(ctx, r.attemptTimeout)
		defer cancel()

		profile, err := r.store.Lookup(actx, email)
		switch {
		case err == nil:
			if !profile.Role.IsResolved() {
				return domainauth.RoleUnresolved, backoff.Permanent(ErrInvalidRole)
			}
			return profile.Role, nil
		case errors.Is(err, ports.ErrRoleNotFound):
			return domainauth.RoleUnresolved, backoff.Permanent(err)
		case retryable(err):
			return domainauth.RoleUnresolved, err
		default:
			return domainauth.RoleUnresolved, backoff.Permanent(err)
		}
	}

	role, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(b),
		backoff.WithMaxTries(r.maxAttempts),
		backoff.WithNotify(func(err error, next time.Duration) {
			r.logger.Debug("role lookup failed, retrying", "email", email, "error", err, "retry_in", next)
		}),
	)

	fm := metrics.RoleFetchMetric{Store: r.storeName, Attempts: attempts, Duration: time.Since(start)}
	switch {
	case err == nil:
		fm.Result = metrics.ResultSuccess
	case errors.Is(err, ports.ErrRoleNotFound):
		fm.Result = metrics.ResultNotFound
		if r.notFound == NotFoundUser {
			metrics.EmitRoleFetch(r.metrics, fm)
			return domainauth.RoleUser, nil
		}
	default:
		fm.Result = metrics.ResultError
		fm.Err = err
	}
	metrics.EmitRoleFetch(r.metrics, fm)

	if err != nil {
		return domainauth.RoleUnresolved, fmt.Errorf("fetch role after %d attempt(s): %w", attempts, err)
	}
	return role, nil
}

// Forget detaches later callers from any fetch already in flight for email,
// so a role change is never answered with a result read before the change.
func (r *RoleResolver) Forget(email string) {
	r.group.Forget(normalizeEmail(email))
}

// retryable reports whether a lookup error may succeed on a later attempt.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if code := apperrors.CodeOf(err); code != "" {
		return code.Transient()
	}
	return true
}

// Start launches a background fetch for the state's current generation if its
// role is pending and no fetch is running. The result is applied only if the
// generation is still current; a generation change cancels the wait.
func (r *RoleResolver) Start(ctx context.Context, state *SessionState) {
	snap := state.Snapshot()
	if !snap.SignedIn() || snap.RoleStatus != access.RolePending {
		return
	}

	fctx, cancel := context.WithCancel(ctx)
	if !state.beginFetch(snap.Generation, cancel) {
		cancel()
		return
	}

	go func() {
		defer cancel()
		role, err := r.Fetch(fctx, snap.Identity.Email)
		if fctx.Err() != nil {
			return
		}
		if err != nil {
			r.logger.Warn("role resolution failed", "email", snap.Identity.Email, "generation", snap.Generation, "error", err)
			state.FailRole(snap.Generation)
			return
		}
		if !state.ResolveRole(snap.Generation, role) {
			r.logger.Debug("dropping stale role result", "email", snap.Identity.Email, "generation", snap.Generation)
		}
	}()
}

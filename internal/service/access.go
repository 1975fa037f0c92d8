package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/domain/route"
	"github.com/decorhub/storefront/internal/domain/shell"
	"github.com/decorhub/storefront/internal/observability/metrics"
	"github.com/decorhub/storefront/internal/observability/statsd"
	"github.com/decorhub/storefront/internal/ports"
)

// SessionLookup resolves a session cookie to its session.
// AuthService satisfies it.
type SessionLookup interface {
	GetSession(ctx context.Context, sessionID string) (*domainauth.Session, error)
}

// RoleInvalidator drops cached role data for an email.
type RoleInvalidator interface {
	Invalidate(ctx context.Context, email string) error
}

// AccessServiceOptions groups dependencies for AccessService.
type AccessServiceOptions struct {
	Routes   *route.Table
	Sessions SessionLookup
	Registry *SessionRegistry
	Events   ports.RoleEvents
	// RoleCache, when set, is invalidated before a role change is announced.
	RoleCache RoleInvalidator
	// RoleWait bounds how long a decision may block on a pending role.
	RoleWait time.Duration
	Metrics  statsd.Sink
	Logger   *slog.Logger
}

// AccessService resolves a request path and runs the guard against the
// caller's session state.
type AccessService struct {
	routes   *route.Table
	sessions SessionLookup
	registry *SessionRegistry
	events   ports.RoleEvents
	cache    RoleInvalidator
	roleWait time.Duration
	metrics  statsd.Sink
	logger   *slog.Logger
}

// NewAccessService constructs an AccessService.
func NewAccessService(opts AccessServiceOptions) *AccessService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	routes := opts.Routes
	if routes == nil {
		routes = route.DefaultTable()
	}
	return &AccessService{
		routes:   routes,
		sessions: opts.Sessions,
		registry: opts.Registry,
		events:   opts.Events,
		cache:    opts.RoleCache,
		roleWait: opts.RoleWait,
		metrics:  opts.Metrics,
		logger:   logger.With("component", "access"),
	}
}

// Routes exposes the route table.
func (s *AccessService) Routes() *route.Table { return s.routes }

// DecideInput identifies one navigation attempt.
type DecideInput struct {
	Path string
	// Origin is the path plus query to return to after sign-in; defaults to Path.
	Origin    string
	SessionID string
}

// DecideResult is everything needed to render a navigation attempt.
type DecideResult struct {
	Decision   access.Decision
	Match      route.Match
	Session    Snapshot
	Navigation []shell.NavItem
}

// Decide resolves the path, loads the session state and evaluates the guard.
// When the role is pending it waits up to RoleWait for it to settle. If ctx
// ends first the attempt is abandoned and ctx's error is returned.
func (s *AccessService) Decide(ctx context.Context, in DecideInput) (DecideResult, error) {
	origin := in.Origin
	if origin == "" {
		origin = in.Path
	}

	match := s.routes.Resolve(in.Path)
	snap, decision, waited, err := s.evaluate(ctx, in.SessionID, match.Policy, origin)
	if err != nil {
		return DecideResult{}, err
	}

	if decision.Outcome == access.OutcomeAllow && !match.Found {
		decision = access.NotFound(origin)
	}

	metrics.EmitDecision(s.metrics, metrics.DecisionMetric{
		Outcome: string(decision.Outcome),
		Shell:   string(match.Shell),
		Reason:  string(decision.Reason),
		Waited:  waited,
	})

	res := DecideResult{Decision: decision, Match: match, Session: snap}
	if match.Shell == route.ShellDashboard && snap.RoleStatus == access.RoleResolved {
		res.Navigation = shell.Navigation(snap.Role)
	}
	return res, nil
}

// Authorize evaluates policy for a session without resolving a route. Server
// endpoints use it to re-check roles independently of the page guard.
func (s *AccessService) Authorize(ctx context.Context, sessionID string, policy access.Policy) (Snapshot, access.Decision, error) {
	snap, decision, _, err := s.evaluate(ctx, sessionID, policy, "")
	return snap, decision, err
}

// Session returns the current snapshot for a session cookie without evaluating any route.
func (s *AccessService) Session(ctx context.Context, sessionID string) (Snapshot, error) {
	_, snap, err := s.subject(ctx, sessionID)
	return snap, err
}

func (s *AccessService) evaluate(
	ctx context.Context,
	sessionID string,
	policy access.Policy,
	origin string,
) (Snapshot, access.Decision, time.Duration, error) {
	state, snap, err := s.subject(ctx, sessionID)
	if err != nil {
		return Snapshot{}, access.Decision{}, 0, err
	}

	decision := access.Evaluate(policy, snap.Subject(), origin)
	if decision.Outcome != access.OutcomePending || state == nil || !snap.SignedIn() || s.roleWait <= 0 {
		return snap, decision, 0, nil
	}

	start := time.Now()
	snap, err = s.awaitRole(ctx, state, snap)
	if err != nil {
		return Snapshot{}, access.Decision{}, 0, err
	}
	return snap, access.Evaluate(policy, snap.Subject(), origin), time.Since(start), nil
}

func (s *AccessService) subject(ctx context.Context, sessionID string) (*SessionState, Snapshot, error) {
	signedOut := Snapshot{Status: access.IdentitySignedOut}
	if sessionID == "" || s.sessions == nil {
		return nil, signedOut, nil
	}

	sess, err := s.sessions.GetSession(ctx, sessionID)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrSessionNotFound):
		if s.registry != nil {
			s.registry.SignOut(sessionID)
		}
		return nil, signedOut, nil
	case ctx.Err() != nil:
		return nil, Snapshot{}, ctx.Err()
	default:
		// The cookie exists but the store cannot answer: identity is still resolving.
		s.logger.Warn("session lookup failed", "error", err)
		return nil, Snapshot{Status: access.IdentityResolving}, nil
	}

	if s.registry == nil {
		return nil, Snapshot{Status: access.IdentitySignedIn, Identity: sess.Identity(), RoleStatus: access.RolePending}, nil
	}
	state := s.registry.SignIn(sessionID, sess.Identity())
	return state, state.Snapshot(), nil
}

func (s *AccessService) awaitRole(ctx context.Context, state *SessionState, snap Snapshot) (Snapshot, error) {
	ch, unsubscribe := state.Subscribe()
	defer unsubscribe()

	// Re-read after subscribing so a change published in between is not missed.
	if cur := state.Snapshot(); cur.Generation != snap.Generation || cur.RoleStatus != access.RolePending {
		return cur, nil
	}

	timer := time.NewTimer(s.roleWait)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		case <-timer.C:
			return state.Snapshot(), nil
		case cur := <-ch:
			if cur.Generation != snap.Generation || cur.RoleStatus != access.RolePending {
				return cur, nil
			}
		}
	}
}

// RoleChanged announces that email's role changed. With an event bus every
// instance invalidates through its subscription; without one only this one does.
func (s *AccessService) RoleChanged(ctx context.Context, email string) error {
	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, email); err != nil {
			return fmt.Errorf("invalidate role cache: %w", err)
		}
	}
	if s.events != nil {
		return s.events.Publish(ctx, email)
	}
	if s.registry != nil {
		s.registry.InvalidateEmail(email)
	}
	return nil
}

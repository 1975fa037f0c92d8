// Package access contains the navigation guard: a pure decision function that
// maps a route policy and the current subject to ALLOW, REDIRECT, PENDING or FORBIDDEN.
package access

import (
	"net/url"
	"slices"
	"strings"

	"github.com/decorhub/storefront/internal/domain/auth"
)

// LoginPath is the auth-shell view unauthenticated navigation is redirected to.
const LoginPath = "/login"

// RedirectParam carries the remembered origin on the login URL.
const RedirectParam = "redirect_uri"

// Outcome is the result kind of a guard decision.
type Outcome string

const (
	OutcomeAllow     Outcome = "allow"
	OutcomeRedirect  Outcome = "redirect"
	OutcomePending   Outcome = "pending"
	OutcomeForbidden Outcome = "forbidden"
	// OutcomeNotFound is never produced by Evaluate; the resolver yields it for unmatched paths.
	OutcomeNotFound Outcome = "not_found"
)

// IsTerminal reports whether the outcome renders a terminal view instead of the requested one.
func (o Outcome) IsTerminal() bool {
	return o == OutcomeForbidden || o == OutcomeNotFound
}

// Reason mirrors the error taxonomy surfaced at the boundary.
type Reason string

const (
	ReasonNone            Reason = ""
	ReasonUnresolved      Reason = "unresolved"
	ReasonUnauthenticated Reason = "unauthenticated"
	ReasonForbidden       Reason = "forbidden"
	ReasonNotFound        Reason = "not_found"
	ReasonUpstream        Reason = "upstream"
)

// IdentityStatus describes what is known about the current identity.
type IdentityStatus int

const (
	// IdentityResolving means presence has not been confirmed either way.
	IdentityResolving IdentityStatus = iota
	IdentitySignedOut
	IdentitySignedIn
)

func (s IdentityStatus) String() string {
	switch s {
	case IdentitySignedOut:
		return "signed_out"
	case IdentitySignedIn:
		return "signed_in"
	default:
		return "resolving"
	}
}

// RoleStatus describes the state of the role fetch for the current identity.
type RoleStatus int

const (
	RolePending RoleStatus = iota
	RoleResolved
	// RoleFailed means the fetch gave up after its bounded retries.
	RoleFailed
)

func (s RoleStatus) String() string {
	switch s {
	case RoleResolved:
		return "resolved"
	case RoleFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Subject is the guard's view of the current session.
type Subject struct {
	Identity   IdentityStatus
	Role       auth.Role
	RoleStatus RoleStatus
}

// Policy is the access requirement of a route.
// A nil Roles slice means any authenticated identity; an empty non-nil slice admits nobody.
type Policy struct {
	RequiresAuth bool
	Roles        []auth.Role
}

// Public is the policy of routes open to everyone.
var Public = Policy{}

// Authenticated admits any signed-in identity.
var Authenticated = Policy{RequiresAuth: true}

// RequireRoles builds a role-restricted policy.
func RequireRoles(roles ...auth.Role) Policy {
	rs := make([]auth.Role, 0, len(roles))
	rs = append(rs, roles...)
	return Policy{RequiresAuth: true, Roles: rs}
}

// RoleRestricted reports whether the policy limits access to a role subset.
func (p Policy) RoleRestricted() bool { return p.Roles != nil }

// Gated reports whether the policy requires a signed-in identity.
// A role restriction implies authentication.
func (p Policy) Gated() bool { return p.RequiresAuth || p.RoleRestricted() }

// Admits reports whether a resolved role satisfies the policy's role set.
// The unresolved sentinel is never admitted by a restricted policy.
func (p Policy) Admits(r auth.Role) bool {
	if !p.RoleRestricted() {
		return true
	}
	if !r.IsResolved() {
		return false
	}
	return slices.Contains(p.Roles, r)
}

// Merge folds a nested policy into an enclosing one: authentication is OR-ed
// and role sets are intersected.
func (p Policy) Merge(inner Policy) Policy {
	out := Policy{RequiresAuth: p.RequiresAuth || inner.RequiresAuth}
	switch {
	case p.Roles == nil && inner.Roles == nil:
	case p.Roles == nil:
		out.Roles = slices.Clone(inner.Roles)
	case inner.Roles == nil:
		out.Roles = slices.Clone(p.Roles)
	default:
		out.Roles = make([]auth.Role, 0, len(inner.Roles))
		for _, r := range inner.Roles {
			if slices.Contains(p.Roles, r) {
				out.Roles = append(out.Roles, r)
			}
		}
	}
	if out.Roles != nil {
		out.RequiresAuth = true
	}
	return out
}

// Decision is the guard's verdict for one navigation attempt.
type Decision struct {
	Outcome Outcome `json:"outcome"`
	// RedirectTo is set for OutcomeRedirect.
	RedirectTo string `json:"redirect_to,omitempty"`
	Origin     string `json:"origin,omitempty"`
	Reason     Reason `json:"reason,omitempty"`
}

// Evaluate decides whether the subject may render a route guarded by policy.
// It has no side effects: the same inputs always give the same decision.
func Evaluate(policy Policy, subject Subject, origin string) Decision {
	if !policy.Gated() {
		return Decision{Outcome: OutcomeAllow, Origin: origin}
	}

	switch subject.Identity {
	case IdentitySignedIn:
	case IdentitySignedOut:
		return Decision{
			Outcome:    OutcomeRedirect,
			RedirectTo: LoginURL(origin),
			Origin:     SafeOrigin(origin),
			Reason:     ReasonUnauthenticated,
		}
	default:
		return Decision{Outcome: OutcomePending, Origin: origin, Reason: ReasonUnresolved}
	}

	if !policy.RoleRestricted() {
		return Decision{Outcome: OutcomeAllow, Origin: origin}
	}

	switch subject.RoleStatus {
	case RoleResolved:
	case RoleFailed:
		return Decision{Outcome: OutcomeForbidden, Origin: origin, Reason: ReasonUpstream}
	default:
		return Decision{Outcome: OutcomePending, Origin: origin, Reason: ReasonUnresolved}
	}

	if !policy.Admits(subject.Role) {
		return Decision{Outcome: OutcomeForbidden, Origin: origin, Reason: ReasonForbidden}
	}
	return Decision{Outcome: OutcomeAllow, Origin: origin}
}

// NotFound is the decision for a path no route matches.
func NotFound(origin string) Decision {
	return Decision{Outcome: OutcomeNotFound, Origin: origin, Reason: ReasonNotFound}
}

// SafeOrigin restricts a remembered origin to a same-site absolute path.
// Anything else collapses to "/".
func SafeOrigin(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.Contains(raw, "\\") {
		return "/"
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return "/"
	}
	if u.Path == LoginPath {
		return "/"
	}
	return raw
}

// LoginURL returns the login view URL remembering origin.
func LoginURL(origin string) string {
	o := SafeOrigin(origin)
	if o == "/" {
		return LoginPath
	}
	return LoginPath + "?" + url.Values{RedirectParam: []string{o}}.Encode()
}

// NavigationIntent captures where an unauthenticated user was headed.
type NavigationIntent struct {
	Target string
	Origin string
}

// Intent extracts the navigation intent carried by a redirect decision.
func (d Decision) Intent() (NavigationIntent, bool) {
	if d.Outcome != OutcomeRedirect {
		return NavigationIntent{}, false
	}
	return NavigationIntent{Target: d.RedirectTo, Origin: d.Origin}, true
}

// ResumePath returns where navigation continues once sign-in completes.
func (n NavigationIntent) ResumePath() string {
	return SafeOrigin(n.Origin)
}

// OriginFromLoginQuery reads the remembered origin from login query parameters.
func OriginFromLoginQuery(q url.Values) string {
	return SafeOrigin(q.Get(RedirectParam))
}

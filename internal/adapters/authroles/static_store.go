// Package authroles provides a fixed, config-driven RoleStore for local
// development and mock mode.
package authroles

import (
	"context"
	"fmt"
	"strings"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// StaticStore maps emails to roles from a fixed table.
type StaticStore struct {
	roles map[string]domainauth.Role
}

// NewStaticStore builds a StaticStore. Keys are matched case-insensitively.
func NewStaticStore(roles map[string]domainauth.Role) *StaticStore {
	m := make(map[string]domainauth.Role, len(roles))
	for email, role := range roles {
		m[strings.ToLower(strings.TrimSpace(email))] = role
	}
	return &StaticStore{roles: m}
}

// ParseAssignments parses "email=role" pairs such as
// "admin@example.com=admin,deco@example.com=decorator".
func ParseAssignments(pairs []string) (map[string]domainauth.Role, error) {
	out := make(map[string]domainauth.Role, len(pairs))
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		email, raw, ok := strings.Cut(pair, "=")
		email = strings.ToLower(strings.TrimSpace(email))
		if !ok || email == "" {
			return nil, fmt.Errorf("invalid role assignment %q: want email=role", pair)
		}
		role, err := domainauth.ParseRole(raw)
		if err != nil {
			return nil, fmt.Errorf("role assignment for %s: %w", email, err)
		}
		out[email] = role
	}
	return out, nil
}

// Lookup returns the configured role or ports.ErrRoleNotFound.
func (s *StaticStore) Lookup(_ context.Context, email string) (domainauth.RoleProfile, error) {
	role, ok := s.roles[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return domainauth.RoleProfile{}, ports.ErrRoleNotFound
	}
	return domainauth.RoleProfile{Role: role}, nil
}

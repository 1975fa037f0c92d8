package auth

// Package auth contains simple hand-written test doubles for auth ports.
// These are lightweight and suitable for unit tests without codegen.

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.AuthProvider   = (*MockAuthProvider)(nil)
	_ ports.SessionStore   = (*MemorySessionStore)(nil)
	_ ports.SessionRevoker = (*MemorySessionStore)(nil)
	_ ports.RoleStore      = (*MemoryRoleStore)(nil)
	_ ports.RoleEvents     = (*MemoryRoleEvents)(nil)
)

// MockAuthProvider simulates an IdP for tests with deterministic state/nonce handling.
type MockAuthProvider struct {
	BeginFunc    func(ctx context.Context, in ports.BeginInput) (authURL, state, nonce string, err error)
	ExchangeFunc func(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error)

	// Deterministic values for predictable testing
	AuthURL     string
	StatePrefix string
	NoncePrefix string
	DefaultUser domainauth.Identity

	mu        sync.Mutex
	callCount int
}

// NewMockAuthProvider creates a MockAuthProvider with sensible defaults.
func NewMockAuthProvider() *MockAuthProvider {
	return &MockAuthProvider{
		AuthURL:     "https://mock-idp/auth",
		StatePrefix: "state",
		NoncePrefix: "nonce",
		DefaultUser: domainauth.Identity{
			Email:       "mock.user@example.com",
			DisplayName: "Mock User",
			Token:       "mock-token",
		},
	}
}

func (m *MockAuthProvider) Begin(ctx context.Context, in ports.BeginInput) (string, string, string, error) {
	if m.BeginFunc != nil {
		return m.BeginFunc(ctx, in)
	}

	m.mu.Lock()
	m.callCount++
	n := m.callCount
	m.mu.Unlock()

	authURL := m.AuthURL
	if authURL == "" {
		authURL = "https://mock-idp/auth"
	}
	statePrefix := m.StatePrefix
	if statePrefix == "" {
		statePrefix = "state"
	}
	noncePrefix := m.NoncePrefix
	if noncePrefix == "" {
		noncePrefix = "nonce"
	}

	return authURL, fmt.Sprintf("%s-%d", statePrefix, n), fmt.Sprintf("%s-%d", noncePrefix, n), nil
}

func (m *MockAuthProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.Identity, error) {
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}

	// Return a copy of the default user with a fresh expiration time
	user := m.DefaultUser
	if user.Email == "" {
		user = domainauth.Identity{Email: "mock.user@example.com", DisplayName: "Mock User"}
	}
	user.ExpiresAt = time.Now().Add(time.Hour)
	return user, nil
}

// MemorySessionStore is an in-memory session store for unit tests.
// Setting Err makes every call fail with it, simulating an unavailable store.
type MemorySessionStore struct {
	mu       sync.Mutex
	sessions map[string]domainauth.Session
	Err      error
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{sessions: make(map[string]domainauth.Session)}
}

func (m *MemorySessionStore) Save(_ context.Context, sess domainauth.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	if sess.ID == "" {
		return fmt.Errorf("session ID cannot be empty")
	}
	m.sessions[sess.ID] = sess
	return nil
}

func (m *MemorySessionStore) Get(_ context.Context, id string) (domainauth.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domainauth.Session{}, m.Err
	}
	sess, ok := m.sessions[id]
	if !ok || id == "" {
		return domainauth.Session{}, ports.ErrSessionNotFound
	}
	return sess, nil
}

func (m *MemorySessionStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	delete(m.sessions, id)
	return nil
}

// DeleteByEmail removes every session whose email matches, ignoring case.
func (m *MemorySessionStore) DeleteByEmail(_ context.Context, email string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return 0, m.Err
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return 0, nil
	}
	n := 0
	for id, sess := range m.sessions {
		if strings.EqualFold(strings.TrimSpace(sess.Email), email) {
			delete(m.sessions, id)
			n++
		}
	}
	return n, nil
}

// MemoryRoleStore maps emails to roles for tests.
type MemoryRoleStore struct {
	mu    sync.Mutex
	roles map[string]domainauth.Role
	Err   error
	Calls int
}

// NewMemoryRoleStore creates a role store seeded with the given roles.
func NewMemoryRoleStore(roles map[string]domainauth.Role) *MemoryRoleStore {
	m := &MemoryRoleStore{roles: map[string]domainauth.Role{}}
	for k, v := range roles {
		m.roles[strings.ToLower(k)] = v
	}
	return m
}

// Set updates the role for email.
func (m *MemoryRoleStore) Set(email string, role domainauth.Role) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.roles[strings.ToLower(email)] = role
}

func (m *MemoryRoleStore) Lookup(_ context.Context, email string) (domainauth.RoleProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls++
	if m.Err != nil {
		return domainauth.RoleProfile{}, m.Err
	}
	r, ok := m.roles[strings.ToLower(email)]
	if !ok {
		return domainauth.RoleProfile{}, ports.ErrRoleNotFound
	}
	return domainauth.RoleProfile{Role: r}, nil
}

// MemoryRoleEvents fans role-change notifications out in-process.
type MemoryRoleEvents struct {
	mu   sync.Mutex
	subs []chan string
}

func (m *MemoryRoleEvents) Publish(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- email:
		default:
		}
	}
	return nil
}

func (m *MemoryRoleEvents) Subscribe(ctx context.Context, fn func(email string)) error {
	ch := make(chan string, 16)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case email := <-ch:
			fn(email)
		}
	}
}

// Subscribers reports how many subscriptions are active.
func (m *MemoryRoleEvents) Subscribers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	mocks "github.com/decorhub/storefront/internal/mocks/auth"
	"github.com/decorhub/storefront/internal/ports"
)

// mockSessionStore is a test helper for testing session store errors.
type mockSessionStore struct {
	saveFunc   func(context.Context, domainauth.Session) error
	getFunc    func(context.Context, string) (domainauth.Session, error)
	deleteFunc func(context.Context, string) error
}

func (m *mockSessionStore) Save(ctx context.Context, sess domainauth.Session) error {
	if m.saveFunc != nil {
		return m.saveFunc(ctx, sess)
	}
	return nil
}

func (m *mockSessionStore) Get(ctx context.Context, id string) (domainauth.Session, error) {
	if m.getFunc != nil {
		return m.getFunc(ctx, id)
	}
	return domainauth.Session{}, nil
}

func (m *mockSessionStore) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func newTestAuthService(provider ports.AuthProvider, sessions ports.SessionStore) *AuthService {
	return NewAuthService(AuthServiceOptions{Provider: provider, Sessions: sessions})
}

func TestNewAuthService_DefaultTTL(t *testing.T) {
	svc := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore())
	assert.Equal(t, 8*time.Hour, svc.sessionTTL)
}

func TestAuthService_BeginLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore())
		result, err := svc.BeginLogin(context.Background(), BeginLoginInput{RedirectURL: "http://localhost:8080/auth/callback"})
		require.NoError(t, err)
		assert.Equal(t, "https://mock-idp/auth", result.AuthURL)
		assert.Equal(t, "state-1", result.State)
		assert.Equal(t, "nonce-1", result.Nonce)
	})

	t.Run("empty redirect", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore())
		_, err := svc.BeginLogin(context.Background(), BeginLoginInput{})
		assert.EqualError(t, err, "redirect URL is required")
	})

	t.Run("provider error", func(t *testing.T) {
		provider := mocks.NewMockAuthProvider()
		provider.BeginFunc = func(context.Context, ports.BeginInput) (string, string, string, error) {
			return "", "", "", errors.New("provider down")
		}
		svc := newTestAuthService(provider, mocks.NewMemorySessionStore())
		_, err := svc.BeginLogin(context.Background(), BeginLoginInput{RedirectURL: "http://localhost/cb"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "begin auth flow")
	})

	t.Run("login hint normalized", func(t *testing.T) {
		provider := mocks.NewMockAuthProvider()
		var got ports.BeginInput
		provider.BeginFunc = func(_ context.Context, in ports.BeginInput) (string, string, string, error) {
			got = in
			return "https://mock-idp/auth", "s", "n", nil
		}
		svc := newTestAuthService(provider, mocks.NewMemorySessionStore())
		_, err := svc.BeginLogin(context.Background(), BeginLoginInput{RedirectURL: "/", LoginHint: " Deco@Example.com "})
		require.NoError(t, err)
		assert.Equal(t, "deco@example.com", got.LoginHint)
	})
}

func TestAuthService_CompleteLogin_Success(t *testing.T) {
	provider := mocks.NewMockAuthProvider()
	provider.DefaultUser = domainauth.Identity{
		Email:       "jane@example.com",
		DisplayName: "Jane Doe",
		PhotoURL:    "https://cdn.example.com/jane.png",
		Token:       "tok",
	}
	sessions := mocks.NewMemorySessionStore()
	svc := newTestAuthService(provider, sessions)

	result, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)

	sess := result.Session
	assert.NotEmpty(t, sess.ID)
	assert.Equal(t, "jane@example.com", sess.Email)
	assert.Equal(t, "Jane Doe", sess.DisplayName)
	assert.Equal(t, "https://cdn.example.com/jane.png", sess.PhotoURL)
	assert.True(t, sess.ExpiresAt.After(time.Now()))

	stored, err := sessions.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess, stored)
}

func TestAuthService_CompleteLogin_CapsExpiry(t *testing.T) {
	provider := mocks.NewMockAuthProvider()
	provider.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{Email: "a@example.com", ExpiresAt: time.Now().Add(72 * time.Hour)}, nil
	}
	svc := NewAuthService(AuthServiceOptions{
		Provider:   provider,
		Sessions:   mocks.NewMemorySessionStore(),
		SessionTTL: time.Hour,
	})

	result, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), result.Session.ExpiresAt, 5*time.Second)
}

func TestAuthService_CompleteLogin_StartsRoleResolution(t *testing.T) {
	store := mocks.NewMemoryRoleStore(map[string]domainauth.Role{"mock.user@example.com": domainauth.RoleAdmin})
	registry := NewSessionRegistry(SessionRegistryOptions{Resolver: newTestResolver(store, NotFoundDeny)})
	defer registry.Close()

	svc := NewAuthService(AuthServiceOptions{
		Provider: mocks.NewMockAuthProvider(),
		Sessions: mocks.NewMemorySessionStore(),
		Registry: registry,
	})
	result, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.NoError(t, err)

	st, ok := registry.Lookup(result.Session.ID)
	require.True(t, ok)
	waitRole(t, st, domainauth.RoleAdmin)
}

func TestAuthService_CompleteLogin_Validation(t *testing.T) {
	tests := []struct {
		name  string
		input CompleteLoginInput
		want  string
	}{
		{name: "missing code", input: CompleteLoginInput{State: "s", Nonce: "n"}, want: "authorization code is required"},
		{name: "missing state", input: CompleteLoginInput{Code: "c", Nonce: "n"}, want: "state parameter is required"},
		{name: "missing nonce", input: CompleteLoginInput{Code: "c", State: "s"}, want: "nonce parameter is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore())
			_, err := svc.CompleteLogin(context.Background(), tt.input)
			assert.EqualError(t, err, tt.want)
		})
	}
}

func TestAuthService_CompleteLogin_ExchangeError(t *testing.T) {
	provider := mocks.NewMockAuthProvider()
	provider.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{}, &domainauth.AuthError{Kind: domainauth.AuthErrInvalidCredentials, Err: errors.New("bad code")}
	}
	svc := newTestAuthService(provider, mocks.NewMemorySessionStore())

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Equal(t, domainauth.AuthErrInvalidCredentials, domainauth.AuthErrorKindOf(err))
}

func TestAuthService_CompleteLogin_MissingEmail(t *testing.T) {
	provider := mocks.NewMockAuthProvider()
	provider.ExchangeFunc = func(context.Context, ports.ExchangeInput) (domainauth.Identity, error) {
		return domainauth.Identity{DisplayName: "No Email"}, nil
	}
	svc := newTestAuthService(provider, mocks.NewMemorySessionStore())

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	assert.Equal(t, domainauth.AuthErrProvider, domainauth.AuthErrorKindOf(err))
}

func TestAuthService_CompleteLogin_SessionSaveError(t *testing.T) {
	sessions := &mockSessionStore{saveFunc: func(context.Context, domainauth.Session) error {
		return errors.New("redis down")
	}}
	svc := newTestAuthService(mocks.NewMockAuthProvider(), sessions)

	_, err := svc.CompleteLogin(context.Background(), CompleteLoginInput{Code: "c", State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "save session")
}

func TestAuthService_GetSession(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		sessions := mocks.NewMemorySessionStore()
		want := domainauth.Session{ID: "s1", Email: "a@example.com", ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, sessions.Save(ctx, want))

		got, err := newTestAuthService(mocks.NewMockAuthProvider(), sessions).GetSession(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, want, *got)
	})

	t.Run("empty id", func(t *testing.T) {
		_, err := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore()).GetSession(ctx, "")
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore()).GetSession(ctx, "nope")
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})

	t.Run("expired is deleted", func(t *testing.T) {
		sessions := mocks.NewMemorySessionStore()
		require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}))

		_, err := newTestAuthService(mocks.NewMockAuthProvider(), sessions).GetSession(ctx, "old")
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)

		_, err = sessions.Get(ctx, "old")
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
	})

	t.Run("expired delete failure", func(t *testing.T) {
		sessions := &mockSessionStore{
			getFunc: func(context.Context, string) (domainauth.Session, error) {
				return domainauth.Session{ID: "old", ExpiresAt: time.Now().Add(-time.Second)}, nil
			},
			deleteFunc: func(context.Context, string) error { return errors.New("boom") },
		}
		_, err := newTestAuthService(mocks.NewMockAuthProvider(), sessions).GetSession(ctx, "old")
		assert.ErrorIs(t, err, ErrSessionExpired)
		assert.Contains(t, err.Error(), "delete session")
	})

	t.Run("store failure is not a missing session", func(t *testing.T) {
		sessions := &mockSessionStore{getFunc: func(context.Context, string) (domainauth.Session, error) {
			return domainauth.Session{}, errors.New("timeout")
		}}
		_, err := newTestAuthService(mocks.NewMockAuthProvider(), sessions).GetSession(ctx, "s1")
		require.Error(t, err)
		assert.NotErrorIs(t, err, ports.ErrSessionNotFound)
	})
}

func TestAuthService_Logout(t *testing.T) {
	ctx := context.Background()

	t.Run("success", func(t *testing.T) {
		sessions := mocks.NewMemorySessionStore()
		require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "s1", ExpiresAt: time.Now().Add(time.Hour)}))
		registry := NewSessionRegistry(SessionRegistryOptions{Resolver: newTestResolver(mocks.NewMemoryRoleStore(nil), NotFoundDeny)})
		defer registry.Close()
		st := registry.SignIn("s1", domainauth.Identity{Email: "a@example.com"})

		svc := NewAuthService(AuthServiceOptions{Provider: mocks.NewMockAuthProvider(), Sessions: sessions, Registry: registry})
		require.NoError(t, svc.Logout(ctx, "s1"))

		_, err := sessions.Get(ctx, "s1")
		assert.ErrorIs(t, err, ports.ErrSessionNotFound)
		assert.False(t, st.Snapshot().SignedIn())
	})

	t.Run("empty id", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), &mockSessionStore{deleteFunc: func(context.Context, string) error {
			t.Fatal("delete must not be called")
			return nil
		}})
		assert.NoError(t, svc.Logout(ctx, ""))
	})

	t.Run("delete error", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), &mockSessionStore{deleteFunc: func(context.Context, string) error {
			return errors.New("boom")
		}})
		err := svc.Logout(ctx, "s1")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "delete session")
	})
}

func TestAuthService_RevokeUser(t *testing.T) {
	ctx := context.Background()

	t.Run("removes stored and local sessions", func(t *testing.T) {
		sessions := mocks.NewMemorySessionStore()
		reg := NewSessionRegistry(SessionRegistryOptions{})
		defer reg.Close()
		svc := NewAuthService(AuthServiceOptions{Provider: mocks.NewMockAuthProvider(), Sessions: sessions, Registry: reg})

		exp := time.Now().Add(time.Hour)
		require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "s1", Email: "deco@example.com", ExpiresAt: exp}))
		require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "s2", Email: "deco@example.com", ExpiresAt: exp}))
		require.NoError(t, sessions.Save(ctx, domainauth.Session{ID: "s3", Email: "other@example.com", ExpiresAt: exp}))
		st := reg.SignIn("s1", domainauth.Identity{Email: "deco@example.com"})

		n, err := svc.RevokeUser(ctx, " Deco@Example.com ")
		require.NoError(t, err)
		assert.Equal(t, 2, n)
		assert.False(t, st.Snapshot().SignedIn())

		_, err = svc.GetSession(ctx, "s2")
		require.ErrorIs(t, err, ports.ErrSessionNotFound)
		_, err = svc.GetSession(ctx, "s3")
		require.NoError(t, err)
	})

	t.Run("empty email", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), mocks.NewMemorySessionStore())
		_, err := svc.RevokeUser(ctx, "  ")
		assert.EqualError(t, err, "email is required")
	})

	t.Run("store without revocation", func(t *testing.T) {
		svc := newTestAuthService(mocks.NewMockAuthProvider(), &mockSessionStore{})
		_, err := svc.RevokeUser(ctx, "deco@example.com")
		assert.ErrorIs(t, err, ErrRevokeUnsupported)
	})

	t.Run("store error", func(t *testing.T) {
		sessions := mocks.NewMemorySessionStore()
		sessions.Err = errors.New("redis down")
		svc := newTestAuthService(mocks.NewMockAuthProvider(), sessions)
		_, err := svc.RevokeUser(ctx, "deco@example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "revoke sessions")
	})
}

func TestAuthService_SessionExpiry(t *testing.T) {
	svc := NewAuthService(AuthServiceOptions{SessionTTL: time.Hour})
	now := time.Now()

	assert.WithinDuration(t, now.Add(time.Hour), svc.sessionExpiry(time.Time{}), time.Second)
	assert.WithinDuration(t, now.Add(time.Hour), svc.sessionExpiry(now.Add(48*time.Hour)), time.Second)
	assert.Equal(t, now.Add(10*time.Minute), svc.sessionExpiry(now.Add(10*time.Minute)))
}

package service

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	apperrors "github.com/decorhub/storefront/internal/errors"
	"github.com/decorhub/storefront/internal/mocks"
	"github.com/decorhub/storefront/internal/ports"
)

func newTestResolver(store ports.RoleStore, policy NotFoundPolicy) *RoleResolver {
	return NewRoleResolver(RoleResolverOptions{
		Store:           store,
		StoreName:       "test",
		NotFoundPolicy:  policy,
		MaxAttempts:     3,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		AttemptTimeout:  time.Second,
	})
}

func TestRoleResolver_Fetch_Success(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	store.EXPECT().Lookup(gomock.Any(), "a@example.com").
		Return(domainauth.RoleProfile{Role: domainauth.RoleDecorator}, nil)

	role, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), " A@example.com ")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleDecorator, role)
}

func TestRoleResolver_Fetch_RetriesTransient(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	gomock.InOrder(
		store.EXPECT().Lookup(gomock.Any(), "a@example.com").
			Return(domainauth.RoleProfile{}, apperrors.Upstream(errors.New("503"), "role store")),
		store.EXPECT().Lookup(gomock.Any(), "a@example.com").
			Return(domainauth.RoleProfile{Role: domainauth.RoleAdmin}, nil),
	)

	role, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, domainauth.RoleAdmin, role)
}

func TestRoleResolver_Fetch_GivesUpAfterMaxAttempts(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	store.EXPECT().Lookup(gomock.Any(), gomock.Any()).
		Return(domainauth.RoleProfile{}, errors.New("connection reset")).
		Times(3)

	_, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), "a@example.com")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 attempt(s)")
}

func TestRoleResolver_Fetch_PermanentErrorsDoNotRetry(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	store.EXPECT().Lookup(gomock.Any(), gomock.Any()).
		Return(domainauth.RoleProfile{}, apperrors.Validation("bad email")).
		Times(1)

	_, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), "a@example.com")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

func TestRoleResolver_Fetch_NotFoundPolicy(t *testing.T) {
	t.Run("deny", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockRoleStore(ctrl)
		store.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(domainauth.RoleProfile{}, ports.ErrRoleNotFound).Times(1)

		role, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), "a@example.com")
		assert.ErrorIs(t, err, ports.ErrRoleNotFound)
		assert.Equal(t, domainauth.RoleUnresolved, role)
	})
	t.Run("user", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		store := mocks.NewMockRoleStore(ctrl)
		store.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(domainauth.RoleProfile{}, ports.ErrRoleNotFound).Times(1)

		role, err := newTestResolver(store, NotFoundUser).Fetch(context.Background(), "a@example.com")
		require.NoError(t, err)
		assert.Equal(t, domainauth.RoleUser, role)
	})
}

func TestRoleResolver_Fetch_InvalidRole(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	store.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(domainauth.RoleProfile{Role: "owner"}, nil).Times(1)

	_, err := newTestResolver(store, NotFoundDeny).Fetch(context.Background(), "a@example.com")
	assert.ErrorIs(t, err, ErrInvalidRole)
}

func TestRoleResolver_Fetch_EmptyEmail(t *testing.T) {
	_, err := newTestResolver(nil, NotFoundDeny).Fetch(context.Background(), "  ")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeValidation))
}

// gateStore blocks every lookup until release is closed.
type gateStore struct {
	release chan struct{}
	role    atomic.Value
	calls   atomic.Int32
}

func newGateStore(role domainauth.Role) *gateStore {
	g := &gateStore{release: make(chan struct{})}
	g.role.Store(role)
	return g
}

func (g *gateStore) Lookup(ctx context.Context, _ string) (domainauth.RoleProfile, error) {
	g.calls.Add(1)
	select {
	case <-g.release:
		return domainauth.RoleProfile{Role: g.role.Load().(domainauth.Role)}, nil
	case <-ctx.Done():
		return domainauth.RoleProfile{}, ctx.Err()
	}
}

func TestRoleResolver_Fetch_CollapsesConcurrentCalls(t *testing.T) {
	store := newGateStore(domainauth.RoleUser)
	r := newTestResolver(store, NotFoundDeny)

	var wg sync.WaitGroup
	results := make([]domainauth.Role, 5)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			role, err := r.Fetch(context.Background(), "a@example.com")
			assert.NoError(t, err)
			results[i] = role
		}(i)
	}

	require.Eventually(t, func() bool { return store.calls.Load() >= 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	close(store.release)
	wg.Wait()

	assert.Equal(t, int32(1), store.calls.Load())
	for _, role := range results {
		assert.Equal(t, domainauth.RoleUser, role)
	}
}

func TestRoleResolver_Fetch_CallerCancellation(t *testing.T) {
	store := newGateStore(domainauth.RoleUser)
	r := newTestResolver(store, NotFoundDeny)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := r.Fetch(ctx, "a@example.com")
		done <- err
	}()
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	close(store.release)
}

func TestRoleResolver_Start_ResolvesState(t *testing.T) {
	store := newGateStore(domainauth.RoleAdmin)
	close(store.release)
	r := newTestResolver(store, NotFoundDeny)

	st := NewSessionState()
	st.SetIdentity(domainauth.Identity{Email: "a@example.com"})
	r.Start(context.Background(), st)

	require.Eventually(t, func() bool {
		return st.Snapshot().RoleStatus == access.RoleResolved
	}, time.Second, time.Millisecond)
	assert.Equal(t, domainauth.RoleAdmin, st.Snapshot().Role)
}

func TestRoleResolver_Start_FailsClosed(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockRoleStore(ctrl)
	store.EXPECT().Lookup(gomock.Any(), gomock.Any()).Return(domainauth.RoleProfile{}, errors.New("down")).Times(3)
	r := newTestResolver(store, NotFoundDeny)

	st := NewSessionState()
	st.SetIdentity(domainauth.Identity{Email: "a@example.com"})
	r.Start(context.Background(), st)

	require.Eventually(t, func() bool {
		return st.Snapshot().RoleStatus == access.RoleFailed
	}, time.Second, time.Millisecond)
	d := access.Evaluate(access.RequireRoles(domainauth.RoleAdmin), st.Snapshot().Subject(), "/dashboard/admin")
	assert.Equal(t, access.OutcomeForbidden, d.Outcome)
}

func TestRoleResolver_Start_StaleResultIgnored(t *testing.T) {
	store := newGateStore(domainauth.RoleAdmin)
	r := newTestResolver(store, NotFoundDeny)

	st := NewSessionState()
	st.SetIdentity(domainauth.Identity{Email: "admin@example.com"})
	r.Start(context.Background(), st)
	require.Eventually(t, func() bool { return store.calls.Load() == 1 }, time.Second, time.Millisecond)

	// A different identity signs in while the admin lookup is in flight.
	st.SetIdentity(domainauth.Identity{Email: "user@example.com"})
	close(store.release)
	time.Sleep(20 * time.Millisecond)

	snap := st.Snapshot()
	assert.Equal(t, "user@example.com", snap.Identity.Email)
	assert.NotEqual(t, domainauth.RoleAdmin, snap.Role)
	assert.Equal(t, access.RolePending, snap.RoleStatus)
}

func TestRoleResolver_Start_OnlyOnePerGeneration(t *testing.T) {
	store := newGateStore(domainauth.RoleUser)
	r := newTestResolver(store, NotFoundDeny)

	st := NewSessionState()
	st.SetIdentity(domainauth.Identity{Email: "a@example.com"})
	for range 5 {
		r.Start(context.Background(), st)
	}
	close(store.release)
	require.Eventually(t, func() bool {
		return st.Snapshot().RoleStatus == access.RoleResolved
	}, time.Second, time.Millisecond)
	assert.Equal(t, int32(1), store.calls.Load())
}

package httpx

import (
	"context"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/decorhub/storefront/internal/domain/access"
	domainauth "github.com/decorhub/storefront/internal/domain/auth"
	"github.com/decorhub/storefront/internal/domain/route"
	"github.com/decorhub/storefront/internal/domain/shell"
	"github.com/decorhub/storefront/internal/service"
)

// RequireTemplateRenderer creates a TemplateRenderer for tests, skipping the test if templates are not available.
func RequireTemplateRenderer(t *testing.T) *TemplateRenderer {
	t.Helper()
	tr, err := NewTemplateRenderer(TemplateRendererConfig{
		TemplateFS: os.DirFS(TemplatePathFromTest),
	})
	if err != nil {
		t.Skipf("Templates not available, skipping: %v", err)
		return nil
	}
	return tr
}

// ContainsAll checks if a string contains all the given substrings.
func ContainsAll(s string, subs []string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}

// fakeAccess runs the real route table and guard against a fixed snapshot.
type fakeAccess struct {
	mu      sync.Mutex
	snap    service.Snapshot
	err     error
	changed []string
	routes  *route.Table
	inputs  []service.DecideInput
	block   chan struct{}
	roleErr error
}

func newFakeAccess(snap service.Snapshot) *fakeAccess {
	return &fakeAccess{snap: snap, routes: route.DefaultTable()}
}

func signedInAs(role domainauth.Role) service.Snapshot {
	return service.Snapshot{
		Status:     access.IdentitySignedIn,
		Identity:   domainauth.Identity{Email: "ada@example.com", DisplayName: "Ada Lovelace"},
		Role:       role,
		RoleStatus: access.RoleResolved,
	}
}

func (f *fakeAccess) Decide(ctx context.Context, in service.DecideInput) (service.DecideResult, error) {
	f.mu.Lock()
	f.inputs = append(f.inputs, in)
	block, err, snap := f.block, f.err, f.snap
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return service.DecideResult{}, ctx.Err()
		}
	}
	if err != nil {
		return service.DecideResult{}, err
	}

	match := f.routes.Resolve(in.Path)
	origin := in.Origin
	if origin == "" {
		origin = in.Path
	}
	d := access.Evaluate(match.Policy, snap.Subject(), origin)
	if d.Outcome == access.OutcomeAllow && !match.Found {
		d = access.NotFound(origin)
	}
	res := service.DecideResult{Decision: d, Match: match, Session: snap}
	if match.Shell == route.ShellDashboard && snap.RoleStatus == access.RoleResolved {
		res.Navigation = shell.Navigation(snap.Role)
	}
	return res, nil
}

func (f *fakeAccess) Authorize(_ context.Context, _ string, policy access.Policy) (service.Snapshot, access.Decision, error) {
	if f.err != nil {
		return service.Snapshot{}, access.Decision{}, f.err
	}
	return f.snap, access.Evaluate(policy, f.snap.Subject(), ""), nil
}

func (f *fakeAccess) Session(_ context.Context, _ string) (service.Snapshot, error) {
	return f.snap, f.err
}

func (f *fakeAccess) RoleChanged(_ context.Context, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.roleErr != nil {
		return f.roleErr
	}
	f.changed = append(f.changed, email)
	return nil
}

func (f *fakeAccess) lastInput() service.DecideInput {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.inputs) == 0 {
		return service.DecideInput{}
	}
	return f.inputs[len(f.inputs)-1]
}

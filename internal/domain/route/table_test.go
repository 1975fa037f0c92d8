package route

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/auth"
)

func TestResolve_DefaultTable(t *testing.T) {
	tbl := DefaultTable()
	tests := []struct {
		path   string
		view   string
		shell  Shell
		gated  bool
		roles  []auth.Role
		params map[string]string
	}{
		{path: "/", view: ViewHome, shell: ShellPublic},
		{path: "/about", view: ViewAbout, shell: ShellPublic},
		{path: "/services/42", view: ViewServiceDetail, shell: ShellPublic, params: map[string]string{"id": "42"}},
		{path: "/login", view: ViewLogin, shell: ShellAuth},
		{path: "/register/", view: ViewRegister, shell: ShellAuth},
		{path: "/dashboard", view: ViewDashboardHome, shell: ShellDashboard, gated: true},
		{path: "/dashboard/profile", view: ViewProfile, shell: ShellDashboard, gated: true},
		{path: "/dashboard/bookings", view: ViewBookings, shell: ShellDashboard, gated: true, roles: []auth.Role{auth.RoleUser}},
		{path: "/dashboard/decorator/earnings", view: ViewEarnings, shell: ShellDashboard, gated: true, roles: []auth.Role{auth.RoleDecorator}},
		{path: "/dashboard/admin", view: ViewAdminHome, shell: ShellDashboard, gated: true, roles: []auth.Role{auth.RoleAdmin}},
		{path: "/dashboard/admin/analytics", view: ViewAnalytics, shell: ShellDashboard, gated: true, roles: []auth.Role{auth.RoleAdmin}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			m := tbl.Resolve(tt.path)
			require.True(t, m.Found)
			assert.Equal(t, tt.view, m.View)
			assert.Equal(t, tt.shell, m.Shell)
			assert.Equal(t, tt.gated, m.Policy.Gated())
			assert.Equal(t, tt.roles, m.Policy.Roles)
			if tt.params != nil {
				assert.Equal(t, tt.params, m.Params)
			}
		})
	}
}

func TestResolve_StaticBeatsParam(t *testing.T) {
	tbl := DefaultTable()

	m := tbl.Resolve("/dashboard/admin/services/new")
	require.True(t, m.Found)
	assert.Equal(t, ViewServiceCreate, m.View)
	assert.Empty(t, m.Params)

	m = tbl.Resolve("/dashboard/admin/services/17")
	require.True(t, m.Found)
	assert.Equal(t, ViewServiceEdit, m.View)
	assert.Equal(t, "17", m.Params["id"])
}

func TestResolve_StaticBeatsParamRegardlessOfOrder(t *testing.T) {
	for _, entries := range [][]Entry{
		{{Pattern: "/services/:id", View: "detail"}, {Pattern: "/services/new", View: "new"}},
		{{Pattern: "/services/new", View: "new"}, {Pattern: "/services/:id", View: "detail"}},
	} {
		tbl, err := Build(nil, entries)
		require.NoError(t, err)
		assert.Equal(t, "new", tbl.Resolve("/services/new").View)
		assert.Equal(t, "detail", tbl.Resolve("/services/abc").View)
	}
}

func TestResolve_FirstRegisteredParamWins(t *testing.T) {
	tbl, err := Build(nil, []Entry{
		{Pattern: "/p/:id", View: "by-id"},
		{Pattern: "/p/:slug", View: "by-slug"},
		{Pattern: "/p/:slug/reviews", View: "reviews"},
	})
	require.NoError(t, err)

	m := tbl.Resolve("/p/x")
	assert.Equal(t, "by-id", m.View)
	assert.Equal(t, map[string]string{"id": "x"}, m.Params)

	// Backtracks into the later parameter sibling when the first cannot complete the path.
	m = tbl.Resolve("/p/x/reviews")
	assert.Equal(t, "reviews", m.View)
	assert.Equal(t, map[string]string{"slug": "x"}, m.Params)
}

func TestResolve_BacktracksFromStatic(t *testing.T) {
	tbl, err := Build(nil, []Entry{
		{Pattern: "/a/b/c", View: "static"},
		{Pattern: "/a/:x/d", View: "param"},
	})
	require.NoError(t, err)
	m := tbl.Resolve("/a/b/d")
	require.True(t, m.Found)
	assert.Equal(t, "param", m.View)
	assert.Equal(t, "b", m.Params["x"])
}

func TestResolve_NotFound(t *testing.T) {
	tbl := DefaultTable()

	m := tbl.Resolve("/unknown/path")
	assert.False(t, m.Found)
	assert.Equal(t, NotFoundView, m.View)
	assert.Equal(t, ShellPublic, m.Shell)
	assert.False(t, m.Policy.Gated())

	// Unmatched dashboard paths stay inside the dashboard shell and its policy.
	m = tbl.Resolve("/dashboard/nope")
	assert.False(t, m.Found)
	assert.Equal(t, ShellDashboard, m.Shell)
	assert.True(t, m.Policy.Gated())
	assert.False(t, m.Policy.RoleRestricted())

	m = tbl.Resolve("/dashboard/admin/nope")
	assert.Equal(t, []auth.Role{auth.RoleAdmin}, m.Policy.Roles)

	// Too deep for any entry.
	m = tbl.Resolve("/services/1/extra")
	assert.False(t, m.Found)
	assert.Equal(t, ShellPublic, m.Shell)
}

func TestScopePrefixIsSegmentWise(t *testing.T) {
	tbl := DefaultTable()
	m := tbl.Resolve("/dashboardx")
	assert.False(t, m.Found)
	assert.Equal(t, ShellPublic, m.Shell)
	assert.False(t, m.Policy.Gated())
}

func TestAdd_Errors(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Add(Entry{Pattern: "/a", View: "a"}))
	assert.ErrorIs(t, tbl.Add(Entry{Pattern: "/a/", View: "again"}), ErrDuplicateRoute)
	assert.ErrorIs(t, tbl.Add(Entry{Pattern: "b", View: "b"}), ErrInvalidPattern)
	assert.ErrorIs(t, tbl.Add(Entry{Pattern: "/c/:", View: "c"}), ErrInvalidPattern)
	assert.ErrorIs(t, tbl.Add(Entry{Pattern: "/d"}), ErrInvalidPattern)
	assert.ErrorIs(t, tbl.Add(Entry{Pattern: "/e", View: "e", Shell: "modal"}), ErrInvalidPattern)
	assert.ErrorIs(t, tbl.AddScope(Scope{Prefix: "/x/:id"}), ErrInvalidPattern)
	assert.Len(t, tbl.Entries(), 1)
}

func TestResolve_GuardIntegration(t *testing.T) {
	tbl := DefaultTable()
	signedOut := access.Subject{Identity: access.IdentitySignedOut}
	userSubject := access.Subject{Identity: access.IdentitySignedIn, Role: auth.RoleUser, RoleStatus: access.RoleResolved}

	for _, e := range tbl.Entries() {
		m := tbl.Resolve(e.Pattern)
		d := access.Evaluate(m.Policy, signedOut, e.Pattern)
		if m.Shell == ShellDashboard {
			assert.Equal(t, access.OutcomeRedirect, d.Outcome, e.Pattern)
		} else {
			assert.Equal(t, access.OutcomeAllow, d.Outcome, e.Pattern)
		}
	}

	m := tbl.Resolve("/dashboard/admin")
	assert.Equal(t, access.OutcomeForbidden, access.Evaluate(m.Policy, userSubject, "/dashboard/admin").Outcome)
}

func TestParse_MatchesDefaultTable(t *testing.T) {
	data, err := os.ReadFile(filepath.Join("..", "..", "..", "config", "routes.yaml"))
	require.NoError(t, err)

	parsed, err := Parse(data)
	require.NoError(t, err)

	def := DefaultTable()
	require.Len(t, parsed.Entries(), len(def.Entries()))
	for _, e := range def.Entries() {
		want := def.Resolve(e.Pattern)
		got := parsed.Resolve(e.Pattern)
		assert.Equal(t, want.View, got.View, e.Pattern)
		assert.Equal(t, want.Shell, got.Shell, e.Pattern)
		assert.Equal(t, want.Policy.Gated(), got.Policy.Gated(), e.Pattern)
		assert.ElementsMatch(t, want.Policy.Roles, got.Policy.Roles, e.Pattern)
	}
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse([]byte("routes: []\n"))
	assert.Error(t, err)

	_, err = Parse([]byte("routes:\n  - { path: /a, view: a, roles: [owner] }\n"))
	assert.ErrorIs(t, err, auth.ErrUnknownRole)

	_, err = Parse([]byte("routes:\n  - { path: /a, view: a, colour: red }\n"))
	assert.Error(t, err)
}

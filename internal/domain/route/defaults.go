package route

import (
	"github.com/decorhub/storefront/internal/domain/access"
	"github.com/decorhub/storefront/internal/domain/auth"
)

// View names bound by the default table.
const (
	ViewHome          = "home"
	ViewAbout         = "about"
	ViewContact       = "contact"
	ViewServices      = "services"
	ViewServiceDetail = "service-detail"
	ViewCoverage      = "coverage"

	ViewLogin    = "login"
	ViewRegister = "register"

	ViewDashboardHome  = "dashboard-home"
	ViewProfile        = "profile"
	ViewBookings       = "bookings"
	ViewPaymentHistory = "payment-history"

	ViewDecoratorHome    = "decorator-home"
	ViewAssignedProjects = "assigned-projects"
	ViewStatusUpdates    = "status-updates"
	ViewEarnings         = "earnings"

	ViewAdminHome      = "admin-home"
	ViewManageServices = "manage-services"
	ViewServiceCreate  = "service-create"
	ViewServiceEdit    = "service-edit"
	ViewManageUsers    = "manage-users"
	ViewManageBookings = "manage-bookings"
	ViewAnalytics      = "analytics"
)

// DefaultScopes returns the built-in scope declarations.
func DefaultScopes() []Scope {
	return []Scope{
		{Prefix: "/dashboard", Shell: ShellDashboard, Policy: access.Authenticated},
		{Prefix: "/dashboard/decorator", Policy: access.RequireRoles(auth.RoleDecorator)},
		{Prefix: "/dashboard/admin", Policy: access.RequireRoles(auth.RoleAdmin)},
	}
}

// DefaultEntries returns the built-in route entries in registration order.
func DefaultEntries() []Entry {
	userOnly := access.RequireRoles(auth.RoleUser)
	return []Entry{
		{Pattern: "/", View: ViewHome},
		{Pattern: "/about", View: ViewAbout},
		{Pattern: "/contact", View: ViewContact},
		{Pattern: "/service", View: ViewServices},
		{Pattern: "/services/:id", View: ViewServiceDetail},
		{Pattern: "/coverage", View: ViewCoverage},

		{Pattern: "/login", View: ViewLogin, Shell: ShellAuth},
		{Pattern: "/register", View: ViewRegister, Shell: ShellAuth},

		{Pattern: "/dashboard", View: ViewDashboardHome},
		{Pattern: "/dashboard/profile", View: ViewProfile},
		{Pattern: "/dashboard/bookings", View: ViewBookings, Policy: userOnly},
		{Pattern: "/dashboard/payments", View: ViewPaymentHistory, Policy: userOnly},

		{Pattern: "/dashboard/decorator", View: ViewDecoratorHome},
		{Pattern: "/dashboard/decorator/projects", View: ViewAssignedProjects},
		{Pattern: "/dashboard/decorator/status", View: ViewStatusUpdates},
		{Pattern: "/dashboard/decorator/earnings", View: ViewEarnings},

		{Pattern: "/dashboard/admin", View: ViewAdminHome},
		{Pattern: "/dashboard/admin/services", View: ViewManageServices},
		{Pattern: "/dashboard/admin/services/:id", View: ViewServiceEdit},
		{Pattern: "/dashboard/admin/services/new", View: ViewServiceCreate},
		{Pattern: "/dashboard/admin/users", View: ViewManageUsers},
		{Pattern: "/dashboard/admin/bookings", View: ViewManageBookings},
		{Pattern: "/dashboard/admin/analytics", View: ViewAnalytics},
	}
}

// DefaultTable builds the built-in table. It panics only if the built-in
// declarations are inconsistent, which tests guard against.
func DefaultTable() *Table {
	t, err := Build(DefaultScopes(), DefaultEntries())
	if err != nil {
		panic(err)
	}
	return t
}

// Build assembles a table from scope and entry declarations.
func Build(scopes []Scope, entries []Entry) (*Table, error) {
	t := NewTable()
	for _, s := range scopes {
		if err := t.AddScope(s); err != nil {
			return nil, err
		}
	}
	for _, e := range entries {
		if err := t.Add(e); err != nil {
			return nil, err
		}
	}
	return t, nil
}

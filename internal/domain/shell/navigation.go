// Package shell describes the dashboard layout's role-scoped navigation.
package shell

import "github.com/decorhub/storefront/internal/domain/auth"

// NavItem is one navigation affordance in the dashboard sidebar.
type NavItem struct {
	Key   string
	Label string
	Path  string
}

var (
	userNav = []NavItem{
		{Key: "profile", Label: "Profile", Path: "/dashboard/profile"},
		{Key: "bookings", Label: "My Bookings", Path: "/dashboard/bookings"},
		{Key: "payment-history", Label: "Payment History", Path: "/dashboard/payments"},
	}
	decoratorNav = []NavItem{
		{Key: "assigned-projects", Label: "Assigned Projects", Path: "/dashboard/decorator/projects"},
		{Key: "status-updates", Label: "Project Status", Path: "/dashboard/decorator/status"},
		{Key: "earnings", Label: "Earnings", Path: "/dashboard/decorator/earnings"},
	}
	adminNav = []NavItem{
		{Key: "manage-services", Label: "Manage Services", Path: "/dashboard/admin/services"},
		{Key: "manage-users", Label: "Manage Users", Path: "/dashboard/admin/users"},
		{Key: "manage-bookings", Label: "Manage Bookings", Path: "/dashboard/admin/bookings"},
		{Key: "analytics", Label: "Analytics", Path: "/dashboard/admin/analytics"},
	}
)

// Navigation returns the navigation entries visible to role.
// Entries belonging to other roles are absent. An unresolved role sees nothing.
func Navigation(role auth.Role) []NavItem {
	var src []NavItem
	switch role {
	case auth.RoleUser:
		src = userNav
	case auth.RoleDecorator:
		src = decoratorNav
	case auth.RoleAdmin:
		src = adminNav
	default:
		return nil
	}
	out := make([]NavItem, len(src))
	copy(out, src)
	return out
}

// Active marks which navigation entry matches the current path.
func Active(items []NavItem, path string) string {
	for _, it := range items {
		if it.Path == path {
			return it.Key
		}
	}
	return ""
}

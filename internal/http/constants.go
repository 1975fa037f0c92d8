package httpx

import (
	"github.com/decorhub/storefront/internal/domain/route"
)

// Template paths used for loading templates in tests and production.
const (
	TemplatePathFromRoot = "frontend/templates"       // From project root
	TemplatePathFromTest = "../../frontend/templates" // From internal/http test files
	StaticPathFromRoot   = "frontend/static"
)

const (
	// pendingRetrySeconds is the Retry-After hint and polling interval for pending views.
	pendingRetrySeconds = 1

	// maxJSONBody bounds JSON request bodies.
	maxJSONBody = 64 << 10
)

// Terminal views rendered in place of the requested one.
const (
	ViewPending   = "pending"
	ViewForbidden = "forbidden"
	ViewError     = "error"
	ViewSignedOut = "signed-out"
)

// viewTitles maps view names to page titles.
//
//nolint:gochecknoglobals // static read-only lookup
var viewTitles = map[string]string{
	route.ViewHome:          "Home",
	route.ViewAbout:         "About Us",
	route.ViewContact:       "Contact",
	route.ViewServices:      "Decoration Services",
	route.ViewServiceDetail: "Service Details",
	route.ViewCoverage:      "Service Coverage",

	route.ViewLogin:    "Sign In",
	route.ViewRegister: "Create Account",

	route.ViewDashboardHome:  "Dashboard",
	route.ViewProfile:        "My Profile",
	route.ViewBookings:       "My Bookings",
	route.ViewPaymentHistory: "Payment History",

	route.ViewDecoratorHome:    "Decorator Dashboard",
	route.ViewAssignedProjects: "Assigned Projects",
	route.ViewStatusUpdates:    "Project Status",
	route.ViewEarnings:         "Earnings",

	route.ViewAdminHome:      "Admin Dashboard",
	route.ViewManageServices: "Manage Services",
	route.ViewServiceCreate:  "New Service",
	route.ViewServiceEdit:    "Edit Service",
	route.ViewManageUsers:    "Manage Users",
	route.ViewManageBookings: "Manage Bookings",
	route.ViewAnalytics:      "Analytics",

	route.NotFoundView: "Page Not Found",
	ViewPending:        "Loading",
	ViewForbidden:      "Access Denied",
	ViewError:          "Something Went Wrong",
	ViewSignedOut:      "Signed Out",
}

// TitleFor returns the page title for a view.
func TitleFor(view string) string {
	if t, ok := viewTitles[view]; ok {
		return t
	}
	return "DecorHub"
}

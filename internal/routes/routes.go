// ABOUTME: Route path constants for the console
// ABOUTME: Every navigation target and route class prefix is defined here

package routes

// Public routes render for every session state.
const (
	Login      = "/login"
	PublicChat = "/public-chat"
	Widget     = "/widget"
)

// Landing routes per role.
const (
	AdminHome = "/"
	UserHome  = "/user/dashboard"
)

// Admin console sections.
const (
	Admin        = "/admin"
	Incidents    = "/incidents"
	Agents       = "/agents"
	Workflows    = "/workflows"
	Integrations = "/integrations"
	Logs         = "/logs"
	Settings     = "/settings"
)

// UserPrefix prefixes every end-user route.
const UserPrefix = "/user"

// RedirectParam is the login query parameter carrying the original destination.
const RedirectParam = "redirect"

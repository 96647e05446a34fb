// ABOUTME: Pure route-admission decision for the console
// ABOUTME: Maps session state, path and page role requirements to allow, pending or redirect

package guard

import (
	"net/url"
	"slices"

	"github.com/2389/coven-console/internal/routes"
	"github.com/2389/coven-console/internal/session"
)

// Kind is the outcome of a guard evaluation.
type Kind int

const (
	Pending Kind = iota
	Allow
	RedirectToLogin
	RedirectToDefaultForRole
)

func (k Kind) String() string {
	switch k {
	case Pending:
		return "pending"
	case Allow:
		return "allow"
	case RedirectToLogin:
		return "redirect-to-login"
	case RedirectToDefaultForRole:
		return "redirect-to-default"
	default:
		return "unknown"
	}
}

// Decision is a guard outcome. ReturnPath is set for RedirectToLogin and Role
// for RedirectToDefaultForRole.
type Decision struct {
	Kind       Kind
	ReturnPath string
	Role       session.Role
}

// Redirect reports whether the decision requires a navigation.
func (d Decision) Redirect() bool {
	return d.Kind == RedirectToLogin || d.Kind == RedirectToDefaultForRole
}

// Target renders the navigation target, or "" when nothing should happen.
func (d Decision) Target() string {
	switch d.Kind {
	case RedirectToLogin:
		return LoginURL(d.ReturnPath)
	case RedirectToDefaultForRole:
		return DefaultRoute(d.Role)
	default:
		return ""
	}
}

func (d Decision) String() string {
	if t := d.Target(); t != "" {
		return d.Kind.String() + " " + t
	}
	return d.Kind.String()
}

// LoginURL builds the login route carrying the original destination.
func LoginURL(returnPath string) string {
	return routes.Login + "?" + routes.RedirectParam + "=" + url.QueryEscape(returnPath)
}

// DefaultRoute returns the landing route for a role.
func DefaultRoute(role session.Role) string {
	switch role {
	case session.RoleAdmin:
		return routes.AdminHome
	case session.RoleUser:
		return routes.UserHome
	default:
		return routes.Login
	}
}

// Decide evaluates the admission table for path, which may include a query
// string. allowedRoles are the calling page's explicit requirements; none
// means any authenticated role will do, subject to the route-class policy.
func Decide(s session.Session, path string, allowedRoles ...session.Role) Decision {
	if s.IsLoading() {
		return Decision{Kind: Pending}
	}

	class := Classify(path)
	if class == Public {
		return Decision{Kind: Allow}
	}

	user, ok := s.User()
	if !ok {
		return Decision{Kind: RedirectToLogin, ReturnPath: path}
	}

	if len(allowedRoles) > 0 {
		if !slices.Contains(allowedRoles, user.Role) {
			return Decision{Kind: RedirectToDefaultForRole, Role: user.Role}
		}
		return Decision{Kind: Allow}
	}

	return classPolicy(user.Role, class, path)
}

// classPolicy is the coarse layout-level policy. Every known role is handled
// explicitly; Shared routes are open to any role.
func classPolicy(role session.Role, class RouteClass, path string) Decision {
	if class == Shared {
		return Decision{Kind: Allow}
	}

	switch role {
	case session.RoleAdmin:
		if class == UserOnly {
			return Decision{Kind: RedirectToDefaultForRole, Role: role}
		}
		return Decision{Kind: Allow}
	case session.RoleUser:
		if class == AdminOnly {
			return Decision{Kind: RedirectToDefaultForRole, Role: role}
		}
		return Decision{Kind: Allow}
	default:
		return Decision{Kind: RedirectToLogin, ReturnPath: path}
	}
}

// Permits reports whether role may stay on path under the route-class policy.
// Public routes are always permitted.
func Permits(role session.Role, path string) bool {
	class := Classify(path)
	if class == Public {
		return true
	}
	return classPolicy(role, class, path).Kind == Allow
}

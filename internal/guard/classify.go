// ABOUTME: Static classification of console paths into route classes
// ABOUTME: Prefix matching is segment-wise; query and fragment are ignored

package guard

import (
	"strings"

	"github.com/2389/coven-console/internal/routes"
)

// RouteClass is the access class of a console path.
type RouteClass int

const (
	Shared RouteClass = iota
	Public
	AdminOnly
	UserOnly
)

func (c RouteClass) String() string {
	switch c {
	case Public:
		return "public"
	case AdminOnly:
		return "admin-only"
	case UserOnly:
		return "user-only"
	default:
		return "shared"
	}
}

var publicPrefixes = []string{
	routes.Login,
	routes.PublicChat,
	routes.Widget,
}

var adminPrefixes = []string{
	routes.Admin,
	routes.Incidents,
	routes.Agents,
	routes.Workflows,
	routes.Integrations,
	routes.Logs,
	routes.Settings,
}

// Classify returns the route class of path. path may carry a query string.
func Classify(path string) RouteClass {
	p := pathOnly(path)

	if p == routes.AdminHome {
		return AdminOnly
	}
	for _, prefix := range publicPrefixes {
		if hasSegmentPrefix(p, prefix) {
			return Public
		}
	}
	for _, prefix := range adminPrefixes {
		if hasSegmentPrefix(p, prefix) {
			return AdminOnly
		}
	}
	if hasSegmentPrefix(p, routes.UserPrefix) {
		return UserOnly
	}
	return Shared
}

// pathOnly strips query and fragment and normalizes an empty path to "/".
func pathOnly(path string) string {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}
	if path == "" {
		return "/"
	}
	return path
}

// hasSegmentPrefix reports whether p equals prefix or continues it with a
// new path segment. "/agents/7" matches "/agents"; "/agentsx" does not.
func hasSegmentPrefix(p, prefix string) bool {
	if !strings.HasPrefix(p, prefix) {
		return false
	}
	rest := p[len(prefix):]
	return rest == "" || rest[0] == '/'
}

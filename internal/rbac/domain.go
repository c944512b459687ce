package rbac

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/natours/natours/internal/users"
)

// Access is the authentication requirement of a route.
type Access uint8

const (
	// Public routes skip the authentication chain.
	Public Access = iota
	// Authenticated routes admit any active subject with a fresh token.
	Authenticated
	// Restricted routes additionally require one of the listed roles.
	Restricted
)

func (a Access) String() string {
	switch a {
	case Public:
		return "public"
	case Authenticated:
		return "authenticated"
	case Restricted:
		return "restricted"
	}
	return fmt.Sprintf("access(%d)", uint8(a))
}

// Route declares one endpoint and who may call it.
type Route struct {
	Method  string
	Pattern string
	Access  Access
	Roles   []users.Role
	Handler http.Handler
}

// Open declares a public route.
func Open(method, pattern string, h http.HandlerFunc) Route {
	return Route{Method: method, Pattern: pattern, Access: Public, Handler: h}
}

// Auth declares a route open to any authenticated subject.
func Auth(method, pattern string, h http.HandlerFunc) Route {
	return Route{Method: method, Pattern: pattern, Access: Authenticated, Handler: h}
}

// Roles declares a route restricted to the given roles.
func Roles(method, pattern string, h http.HandlerFunc, roles ...users.Role) Route {
	return Route{Method: method, Pattern: pattern, Access: Restricted, Roles: roles, Handler: h}
}

// Table is an ordered set of routes.
type Table []Route

// Validate reports duplicate endpoints, unknown roles and restricted routes
// without any role.
func (t Table) Validate() error {
	seen := make(map[string]struct{}, len(t))
	for _, route := range t {
		key := strings.ToUpper(route.Method) + " " + route.Pattern
		if _, dup := seen[key]; dup {
			return fmt.Errorf("rbac: duplicate route %s", key)
		}
		seen[key] = struct{}{}
		if route.Handler == nil {
			return fmt.Errorf("rbac: route %s has no handler", key)
		}
		switch route.Access {
		case Public, Authenticated:
			if len(route.Roles) > 0 {
				return fmt.Errorf("rbac: route %s lists roles but is %s", key, route.Access)
			}
		case Restricted:
			if len(normalizeRoles(route.Roles)) == 0 {
				return fmt.Errorf("rbac: restricted route %s lists no roles", key)
			}
		default:
			return fmt.Errorf("rbac: route %s has unknown access %s", key, route.Access)
		}
		for _, role := range route.Roles {
			if !role.Valid() {
				return fmt.Errorf("rbac: route %s lists unknown role %q", key, role)
			}
		}
	}
	return nil
}

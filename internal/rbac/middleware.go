package rbac

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/natours/natours/internal/shared"
	"github.com/natours/natours/internal/users"
)

// Guard is the authentication chain the route table delegates to.
type Guard interface {
	Protect(next http.Handler) http.Handler
	Reject(w http.ResponseWriter, r *http.Request, err error)
}

// Middleware wires role checks and the route table onto a router.
type Middleware struct {
	Guard  Guard
	Logger *slog.Logger
}

// RequireAny admits subjects holding at least one of roles. It expects the
// subject to be attached by Guard.Protect.
func (m Middleware) RequireAny(roles ...users.Role) func(http.Handler) http.Handler {
	allowed := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(allowed) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			user := users.FromContext(r.Context())
			if user == nil {
				m.Guard.Reject(w, r, shared.Authentication(shared.ReasonNoToken, "You are not logged in! Please log in to get access."))
				return
			}
			if _, ok := allowed[normalizeRole(user.Role)]; ok {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Debug("rbac forbidden", slog.String("user_id", user.ID.String()), slog.String("role", string(user.Role)), slog.String("path", r.URL.Path))
			}
			m.Guard.Reject(w, r, shared.Authorization(shared.ReasonForbidden, "You do not have permission to perform this action"))
		})
	}
}

// Mount validates table and registers every route on r with the chain its
// access level requires.
func (m Middleware) Mount(r chi.Router, table Table) error {
	if err := table.Validate(); err != nil {
		return err
	}
	for _, route := range table {
		var chain []func(http.Handler) http.Handler
		switch route.Access {
		case Authenticated:
			chain = append(chain, m.Guard.Protect)
		case Restricted:
			chain = append(chain, m.Guard.Protect, m.RequireAny(route.Roles...))
		}
		r.With(chain...).Method(strings.ToUpper(route.Method), route.Pattern, route.Handler)
	}
	return nil
}

func normalizeRoles(roles []users.Role) map[users.Role]struct{} {
	unique := make(map[users.Role]struct{}, len(roles))
	for _, role := range roles {
		role = normalizeRole(role)
		if role == "" {
			continue
		}
		unique[role] = struct{}{}
	}
	return unique
}

func normalizeRole(role users.Role) users.Role {
	return users.Role(strings.TrimSpace(strings.ToLower(string(role))))
}

// Package authz decides whether a caller may reach a route. Routes declare
// their allowed roles in a Policy table; the decision itself is a pure function.
package authz

import (
	"net/http"
	"sort"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// Rule is the declaration attached to one route.
type Rule struct {
	// Public routes skip authentication entirely.
	Public bool
	// AllowUnverified admits access tokens that have not completed the second factor.
	AllowUnverified bool
	// Roles restricts the route to these roles. Empty means any authenticated caller.
	Roles []domain.Role
}

// Route identifies a declared endpoint.
type Route struct {
	Method string
	Path   string
}

// Policy is the route → rule table.
type Policy struct {
	rules map[Route]Rule
}

func NewPolicy() *Policy {
	return &Policy{rules: make(map[Route]Rule)}
}

// Declare records rule for method and path, replacing any earlier declaration.
func (p *Policy) Declare(method, path string, rule Rule) {
	p.rules[Route{Method: method, Path: path}] = rule
}

// Rule returns the declaration for method and path.
func (p *Policy) Rule(method, path string) (Rule, bool) {
	rule, ok := p.rules[Route{Method: method, Path: path}]
	return rule, ok
}

// Routes lists declared routes in a stable order.
func (p *Policy) Routes() []Route {
	routes := make([]Route, 0, len(p.rules))
	for route := range p.rules {
		routes = append(routes, route)
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	return routes
}

// Allowed reports whether caller may use a route declaring roles. A nil caller
// is unauthenticated.
func Allowed(declared []domain.Role, caller *domain.Role) bool {
	if len(declared) == 0 {
		return true
	}
	if caller == nil {
		return false
	}
	for _, role := range declared {
		if role == *caller {
			return true
		}
	}
	return false
}

// Decision is the outcome of Check.
type Decision int

const (
	Allow Decision = iota
	DenyUnauthenticated
	DenyUnverified
	DenyRole
)

// Status maps a denial onto its HTTP status.
func (d Decision) Status() int {
	switch d {
	case Allow:
		return http.StatusOK
	case DenyUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusForbidden
	}
}

// Check applies rule to principal. A nil principal is unauthenticated.
func Check(rule Rule, principal *domain.Principal) Decision {
	if rule.Public {
		return Allow
	}
	if principal == nil {
		return DenyUnauthenticated
	}
	if !rule.AllowUnverified && !principal.TwoFactorVerified {
		return DenyUnverified
	}
	role := principal.Role
	if !Allowed(rule.Roles, &role) {
		return DenyRole
	}
	return Allow
}

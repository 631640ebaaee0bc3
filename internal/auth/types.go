// internal/auth/types.go
package auth

import (
	"net/http"

	"golang.org/x/exp/slices"
)

// Role tags carried on an identity.
const (
	RoleBasic      = "basic"
	RoleAdmin      = "admin"
	RoleSuperadmin = "superadmin"
)

// Identity is the verified subject of a request. It is built fresh per
// request from a verified token claim plus the user store record, and is
// never persisted or mutated.
type Identity struct {
	// ID is the opaque user identifier
	ID string

	// Name is the user's display name
	Name string

	// Roles is the set of role tags attached to the user record
	Roles []string
}

// HasRole reports whether the identity carries the given role tag
func (i *Identity) HasRole(role string) bool {
	return i != nil && slices.Contains(i.Roles, role)
}

// State is the authentication state attached to an in-flight request.
// Invariant: Authenticated is true iff Identity is present and structurally
// complete; every failure path leaves an anonymous state with a diagnostic
// Reason, never a partial identity.
type State struct {
	// Authenticated indicates whether a complete identity was resolved
	Authenticated bool

	// Identity is the resolved identity, nil when anonymous
	Identity *Identity

	// Reason is a diagnostic string explaining why the request is
	// anonymous. Empty on authenticated requests.
	Reason string
}

// Anonymous returns an unauthenticated state with the given reason
func Anonymous(reason string) State {
	return State{Authenticated: false, Reason: reason}
}

// Authenticator resolves a request credential into an authentication state
type Authenticator interface {
	// Name returns the name of this authenticator
	Name() string

	// Middleware returns an http.Handler middleware that decorates the
	// request context with a State and always calls next.
	Middleware(next http.Handler) http.Handler
}

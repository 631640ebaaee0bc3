// Package policy provides the predicate and outcome handler primitives that
// route rules are composed from: constants, role checks, self-or-admin, and
// the ownership and subscription checks that reach into entity storage.
package policy

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"vexserver/internal/authz"
	"vexserver/internal/contextutil"
	"vexserver/internal/store"
)

// OwnershipReader is the narrow read-only capability the ownership and
// subscription predicates need from an entity store: who created the entity
// and who is subscribed to it. Implementations return store.ErrNotFound for
// a missing entity.
type OwnershipReader interface {
	Ownership(ctx context.Context, id string) (owner string, members []string, err error)
}

// Anyone is the constant-true predicate used on public routes
func Anyone(ctx context.Context, r *http.Request) (bool, error) {
	return true, nil
}

// IsAuthenticated requires a resolved identity on the request. The
// authorizer dispatches anonymous requests before conditions run, so in the
// normal pipeline this is always true when evaluated.
func IsAuthenticated(ctx context.Context, r *http.Request) (bool, error) {
	return contextutil.GetAuthState(ctx).Authenticated, nil
}

// HasRole returns a predicate requiring the given role tag on the caller
func HasRole(role string) authz.Predicate {
	return func(ctx context.Context, r *http.Request) (bool, error) {
		return contextutil.GetIdentity(ctx).HasRole(role), nil
	}
}

// SelfOrAdmin returns a predicate that passes when the path segment
// following marker equals the caller's own ID, or when the caller carries
// the admin role.
func SelfOrAdmin(marker, adminRole string) authz.Predicate {
	return func(ctx context.Context, r *http.Request) (bool, error) {
		identity := contextutil.GetIdentity(ctx)
		if identity == nil {
			return false, nil
		}
		if identity.HasRole(adminRole) {
			return true, nil
		}
		return PathID(r, marker) == identity.ID, nil
	}
}

// IsCreator returns a predicate that fetches the entity named by the path
// segment following marker and compares its creator against the caller.
// A missing entity is condition-false, not an error.
func IsCreator(entities OwnershipReader, marker string) authz.Predicate {
	return func(ctx context.Context, r *http.Request) (bool, error) {
		identity := contextutil.GetIdentity(ctx)
		if identity == nil {
			return false, nil
		}

		id := PathID(r, marker)
		if id == "" {
			return false, nil
		}

		owner, _, err := entities.Ownership(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		return owner == identity.ID, nil
	}
}

// IsSubscriber returns a predicate that fetches the entity named by the
// path segment following marker and checks the caller against its
// subscriber list. A missing entity is condition-false, not an error.
func IsSubscriber(entities OwnershipReader, marker string) authz.Predicate {
	return func(ctx context.Context, r *http.Request) (bool, error) {
		identity := contextutil.GetIdentity(ctx)
		if identity == nil {
			return false, nil
		}

		id := PathID(r, marker)
		if id == "" {
			return false, nil
		}

		_, members, err := entities.Ownership(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		for _, member := range members {
			if member == identity.ID {
				return true, nil
			}
		}
		return false, nil
	}
}

// PathID returns the path segment immediately following the given marker
// segment, or "" when the marker is absent or terminal. For
// /vex/vertex/abc123/react, PathID(r, "vertex") is "abc123".
func PathID(r *http.Request, marker string) string {
	segments := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	for i, segment := range segments {
		if segment == marker && i+1 < len(segments) {
			return segments[i+1]
		}
	}
	return ""
}

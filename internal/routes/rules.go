// internal/routes/rules.go
package routes

import (
	"net/http"

	"vexserver/internal/auth"
	"vexserver/internal/authz"
	"vexserver/internal/authz/policy"
	"vexserver/internal/store"
)

// entityID is the pattern for stored entity identifiers (UUIDs and legacy
// alphanumeric IDs).
const entityID = "[A-Za-z0-9-]+"

// Rules builds the ordered rule table covering the vex route surface.
// Order is significant: the first matching rule wins, so the static asset
// rule must precede the vertex rules it would otherwise shadow, and the
// literal user sub-paths must precede the user-by-ID rule.
func Rules(stores store.Stores) []authz.Rule {
	return []authz.Rule{
		// Static assets under the vertex tree are public.
		{
			Name:              "vertex-static",
			Method:            authz.MethodAny,
			Path:              "/vex/vertex/static/.*",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},

		// Account registration and login are open to anonymous visitors.
		{
			Name:              "user-register",
			Method:            http.MethodPost,
			Path:              "/vex/user",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},
		{
			Name:              "user-login",
			Method:            http.MethodPost,
			Path:              "/vex/user/login",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},
		{
			Name:              "user-logout",
			Method:            http.MethodPost,
			Path:              "/vex/user/logout",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},
		{
			Name:              "user-list",
			Method:            http.MethodGet,
			Path:              "/vex/user/all",
			Condition:         policy.HasRole(auth.RoleAdmin),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "user-get",
			Method:            http.MethodGet,
			Path:              "/vex/user/" + entityID,
			Condition:         policy.SelfOrAdmin("user", auth.RoleAdmin),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},

		// Vertex reads are public; mutations require the caller to be
		// authenticated, and destructive ones require ownership.
		{
			Name:              "vertex-read",
			Method:            http.MethodGet,
			Path:              "/vex/vertex(/" + entityID + ")?",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},
		{
			Name:              "vertex-create",
			Method:            http.MethodPost,
			Path:              "/vex/vertex",
			Condition:         policy.IsAuthenticated,
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "vertex-react",
			Method:            http.MethodPost,
			Path:              "/vex/vertex/" + entityID + "/react",
			Condition:         policy.IsAuthenticated,
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "vertex-subscribe",
			Method:            http.MethodPost,
			Path:              "/vex/vertex/" + entityID + "/subscribe",
			Condition:         policy.IsAuthenticated,
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "vertex-unsubscribe",
			Method:            http.MethodPost,
			Path:              "/vex/vertex/" + entityID + "/unsubscribe",
			Condition:         policy.IsSubscriber(stores.Vertices, "vertex"),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "vertex-update",
			Method:            http.MethodPut,
			Path:              "/vex/vertex/" + entityID,
			Condition:         policy.IsCreator(stores.Vertices, "vertex"),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "vertex-delete",
			Method:            http.MethodDelete,
			Path:              "/vex/vertex/" + entityID,
			Condition:         policy.IsCreator(stores.Vertices, "vertex"),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},

		// Reaction listings are public.
		{
			Name:              "reactions-read",
			Method:            http.MethodGet,
			Path:              "/vex/reactions/.*",
			Condition:         policy.Anyone,
			OnForbidden:       policy.Pass,
			OnUnauthenticated: policy.Pass,
		},

		// Groups: creation requires authentication, reads require
		// membership.
		{
			Name:              "group-create",
			Method:            http.MethodPost,
			Path:              "/vex/group",
			Condition:         policy.IsAuthenticated,
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
		{
			Name:              "group-get",
			Method:            http.MethodGet,
			Path:              "/vex/group/" + entityID,
			Condition:         policy.IsSubscriber(stores.Groups, "group"),
			OnForbidden:       policy.Send403,
			OnUnauthenticated: policy.Send401,
		},
	}
}

// Table compiles the vex rule table, failing fast on misconfiguration
func Table(stores store.Stores) (*authz.Table, error) {
	return authz.NewTable(Rules(stores))
}

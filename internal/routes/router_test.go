package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"vexserver/internal/auth"
	"vexserver/internal/auth/token"
	"vexserver/internal/authz"
	"vexserver/internal/httputils"
	"vexserver/internal/observability/logging"
	"vexserver/internal/observability/metrics"
	"vexserver/internal/store"
	"vexserver/internal/store/memory"
)

// testServer wires the full request pipeline the way the server factory
// does, minus the listeners: authentication, then authorization over the
// production rule table, then the business router.
type testServer struct {
	handler http.Handler
	stores  store.Stores
	tokens  *token.Authenticator
}

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	logger, err := logging.NewLogger("error")
	require.NoError(t, err)
	collector := metrics.NewCollector()

	stores := memory.NewStores()

	tokens, err := token.New(token.Config{Secret: "integration-secret"}, stores.Users, logger, collector)
	require.NoError(t, err)

	table, err := Table(stores)
	require.NoError(t, err)

	router := New(cfg, stores, tokens, logger, collector)
	authorizer := authz.New(table, logger, collector)

	return &testServer{
		handler: tokens.Middleware(authorizer.Middleware(router)),
		stores:  stores,
		tokens:  tokens,
	}
}

// seedUser inserts an account directly into the store and returns its
// session cookie
func (ts *testServer) seedUser(t *testing.T, id, name string, roles ...string) *http.Cookie {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, ts.stores.Users.Create(context.Background(), &store.User{
		ID:           id,
		Name:         name,
		Roles:        roles,
		PasswordHash: string(hash),
	}))

	tokenStr, err := ts.tokens.Issue(id)
	require.NoError(t, err)
	return &http.Cookie{Name: ts.tokens.CookieName(), Value: tokenStr}
}

func (ts *testServer) seedVertex(t *testing.T, v *store.Vertex) {
	t.Helper()
	require.NoError(t, ts.stores.Vertices.Create(context.Background(), v))
}

// do runs one request through the full pipeline
func (ts *testServer) do(method, path string, body any, cookie *http.Cookie) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	r := httptest.NewRequest(method, path, reader)
	if cookie != nil {
		r.AddCookie(cookie)
	}

	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, r)
	return rec
}

func envelope(t *testing.T, rec *httptest.ResponseRecorder) httputils.Envelope {
	t.Helper()
	var env httputils.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return env
}

func TestUnknownPathIsDeniedByDefault(t *testing.T) {
	ts := newTestServer(t, Config{})
	admin := ts.seedUser(t, "a1", "admin", auth.RoleBasic, auth.RoleAdmin)

	for name, cookie := range map[string]*http.Cookie{
		"anonymous":     nil,
		"authenticated": admin,
	} {
		t.Run(name, func(t *testing.T) {
			rec := ts.do(http.MethodGet, "/vex/nothing/here", nil, cookie)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			env := envelope(t, rec)
			assert.False(t, env.Success)
			assert.Equal(t, "Unauthorized by default", env.Message)
		})
	}
}

func TestStaticAssetsArePublic(t *testing.T) {
	staticDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(staticDir, "app.js"), []byte("console.log(1)"), 0o644))

	ts := newTestServer(t, Config{StaticDir: staticDir})

	rec := ts.do(http.MethodGet, "/vex/vertex/static/app.js", nil, nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "console.log(1)", rec.Body.String())
}

func TestUserListRequiresAdminRole(t *testing.T) {
	ts := newTestServer(t, Config{})
	basic := ts.seedUser(t, "u1", "ann", auth.RoleBasic)
	admin := ts.seedUser(t, "a1", "root", auth.RoleBasic, auth.RoleAdmin)

	t.Run("anonymous gets 401", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/all", nil, nil)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, "Not logged in", envelope(t, rec).Message)
	})

	t.Run("basic user gets 403", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/all", nil, basic)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", envelope(t, rec).Message)
	})

	t.Run("admin gets the listing", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/all", nil, admin)

		assert.Equal(t, http.StatusOK, rec.Code)
		env := envelope(t, rec)
		assert.True(t, env.Success)
		assert.NotNil(t, env.Data)
	})
}

func TestUserGetIsSelfOrAdmin(t *testing.T) {
	ts := newTestServer(t, Config{})
	ann := ts.seedUser(t, "u1", "ann", auth.RoleBasic)
	bob := ts.seedUser(t, "u2", "bob", auth.RoleBasic)
	admin := ts.seedUser(t, "a1", "root", auth.RoleBasic, auth.RoleAdmin)

	t.Run("self", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/u1", nil, ann)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("other user", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/u1", nil, bob)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("admin", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/user/u1", nil, admin)
		assert.Equal(t, http.StatusOK, rec.Code)
	})
}

// countingVertices records how often the authorization predicates consult
// the store
type countingVertices struct {
	store.VertexStore
	ownershipCalls int
}

func (c *countingVertices) Ownership(ctx context.Context, id string) (string, []string, error) {
	c.ownershipCalls++
	return c.VertexStore.Ownership(ctx, id)
}

func TestAnonymousMutationSkipsConditionAndStore(t *testing.T) {
	ts := newTestServer(t, Config{})

	// Swap in a counting store and rebuild the table over it. The rule
	// table captures its stores at construction.
	counting := &countingVertices{VertexStore: ts.stores.Vertices}
	ts.stores.Vertices = counting

	logger, err := logging.NewLogger("error")
	require.NoError(t, err)
	collector := metrics.NewCollector()
	table, err := Table(ts.stores)
	require.NoError(t, err)
	router := New(Config{}, ts.stores, ts.tokens, logger, collector)
	ts.handler = ts.tokens.Middleware(authz.New(table, logger, collector).Middleware(router))

	ts.seedVertex(t, &store.Vertex{ID: "v1", Creator: "u1", Title: "root", Subscribers: []string{"u1"}})

	rec := ts.do(http.MethodPut, "/vex/vertex/v1", map[string]string{"title": "x", "body": "y"}, nil)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not logged in", envelope(t, rec).Message)
	assert.Zero(t, counting.ownershipCalls, "condition must not run for unauthenticated requests")
}

func TestVertexLifecycle(t *testing.T) {
	ts := newTestServer(t, Config{})
	ann := ts.seedUser(t, "u1", "ann", auth.RoleBasic)
	bob := ts.seedUser(t, "u2", "bob", auth.RoleBasic)

	t.Run("anonymous create is rejected", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/vertex", map[string]string{"title": "t"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var vertexID string
	t.Run("authenticated create succeeds", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/vertex", map[string]string{"title": "hello", "body": "world"}, ann)

		require.Equal(t, http.StatusCreated, rec.Code)
		env := envelope(t, rec)
		data, ok := env.Data.(map[string]any)
		require.True(t, ok)
		vertexID, _ = data["id"].(string)
		require.NotEmpty(t, vertexID)
		assert.Equal(t, "u1", data["creator"])
	})

	t.Run("reads are public", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/vertex/"+vertexID, nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-creator cannot update", func(t *testing.T) {
		rec := ts.do(http.MethodPut, "/vex/vertex/"+vertexID, map[string]string{"title": "x"}, bob)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", envelope(t, rec).Message)
	})

	t.Run("creator updates", func(t *testing.T) {
		rec := ts.do(http.MethodPut, "/vex/vertex/"+vertexID, map[string]string{"title": "edited", "body": "world"}, ann)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-creator cannot delete", func(t *testing.T) {
		rec := ts.do(http.MethodDelete, "/vex/vertex/"+vertexID, nil, bob)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("creator deletes", func(t *testing.T) {
		rec := ts.do(http.MethodDelete, "/vex/vertex/"+vertexID, nil, ann)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("missing vertex update falls to forbidden", func(t *testing.T) {
		// The ownership predicate treats an absent entity as a false
		// condition, so the creator of the deleted vertex gets 403, not 404.
		rec := ts.do(http.MethodPut, "/vex/vertex/"+vertexID, map[string]string{"title": "x"}, ann)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}

func TestUnsubscribeRequiresSubscription(t *testing.T) {
	ts := newTestServer(t, Config{})
	ann := ts.seedUser(t, "u1", "ann", auth.RoleBasic)
	bob := ts.seedUser(t, "u2", "bob", auth.RoleBasic)

	ts.seedVertex(t, &store.Vertex{ID: "v1", Creator: "u1", Title: "root", Subscribers: []string{"u1"}})

	t.Run("non-subscriber is forbidden", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/vertex/v1/unsubscribe", nil, bob)

		assert.Equal(t, http.StatusForbidden, rec.Code)
		assert.Equal(t, "Forbidden", envelope(t, rec).Message)
	})

	t.Run("subscriber unsubscribes", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/vertex/v1/unsubscribe", nil, ann)

		assert.Equal(t, http.StatusOK, rec.Code)
		_, members, err := ts.stores.Vertices.Ownership(context.Background(), "v1")
		require.NoError(t, err)
		assert.NotContains(t, members, "u1")
	})
}

func TestSubscribeAndReact(t *testing.T) {
	ts := newTestServer(t, Config{})
	bob := ts.seedUser(t, "u2", "bob", auth.RoleBasic)

	ts.seedVertex(t, &store.Vertex{ID: "v1", Creator: "u1", Title: "root", Subscribers: []string{"u1"}})

	rec := ts.do(http.MethodPost, "/vex/vertex/v1/subscribe", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)

	_, members, err := ts.stores.Vertices.Ownership(context.Background(), "v1")
	require.NoError(t, err)
	assert.Contains(t, members, "u2")

	rec = ts.do(http.MethodPost, "/vex/vertex/v1/react", map[string]string{"kind": "up"}, bob)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = ts.do(http.MethodGet, "/vex/reactions/v1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	env := envelope(t, rec)
	reactions, ok := env.Data.([]any)
	require.True(t, ok)
	assert.Len(t, reactions, 1)
}

func TestRegisterLoginFlow(t *testing.T) {
	ts := newTestServer(t, Config{})

	rec := ts.do(http.MethodPost, "/vex/user", map[string]string{"name": "carol", "password": "s3cret"}, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	t.Run("duplicate name conflicts", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/user", map[string]string{"name": "carol", "password": "other"}, nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("wrong password is rejected", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/user/login", map[string]string{"name": "carol", "password": "nope"}, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	var session *http.Cookie
	t.Run("login sets the session cookie", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/user/login", map[string]string{"name": "carol", "password": "s3cret"}, nil)
		require.Equal(t, http.StatusOK, rec.Code)

		for _, c := range rec.Result().Cookies() {
			if c.Name == ts.tokens.CookieName() {
				session = c
			}
		}
		require.NotNil(t, session, "login must set the session cookie")
		assert.True(t, session.HttpOnly)
	})

	t.Run("the cookie authenticates later requests", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/vertex", map[string]string{"title": "first post"}, session)
		assert.Equal(t, http.StatusCreated, rec.Code)
	})

	t.Run("logout expires the cookie", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/user/logout", nil, session)
		require.Equal(t, http.StatusOK, rec.Code)

		for _, c := range rec.Result().Cookies() {
			if c.Name == ts.tokens.CookieName() {
				assert.Negative(t, c.MaxAge)
			}
		}
	})
}

func TestGroupAccess(t *testing.T) {
	ts := newTestServer(t, Config{})
	ann := ts.seedUser(t, "u1", "ann", auth.RoleBasic)
	bob := ts.seedUser(t, "u2", "bob", auth.RoleBasic)

	var groupID string
	t.Run("authenticated user creates a group", func(t *testing.T) {
		rec := ts.do(http.MethodPost, "/vex/group", map[string]string{"name": "gardeners"}, ann)

		require.Equal(t, http.StatusCreated, rec.Code)
		data, ok := envelope(t, rec).Data.(map[string]any)
		require.True(t, ok)
		groupID, _ = data["id"].(string)
		require.NotEmpty(t, groupID)
	})

	t.Run("member reads the group", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/group/"+groupID, nil, ann)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("non-member is forbidden", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/group/"+groupID, nil, bob)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("anonymous is unauthenticated", func(t *testing.T) {
		rec := ts.do(http.MethodGet, "/vex/group/"+groupID, nil, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestForgedCookieDegradesToAnonymous(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.seedUser(t, "u1", "ann", auth.RoleBasic)

	forged := &http.Cookie{Name: ts.tokens.CookieName(), Value: "forged.token.value"}
	rec := ts.do(http.MethodPost, "/vex/vertex", map[string]string{"title": "t"}, forged)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Not logged in", envelope(t, rec).Message)
}

func TestRuleTableCompiles(t *testing.T) {
	table, err := Table(memory.NewStores())

	require.NoError(t, err)
	assert.Positive(t, table.Len())
}

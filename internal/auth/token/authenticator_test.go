package token

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vexserver/internal/auth"
	"vexserver/internal/contextutil"
	"vexserver/internal/observability/logging"
	"vexserver/internal/observability/metrics"
	"vexserver/internal/store"
	"vexserver/internal/store/memory"
)

const testSecret = "test-secret"

func newTestAuthenticator(t *testing.T, users store.UserStore) *Authenticator {
	t.Helper()
	logger, err := logging.NewLogger("error")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	a, err := New(Config{Secret: testSecret}, users, logger, metrics.NewCollector())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func seedUser(t *testing.T, users *memory.Users, u *store.User) {
	t.Helper()
	if err := users.Create(context.Background(), u); err != nil {
		t.Fatalf("seeding user: %v", err)
	}
}

// resolveRequest runs the middleware and returns the state it attached
func resolveRequest(t *testing.T, a *Authenticator, mutate func(*http.Request)) auth.State {
	t.Helper()

	var state auth.State
	handler := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		state = contextutil.GetAuthState(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	r := httptest.NewRequest(http.MethodGet, "/vex/user/all", nil)
	if mutate != nil {
		mutate(r)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, r)

	// Authentication never blocks the pipeline.
	if rec.Code != http.StatusOK {
		t.Fatalf("middleware must always call next, got status %d", rec.Code)
	}
	return state
}

func withCookie(a *Authenticator, value string) func(*http.Request) {
	return func(r *http.Request) {
		r.AddCookie(&http.Cookie{Name: a.CookieName(), Value: value})
	}
}

func TestAuthenticator_NoCookie(t *testing.T) {
	a := newTestAuthenticator(t, memory.NewUsers())

	state := resolveRequest(t, a, nil)

	if state.Authenticated {
		t.Error("request without cookie must be anonymous")
	}
	if state.Identity != nil {
		t.Error("anonymous state must carry no identity")
	}
	if state.Reason != ReasonNoToken {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonNoToken)
	}
}

func TestAuthenticator_MalformedToken(t *testing.T) {
	a := newTestAuthenticator(t, memory.NewUsers())

	state := resolveRequest(t, a, withCookie(a, "not-a-jwt"))

	if state.Authenticated {
		t.Error("malformed token must resolve to anonymous")
	}
	if state.Reason != ReasonDecodingError {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonDecodingError)
	}
}

func TestAuthenticator_WrongSecret(t *testing.T) {
	a := newTestAuthenticator(t, memory.NewUsers())

	forged := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	tokenStr, err := forged.SignedString([]byte("other-secret"))
	if err != nil {
		t.Fatalf("signing forged token: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if state.Authenticated {
		t.Error("token signed with the wrong secret must resolve to anonymous")
	}
	if state.Reason != ReasonDecodingError {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonDecodingError)
	}
}

func TestAuthenticator_ExpiredToken(t *testing.T) {
	users := memory.NewUsers()
	seedUser(t, users, &store.User{ID: "u1", Name: "ann", Roles: []string{auth.RoleBasic}, PasswordHash: "x"})
	a := newTestAuthenticator(t, users)

	expired := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "u1",
		IssuedAt:  jwt.NewNumericDate(time.Now().Add(-2 * time.Hour)),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
	})
	tokenStr, err := expired.SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("signing expired token: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if state.Authenticated {
		t.Error("expired token must resolve to anonymous")
	}
	if state.Reason != ReasonDecodingError {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonDecodingError)
	}
}

func TestAuthenticator_UnknownUser(t *testing.T) {
	a := newTestAuthenticator(t, memory.NewUsers())

	tokenStr, err := a.Issue("ghost")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if state.Authenticated {
		t.Error("valid token for a missing user must resolve to anonymous")
	}
	if state.Reason != ReasonUserNotFound {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonUserNotFound)
	}
}

func TestAuthenticator_IncompleteUserRecord(t *testing.T) {
	users := memory.NewUsers()
	// A record with no roles: a partially migrated account must never be a
	// valid session.
	seedUser(t, users, &store.User{ID: "u1", Name: "ann", PasswordHash: "x"})
	a := newTestAuthenticator(t, users)

	tokenStr, err := a.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if state.Authenticated {
		t.Error("incomplete user record must resolve to anonymous")
	}
	if state.Identity != nil {
		t.Error("no partial identity may be attached")
	}
	if state.Reason != ReasonUserIncomplete {
		t.Errorf("reason = %q, want %q", state.Reason, ReasonUserIncomplete)
	}
}

func TestAuthenticator_ValidToken(t *testing.T) {
	users := memory.NewUsers()
	seedUser(t, users, &store.User{
		ID:           "u1",
		Name:         "ann",
		Roles:        []string{auth.RoleBasic, auth.RoleAdmin},
		PasswordHash: "x",
	})
	a := newTestAuthenticator(t, users)

	tokenStr, err := a.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if !state.Authenticated {
		t.Fatalf("valid token should authenticate, reason: %q", state.Reason)
	}
	if state.Reason != "" {
		t.Errorf("authenticated state must carry no reason, got %q", state.Reason)
	}
	if state.Identity == nil || state.Identity.ID != "u1" || state.Identity.Name != "ann" {
		t.Errorf("unexpected identity: %+v", state.Identity)
	}
	if !state.Identity.HasRole(auth.RoleAdmin) {
		t.Error("identity should carry the admin role")
	}
}

func TestAuthenticator_RolesMayBeEmptyButNotAbsent(t *testing.T) {
	users := memory.NewUsers()
	seedUser(t, users, &store.User{ID: "u1", Name: "ann", Roles: []string{}, PasswordHash: "x"})
	a := newTestAuthenticator(t, users)

	tokenStr, err := a.Issue("u1")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	state := resolveRequest(t, a, withCookie(a, tokenStr))

	if !state.Authenticated {
		t.Errorf("an empty role set is a complete record, reason: %q", state.Reason)
	}
}

func TestNew_RequiresSecret(t *testing.T) {
	logger, err := logging.NewLogger("error")
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	if _, err := New(Config{}, memory.NewUsers(), logger, metrics.NewCollector()); err == nil {
		t.Fatal("expected construction to fail without a secret")
	}
}

// internal/routes/users.go
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"vexserver/internal/auth"
	"vexserver/internal/httputils"
	"vexserver/internal/observability/logging"
	"vexserver/internal/store"
)

// userView is the user shape returned to clients; the password hash never
// leaves the store layer.
type userView struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles"`
}

func viewOf(u *store.User) userView {
	return userView{ID: u.ID, Name: u.Name, Roles: u.Roles}
}

type credentials struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

// registerUser creates a new account with the basic role
func (r *Router) registerUser(w http.ResponseWriter, req *http.Request) {
	logger := r.requestLogger(req)

	var creds credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil || creds.Name == "" || creds.Password == "" {
		httputils.WriteError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), bcrypt.DefaultCost)
	if err != nil {
		logger.Error("Hashing password failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	user := &store.User{
		ID:           uuid.NewString(),
		Name:         creds.Name,
		Roles:        []string{auth.RoleBasic},
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}

	if _, err := r.stores.Users.FindByName(req.Context(), creds.Name); err == nil {
		httputils.WriteError(w, http.StatusConflict, "name already taken")
		return
	}

	if err := r.stores.Users.Create(req.Context(), user); err != nil {
		if errors.Is(err, store.ErrConflict) {
			httputils.WriteError(w, http.StatusConflict, "name already taken")
			return
		}
		logger.Error("Creating user failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	r.metrics.RecordStoreQuery("user", "create", true)
	httputils.WriteData(w, http.StatusCreated, viewOf(user))
}

// login verifies credentials and sets the session cookie
func (r *Router) login(w http.ResponseWriter, req *http.Request) {
	logger := r.requestLogger(req)

	var creds credentials
	if err := json.NewDecoder(req.Body).Decode(&creds); err != nil || creds.Name == "" || creds.Password == "" {
		httputils.WriteError(w, http.StatusBadRequest, "name and password are required")
		return
	}

	user, err := r.stores.Users.FindByName(req.Context(), creds.Name)
	if err != nil {
		// Same response for unknown name and bad password.
		httputils.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		httputils.WriteError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	tokenStr, err := r.tokens.Issue(user.ID)
	if err != nil {
		logger.Error("Issuing token failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "login failed")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     r.tokens.CookieName(),
		Value:    tokenStr,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	httputils.WriteData(w, http.StatusOK, viewOf(user))
}

// logout clears the session cookie
func (r *Router) logout(w http.ResponseWriter, req *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     r.tokens.CookieName(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	httputils.WriteJSON(w, http.StatusOK, httputils.Envelope{Success: true, Message: "logged out"})
}

// listUsers returns all accounts (admin only, enforced by the rule table)
func (r *Router) listUsers(w http.ResponseWriter, req *http.Request) {
	users, err := r.stores.Users.List(req.Context())
	if err != nil {
		r.requestLogger(req).Error("Listing users failed", logging.Err(err))
		r.metrics.RecordStoreQuery("user", "list", false)
		httputils.WriteError(w, http.StatusInternalServerError, "listing users failed")
		return
	}

	r.metrics.RecordStoreQuery("user", "list", true)
	views := make([]userView, len(users))
	for i, u := range users {
		views[i] = viewOf(u)
	}
	httputils.WriteData(w, http.StatusOK, views)
}

// getUser returns a single account (self or admin, enforced by the rule table)
func (r *Router) getUser(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	user, err := r.stores.Users.FindByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "user not found")
			return
		}
		r.requestLogger(req).Error("Fetching user failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "fetching user failed")
		return
	}

	httputils.WriteData(w, http.StatusOK, viewOf(user))
}

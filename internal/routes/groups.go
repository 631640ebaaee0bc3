// internal/routes/groups.go
package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"vexserver/internal/contextutil"
	"vexserver/internal/httputils"
	"vexserver/internal/observability/logging"
	"vexserver/internal/store"
)

type groupView struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Owner   string   `json:"owner"`
	Members []string `json:"members"`
}

// createGroup creates a group owned by the caller, with the caller as its
// first member
func (r *Router) createGroup(w http.ResponseWriter, req *http.Request) {
	identity := contextutil.GetIdentity(req.Context())
	if identity == nil {
		httputils.WriteError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	var input struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil || input.Name == "" {
		httputils.WriteError(w, http.StatusBadRequest, "group name is required")
		return
	}

	group := &store.Group{
		ID:        uuid.NewString(),
		Name:      input.Name,
		Owner:     identity.ID,
		Members:   []string{identity.ID},
		CreatedAt: time.Now().UTC(),
	}

	if err := r.stores.Groups.Create(req.Context(), group); err != nil {
		r.requestLogger(req).Error("Creating group failed", logging.Err(err))
		r.metrics.RecordStoreQuery("group", "create", false)
		httputils.WriteError(w, http.StatusInternalServerError, "creating group failed")
		return
	}

	r.metrics.RecordStoreQuery("group", "create", true)
	httputils.WriteData(w, http.StatusCreated, groupView{
		ID: group.ID, Name: group.Name, Owner: group.Owner, Members: group.Members,
	})
}

// getGroup returns a group by ID (members only, enforced by the rule table)
func (r *Router) getGroup(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	group, err := r.stores.Groups.FindByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "group not found")
			return
		}
		r.requestLogger(req).Error("Fetching group failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "fetching group failed")
		return
	}

	httputils.WriteData(w, http.StatusOK, groupView{
		ID: group.ID, Name: group.Name, Owner: group.Owner, Members: group.Members,
	})
}

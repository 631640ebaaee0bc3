// internal/routes/vertices.go
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

type vertexInput struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	Parent string `json:"parent,omitempty"`
}

type vertexView struct {
	ID          string    `json:"id"`
	Creator     string    `json:"creator"`
	Parent      string    `json:"parent,omitempty"`
	Title       string    `json:"title"`
	Body        string    `json:"body"`
	Subscribers []string  `json:"subscribers"`
	CreatedAt   time.Time `json:"createdAt"`
}

func vertexViewOf(v *store.Vertex) vertexView {
	return vertexView{
		ID:          v.ID,
		Creator:     v.Creator,
		Parent:      v.Parent,
		Title:       v.Title,
		Body:        v.Body,
		Subscribers: v.Subscribers,
		CreatedAt:   v.CreatedAt,
	}
}

// createVertex adds a node to the tree. The creator is subscribed to their
// own vertex from the start.
func (r *Router) createVertex(w http.ResponseWriter, req *http.Request) {
	identity := contextutil.GetIdentity(req.Context())
	if identity == nil {
		// The rule table admits only authenticated callers here.
		httputils.WriteError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	var input vertexInput
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		httputils.WriteError(w, http.StatusBadRequest, "invalid vertex")
		return
	}

	vertex := &store.Vertex{
		ID:          uuid.NewString(),
		Creator:     identity.ID,
		Parent:      input.Parent,
		Title:       input.Title,
		Body:        input.Body,
		Subscribers: []string{identity.ID},
		CreatedAt:   time.Now().UTC(),
	}

	if err := r.stores.Vertices.Create(req.Context(), vertex); err != nil {
		r.requestLogger(req).Error("Creating vertex failed", logging.Err(err))
		r.metrics.RecordStoreQuery("vertex", "create", false)
		httputils.WriteError(w, http.StatusInternalServerError, "creating vertex failed")
		return
	}

	r.metrics.RecordStoreQuery("vertex", "create", true)
	httputils.WriteData(w, http.StatusCreated, vertexViewOf(vertex))
}

// getVertex returns a vertex by ID
func (r *Router) getVertex(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	vertex, err := r.stores.Vertices.FindByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Fetching vertex failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "fetching vertex failed")
		return
	}

	httputils.WriteData(w, http.StatusOK, vertexViewOf(vertex))
}

// updateVertex replaces a vertex's title and body (creator only, enforced
// by the rule table)
func (r *Router) updateVertex(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	var input vertexInput
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil {
		httputils.WriteError(w, http.StatusBadRequest, "invalid vertex")
		return
	}

	vertex, err := r.stores.Vertices.FindByID(req.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Fetching vertex failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "updating vertex failed")
		return
	}

	vertex.Title = input.Title
	vertex.Body = input.Body

	if err := r.stores.Vertices.Update(req.Context(), vertex); err != nil {
		r.requestLogger(req).Error("Updating vertex failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "updating vertex failed")
		return
	}

	httputils.WriteData(w, http.StatusOK, vertexViewOf(vertex))
}

// deleteVertex removes a vertex (creator only, enforced by the rule table)
func (r *Router) deleteVertex(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	if err := r.stores.Vertices.Delete(req.Context(), id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Deleting vertex failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "deleting vertex failed")
		return
	}

	httputils.WriteJSON(w, http.StatusOK, httputils.Envelope{Success: true, Message: "deleted"})
}

// reactToVertex records the caller's reaction
func (r *Router) reactToVertex(w http.ResponseWriter, req *http.Request) {
	identity := contextutil.GetIdentity(req.Context())
	if identity == nil {
		httputils.WriteError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	var input struct {
		Kind string `json:"kind"`
	}
	if err := json.NewDecoder(req.Body).Decode(&input); err != nil || input.Kind == "" {
		httputils.WriteError(w, http.StatusBadRequest, "reaction kind is required")
		return
	}

	reaction := &store.Reaction{
		VertexID:  mux.Vars(req)["id"],
		UserID:    identity.ID,
		Kind:      input.Kind,
		CreatedAt: time.Now().UTC(),
	}

	if err := r.stores.Vertices.React(req.Context(), reaction); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Recording reaction failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "recording reaction failed")
		return
	}

	httputils.WriteJSON(w, http.StatusOK, httputils.Envelope{Success: true, Message: "reacted"})
}

type reactionView struct {
	VertexID  string    `json:"vertexId"`
	UserID    string    `json:"userId"`
	Kind      string    `json:"kind"`
	CreatedAt time.Time `json:"createdAt"`
}

// listReactions returns all reactions recorded on a vertex
func (r *Router) listReactions(w http.ResponseWriter, req *http.Request) {
	id := mux.Vars(req)["id"]

	reactions, err := r.stores.Vertices.Reactions(req.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Listing reactions failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "listing reactions failed")
		return
	}

	views := make([]reactionView, 0, len(reactions))
	for _, reaction := range reactions {
		views = append(views, reactionView{
			VertexID:  reaction.VertexID,
			UserID:    reaction.UserID,
			Kind:      reaction.Kind,
			CreatedAt: reaction.CreatedAt,
		})
	}
	httputils.WriteData(w, http.StatusOK, views)
}

// subscribeToVertex adds the caller to the subscriber list
func (r *Router) subscribeToVertex(w http.ResponseWriter, req *http.Request) {
	r.setSubscription(w, req, true)
}

// unsubscribeFromVertex removes the caller from the subscriber list
// (subscribers only, enforced by the rule table)
func (r *Router) unsubscribeFromVertex(w http.ResponseWriter, req *http.Request) {
	r.setSubscription(w, req, false)
}

func (r *Router) setSubscription(w http.ResponseWriter, req *http.Request, subscribe bool) {
	identity := contextutil.GetIdentity(req.Context())
	if identity == nil {
		httputils.WriteError(w, http.StatusUnauthorized, "Not logged in")
		return
	}

	id := mux.Vars(req)["id"]
	var err error
	if subscribe {
		err = r.stores.Vertices.Subscribe(req.Context(), id, identity.ID)
	} else {
		err = r.stores.Vertices.Unsubscribe(req.Context(), id, identity.ID)
	}

	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			httputils.WriteError(w, http.StatusNotFound, "vertex not found")
			return
		}
		r.requestLogger(req).Error("Updating subscription failed", logging.Err(err))
		httputils.WriteError(w, http.StatusInternalServerError, "updating subscription failed")
		return
	}

	httputils.WriteJSON(w, http.StatusOK, httputils.Envelope{Success: true})
}

// Package memory provides map-backed implementations of the store
// interfaces. They back the test suites and serve as the storage layer when
// no database URL is configured.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"vexserver/internal/store"
)

// Users is an in-memory store.UserStore
type Users struct {
	mu    sync.RWMutex
	users map[string]*store.User
}

// NewUsers creates an empty in-memory user store
func NewUsers() *Users {
	return &Users{users: make(map[string]*store.User)}
}

var _ store.UserStore = (*Users)(nil)

// FindByID returns the user with the given ID
func (s *Users) FindByID(ctx context.Context, id string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyUser(u), nil
}

// FindByName returns the user with the given name
func (s *Users) FindByName(ctx context.Context, name string) (*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Name == name {
			return copyUser(u), nil
		}
	}
	return nil, store.ErrNotFound
}

// Create inserts a new user record
func (s *Users) Create(ctx context.Context, u *store.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; ok {
		return store.ErrConflict
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	s.users[u.ID] = copyUser(u)
	return nil
}

// List returns all user records
func (s *Users) List(ctx context.Context) ([]*store.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*store.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, copyUser(u))
	}
	return out, nil
}

func copyUser(u *store.User) *store.User {
	c := *u
	c.Roles = slices.Clone(u.Roles)
	return &c
}

// Vertices is an in-memory store.VertexStore
type Vertices struct {
	mu        sync.RWMutex
	vertices  map[string]*store.Vertex
	reactions []*store.Reaction
}

// NewVertices creates an empty in-memory vertex store
func NewVertices() *Vertices {
	return &Vertices{vertices: make(map[string]*store.Vertex)}
}

var _ store.VertexStore = (*Vertices)(nil)

// FindByID returns the vertex with the given ID
func (s *Vertices) FindByID(ctx context.Context, id string) (*store.Vertex, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vertices[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return copyVertex(v), nil
}

// Create inserts a new vertex
func (s *Vertices) Create(ctx context.Context, v *store.Vertex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vertices[v.ID]; ok {
		return store.ErrConflict
	}
	if v.CreatedAt.IsZero() {
		v.CreatedAt = time.Now().UTC()
	}
	s.vertices[v.ID] = copyVertex(v)
	return nil
}

// Update replaces an existing vertex
func (s *Vertices) Update(ctx context.Context, v *store.Vertex) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vertices[v.ID]; !ok {
		return store.ErrNotFound
	}
	s.vertices[v.ID] = copyVertex(v)
	return nil
}

// Delete removes a vertex
func (s *Vertices) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vertices[id]; !ok {
		return store.ErrNotFound
	}
	delete(s.vertices, id)
	return nil
}

// React appends a reaction to a vertex
func (s *Vertices) React(ctx context.Context, reaction *store.Reaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.vertices[reaction.VertexID]; !ok {
		return store.ErrNotFound
	}
	r := *reaction
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reactions = append(s.reactions, &r)
	return nil
}

// Reactions returns all reactions recorded on a vertex
func (s *Vertices) Reactions(ctx context.Context, id string) ([]*store.Reaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.vertices[id]; !ok {
		return nil, store.ErrNotFound
	}
	out := make([]*store.Reaction, 0)
	for _, r := range s.reactions {
		if r.VertexID == id {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

// Subscribe adds a user to a vertex's subscriber list
func (s *Vertices) Subscribe(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vertices[id]
	if !ok {
		return store.ErrNotFound
	}
	if !slices.Contains(v.Subscribers, userID) {
		v.Subscribers = append(v.Subscribers, userID)
	}
	return nil
}

// Unsubscribe removes a user from a vertex's subscriber list
func (s *Vertices) Unsubscribe(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.vertices[id]
	if !ok {
		return store.ErrNotFound
	}
	v.Subscribers = slices.DeleteFunc(v.Subscribers, func(m string) bool { return m == userID })
	return nil
}

// Ownership reports the creator and subscriber list of a vertex
func (s *Vertices) Ownership(ctx context.Context, id string) (string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.vertices[id]
	if !ok {
		return "", nil, store.ErrNotFound
	}
	return v.Creator, slices.Clone(v.Subscribers), nil
}

func copyVertex(v *store.Vertex) *store.Vertex {
	c := *v
	c.Subscribers = slices.Clone(v.Subscribers)
	return &c
}

// Groups is an in-memory store.GroupStore
type Groups struct {
	mu     sync.RWMutex
	groups map[string]*store.Group
}

// NewGroups creates an empty in-memory group store
func NewGroups() *Groups {
	return &Groups{groups: make(map[string]*store.Group)}
}

var _ store.GroupStore = (*Groups)(nil)

// FindByID returns the group with the given ID
func (s *Groups) FindByID(ctx context.Context, id string) (*store.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	return &c, nil
}

// Create inserts a new group
func (s *Groups) Create(ctx context.Context, g *store.Group) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; ok {
		return store.ErrConflict
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	c := *g
	c.Members = slices.Clone(g.Members)
	s.groups[g.ID] = &c
	return nil
}

// Ownership reports the owner and member list of a group
func (s *Groups) Ownership(ctx context.Context, id string) (string, []string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return "", nil, store.ErrNotFound
	}
	return g.Owner, slices.Clone(g.Members), nil
}

// NewStores returns a full in-memory store bundle
func NewStores() store.Stores {
	return store.Stores{
		Users:    NewUsers(),
		Vertices: NewVertices(),
		Groups:   NewGroups(),
	}
}

// Package store defines the persistence interfaces consumed by the
// authentication pipeline, the authorization predicates, and the route
// handlers, together with the record types they exchange.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a record with the same identity already exists
var ErrConflict = errors.New("already exists")

// User is a stored user account record
type User struct {
	ID           string
	Name         string
	Roles        []string
	PasswordHash string
	CreatedAt    time.Time
}

// Complete reports whether the record carries everything the authenticator
// needs to build an identity. Partially migrated or corrupted records must
// never be treated as valid sessions.
func (u *User) Complete() bool {
	return u != nil && u.ID != "" && u.Name != "" && u.Roles != nil
}

// Vertex is a node of the discussion tree
type Vertex struct {
	ID          string
	Creator     string
	Parent      string
	Title       string
	Body        string
	Subscribers []string
	CreatedAt   time.Time
}

// Reaction is a user's reaction to a vertex
type Reaction struct {
	VertexID  string
	UserID    string
	Kind      string
	CreatedAt time.Time
}

// Group is a user group
type Group struct {
	ID        string
	Name      string
	Owner     string
	Members   []string
	CreatedAt time.Time
}

// UserStore is the identity store consumed by the authenticator and the
// user route handlers
type UserStore interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByName(ctx context.Context, name string) (*User, error)
	Create(ctx context.Context, u *User) error
	List(ctx context.Context) ([]*User, error)
}

// VertexStore persists discussion vertices and their reactions and
// subscriber lists
type VertexStore interface {
	FindByID(ctx context.Context, id string) (*Vertex, error)
	Create(ctx context.Context, v *Vertex) error
	Update(ctx context.Context, v *Vertex) error
	Delete(ctx context.Context, id string) error
	React(ctx context.Context, reaction *Reaction) error
	Reactions(ctx context.Context, id string) ([]*Reaction, error)
	Subscribe(ctx context.Context, id, userID string) error
	Unsubscribe(ctx context.Context, id, userID string) error

	// Ownership reports the creator and subscriber list of a vertex for
	// the authorization predicates.
	Ownership(ctx context.Context, id string) (owner string, members []string, err error)
}

// GroupStore persists user groups
type GroupStore interface {
	FindByID(ctx context.Context, id string) (*Group, error)
	Create(ctx context.Context, g *Group) error

	// Ownership reports the owner and member list of a group for the
	// authorization predicates.
	Ownership(ctx context.Context, id string) (owner string, members []string, err error)
}

// Stores bundles the per-entity stores a server instance runs against
type Stores struct {
	Users    UserStore
	Vertices VertexStore
	Groups   GroupStore
}

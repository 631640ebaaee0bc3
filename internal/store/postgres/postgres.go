// Package postgres provides PostgreSQL implementations of the store
// interfaces. It uses pgx/v5 for connection pooling and text[] columns for
// role and subscriber lists.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"vexserver/internal/store"
)

// Store owns the connection pool shared by the per-entity stores.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// Stores returns the store bundle backed by this connection pool
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Users:    &Users{pool: s.pool},
		Vertices: &Vertices{pool: s.pool},
		Groups:   &Groups{pool: s.pool},
	}
}

// HealthCheck verifies database connectivity
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool
func (s *Store) Close() {
	s.pool.Close()
}

// Users is the PostgreSQL store.UserStore
type Users struct {
	pool *pgxpool.Pool
}

var _ store.UserStore = (*Users)(nil)

// FindByID retrieves a user by ID
func (s *Users) FindByID(ctx context.Context, id string) (*store.User, error) {
	return s.findOne(ctx, "id = $1", id)
}

// FindByName retrieves a user by name
func (s *Users) FindByName(ctx context.Context, name string) (*store.User, error) {
	return s.findOne(ctx, "name = $1", name)
}

func (s *Users) findOne(ctx context.Context, where string, arg any) (*store.User, error) {
	var u store.User
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, roles, password_hash, created_at
		FROM users WHERE `+where,
		arg,
	).Scan(&u.ID, &u.Name, &u.Roles, &u.PasswordHash, &u.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying user: %w", err)
	}
	return &u, nil
}

// Create inserts a new user record
func (s *Users) Create(ctx context.Context, u *store.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, name, roles, password_hash)
		VALUES ($1, $2, $3, $4)
	`, u.ID, u.Name, u.Roles, u.PasswordHash)

	if err != nil {
		if isDuplicateKey(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// List returns all user records
func (s *Users) List(ctx context.Context) ([]*store.User, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, roles, password_hash, created_at
		FROM users ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	var users []*store.User
	for rows.Next() {
		var u store.User
		if err := rows.Scan(&u.ID, &u.Name, &u.Roles, &u.PasswordHash, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, &u)
	}
	return users, rows.Err()
}

// Vertices is the PostgreSQL store.VertexStore
type Vertices struct {
	pool *pgxpool.Pool
}

var _ store.VertexStore = (*Vertices)(nil)

// FindByID retrieves a vertex by ID
func (s *Vertices) FindByID(ctx context.Context, id string) (*store.Vertex, error) {
	var v store.Vertex
	var parent *string
	err := s.pool.QueryRow(ctx, `
		SELECT id, creator, parent, title, body, subscribers, created_at
		FROM vertices WHERE id = $1
	`, id).Scan(&v.ID, &v.Creator, &parent, &v.Title, &v.Body, &v.Subscribers, &v.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying vertex: %w", err)
	}
	if parent != nil {
		v.Parent = *parent
	}
	return &v, nil
}

// Create inserts a new vertex
func (s *Vertices) Create(ctx context.Context, v *store.Vertex) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO vertices (id, creator, parent, title, body, subscribers)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.Creator, nullString(v.Parent), v.Title, v.Body, textArray(v.Subscribers))

	if err != nil {
		if isDuplicateKey(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("inserting vertex: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a vertex
func (s *Vertices) Update(ctx context.Context, v *store.Vertex) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vertices SET title = $2, body = $3, subscribers = $4
		WHERE id = $1
	`, v.ID, v.Title, v.Body, textArray(v.Subscribers))

	if err != nil {
		return fmt.Errorf("updating vertex: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Delete removes a vertex
func (s *Vertices) Delete(ctx context.Context, id string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM vertices WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting vertex: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// React records a user's reaction to a vertex
func (s *Vertices) React(ctx context.Context, reaction *store.Reaction) error {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO reactions (vertex_id, user_id, kind)
		SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM vertices WHERE id = $1)
		ON CONFLICT DO NOTHING
	`, reaction.VertexID, reaction.UserID, reaction.Kind)

	if err != nil {
		return fmt.Errorf("inserting reaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		// Either the vertex is gone or the reaction already exists;
		// distinguish for the caller.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM vertices WHERE id = $1)`, reaction.VertexID,
		).Scan(&exists); err != nil {
			return fmt.Errorf("checking vertex: %w", err)
		}
		if !exists {
			return store.ErrNotFound
		}
	}
	return nil
}

// Reactions returns all reactions recorded on a vertex
func (s *Vertices) Reactions(ctx context.Context, id string) ([]*store.Reaction, error) {
	if err := s.requireVertex(ctx, id); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT vertex_id, user_id, kind, created_at
		FROM reactions WHERE vertex_id = $1 ORDER BY created_at
	`, id)
	if err != nil {
		return nil, fmt.Errorf("listing reactions: %w", err)
	}
	defer rows.Close()

	reactions := make([]*store.Reaction, 0)
	for rows.Next() {
		var r store.Reaction
		if err := rows.Scan(&r.VertexID, &r.UserID, &r.Kind, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning reaction: %w", err)
		}
		reactions = append(reactions, &r)
	}
	return reactions, rows.Err()
}

// Subscribe adds a user to a vertex's subscriber list
func (s *Vertices) Subscribe(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vertices
		SET subscribers = array_append(subscribers, $2)
		WHERE id = $1 AND NOT ($2 = ANY (subscribers))
	`, id, userID)

	if err != nil {
		return fmt.Errorf("subscribing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return s.requireVertex(ctx, id)
	}
	return nil
}

// Unsubscribe removes a user from a vertex's subscriber list
func (s *Vertices) Unsubscribe(ctx context.Context, id, userID string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE vertices
		SET subscribers = array_remove(subscribers, $2)
		WHERE id = $1
	`, id, userID)

	if err != nil {
		return fmt.Errorf("unsubscribing: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Ownership reports the creator and subscriber list of a vertex
func (s *Vertices) Ownership(ctx context.Context, id string) (string, []string, error) {
	var owner string
	var members []string
	err := s.pool.QueryRow(ctx, `
		SELECT creator, subscribers FROM vertices WHERE id = $1
	`, id).Scan(&owner, &members)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, store.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying vertex ownership: %w", err)
	}
	return owner, members, nil
}

// requireVertex returns ErrNotFound when the vertex does not exist
func (s *Vertices) requireVertex(ctx context.Context, id string) error {
	var exists bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM vertices WHERE id = $1)`, id,
	).Scan(&exists); err != nil {
		return fmt.Errorf("checking vertex: %w", err)
	}
	if !exists {
		return store.ErrNotFound
	}
	return nil
}

// Groups is the PostgreSQL store.GroupStore
type Groups struct {
	pool *pgxpool.Pool
}

var _ store.GroupStore = (*Groups)(nil)

// FindByID retrieves a group by ID
func (s *Groups) FindByID(ctx context.Context, id string) (*store.Group, error) {
	var g store.Group
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, owner, members, created_at
		FROM groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Owner, &g.Members, &g.CreatedAt)

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying group: %w", err)
	}
	return &g, nil
}

// Create inserts a new group
func (s *Groups) Create(ctx context.Context, g *store.Group) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO groups (id, name, owner, members)
		VALUES ($1, $2, $3, $4)
	`, g.ID, g.Name, g.Owner, textArray(g.Members))

	if err != nil {
		if isDuplicateKey(err) {
			return store.ErrConflict
		}
		return fmt.Errorf("inserting group: %w", err)
	}
	return nil
}

// Ownership reports the owner and member list of a group
func (s *Groups) Ownership(ctx context.Context, id string) (string, []string, error) {
	var owner string
	var members []string
	err := s.pool.QueryRow(ctx, `
		SELECT owner, members FROM groups WHERE id = $1
	`, id).Scan(&owner, &members)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil, store.ErrNotFound
	}
	if err != nil {
		return "", nil, fmt.Errorf("querying group ownership: %w", err)
	}
	return owner, members, nil
}

// nullString converts "" to nil for nullable text columns
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// textArray normalizes a nil slice to an empty one so NOT NULL text[]
// columns accept it
func textArray(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505)
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

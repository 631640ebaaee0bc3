// internal/routes/router.go
package routes

import (
	"net/http"

	"github.com/gorilla/mux"

	"vexserver/internal/auth/token"
	"vexserver/internal/httputils"
	"vexserver/internal/observability/logging"
	"vexserver/internal/observability/metrics"
	"vexserver/internal/store"
)

// Router serves the vex business routes. It runs behind the authenticator
// and authorizer middleware; by the time a request reaches a handler here,
// the rule table has already admitted it.
type Router struct {
	*mux.Router
	stores  store.Stores
	tokens  *token.Authenticator
	logger  *logging.Logger
	metrics *metrics.Collector
}

// Config holds router configuration
type Config struct {
	// StaticDir is the directory served under /vex/vertex/static/
	StaticDir string
}

// New creates the vex router
func New(cfg Config, stores store.Stores, tokens *token.Authenticator, logger *logging.Logger, metricsCollector *metrics.Collector) *Router {
	r := &Router{
		Router:  mux.NewRouter(),
		stores:  stores,
		tokens:  tokens,
		logger:  logger.WithModule("routes"),
		metrics: metricsCollector,
	}

	r.setupRoutes(cfg)
	return r
}

// setupRoutes registers the handlers for every route the rule table covers
func (r *Router) setupRoutes(cfg Config) {
	if cfg.StaticDir != "" {
		r.PathPrefix("/vex/vertex/static/").Handler(
			http.StripPrefix("/vex/vertex/static/", http.FileServer(http.Dir(cfg.StaticDir))),
		)
	}

	// Users
	r.HandleFunc("/vex/user", r.registerUser).Methods(http.MethodPost)
	r.HandleFunc("/vex/user/login", r.login).Methods(http.MethodPost)
	r.HandleFunc("/vex/user/logout", r.logout).Methods(http.MethodPost)
	r.HandleFunc("/vex/user/all", r.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/vex/user/{id}", r.getUser).Methods(http.MethodGet)

	// Vertices
	r.HandleFunc("/vex/vertex", r.createVertex).Methods(http.MethodPost)
	r.HandleFunc("/vex/vertex/{id}", r.getVertex).Methods(http.MethodGet)
	r.HandleFunc("/vex/vertex/{id}", r.updateVertex).Methods(http.MethodPut)
	r.HandleFunc("/vex/vertex/{id}", r.deleteVertex).Methods(http.MethodDelete)
	r.HandleFunc("/vex/vertex/{id}/react", r.reactToVertex).Methods(http.MethodPost)
	r.HandleFunc("/vex/vertex/{id}/subscribe", r.subscribeToVertex).Methods(http.MethodPost)
	r.HandleFunc("/vex/vertex/{id}/unsubscribe", r.unsubscribeFromVertex).Methods(http.MethodPost)

	// Reactions
	r.HandleFunc("/vex/reactions/{id}", r.listReactions).Methods(http.MethodGet)

	// Groups
	r.HandleFunc("/vex/group", r.createGroup).Methods(http.MethodPost)
	r.HandleFunc("/vex/group/{id}", r.getGroup).Methods(http.MethodGet)

	// The authorizer has already denied anything without a matching rule,
	// so an unmatched route here is a wiring gap between the rule table
	// and the handler set.
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		r.logger.Warn("Authorized request reached no handler", "path", req.URL.Path, "method", req.Method)
		httputils.WriteError(w, http.StatusNotFound, "Not found")
	})
}

// requestLogger returns the per-request logger, falling back to the
// router's own
func (r *Router) requestLogger(req *http.Request) *logging.Logger {
	if logger := logging.LoggerFromContext(req.Context()); logger != nil {
		return logger
	}
	return r.logger
}

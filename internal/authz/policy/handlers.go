package policy

import (
	"net/http"

	"vexserver/internal/httputils"
)

// Pass forwards to the next pipeline stage unconditionally. Public routes
// use it as the unauthenticated handler so anonymous visitors still reach
// the business handler.
func Pass(w http.ResponseWriter, r *http.Request, next http.Handler) {
	next.ServeHTTP(w, r)
}

// Send401 responds with a "please log in" envelope
func Send401(w http.ResponseWriter, r *http.Request, next http.Handler) {
	httputils.WriteError(w, http.StatusUnauthorized, "Not logged in")
}

// Send403 responds with a "you may not do this" envelope
func Send403(w http.ResponseWriter, r *http.Request, next http.Handler) {
	httputils.WriteError(w, http.StatusForbidden, "Forbidden")
}

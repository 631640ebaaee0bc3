// internal/authz/authorizer.go
package authz

import (
	"context"
	"fmt"
	"net/http"

	"vexserver/internal/contextutil"
	"vexserver/internal/httputils"
	"vexserver/internal/observability/logging"
	"vexserver/internal/observability/metrics"
)

// DefaultDenyMessage is the body sent when no rule matches a request or the
// matched rule is mis-registered. Omission from the table is a rejection,
// not an allow.
const DefaultDenyMessage = "Unauthorized by default"

// Authorizer matches requests against the rule table and dispatches to the
// matched rule's outcome handlers. It consumes the authentication state
// established by the authenticator middleware upstream of it.
type Authorizer struct {
	table   *Table
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates an authorizer over a compiled rule table
func New(table *Table, logger *logging.Logger, metricsCollector *metrics.Collector) *Authorizer {
	return &Authorizer{
		table:   table,
		logger:  logger.WithModule("authz"),
		metrics: metricsCollector,
	}
}

// Middleware returns the authorization middleware. For each request it runs
// the single-pass decision procedure: match rule, check authentication,
// evaluate condition, dispatch. Nothing escapes this function as an error;
// every path terminates in a response or in next.
func (a *Authorizer) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx)
		if logger == nil {
			logger = a.logger
		}

		rule, ok := a.table.Match(r.Method, r.URL.Path)
		if !ok {
			logger.Warn("No rule matches request, denying by default",
				"method", r.Method,
				"path", r.URL.Path,
			)
			a.metrics.RecordAuthorization("none", metrics.OutcomeDefaultDeny)
			httputils.WriteError(w, http.StatusUnauthorized, DefaultDenyMessage)
			return
		}

		// NewTable refuses incomplete rules, but a table assembled by
		// other means must still fail closed at request time.
		if !rule.complete() {
			logger.Warn("Matched rule is mis-registered, denying by default",
				logging.RuleKey, rule.Name,
				"method", r.Method,
				"path", r.URL.Path,
			)
			a.metrics.RecordAuthorization(rule.Name, metrics.OutcomeDefaultDeny)
			httputils.WriteError(w, http.StatusUnauthorized, DefaultDenyMessage)
			return
		}

		state := contextutil.GetAuthState(ctx)
		if !state.Authenticated {
			logger.Debug("Request not authenticated, dispatching to rule handler",
				logging.RuleKey, rule.Name,
				logging.ReasonKey, state.Reason,
			)
			a.metrics.RecordAuthorization(rule.Name, metrics.OutcomeUnauthenticated)
			rule.OnUnauthenticated(w, r, next)
			return
		}

		allowed, err := evaluate(ctx, rule.Condition, r)
		if err != nil {
			// Fail closed: an erroring predicate is indistinguishable
			// from one that returned false.
			logger.Info("Condition evaluation failed, treating as forbidden",
				logging.RuleKey, rule.Name,
				logging.Err(err),
			)
			allowed = false
		}

		if !allowed {
			logger.Info("Authorization denied",
				logging.RuleKey, rule.Name,
				"subject", state.Identity.ID,
			)
			a.metrics.RecordAuthorization(rule.Name, metrics.OutcomeForbidden)
			rule.OnForbidden(w, r, next)
			return
		}

		logger.Debug("Authorization granted",
			logging.RuleKey, rule.Name,
			"subject", state.Identity.ID,
		)
		a.metrics.RecordAuthorization(rule.Name, metrics.OutcomeAuthorized)
		next.ServeHTTP(w, r.WithContext(contextutil.WithAuthorized(ctx)))
	})
}

// evaluate runs a predicate, converting a panic into an error so that a
// misbehaving condition can never crash the request pipeline or be read as
// an allow.
func evaluate(ctx context.Context, condition Predicate, r *http.Request) (allowed bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			allowed = false
			err = fmt.Errorf("condition panicked: %v", rec)
		}
	}()
	return condition(ctx, r)
}

package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Common label names for consistent metrics
const (
	LabelRule    = "rule"
	LabelOutcome = "outcome"
	LabelStatus  = "status"
	LabelMethod  = "method"
	LabelPath    = "path"
	LabelReason  = "reason"
	LabelSuccess = "success"
	LabelEntity  = "entity"
	LabelOp      = "op"
)

// Authorization outcome label values, matching the decision procedure's
// terminal states.
const (
	OutcomeAuthorized      = "authorized"
	OutcomeForbidden       = "forbidden"
	OutcomeUnauthenticated = "unauthenticated"
	OutcomeDefaultDeny     = "default_deny"
)

var (
	// RequestsTotal counts all HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vex_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{LabelMethod, LabelPath, LabelStatus},
	)

	// RequestDuration tracks the duration of HTTP requests
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vex_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{LabelMethod, LabelPath},
	)

	// AuthenticationTotal counts token resolution attempts by outcome and
	// the diagnostic reason recorded on anonymous requests
	AuthenticationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vex_authentication_total",
			Help: "Total number of cookie token resolutions",
		},
		[]string{LabelSuccess, LabelReason},
	)

	// AuthorizationTotal counts authorization decisions by rule and outcome
	AuthorizationTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vex_authorization_total",
			Help: "Total number of authorization decisions",
		},
		[]string{LabelRule, LabelOutcome},
	)

	// StoreQueriesTotal counts entity store lookups issued by ownership and
	// subscription predicates and by route handlers
	StoreQueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vex_store_queries_total",
			Help: "Total number of entity store queries",
		},
		[]string{LabelEntity, LabelOp, LabelSuccess},
	)
)

// Collector provides methods for recording metrics
type Collector struct{}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{}
}

// RecordRequest records metrics for an HTTP request
func (c *Collector) RecordRequest(method, path string, status int, duration time.Duration) {
	RequestsTotal.WithLabelValues(method, path, http.StatusText(status)).Inc()
	RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordAuthentication records a token resolution attempt. The reason is
// empty on success.
func (c *Collector) RecordAuthentication(success bool, reason string) {
	AuthenticationTotal.WithLabelValues(boolToString(success), reason).Inc()
}

// RecordAuthorization records an authorization decision for a rule
func (c *Collector) RecordAuthorization(rule, outcome string) {
	AuthorizationTotal.WithLabelValues(rule, outcome).Inc()
}

// RecordStoreQuery records an entity store lookup
func (c *Collector) RecordStoreQuery(entity, op string, success bool) {
	StoreQueriesTotal.WithLabelValues(entity, op, boolToString(success)).Inc()
}

// Handler returns an HTTP handler for exposing metrics
func Handler() http.Handler {
	return promhttp.Handler()
}

// boolToString converts a boolean to a string representation
func boolToString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

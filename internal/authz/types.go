// internal/authz/types.go
package authz

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
)

// MethodAny matches every HTTP method in a rule.
const MethodAny = "*"

// Predicate decides whether an authenticated request may proceed. It may
// reach into external storage; any returned error is treated by the
// authorizer as condition-not-met, never as an allow.
type Predicate func(ctx context.Context, r *http.Request) (bool, error)

// HandlerFunc is an outcome handler invoked when a matched rule denies a
// request. It may write a response or call next to let the request through
// anonymously (public endpoints such as registration do the latter).
type HandlerFunc func(w http.ResponseWriter, r *http.Request, next http.Handler)

// Rule is a single entry of the route rule table. Every field is required:
// a rule missing Condition, OnForbidden, or OnUnauthenticated is
// mis-registered and rejects all matching requests.
type Rule struct {
	// Name identifies the rule in logs and metrics
	Name string

	// Method is the HTTP verb this rule applies to, or MethodAny
	Method string

	// Path is a regular expression fragment matched against the full
	// request path, anchored as ^path$
	Path string

	// Condition decides whether an authenticated caller may proceed
	Condition Predicate

	// OnForbidden handles authenticated callers whose condition failed
	OnForbidden HandlerFunc

	// OnUnauthenticated handles anonymous callers
	OnUnauthenticated HandlerFunc

	pattern *regexp.Regexp
}

// complete reports whether the rule carries all three required members
func (r *Rule) complete() bool {
	return r.Condition != nil && r.OnForbidden != nil && r.OnUnauthenticated != nil
}

// Table is an ordered, immutable sequence of rules. First match wins;
// declaration order is the sole tie-break. A Table is read-only after
// construction and safe for concurrent use.
type Table struct {
	rules []Rule
}

// knownMethods are the verbs accepted in rule declarations
var knownMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
	MethodAny:         true,
}

// NewTable compiles and validates an ordered rule list. Construction fails
// fast on an unknown method, an invalid path pattern, or a rule missing any
// of its three required members, so misconfiguration surfaces at process
// start rather than at request time.
func NewTable(rules []Rule) (*Table, error) {
	compiled := make([]Rule, len(rules))
	for i, rule := range rules {
		if rule.Name == "" {
			return nil, fmt.Errorf("rule %d: name is required", i)
		}
		if !knownMethods[rule.Method] {
			return nil, fmt.Errorf("rule %q: unknown method %q", rule.Name, rule.Method)
		}
		if !rule.complete() {
			return nil, fmt.Errorf("rule %q: condition and both outcome handlers are required", rule.Name)
		}

		pattern, err := regexp.Compile("^" + rule.Path + "$")
		if err != nil {
			return nil, fmt.Errorf("rule %q: invalid path pattern: %w", rule.Name, err)
		}

		rule.pattern = pattern
		compiled[i] = rule
	}
	return &Table{rules: compiled}, nil
}

// Match scans the table in declaration order and returns the first rule
// whose method and path pattern match. The scan short-circuits on the first
// hit; later rules that would also match never execute.
func (t *Table) Match(method, path string) (*Rule, bool) {
	for i := range t.rules {
		rule := &t.rules[i]
		if rule.Method != MethodAny && rule.Method != method {
			continue
		}
		if rule.pattern == nil || !rule.pattern.MatchString(path) {
			continue
		}
		return rule, true
	}
	return nil, false
}

// Len returns the number of rules in the table
func (t *Table) Len() int {
	return len(t.rules)
}

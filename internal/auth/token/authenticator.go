// Package token implements cookie token authentication: a signed JWT
// carried in a named cookie is resolved into an identity from the user
// store. Resolution never blocks the pipeline; every failure path degrades
// the request to anonymous with a diagnostic reason.
package token

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"vexserver/internal/auth"
	"vexserver/internal/contextutil"
	"vexserver/internal/observability/logging"
	"vexserver/internal/observability/metrics"
	"vexserver/internal/store"
)

// Diagnostic reasons recorded on anonymous requests.
const (
	ReasonNoToken        = "token not available"
	ReasonDecodingError  = "decoding error"
	ReasonUserNotFound   = "user data not found"
	ReasonUserIncomplete = "user data is incomplete"
)

// Config holds token authenticator configuration
type Config struct {
	// CookieName is the cookie carrying the signed token
	CookieName string

	// Secret is the process-wide HMAC signing secret
	Secret string

	// TTL is the lifetime of issued tokens
	TTL time.Duration
}

// applyDefaults fills in zero-value fields
func (c *Config) applyDefaults() {
	if c.CookieName == "" {
		c.CookieName = "vex_token"
	}
	if c.TTL == 0 {
		c.TTL = 24 * time.Hour
	}
}

// Authenticator resolves the cookie token into an identity
type Authenticator struct {
	config  Config
	users   store.UserStore
	logger  *logging.Logger
	metrics *metrics.Collector
}

// New creates a cookie token authenticator
func New(config Config, users store.UserStore, logger *logging.Logger, metricsCollector *metrics.Collector) (*Authenticator, error) {
	config.applyDefaults()

	if config.Secret == "" {
		return nil, fmt.Errorf("token authentication requires a signing secret")
	}

	return &Authenticator{
		config:  config,
		users:   users,
		logger:  logger.WithModule("auth.token"),
		metrics: metricsCollector,
	}, nil
}

// Name returns the name of this authenticator
func (a *Authenticator) Name() string {
	return "token"
}

// CookieName returns the name of the session cookie
func (a *Authenticator) CookieName() string {
	return a.config.CookieName
}

// Issue mints a signed token for the given user ID. The login handler sets
// it as the session cookie.
func (a *Authenticator) Issue(userID string) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(a.config.TTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(a.config.Secret))
}

// verify parses and validates the token string, returning the claimed
// subject. Signature, expiry, and malformation failures all surface here.
func (a *Authenticator) verify(tokenStr string) (string, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(a.config.Secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return "", err
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return claims.Subject, nil
}

// Middleware resolves the request's cookie token into an authentication
// state on the context and always calls next. Absence of valid credentials
// reads downstream as "anonymous visitor", never as an error.
func (a *Authenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := logging.LoggerFromContext(ctx)
		if logger == nil {
			logger = a.logger
		}

		state := a.resolve(r, logger)
		a.metrics.RecordAuthentication(state.Authenticated, state.Reason)

		ctx = contextutil.WithAuthState(ctx, state)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// resolve runs the authentication steps against a single request
func (a *Authenticator) resolve(r *http.Request, logger *logging.Logger) auth.State {
	cookie, err := r.Cookie(a.config.CookieName)
	if err != nil || cookie.Value == "" {
		return auth.Anonymous(ReasonNoToken)
	}

	subject, err := a.verify(cookie.Value)
	if err != nil {
		logger.Debug("Token verification failed", logging.Err(err))
		return auth.Anonymous(ReasonDecodingError)
	}

	user, err := a.users.FindByID(r.Context(), subject)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			logger.Info("User lookup failed", "subject", subject, logging.Err(err))
		}
		return auth.Anonymous(ReasonUserNotFound)
	}

	if !user.Complete() {
		logger.Info("User record is incomplete, treating request as anonymous", "subject", subject)
		return auth.Anonymous(ReasonUserIncomplete)
	}

	return auth.State{
		Authenticated: true,
		Identity: &auth.Identity{
			ID:    user.ID,
			Name:  user.Name,
			Roles: user.Roles,
		},
	}
}

// internal/server/factory.go
package server

import (
	"context"
	"crypto/tls"
	"fmt"

	"vexserver/internal/auth/token"
	"vexserver/internal/authz"
	"vexserver/internal/config"
	"vexserver/internal/observability"
	"vexserver/internal/observability/logging"
	"vexserver/internal/routes"
	"vexserver/internal/store"
	"vexserver/internal/store/memory"
	"vexserver/internal/store/postgres"
	tlsconfig "vexserver/internal/tls"
)

// NewFromConfig creates a new server from configuration. It wires the full
// pipeline: observability, stores, authenticator, rule table, authorizer,
// and the business router, in that middleware order.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	// Initialize observability
	obs, err := observability.NewProvider(cfg.Observability.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize observability: %w", err)
	}
	logger := obs.Logger

	// Initialize TLS configuration
	var tlsCfg *tls.Config
	if cfg.TLS.Enabled {
		tlsSetup := &tlsconfig.Config{
			Logger:   logger,
			CertPath: cfg.TLS.CertPath,
			KeyPath:  cfg.TLS.KeyPath,
		}
		tlsCfg, err = tlsSetup.GetTLSConfig()
		if err != nil {
			return nil, fmt.Errorf("failed to create TLS configuration: %w", err)
		}
	}

	// Initialize storage
	stores, cleanup, err := createStores(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	// Initialize authenticator
	authenticator, err := token.New(token.Config{
		CookieName: cfg.Auth.CookieName,
		Secret:     cfg.Auth.TokenSecret,
		TTL:        cfg.Auth.TokenTTL,
	}, stores.Users, logger, obs.Metrics)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize authenticator: %w", err)
	}

	// Compile and validate the rule table; misconfiguration fails here,
	// at process start, not at request time.
	table, err := routes.Table(stores)
	if err != nil {
		return nil, fmt.Errorf("failed to build rule table: %w", err)
	}
	authorizer := authz.New(table, logger, obs.Metrics)

	// Initialize the business router
	vexRouter := routes.New(routes.Config{
		StaticDir: cfg.Server.StaticDir,
	}, stores, authenticator, logger, obs.Metrics)

	// Complete middleware chain: observability -> authentication -> authorization -> routes
	handler := obs.Middleware(authenticator.Middleware(authorizer.Middleware(vexRouter)))

	srv := New(Config{
		Address:         cfg.Server.Address,
		MetricsAddress:  cfg.Metrics.Address,
		TLSConfig:       tlsCfg,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, handler, obs.MetricsHandler(), logger)
	srv.cleanup = cleanup
	return srv, nil
}

// createStores selects the storage backend: PostgreSQL when a database URL
// is configured, in-memory otherwise.
func createStores(ctx context.Context, cfg *config.Config, logger *logging.Logger) (store.Stores, func(), error) {
	if cfg.Database.URL == "" {
		logger.Warn("No database URL configured, using in-memory storage")
		return memory.NewStores(), nil, nil
	}

	logger.Info("Connecting to database", "url", logging.RedactDSN(cfg.Database.URL))
	pg, err := postgres.New(ctx, postgres.Config{
		DSN:            cfg.Database.URL,
		MigrateOnStart: cfg.Database.Migrate,
	})
	if err != nil {
		return store.Stores{}, nil, err
	}
	return pg.Stores(), pg.Close, nil
}

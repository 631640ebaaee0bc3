// internal/config/types.go
package config

import "time"

// Config represents the complete application configuration
type Config struct {
	// Server holds HTTP server configuration
	Server struct {
		// Address is the address to listen on
		Address string
		// ShutdownTimeout is the maximum time to wait for a graceful shutdown
		ShutdownTimeout time.Duration
		// StaticDir is the directory served under /vex/vertex/static/
		StaticDir string
	}

	// Metrics holds metrics server configuration
	Metrics struct {
		// Address is the address to listen on for the metrics server
		Address string
	}

	// TLS holds TLS configuration
	TLS struct {
		// Enabled indicates whether TLS is enabled
		Enabled bool
		// CertPath is the path to the TLS certificate
		CertPath string
		// KeyPath is the path to the TLS key
		KeyPath string
	}

	// Auth holds authentication configuration
	Auth struct {
		// TokenSecret is the HMAC secret used to sign session tokens
		TokenSecret string
		// CookieName is the name of the session cookie
		CookieName string
		// TokenTTL is the lifetime of issued session tokens
		TokenTTL time.Duration
	}

	// Database holds storage configuration
	Database struct {
		// URL is the PostgreSQL connection string; empty selects the
		// in-memory store
		URL string
		// Migrate applies schema migrations at startup
		Migrate bool
	}

	// Observability holds observability configuration
	Observability struct {
		// LogLevel is the minimum log level to emit
		LogLevel string
	}
}

package logging

import (
	"log/slog"
	"net/url"
	"regexp"
)

// RedactedURL wraps a url.URL for logging without exposing sensitive information
type RedactedURL struct {
	url *url.URL
}

// LogValue implements slog.LogValuer to avoid revealing passwords
func (u RedactedURL) LogValue() slog.Value {
	return slog.StringValue(u.url.Redacted())
}

// RedactURL returns a safely loggable URL value
func RedactURL(url *url.URL) RedactedURL {
	return RedactedURL{url: url}
}

// RedactedDSN is a string containing a database DSN for safe logging
type RedactedDSN string

// LogValue implements slog.LogValuer to avoid revealing passwords in
// postgres:// connection strings or key=value DSNs.
func (s RedactedDSN) LogValue() slog.Value {
	if u, err := url.Parse(string(s)); err == nil && u.Scheme != "" {
		return slog.StringValue(u.Redacted())
	}
	re := regexp.MustCompile(`password=\S+`)
	return slog.StringValue(re.ReplaceAllString(string(s), "password=xxxxx"))
}

// RedactDSN returns a safely loggable database connection string
func RedactDSN(s string) slog.LogValuer {
	return RedactedDSN(s)
}

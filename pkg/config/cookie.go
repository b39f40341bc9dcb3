package config

import (
	"time"

	"github.com/sosodev/duration"
)

// CookieConfig holds the visitor cookie settings. The cookie is an HS256
// token signed with Secret.
type CookieConfig struct {
	Secret string `env:"PORTAL_COOKIE_SECRET" env-default:"very-secure-cookie-secret"`
	Name   string `env:"PORTAL_COOKIE_NAME" env-default:"portal_session"`
	Secure bool   `env:"COOKIE_SECURE" env-default:"true"`
	Expiry string `env:"PORTAL_COOKIE_EXPIRY" env-default:"P1D"`
}

// ParseExpiry parses the cookie lifetime
func (c CookieConfig) ParseExpiry() (time.Duration, error) {
	return parseDurationISO8601(c.Expiry)
}

func (c CookieConfig) validate() ValidationErrors {
	errs := CollectErrors(
		RequireMinLength("PORTAL_COOKIE_SECRET", c.Secret, 16),
		RequireNonEmpty("PORTAL_COOKIE_NAME", c.Name),
		RequireDuration("PORTAL_COOKIE_EXPIRY", c.Expiry),
	)
	if IsProduction() && c.Secret == "very-secure-cookie-secret" {
		errs = append(errs, ValidationError{Field: "PORTAL_COOKIE_SECRET", Message: "must be changed in production"})
	}
	return errs
}

// parseDurationISO8601 tries to parse duration as ISO8601 first, then Go duration
func parseDurationISO8601(s string) (time.Duration, error) {
	// Try ISO8601 format first
	isoDuration, err := duration.Parse(s)
	if err == nil {
		return isoDuration.ToTimeDuration(), nil
	}

	// Fall back to Go duration format
	return time.ParseDuration(s)
}

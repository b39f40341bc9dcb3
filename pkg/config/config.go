package config

import (
	"github.com/ilyakaznacheev/cleanenv"
)

// PortalConfig is everything the portal reads from the environment.
type PortalConfig struct {
	BaseUrl                  string `env:"BASE_URL" env-default:"http://localhost:4090"`
	FrontendUrl              string `env:"FRONTEND_URL" env-default:"http://localhost:3000"`
	Backend                  BackendConfig
	Database                 DatabaseConfig
	Email                    EmailConfig
	Cookie                   CookieConfig
	Shell                    ShellConfig
	LoginRateLimit           LoginRateLimitConfig
	ShellRateLimit           ShellRateLimitConfig
	PasswordComplexityConfig PasswordComplexityConfig
}

// Load fills cfg from the process environment. Call after any .env file has
// been loaded.
func Load(cfg any) error {
	return cleanenv.ReadEnv(cfg)
}

// Validate checks every section and reports all problems at once.
func (c PortalConfig) Validate() error {
	return Validate(
		func() ValidationErrors {
			return CollectErrors(
				RequireValidURL("BASE_URL", c.BaseUrl),
				WhenSet(c.FrontendUrl, func() *ValidationError { return RequireValidURL("FRONTEND_URL", c.FrontendUrl) }),
			)
		},
		c.Backend.validate,
		func() ValidationErrors {
			if c.Backend.DataBackend != DataPostgres {
				return nil
			}
			return CollectErrors(
				RequireNonEmpty("PORTAL_PG_HOST", c.Database.Host),
				RequireValidPort("PORTAL_PG_PORT", c.Database.Port),
				RequireNonEmpty("PORTAL_PG_DATABASE", c.Database.Database),
			)
		},
		func() ValidationErrors {
			if !c.Email.IsConfigured() {
				return nil
			}
			return CollectErrors(
				RequireValidPort("EMAIL_PORT", c.Email.Port),
				RequireNonEmpty("EMAIL_FROM", c.Email.From),
			)
		},
		c.Cookie.validate,
		c.Shell.validate,
		c.LoginRateLimit.validate,
		c.ShellRateLimit.validate,
		c.PasswordComplexityConfig.validate,
	)
}

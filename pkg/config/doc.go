// Package config loads and validates the portal's configuration.
//
// Settings come from environment variables through cleanenv struct tags; a
// .env file is loaded first by the command. Durations accept ISO 8601
// ("PT30M", "P1D") as well as Go syntax ("30m").
//
//	var cfg config.PortalConfig
//	if err := config.Load(&cfg); err != nil {
//		return err
//	}
//	if err := cfg.Validate(); err != nil {
//		return err
//	}
//	idle, _ := cfg.Shell.ParseIdleTimeout()
//
// Validation collects every problem before returning, so a misconfigured
// deployment reports all bad variables in one message:
//
//	configuration validation failed:
//	  - PORTAL_BACKEND: must be one of [supabase memory], got "firebase"
//	  - SUPABASE_URL: is required
//
// Each section converts to the type its package expects: BackendConfig to
// supabase.Config or memory.Config, DatabaseConfig to a db-utils DbConfig,
// EmailConfig to notification.SMTPConfig, the rate limit sections to
// ratelimit.Config and PasswordComplexityConfig to profile.PasswordPolicy.
package config

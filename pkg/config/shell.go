package config

import "time"

// ShellConfig controls the per-visitor portal shells.
type ShellConfig struct {
	// MultiRole selects role-based dashboards; off means every signed-in
	// visitor gets the client dashboard.
	MultiRole bool `env:"PORTAL_MULTI_ROLE" env-default:"true"`
	// InvalidateIntermediateSession signs the password session out before the
	// one-time code is requested.
	InvalidateIntermediateSession bool   `env:"PORTAL_INVALIDATE_INTERMEDIATE_SESSION" env-default:"true"`
	IdleTimeout                   string `env:"PORTAL_IDLE_TIMEOUT" env-default:"PT30M"`
	SweepInterval                 string `env:"PORTAL_SWEEP_INTERVAL" env-default:"PT1M"`
	CallTimeout                   string `env:"PORTAL_CALL_TIMEOUT" env-default:"PT30S"`
	// MaxShells caps live shells; zero removes the cap.
	MaxShells int `env:"PORTAL_MAX_SHELLS" env-default:"10000"`
}

// ParseIdleTimeout parses how long an unused shell is kept
func (s ShellConfig) ParseIdleTimeout() (time.Duration, error) {
	return parseDurationISO8601(s.IdleTimeout)
}

// ParseSweepInterval parses how often idle shells are looked for
func (s ShellConfig) ParseSweepInterval() (time.Duration, error) {
	return parseDurationISO8601(s.SweepInterval)
}

// ParseCallTimeout parses the limit on a single login call
func (s ShellConfig) ParseCallTimeout() (time.Duration, error) {
	return parseDurationISO8601(s.CallTimeout)
}

func (s ShellConfig) validate() ValidationErrors {
	return CollectErrors(
		RequireDuration("PORTAL_IDLE_TIMEOUT", s.IdleTimeout),
		RequireDuration("PORTAL_SWEEP_INTERVAL", s.SweepInterval),
		RequireDuration("PORTAL_CALL_TIMEOUT", s.CallTimeout),
		nonNegative("PORTAL_MAX_SHELLS", s.MaxShells),
	)
}

func nonNegative(field string, v int) *ValidationError {
	if v < 0 {
		return invalid(field, "must not be negative")
	}
	return nil
}

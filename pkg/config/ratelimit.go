package config

import (
	"time"

	"github.com/tendant/simple-portal/pkg/ratelimit"
)

// LoginRateLimitConfig limits login attempts per client IP.
type LoginRateLimitConfig struct {
	Enabled           bool    `env:"RATELIMIT_LOGIN_ENABLED" env-default:"true"`
	Capacity          int     `env:"RATELIMIT_LOGIN_CAPACITY" env-default:"10"`
	RefillRate        float64 `env:"RATELIMIT_LOGIN_REFILL_RATE" env-default:"0.167"` // tokens per second
	TrustProxyHeaders bool    `env:"RATELIMIT_TRUST_PROXY_HEADERS" env-default:"false"`
}

// ToMiddlewareConfig converts the config to a ratelimit.Config
func (c LoginRateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	return &ratelimit.Config{
		PerIPCapacity:     c.Capacity,
		PerIPRefillRate:   c.RefillRate,
		BucketTTL:         time.Hour,
		TrustProxyHeaders: c.TrustProxyHeaders,
	}
}

func (c LoginRateLimitConfig) validate() ValidationErrors {
	if !c.Enabled {
		return nil
	}
	errs := CollectErrors(RequirePositive("RATELIMIT_LOGIN_CAPACITY", c.Capacity))
	if c.RefillRate <= 0 {
		errs = append(errs, ValidationError{Field: "RATELIMIT_LOGIN_REFILL_RATE", Message: "must be positive"})
	}
	return errs
}

// ShellRateLimitConfig limits how often one client IP may start a new
// visitor shell. Requests without a valid cookie each start one.
type ShellRateLimitConfig struct {
	Enabled           bool    `env:"RATELIMIT_SHELL_ENABLED" env-default:"true"`
	Capacity          int     `env:"RATELIMIT_SHELL_CAPACITY" env-default:"30"`
	RefillRate        float64 `env:"RATELIMIT_SHELL_REFILL_RATE" env-default:"0.5"` // tokens per second
	TrustProxyHeaders bool    `env:"RATELIMIT_TRUST_PROXY_HEADERS" env-default:"false"`
}

func (c ShellRateLimitConfig) ToMiddlewareConfig() *ratelimit.Config {
	return &ratelimit.Config{
		PerIPCapacity:     c.Capacity,
		PerIPRefillRate:   c.RefillRate,
		BucketTTL:         time.Hour,
		TrustProxyHeaders: c.TrustProxyHeaders,
	}
}

func (c ShellRateLimitConfig) validate() ValidationErrors {
	if !c.Enabled {
		return nil
	}
	errs := CollectErrors(RequirePositive("RATELIMIT_SHELL_CAPACITY", c.Capacity))
	if c.RefillRate <= 0 {
		errs = append(errs, ValidationError{Field: "RATELIMIT_SHELL_REFILL_RATE", Message: "must be positive"})
	}
	return errs
}

package config

import (
	"log/slog"

	"github.com/tendant/simple-portal/pkg/profile"
)

// PasswordComplexityConfig holds the password policy applied to accounts
// registered through the portal.
type PasswordComplexityConfig struct {
	RequiredDigit           bool `env:"PASSWORD_COMPLEXITY_REQUIRE_DIGIT" env-default:"true"`
	RequiredLowercase       bool `env:"PASSWORD_COMPLEXITY_REQUIRE_LOWERCASE" env-default:"true"`
	RequiredNonAlphanumeric bool `env:"PASSWORD_COMPLEXITY_REQUIRE_NON_ALPHANUMERIC" env-default:"true"`
	RequiredUppercase       bool `env:"PASSWORD_COMPLEXITY_REQUIRE_UPPERCASE" env-default:"true"`
	RequiredLength          int  `env:"PASSWORD_COMPLEXITY_REQUIRED_LENGTH" env-default:"8"`
	MaxLength               int  `env:"PASSWORD_COMPLEXITY_MAX_LENGTH" env-default:"20"`
}

// ToPasswordPolicy converts the configuration to a profile.PasswordPolicy
func (c *PasswordComplexityConfig) ToPasswordPolicy() *profile.PasswordPolicy {
	if c == nil {
		return profile.DefaultPasswordPolicy()
	}

	slog.Info("Password policy configuration",
		"minLength", c.RequiredLength,
		"maxLength", c.MaxLength,
	)

	return &profile.PasswordPolicy{
		MinLength:          c.RequiredLength,
		MaxLength:          c.MaxLength,
		RequireUppercase:   c.RequiredUppercase,
		RequireLowercase:   c.RequiredLowercase,
		RequireDigit:       c.RequiredDigit,
		RequireSpecialChar: c.RequiredNonAlphanumeric,
	}
}

func (c PasswordComplexityConfig) validate() ValidationErrors {
	errs := CollectErrors(RequirePositive("PASSWORD_COMPLEXITY_REQUIRED_LENGTH", c.RequiredLength))
	if c.MaxLength > 0 && c.MaxLength < c.RequiredLength {
		errs = append(errs, ValidationError{Field: "PASSWORD_COMPLEXITY_MAX_LENGTH", Message: "must not be below the required length"})
	}
	return errs
}

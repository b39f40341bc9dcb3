package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError names one bad setting by its environment variable.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

func invalid(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors is every problem found in one pass.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	switch len(e) {
	case 0:
		return ""
	case 1:
		return e[0].Error()
	}
	var b strings.Builder
	b.WriteString("configuration validation failed:")
	for i := range e {
		b.WriteString("\n  - ")
		b.WriteString(e[i].Error())
	}
	return b.String()
}

// Validator checks one section.
type Validator func() ValidationErrors

// Validate runs every validator and returns the combined errors, or nil.
func Validate(validators ...Validator) error {
	var all ValidationErrors
	for _, v := range validators {
		all = append(all, v()...)
	}
	if len(all) == 0 {
		return nil
	}
	return all
}

// CollectErrors drops the nil results of the Require helpers.
func CollectErrors(errs ...*ValidationError) ValidationErrors {
	var out ValidationErrors
	for _, err := range errs {
		if err != nil {
			out = append(out, *err)
		}
	}
	return out
}

// WhenSet only runs validator for a non-empty value.
func WhenSet(value string, validator func() *ValidationError) *ValidationError {
	if value == "" {
		return nil
	}
	return validator()
}

func RequireNonEmpty(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	return nil
}

func RequirePositive(field string, value int) *ValidationError {
	if value <= 0 {
		return invalid(field, "must be positive, got %d", value)
	}
	return nil
}

func RequireMinLength(field, value string, minLength int) *ValidationError {
	if len(value) < minLength {
		return invalid(field, "must be at least %d characters, got %d", minLength, len(value))
	}
	return nil
}

func RequireValidPort(field string, value uint16) *ValidationError {
	if value == 0 {
		return invalid(field, "port must be between 1 and 65535")
	}
	return nil
}

func RequireOneOf(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return invalid(field, "must be one of %v, got %q", allowed, value)
}

// RequireValidURL accepts absolute URLs only.
func RequireValidURL(field, value string) *ValidationError {
	if value == "" {
		return invalid(field, "is required")
	}
	u, err := url.Parse(value)
	if err != nil {
		return invalid(field, "invalid URL: %v", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return invalid(field, "must be an absolute URL such as https://host")
	}
	return nil
}

// RequireDuration accepts a positive ISO 8601 or Go duration.
func RequireDuration(field, value string) *ValidationError {
	d, err := parseDurationISO8601(value)
	if err != nil {
		return invalid(field, "invalid duration %q", value)
	}
	if d <= 0 {
		return invalid(field, "must be positive, got %v", d)
	}
	return nil
}

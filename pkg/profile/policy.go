package profile

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"
)

var (
	upperRE   = regexp.MustCompile(`[A-Z]`)
	lowerRE   = regexp.MustCompile(`[a-z]`)
	digitRE   = regexp.MustCompile(`[0-9]`)
	specialRE = regexp.MustCompile(`[!@#$%^&*(),.?":{}|<>]`)
)

// PasswordPolicy defines the requirements for password complexity
type PasswordPolicy struct {
	MinLength          int  `json:"min_length"`
	MaxLength          int  `json:"max_length"`
	RequireUppercase   bool `json:"require_uppercase"`
	RequireLowercase   bool `json:"require_lowercase"`
	RequireDigit       bool `json:"require_digit"`
	RequireSpecialChar bool `json:"require_special_char"`
}

// PasswordPolicyChecker defines the interface for checking password complexity
type PasswordPolicyChecker interface {
	CheckPasswordComplexity(password string) error
	GetPolicy() *PasswordPolicy
}

// DefaultPasswordPolicy is the policy applied to accounts created by an
// administrator.
func DefaultPasswordPolicy() *PasswordPolicy {
	return &PasswordPolicy{
		MinLength:          8,
		MaxLength:          20,
		RequireUppercase:   true,
		RequireLowercase:   true,
		RequireDigit:       true,
		RequireSpecialChar: true,
	}
}

type DefaultPasswordPolicyChecker struct {
	policy *PasswordPolicy
}

func NewDefaultPasswordPolicyChecker(policy *PasswordPolicy) *DefaultPasswordPolicyChecker {
	if policy == nil {
		policy = DefaultPasswordPolicy()
	}
	return &DefaultPasswordPolicyChecker{policy: policy}
}

// CheckPasswordComplexity verifies that a password meets the complexity
// requirements. Lengths count characters, not bytes.
func (pc *DefaultPasswordPolicyChecker) CheckPasswordComplexity(password string) error {
	n := utf8.RuneCountInString(password)
	if n < pc.policy.MinLength {
		return fmt.Errorf("password must be at least %d characters long", pc.policy.MinLength)
	}
	if pc.policy.MaxLength > 0 && n > pc.policy.MaxLength {
		return fmt.Errorf("password must be at most %d characters long", pc.policy.MaxLength)
	}
	if pc.policy.RequireUppercase && !upperRE.MatchString(password) {
		return errors.New("password must contain at least one uppercase letter")
	}
	if pc.policy.RequireLowercase && !lowerRE.MatchString(password) {
		return errors.New("password must contain at least one lowercase letter")
	}
	if pc.policy.RequireDigit && !digitRE.MatchString(password) {
		return errors.New("password must contain at least one digit")
	}
	if pc.policy.RequireSpecialChar && !specialRE.MatchString(password) {
		return errors.New("password must contain at least one special character")
	}
	return nil
}

func (pc *DefaultPasswordPolicyChecker) GetPolicy() *PasswordPolicy {
	return pc.policy
}

package security

import (
	"strings"

	"github.com/arklim/chat-account-api/internal/core/port"
)

const (
	DefaultMinPasswordLength = 6
	defaultMaxPasswordLength = 128
)

// PasswordPolicy applies a sequence of password rules.
type PasswordPolicy struct {
	rules []PasswordRule
}

// NewPasswordPolicy constructs a policy with the provided rules.
func NewPasswordPolicy(rules ...PasswordRule) *PasswordPolicy {
	copied := make([]PasswordRule, len(rules))
	copy(copied, rules)
	return &PasswordPolicy{rules: copied}
}

// DefaultPasswordPolicy enforces the minimum length, the hashing cap and an optional zxcvbn score.
func DefaultPasswordPolicy(minLength, minStrengthScore int) *PasswordPolicy {
	if minLength <= 0 {
		minLength = DefaultMinPasswordLength
	}
	return NewPasswordPolicy(
		MinLengthRule(minLength),
		MaxLengthRule(defaultMaxPasswordLength),
		RequirePasswordStrengthRule(minStrengthScore),
	)
}

// Validate executes all rules and returns the first encountered violation.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) error {
	inputs := make([]string, 0, len(userInputs))
	for _, input := range userInputs {
		if trimmed := strings.TrimSpace(input); trimmed != "" {
			inputs = append(inputs, trimmed)
		}
	}

	for _, rule := range p.rules {
		if err := rule.Validate(password, inputs); err != nil {
			return err
		}
	}
	return nil
}

var _ port.PasswordPolicyValidator = (*PasswordPolicy)(nil)

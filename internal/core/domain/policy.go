package domain

import "time"

const (
	DefaultCodeTTL     = 2 * time.Minute
	DefaultTrustWindow = 7 * 24 * time.Hour
	DefaultCodeLength  = 6
)

// AuthPolicy holds the time windows that drive the verification flows.
type AuthPolicy struct {
	CodeTTL     time.Duration
	TrustWindow time.Duration
	CodeLength  int
}

// DefaultAuthPolicy returns the production policy.
func DefaultAuthPolicy() AuthPolicy {
	return AuthPolicy{
		CodeTTL:     DefaultCodeTTL,
		TrustWindow: DefaultTrustWindow,
		CodeLength:  DefaultCodeLength,
	}
}

// Normalize fills zero fields with defaults.
func (p AuthPolicy) Normalize() AuthPolicy {
	if p.CodeTTL <= 0 {
		p.CodeTTL = DefaultCodeTTL
	}
	if p.TrustWindow <= 0 {
		p.TrustWindow = DefaultTrustWindow
	}
	if p.CodeLength <= 0 {
		p.CodeLength = DefaultCodeLength
	}
	return p
}

// CodeExpiry returns the expiry of a code generated at now.
func (p AuthPolicy) CodeExpiry(now time.Time) time.Time {
	return now.Add(p.CodeTTL).UTC()
}

// IsDeviceTrusted reports whether device may skip the second factor at now.
func (p AuthPolicy) IsDeviceTrusted(account Account, device DeviceFingerprint, now time.Time) bool {
	if !account.HasTrustedDevice(device) {
		return false
	}
	if account.LastVerifiedAt == nil {
		return false
	}
	return now.Sub(*account.LastVerifiedAt) < p.TrustWindow
}

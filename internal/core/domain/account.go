package domain

import (
	"strings"
	"time"
)

// Role enumerates the account roles recognised by the platform.
type Role string

const (
	RoleUser        Role = "USER"
	RoleAdmin       Role = "ADMIN"
	RoleAdminCS     Role = "ADMIN_CS"
	RoleSystemAdmin Role = "SYSTEM_ADMIN"
)

// ParseRole normalises raw into a known Role.
func ParseRole(raw string) (Role, bool) {
	switch role := Role(strings.ToUpper(strings.TrimSpace(raw))); role {
	case RoleUser, RoleAdmin, RoleAdminCS, RoleSystemAdmin:
		return role, true
	default:
		return "", false
	}
}

// IsAdministrative reports whether the role belongs to the back-office front-end.
func (r Role) IsAdministrative() bool {
	return r == RoleAdmin || r == RoleAdminCS || r == RoleSystemAdmin
}

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusActive   AccountStatus = "ACTIVE"
	AccountStatusInactive AccountStatus = "INACTIVE"
)

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID           string
	Email        string
	Username     string
	PasswordHash string
	Role         Role
	Status       AccountStatus

	// One-time code state. Hash and expiry are written and cleared together.
	TwoFactorCodeHash  *string
	TwoFactorExpiresAt *time.Time

	TrustedDevices []string
	LastVerifiedAt *time.Time

	RefreshTokenHash *string
	TokenGeneration  int64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsActive reports whether the account may authenticate.
func (a *Account) IsActive() bool {
	return a != nil && a.Status == AccountStatusActive
}

// SetOneTimeCode stores a hashed one-time code together with its expiry.
func (a *Account) SetOneTimeCode(codeHash string, expiresAt time.Time) {
	hash := codeHash
	expiry := expiresAt.UTC()
	a.TwoFactorCodeHash = &hash
	a.TwoFactorExpiresAt = &expiry
}

// ClearOneTimeCode removes the one-time code and its expiry.
func (a *Account) ClearOneTimeCode() {
	a.TwoFactorCodeHash = nil
	a.TwoFactorExpiresAt = nil
}

// HasPendingCode reports whether a one-time code exists and is still valid at now.
// A code is valid strictly before its expiry.
func (a *Account) HasPendingCode(now time.Time) bool {
	if a.TwoFactorCodeHash == nil || a.TwoFactorExpiresAt == nil {
		return false
	}
	return now.Before(*a.TwoFactorExpiresAt)
}

// HasTrustedDevice reports whether device is already on the trusted list.
func (a *Account) HasTrustedDevice(device DeviceFingerprint) bool {
	for _, entry := range a.TrustedDevices {
		if device.Matches(entry) {
			return true
		}
	}
	return false
}

// TrustDevice appends device to the trusted list unless it is already present.
// It returns true when the list changed.
func (a *Account) TrustDevice(device DeviceFingerprint) bool {
	if a.HasTrustedDevice(device) {
		return false
	}
	a.TrustedDevices = append(a.TrustedDevices, device.String())
	return true
}

// Profile is the public projection of an account returned by the API.
type Profile struct {
	ID       string        `json:"id"`
	Username string        `json:"username"`
	Email    string        `json:"email"`
	Role     Role          `json:"role"`
	Status   AccountStatus `json:"status,omitempty"`
}

// ProfileOf projects an account onto its public fields.
func ProfileOf(account Account) Profile {
	return Profile{
		ID:       account.ID,
		Username: account.Username,
		Email:    account.Email,
		Role:     account.Role,
		Status:   account.Status,
	}
}

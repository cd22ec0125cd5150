package domain

import "time"

// AccountRegisteredEvent represents the payload for account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Username     string
	Email        string
	Role         Role
	RegisteredAt time.Time
}

// RegistrationRolledBackEvent is emitted when a registration-path verification fails
// and the account is removed.
type RegistrationRolledBackEvent struct {
	EventID      string
	AccountID    string
	Email        string
	RolledBackAt time.Time
}

// DeviceTrustedEvent is emitted when a device completes verification.
type DeviceTrustedEvent struct {
	EventID    string
	AccountID  string
	Device     string
	Flow       string
	Appended   bool
	VerifiedAt time.Time
}

// PasswordResetRequestedEvent represents the payload for account.password.reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID           string
	AccountID         string
	MaskedDestination string
	RequestedAt       time.Time
	ExpiresAt         time.Time
}

// PasswordResetEvent represents the payload for account.password.reset messages.
type PasswordResetEvent struct {
	EventID   string
	AccountID string
	ResetAt   time.Time
}

// RefreshTokenReusedEvent is emitted when a superseded refresh token is presented.
type RefreshTokenReusedEvent struct {
	EventID      string
	AccountID    string
	PresentedGen int64
	CurrentGen   int64
	DetectedAt   time.Time
}

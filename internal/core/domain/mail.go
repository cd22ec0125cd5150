package domain

import "time"

// VerificationCodeMail carries the data rendered into a one-time code email.
type VerificationCodeMail struct {
	To        string
	Username  string
	Role      Role
	Code      string
	ExpiresAt time.Time
}

// PasswordResetMail carries the data rendered into a reset link email.
type PasswordResetMail struct {
	To        string
	Username  string
	ResetURL  string
	Code      string
	ExpiresAt time.Time
}

package domain

import "time"

// TokenPair is the credential bundle returned by every successful flow.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	AccessExpiresAt  time.Time `json:"-"`
	RefreshExpiresAt time.Time `json:"-"`
}

// AccessTokenPayload is the identity carried by an access token.
type AccessTokenPayload struct {
	AccountID         string
	Email             string
	Role              Role
	TwoFactorVerified bool
}

// RefreshTokenPayload is the identity carried by a refresh token. Role and email
// are deliberately absent so that an exchange re-reads them from the store.
type RefreshTokenPayload struct {
	AccountID         string
	Generation        int64
	TwoFactorVerified bool
}

// IsSuperseded reports whether the token was issued before the account's current generation.
func (p RefreshTokenPayload) IsSuperseded(current int64) bool {
	return p.Generation < current
}

// Principal is the authenticated caller resolved for a request.
type Principal struct {
	AccountID         string
	Email             string
	Username          string
	Role              Role
	Status            AccountStatus
	TwoFactorVerified bool
}

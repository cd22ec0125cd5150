package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
)

var (
	// ErrTokenExpired indicates a well-formed, correctly signed token past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenSignature indicates the signature or signing key could not be verified.
	ErrTokenSignature = errors.New("token signature invalid")
	// ErrTokenMalformed indicates the token could not be decoded or carries unexpected claims.
	ErrTokenMalformed = errors.New("token malformed")
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"

	defaultAccessTokenTTL  = 15 * time.Minute
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
)

// AccessClaims is the JWT body of an access token.
type AccessClaims struct {
	AccountID         string `json:"id"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	TwoFactorVerified bool   `json:"tfa"`
	TokenType         string `json:"typ"`
	jwt.RegisteredClaims
}

// RefreshClaims is the JWT body of a refresh token.
type RefreshClaims struct {
	AccountID         string `json:"id"`
	Generation        int64  `json:"gen"`
	TwoFactorVerified bool   `json:"tfa"`
	TokenType         string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures token lifetimes and the issuer claim.
type TokenIssuerConfig struct {
	Issuer          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer struct {
	keys KeyProvider
	cfg  TokenIssuerConfig
	now  func() time.Time
}

// NewTokenIssuer creates a TokenIssuer.
func NewTokenIssuer(keys KeyProvider, cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if keys == nil {
		return nil, errors.New("token issuer: key provider is required")
	}
	if strings.TrimSpace(cfg.Issuer) == "" {
		return nil, errors.New("token issuer: issuer is required")
	}
	if cfg.AccessTokenTTL <= 0 {
		cfg.AccessTokenTTL = defaultAccessTokenTTL
	}
	if cfg.RefreshTokenTTL <= 0 {
		cfg.RefreshTokenTTL = defaultRefreshTokenTTL
	}

	return &TokenIssuer{
		keys: keys,
		cfg:  cfg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// WithClock overrides the time source used for issuing and validating tokens.
func (i *TokenIssuer) WithClock(now func() time.Time) *TokenIssuer {
	if now != nil {
		i.now = now
	}
	return i
}

// AccessTokenTTL returns the configured access token lifetime.
func (i *TokenIssuer) AccessTokenTTL() time.Duration { return i.cfg.AccessTokenTTL }

// RefreshTokenTTL returns the configured refresh token lifetime.
func (i *TokenIssuer) RefreshTokenTTL() time.Duration { return i.cfg.RefreshTokenTTL }

// Sign produces a signed token from claims.
func (i *TokenIssuer) Sign(claims jwt.Claims) (string, error) {
	key, err := i.keys.SigningKey()
	if err != nil {
		return "", fmt.Errorf("load signing key: %w", err)
	}

	token := jwt.NewWithClaims(i.keys.SigningMethod(), claims)
	token.Header["kid"] = i.keys.KeyID()

	signed, err := token.SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify parses raw into claims and validates signature, issuer and expiry.
// Failures are reported as ErrTokenExpired, ErrTokenSignature or ErrTokenMalformed.
func (i *TokenIssuer) Verify(raw string, claims jwt.Claims) error {
	if strings.TrimSpace(raw) == "" {
		return ErrTokenMalformed
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{i.keys.SigningMethod().Alg()}),
		jwt.WithIssuer(i.cfg.Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)

	_, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		kid, _ := token.Header["kid"].(string)
		return i.keys.VerificationKey(kid)
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrTokenSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}

func (i *TokenIssuer) registered(subject string, issuedAt time.Time, ttl time.Duration) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    i.cfg.Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		NotBefore: jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(issuedAt.Add(ttl)),
	}
}

// IssuePair signs an access token and a refresh token for account.
// generation is embedded in the refresh token for reuse detection.
func (i *TokenIssuer) IssuePair(account domain.Account, generation int64, verified bool, now time.Time) (domain.TokenPair, error) {
	if now.IsZero() {
		now = i.now()
	}
	now = now.UTC().Truncate(time.Second)

	access := AccessClaims{
		AccountID:         account.ID,
		Email:             account.Email,
		Role:              string(account.Role),
		TwoFactorVerified: verified,
		TokenType:         tokenTypeAccess,
		RegisteredClaims:  i.registered(account.ID, now, i.cfg.AccessTokenTTL),
	}
	accessToken, err := i.Sign(access)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh := RefreshClaims{
		AccountID:         account.ID,
		Generation:        generation,
		TwoFactorVerified: verified,
		TokenType:         tokenTypeRefresh,
		RegisteredClaims:  i.registered(account.ID, now, i.cfg.RefreshTokenTTL),
	}
	refreshToken, err := i.Sign(refresh)
	if err != nil {
		return domain.TokenPair{}, err
	}

	return domain.TokenPair{
		AccessToken:      accessToken,
		RefreshToken:     refreshToken,
		AccessExpiresAt:  now.Add(i.cfg.AccessTokenTTL),
		RefreshExpiresAt: now.Add(i.cfg.RefreshTokenTTL),
	}, nil
}

// ParseAccessToken verifies an access token and returns its payload.
func (i *TokenIssuer) ParseAccessToken(raw string) (*domain.AccessTokenPayload, error) {
	var claims AccessClaims
	if err := i.Verify(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeAccess || claims.AccountID == "" {
		return nil, fmt.Errorf("%w: not an access token", ErrTokenMalformed)
	}

	return &domain.AccessTokenPayload{
		AccountID:         claims.AccountID,
		Email:             claims.Email,
		Role:              domain.Role(claims.Role),
		TwoFactorVerified: claims.TwoFactorVerified,
	}, nil
}

// ParseRefreshToken verifies a refresh token and returns its payload.
func (i *TokenIssuer) ParseRefreshToken(raw string) (*domain.RefreshTokenPayload, error) {
	var claims RefreshClaims
	if err := i.Verify(raw, &claims); err != nil {
		return nil, err
	}
	if claims.TokenType != tokenTypeRefresh || claims.AccountID == "" {
		return nil, fmt.Errorf("%w: not a refresh token", ErrTokenMalformed)
	}

	return &domain.RefreshTokenPayload{
		AccountID:         claims.AccountID,
		Generation:        claims.Generation,
		TwoFactorVerified: claims.TwoFactorVerified,
	}, nil
}

var _ port.TokenIssuer = (*TokenIssuer)(nil)

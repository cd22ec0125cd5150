package port

import (
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// TokenIssuer signs and verifies access and refresh tokens.
type TokenIssuer interface {
	IssuePair(account domain.Account, generation int64, verified bool, now time.Time) (domain.TokenPair, error)
	ParseAccessToken(token string) (*domain.AccessTokenPayload, error)
	ParseRefreshToken(token string) (*domain.RefreshTokenPayload, error)
}

package port

import (
	"context"
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	// FindActiveByCodeHash returns an ACTIVE account whose one-time code matches and has not expired at now.
	FindActiveByCodeHash(ctx context.Context, codeHash string, now time.Time) (*domain.Account, error)
	List(ctx context.Context) ([]domain.Account, error)
	// Update persists the mutable verification fields, password hash and status.
	Update(ctx context.Context, account domain.Account) error
	// RotateRefreshToken advances the token generation from fromGeneration by one and stores
	// the new refresh token hash. It fails with repository.ErrConflict when the stored
	// generation no longer equals fromGeneration.
	RotateRefreshToken(ctx context.Context, id string, fromGeneration int64, tokenHash *string, at time.Time) error
	Delete(ctx context.Context, id string) error
}

// AccountTransactor runs fn against a repository bound to a single transaction.
// The transaction commits when fn returns nil and rolls back otherwise.
type AccountTransactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, accounts AccountRepository) error) error
}

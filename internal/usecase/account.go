package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/repository"
)

const MessageAccountsSynced = "Accounts synchronized from PostgreSQL to MongoDB successfully."

// SyncResult summarises a chat directory synchronisation.
type SyncResult struct {
	Inserted int
	Total    int
}

// AccountService serves account lookups and keeps the chat user directory in sync.
type AccountService struct {
	accounts  port.AccountRepository
	directory port.ChatUserDirectory
	logger    *zap.Logger
	now       func() time.Time
}

func NewAccountService(accounts port.AccountRepository, directory port.ChatUserDirectory, logger *zap.Logger) *AccountService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccountService{accounts: accounts, directory: directory, logger: logger, now: time.Now}
}

// WithClock allows tests to override the clock used by the service.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AccountService) Get(ctx context.Context, id string) (domain.Profile, error) {
	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, fmt.Errorf("lookup account: %w", err)
	}
	return domain.ProfileOf(*account), nil
}

// SyncChatUsers inserts every account missing from the chat user directory.
// Existing directory entries are left untouched.
func (s *AccountService) SyncChatUsers(ctx context.Context) (SyncResult, error) {
	accounts, err := s.accounts.List(ctx)
	if err != nil {
		return SyncResult{}, fmt.Errorf("list accounts: %w", err)
	}

	now := s.now().UTC()
	result := SyncResult{Total: len(accounts)}
	for _, account := range accounts {
		inserted, err := s.directory.InsertIfMissing(ctx, domain.ChatUserOf(account, now))
		if err != nil {
			return result, fmt.Errorf("sync account %s: %w", account.ID, err)
		}
		if inserted {
			result.Inserted++
		}
	}

	s.logger.Info("chat users synchronized",
		zap.Int("inserted", result.Inserted),
		zap.Int("total", result.Total),
	)
	return result, nil
}

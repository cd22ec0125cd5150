package port

import (
	"context"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// ChatUserDirectory is the chat platform's user collection kept in sync with accounts.
type ChatUserDirectory interface {
	// InsertIfMissing stores user unless an entry with the same account id exists.
	// It reports whether a new entry was written.
	InsertIfMissing(ctx context.Context, user domain.ChatUser) (bool, error)
}

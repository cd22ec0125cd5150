package port

import (
	"context"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// Notifier delivers one-time codes and reset links to account owners.
type Notifier interface {
	SendVerificationCode(ctx context.Context, mail domain.VerificationCodeMail) error
	SendPasswordReset(ctx context.Context, mail domain.PasswordResetMail) error
}

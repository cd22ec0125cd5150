package port

import (
	"context"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// EventPublisher publishes domain events to the message bus.
type EventPublisher interface {
	PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error
	PublishRegistrationRolledBack(ctx context.Context, event domain.RegistrationRolledBackEvent) error
	PublishDeviceTrusted(ctx context.Context, event domain.DeviceTrustedEvent) error
	PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error
	PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error
	PublishRefreshTokenReused(ctx context.Context, event domain.RefreshTokenReusedEvent) error
}

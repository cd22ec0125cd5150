package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Used when kafka.enabled is false.
type StubPublisher struct {
	logger *zap.Logger
	prefix string
}

// NewStubPublisher constructs a logging event publisher. Topics are rendered with prefix.
func NewStubPublisher(logger *zap.Logger, prefix string) *StubPublisher {
	return &StubPublisher{logger: logger, prefix: prefix}
}

func (p *StubPublisher) logEvent(eventType, accountID string, at time.Time, fields ...zap.Field) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	topic := eventType
	if p.prefix != "" {
		topic = p.prefix + "." + eventType
	}

	p.logger.Info("Stub event published", append([]zap.Field{
		zap.String("topic", topic),
		zap.String("account_id", accountID),
		zap.Time("timestamp", at.UTC()),
	}, fields...)...)
}

func (p *StubPublisher) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	p.logEvent(EventAccountRegistered, event.AccountID, event.RegisteredAt,
		zap.String("username", event.Username),
		zap.String("role", string(event.Role)),
	)
	return nil
}

func (p *StubPublisher) PublishRegistrationRolledBack(_ context.Context, event domain.RegistrationRolledBackEvent) error {
	p.logEvent(EventRegistrationRolledBack, event.AccountID, event.RolledBackAt)
	return nil
}

func (p *StubPublisher) PublishDeviceTrusted(_ context.Context, event domain.DeviceTrustedEvent) error {
	p.logEvent(EventDeviceTrusted, event.AccountID, event.VerifiedAt,
		zap.String("device", event.Device),
		zap.String("flow", event.Flow),
		zap.Bool("appended", event.Appended),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	p.logEvent(EventPasswordResetRequested, event.AccountID, event.RequestedAt,
		zap.String("destination", event.MaskedDestination),
		zap.Time("expires_at", event.ExpiresAt),
	)
	return nil
}

func (p *StubPublisher) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	p.logEvent(EventPasswordReset, event.AccountID, event.ResetAt)
	return nil
}

func (p *StubPublisher) PublishRefreshTokenReused(_ context.Context, event domain.RefreshTokenReusedEvent) error {
	p.logEvent(EventRefreshTokenReused, event.AccountID, event.DetectedAt,
		zap.Int64("presented_generation", event.PresentedGen),
		zap.Int64("current_generation", event.CurrentGen),
	)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/infra/config"
)

const schemaVersion = "1.0"

// Event types. The topic is the type prefixed with the configured topic prefix.
const (
	EventAccountRegistered      = "registered"
	EventRegistrationRolledBack = "registration.rolled_back"
	EventDeviceTrusted          = "device.trusted"
	EventPasswordResetRequested = "password.reset_requested"
	EventPasswordReset          = "password.reset"
	EventRefreshTokenReused     = "refresh_token.reused"
)

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	AccountID string           `json:"account_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, accountID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	topic := p.producer.TopicName(eventType)
	envelope := eventEnvelope{
		EventID:   id,
		EventType: topic,
		AccountID: accountID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: topic,
		Key:   sarama.StringEncoder(accountID),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishAccountRegistered publishes account.registered events.
func (p *EventPublisher) PublishAccountRegistered(ctx context.Context, event domain.AccountRegisteredEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Username     string    `json:"username"`
		Email        string    `json:"email"`
		Role         string    `json:"role"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		AccountID:    event.AccountID,
		Username:     event.Username,
		Email:        event.Email,
		Role:         string(event.Role),
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventAccountRegistered, event.AccountID, event.RegisteredAt, payload)
}

// PublishRegistrationRolledBack publishes account.registration.rolled_back events.
func (p *EventPublisher) PublishRegistrationRolledBack(ctx context.Context, event domain.RegistrationRolledBackEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		Email        string    `json:"email"`
		RolledBackAt time.Time `json:"rolled_back_at"`
	}{
		AccountID:    event.AccountID,
		Email:        event.Email,
		RolledBackAt: event.RolledBackAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRegistrationRolledBack, event.AccountID, event.RolledBackAt, payload)
}

// PublishDeviceTrusted publishes account.device.trusted events.
func (p *EventPublisher) PublishDeviceTrusted(ctx context.Context, event domain.DeviceTrustedEvent) error {
	payload := struct {
		AccountID  string    `json:"account_id"`
		Device     string    `json:"device"`
		Flow       string    `json:"flow"`
		Appended   bool      `json:"appended"`
		VerifiedAt time.Time `json:"verified_at"`
	}{
		AccountID:  event.AccountID,
		Device:     event.Device,
		Flow:       event.Flow,
		Appended:   event.Appended,
		VerifiedAt: event.VerifiedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventDeviceTrusted, event.AccountID, event.VerifiedAt, payload)
}

// PublishPasswordResetRequested publishes account.password.reset_requested events.
func (p *EventPublisher) PublishPasswordResetRequested(ctx context.Context, event domain.PasswordResetRequestedEvent) error {
	payload := struct {
		AccountID         string    `json:"account_id"`
		MaskedDestination string    `json:"masked_destination,omitempty"`
		RequestedAt       time.Time `json:"requested_at"`
		ExpiresAt         time.Time `json:"expires_at"`
	}{
		AccountID:         event.AccountID,
		MaskedDestination: event.MaskedDestination,
		RequestedAt:       event.RequestedAt.UTC(),
		ExpiresAt:         event.ExpiresAt.UTC(),
	}

	timestamp := event.RequestedAt
	if timestamp.IsZero() {
		timestamp = event.ExpiresAt
	}

	return p.publish(ctx, event.EventID, EventPasswordResetRequested, event.AccountID, timestamp, payload)
}

// PublishPasswordReset publishes account.password.reset events.
func (p *EventPublisher) PublishPasswordReset(ctx context.Context, event domain.PasswordResetEvent) error {
	payload := struct {
		AccountID string    `json:"account_id"`
		ResetAt   time.Time `json:"reset_at"`
	}{
		AccountID: event.AccountID,
		ResetAt:   event.ResetAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventPasswordReset, event.AccountID, event.ResetAt, payload)
}

// PublishRefreshTokenReused publishes account.refresh_token.reused events.
func (p *EventPublisher) PublishRefreshTokenReused(ctx context.Context, event domain.RefreshTokenReusedEvent) error {
	payload := struct {
		AccountID    string    `json:"account_id"`
		PresentedGen int64     `json:"presented_generation"`
		CurrentGen   int64     `json:"current_generation"`
		DetectedAt   time.Time `json:"detected_at"`
	}{
		AccountID:    event.AccountID,
		PresentedGen: event.PresentedGen,
		CurrentGen:   event.CurrentGen,
		DetectedAt:   event.DetectedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, EventRefreshTokenReused, event.AccountID, event.DetectedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)

package mailer

import (
	"context"
	"fmt"

	"github.com/wneessen/go-mail"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/infra/config"
	"github.com/arklim/chat-account-api/internal/infra/logger"
)

const fromName = "No reply"

// sender delivers composed messages. *mail.Client satisfies it.
type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

// SMTPNotifier renders the embedded templates and delivers them over SMTP.
type SMTPNotifier struct {
	client sender
	from   string
	logger *zap.Logger
}

// NewSMTPClient builds a go-mail client from settings.
func NewSMTPClient(cfg config.SMTPSettings) (*mail.Client, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port == 465 {
		opts = append(opts, mail.WithSSL())
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}
	if cfg.Timeout > 0 {
		opts = append(opts, mail.WithTimeout(cfg.Timeout))
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return client, nil
}

// NewSMTPNotifier constructs a notifier that sends through client.
func NewSMTPNotifier(client sender, from string, log *zap.Logger) *SMTPNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &SMTPNotifier{client: client, from: from, logger: log}
}

func (n *SMTPNotifier) SendVerificationCode(ctx context.Context, m domain.VerificationCodeMail) error {
	body, err := renderVerification(m)
	if err != nil {
		return err
	}
	return n.send(ctx, m.To, verificationSubject, body)
}

func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, m domain.PasswordResetMail) error {
	body, err := renderReset(m)
	if err != nil {
		return err
	}
	return n.send(ctx, m.To, resetSubject, body)
}

func (n *SMTPNotifier) send(ctx context.Context, to, subject, body string) error {
	msg := mail.NewMsg()
	if err := msg.FromFormat(fromName, n.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.To(to); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, body)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		n.logger.Warn("failed to deliver email",
			zap.String("to", logger.MaskEmail(to)),
			zap.String("subject", subject),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Debug("email delivered",
		zap.String("to", logger.MaskEmail(to)),
		zap.String("subject", subject),
	)
	return nil
}

// LogNotifier writes deliveries to the log instead of sending them. Used when SMTP is disabled.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(log *zap.Logger) *LogNotifier {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogNotifier{logger: log}
}

func (n *LogNotifier) SendVerificationCode(_ context.Context, m domain.VerificationCodeMail) error {
	n.logger.Info("verification code issued",
		zap.String("to", logger.MaskEmail(m.To)),
		zap.String("code", logger.MaskCode(m.Code)),
		zap.Time("expires_at", m.ExpiresAt),
	)
	return nil
}

func (n *LogNotifier) SendPasswordReset(_ context.Context, m domain.PasswordResetMail) error {
	n.logger.Info("password reset link issued",
		zap.String("to", logger.MaskEmail(m.To)),
		zap.String("code", logger.MaskCode(m.Code)),
		zap.Time("expires_at", m.ExpiresAt),
	)
	return nil
}

var (
	_ port.Notifier = (*SMTPNotifier)(nil)
	_ port.Notifier = (*LogNotifier)(nil)
)

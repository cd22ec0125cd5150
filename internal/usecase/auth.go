package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/infra/logger"
	"github.com/arklim/chat-account-api/internal/infra/security"
	"github.com/arklim/chat-account-api/internal/repository"
)

const (
	MessageRegistered      = "Verification code sent to your email. Please verify to complete registration."
	MessageVerified        = "verify: true"
	MessageVerifyRequired  = "verify: fail"
	MessageConfirmed       = "2FA confirmed successfully"
	MessageResetLinkSent   = "Reset password link sent to your email."
	MessagePasswordChanged = "Password has been reset successfully"
)

// Flows reported to metrics and events.
const (
	FlowLogin        = "login"
	FlowRegistration = "registration"
)

const (
	resultSuccess            = "success"
	resultChallenge          = "challenge"
	resultInvalidCredentials = "invalid_credentials"
	resultInvalidCode        = "invalid_code"
	resultRolledBack         = "rolled_back"
	resultRateLimited        = "rate_limited"
	resultInvalid            = "invalid"
	resultReused             = "reused"
	resultError              = "error"

	twoFactorRateLimitScope = "two_factor"
)

// AuthDependencies groups the collaborators of AuthService.
type AuthDependencies struct {
	Accounts   port.AccountRepository
	Transactor port.AccountTransactor
	Tokens     port.TokenIssuer
	Hasher     port.PasswordHasher
	Passwords  port.PasswordPolicyValidator
	Codes      port.CodeGenerator
	Notifier   port.Notifier
	Events     port.EventPublisher
	RateLimits port.RateLimitStore
	Metrics    port.AuthMetrics
	ResetLinks ResetLinks
}

// TwoFactorLimit bounds failed confirmations per account inside Window.
type TwoFactorLimit struct {
	MaxAttempts int
	Window      time.Duration
}

// AuthService drives registration, login, second-factor confirmation, password reset and refresh.
type AuthService struct {
	accounts   port.AccountRepository
	transactor port.AccountTransactor
	tokens     port.TokenIssuer
	hasher     port.PasswordHasher
	passwords  port.PasswordPolicyValidator
	codes      port.CodeGenerator
	notifier   port.Notifier
	events     port.EventPublisher
	rateLimits port.RateLimitStore
	metrics    port.AuthMetrics
	resetLinks ResetLinks

	policy domain.AuthPolicy
	limit  TwoFactorLimit
	now    func() time.Time
	logger *zap.Logger
	tracer trace.Tracer
}

// AuthResult is returned by the flows that issue a token pair.
type AuthResult struct {
	Tokens  domain.TokenPair
	Message string
	Account domain.Account
}

type RegisterInput struct {
	Email    string
	Username string
	Password string
}

type LoginInput struct {
	Email    string
	Password string
	Device   string
}

// ConfirmInput carries a second-factor submission from an authenticated caller.
type ConfirmInput struct {
	AccountID string
	Code      string
	Device    string
}

type ResetPasswordInput struct {
	Password string
	Code     string
	Device   string
}

// NewAuthService wires the service. A nil logger discards output and nil metrics are ignored.
func NewAuthService(deps AuthDependencies, policy domain.AuthPolicy, limit TwoFactorLimit, log *zap.Logger) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = port.NoopAuthMetrics{}
	}
	generator := deps.Codes
	if generator == nil {
		generator = security.NumericCodeGenerator{}
	}

	return &AuthService{
		accounts:   deps.Accounts,
		transactor: deps.Transactor,
		tokens:     deps.Tokens,
		hasher:     deps.Hasher,
		passwords:  deps.Passwords,
		codes:      generator,
		notifier:   deps.Notifier,
		events:     deps.Events,
		rateLimits: deps.RateLimits,
		metrics:    metrics,
		resetLinks: deps.ResetLinks,
		policy:     policy.Normalize(),
		limit:      limit,
		now:        time.Now,
		logger:     log,
		tracer:     otel.Tracer("github.com/arklim/chat-account-api/internal/usecase"),
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// Policy returns the effective verification policy.
func (s *AuthService) Policy() domain.AuthPolicy {
	return s.policy
}

// Register creates an account with a pending one-time code and mails the code.
// The existence check, the insert and the mail delivery share one transaction,
// so a failed delivery leaves no account behind.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (result AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Register")
	defer func() { endSpan(span, err) }()

	email := normalizeEmail(in.Email)
	username := strings.TrimSpace(in.Username)

	if err := s.passwords.Validate(in.Password, email, username); err != nil {
		return AuthResult{}, err
	}

	now := s.now().UTC()

	err = s.transactor.WithinTx(ctx, func(ctx context.Context, accounts port.AccountRepository) error {
		exists, err := accounts.ExistsByEmail(ctx, email)
		if err != nil {
			return fmt.Errorf("check email: %w", err)
		}
		if exists {
			return ErrAccountExists
		}

		hash, err := s.hasher.Hash(in.Password)
		if err != nil {
			return fmt.Errorf("hash password: %w", err)
		}

		code, err := s.codes.Generate(s.policy.CodeLength)
		if err != nil {
			return fmt.Errorf("generate code: %w", err)
		}
		expiresAt := s.policy.CodeExpiry(now)

		account := domain.Account{
			ID:              uuid.NewString(),
			Email:           email,
			Username:        username,
			PasswordHash:    hash,
			Role:            domain.RoleUser,
			Status:          domain.AccountStatusActive,
			TrustedDevices:  []string{},
			TokenGeneration: 1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		account.SetOneTimeCode(security.HashToken(code), expiresAt)

		pair, err := s.tokens.IssuePair(account, account.TokenGeneration, false, now)
		if err != nil {
			return fmt.Errorf("issue tokens: %w", err)
		}
		refreshHash := security.HashToken(pair.RefreshToken)
		account.RefreshTokenHash = &refreshHash

		if err := accounts.Create(ctx, account); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return ErrAccountExists
			}
			return fmt.Errorf("create account: %w", err)
		}

		if err := s.notifier.SendVerificationCode(ctx, domain.VerificationCodeMail{
			To:        account.Email,
			Username:  account.Username,
			Role:      account.Role,
			Code:      code,
			ExpiresAt: expiresAt,
		}); err != nil {
			return fmt.Errorf("send verification code: %w", err)
		}

		result = AuthResult{Tokens: pair, Message: MessageRegistered, Account: account}
		return nil
	})
	if err != nil {
		return AuthResult{}, err
	}

	s.publish(ctx, "account registered", result.Account.ID, func(ctx context.Context) error {
		return s.events.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			AccountID:    result.Account.ID,
			Username:     result.Account.Username,
			Email:        result.Account.Email,
			Role:         result.Account.Role,
			RegisteredAt: now,
		})
	})

	s.logger.Info("account registered",
		zap.String("account_id", result.Account.ID),
		zap.String("email", logger.MaskEmail(email)),
	)

	return result, nil
}

// Login validates credentials and issues a pair. Untrusted devices receive an
// unverified pair and a fresh one-time code by mail.
func (s *AuthService) Login(ctx context.Context, in LoginInput) (result AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Login")
	defer func() { endSpan(span, err) }()

	account, err := s.validateCredentials(ctx, normalizeEmail(in.Email), in.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			s.metrics.ObserveLogin(resultInvalidCredentials)
		} else {
			s.metrics.ObserveLogin(resultError)
		}
		return AuthResult{}, err
	}

	now := s.now().UTC()
	device := domain.NewDeviceFingerprint(in.Device)
	trusted := s.policy.IsDeviceTrusted(*account, device, now)
	span.SetAttributes(attribute.Bool("auth.device_trusted", trusted))

	var code string
	if !trusted {
		code, err = s.codes.Generate(s.policy.CodeLength)
		if err != nil {
			return AuthResult{}, fmt.Errorf("generate code: %w", err)
		}
		account.SetOneTimeCode(security.HashToken(code), s.policy.CodeExpiry(now))
		account.UpdatedAt = now
		if err := s.accounts.Update(ctx, *account); err != nil {
			return AuthResult{}, fmt.Errorf("store one-time code: %w", err)
		}
	}

	if trusted {
		pair, err := s.rotate(ctx, account, true, now)
		if err != nil {
			return AuthResult{}, err
		}
		s.metrics.ObserveLogin(resultSuccess)
		return AuthResult{Tokens: pair, Message: MessageVerified, Account: *account}, nil
	}

	// The stored refresh token belongs to the owner's verified session until
	// the second factor succeeds, so the challenge pair is not persisted.
	pair, err := s.issueUnpersisted(account, now)
	if err != nil {
		return AuthResult{}, err
	}

	if err := s.notifier.SendVerificationCode(ctx, domain.VerificationCodeMail{
		To:        account.Email,
		Username:  account.Username,
		Role:      account.Role,
		Code:      code,
		ExpiresAt: *account.TwoFactorExpiresAt,
	}); err != nil {
		return AuthResult{}, fmt.Errorf("send verification code: %w", err)
	}

	s.metrics.ObserveLogin(resultChallenge)
	s.logger.Info("login requires second factor",
		zap.String("account_id", account.ID),
		zap.String("device", logger.MaskString(device.String())),
	)

	return AuthResult{Tokens: pair, Message: MessageVerifyRequired, Account: *account}, nil
}

func (s *AuthService) validateCredentials(ctx context.Context, email, password string) (*domain.Account, error) {
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive() {
		return nil, ErrInvalidCredentials
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return account, nil
}

// ConfirmLoginTwoFactor verifies a code issued by Login. A wrong or expired
// code leaves the account untouched.
func (s *AuthService) ConfirmLoginTwoFactor(ctx context.Context, in ConfirmInput) (AuthResult, error) {
	return s.confirm(ctx, in, FlowLogin)
}

// ConfirmRegistrationTwoFactor verifies the code issued by Register. A wrong or
// expired code deletes an account that was never verified.
func (s *AuthService) ConfirmRegistrationTwoFactor(ctx context.Context, in ConfirmInput) (AuthResult, error) {
	return s.confirm(ctx, in, FlowRegistration)
}

func (s *AuthService) confirm(ctx context.Context, in ConfirmInput, flow string) (result AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ConfirmTwoFactor", trace.WithAttributes(attribute.String("auth.flow", flow)))
	defer func() { endSpan(span, err) }()

	account, err := s.accounts.GetByID(ctx, in.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return AuthResult{}, ErrUserNotFound
		}
		return AuthResult{}, fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive() {
		return AuthResult{}, ErrAccountDisabled
	}

	now := s.now().UTC()

	if err := s.checkTwoFactorAttempts(ctx, account.ID, now); err != nil {
		s.metrics.ObserveTwoFactor(flow, resultRateLimited)
		return AuthResult{}, err
	}

	if !codeAccepted(*account, in.Code, now) {
		if flow == FlowRegistration && account.LastVerifiedAt == nil {
			return AuthResult{}, s.rollbackRegistration(ctx, account, now)
		}
		s.metrics.ObserveTwoFactor(flow, resultInvalidCode)
		return AuthResult{}, ErrInvalidCode
	}

	device := domain.NewDeviceFingerprint(in.Device)
	account.ClearOneTimeCode()
	appended := account.TrustDevice(device)
	account.LastVerifiedAt = &now
	account.UpdatedAt = now

	if err := s.accounts.Update(ctx, *account); err != nil {
		return AuthResult{}, fmt.Errorf("store verification: %w", err)
	}

	pair, err := s.rotate(ctx, account, true, now)
	if err != nil {
		return AuthResult{}, err
	}

	if s.rateLimits != nil {
		if err := s.rateLimits.Reset(ctx, twoFactorKey(account.ID)); err != nil {
			s.logger.Warn("two-factor rate limit reset failed", zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	s.publish(ctx, "device trusted", account.ID, func(ctx context.Context) error {
		return s.events.PublishDeviceTrusted(ctx, domain.DeviceTrustedEvent{
			AccountID:  account.ID,
			Device:     device.String(),
			Flow:       flow,
			Appended:   appended,
			VerifiedAt: now,
		})
	})
	s.metrics.ObserveTwoFactor(flow, resultSuccess)

	return AuthResult{Tokens: pair, Message: MessageConfirmed, Account: *account}, nil
}

func codeAccepted(account domain.Account, code string, now time.Time) bool {
	if !account.HasPendingCode(now) {
		return false
	}
	return security.HashMatches(code, *account.TwoFactorCodeHash)
}

func (s *AuthService) rollbackRegistration(ctx context.Context, account *domain.Account, now time.Time) error {
	if err := s.accounts.Delete(ctx, account.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("roll back registration: %w", err)
	}

	s.publish(ctx, "registration rolled back", account.ID, func(ctx context.Context) error {
		return s.events.PublishRegistrationRolledBack(ctx, domain.RegistrationRolledBackEvent{
			AccountID:    account.ID,
			Email:        account.Email,
			RolledBackAt: now,
		})
	})
	s.metrics.ObserveTwoFactor(FlowRegistration, resultRolledBack)
	s.logger.Info("registration rolled back after failed verification",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	return ErrInvalidCode
}

// ForgotPassword stores a fresh one-time code and mails a reset link carrying it.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) (message string, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ForgotPassword")
	defer func() { endSpan(span, err) }()

	email = normalizeEmail(email)
	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrAccountDoesNotExist
		}
		return "", fmt.Errorf("lookup account: %w", err)
	}
	if !account.IsActive() {
		return "", ErrAccountDoesNotExist
	}

	now := s.now().UTC()
	code, err := s.codes.Generate(s.policy.CodeLength)
	if err != nil {
		return "", fmt.Errorf("generate code: %w", err)
	}
	expiresAt := s.policy.CodeExpiry(now)

	account.SetOneTimeCode(security.HashToken(code), expiresAt)
	account.UpdatedAt = now
	if err := s.accounts.Update(ctx, *account); err != nil {
		return "", fmt.Errorf("store reset code: %w", err)
	}

	if err := s.notifier.SendPasswordReset(ctx, domain.PasswordResetMail{
		To:        account.Email,
		Username:  account.Username,
		ResetURL:  s.resetLinks.URL(account.Role, code),
		Code:      code,
		ExpiresAt: expiresAt,
	}); err != nil {
		return "", fmt.Errorf("send reset link: %w", err)
	}

	s.publish(ctx, "password reset requested", account.ID, func(ctx context.Context) error {
		return s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			AccountID:         account.ID,
			MaskedDestination: logger.MaskEmail(account.Email),
			RequestedAt:       now,
			ExpiresAt:         expiresAt,
		})
	})

	return MessageResetLinkSent, nil
}

// ResetPassword authorizes by one-time code alone: the code must belong to an
// ACTIVE account and be unexpired. Outstanding refresh tokens stop working.
func (s *AuthService) ResetPassword(ctx context.Context, in ResetPasswordInput) (message string, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.ResetPassword")
	defer func() { endSpan(span, err) }()

	code := strings.TrimSpace(in.Code)
	if code == "" {
		return "", ErrInvalidResetCode
	}

	now := s.now().UTC()
	account, err := s.accounts.FindActiveByCodeHash(ctx, security.HashToken(code), now)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidResetCode
		}
		return "", fmt.Errorf("lookup reset code: %w", err)
	}
	if !account.IsActive() || !codeAccepted(*account, code, now) {
		return "", ErrInvalidResetCode
	}

	if err := s.passwords.Validate(in.Password, account.Email, account.Username); err != nil {
		return "", err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	account.PasswordHash = hash
	account.ClearOneTimeCode()
	account.LastVerifiedAt = nil
	account.TrustDevice(domain.NewDeviceFingerprint(in.Device))
	account.UpdatedAt = now

	if err := s.accounts.Update(ctx, *account); err != nil {
		return "", fmt.Errorf("store password: %w", err)
	}

	if err := s.accounts.RotateRefreshToken(ctx, account.ID, account.TokenGeneration, nil, now); err != nil {
		if !errors.Is(err, repository.ErrConflict) {
			return "", fmt.Errorf("invalidate refresh tokens: %w", err)
		}
		// Another rotation already moved the generation forward.
		s.logger.Debug("refresh generation moved during reset", zap.String("account_id", account.ID))
	}

	s.publish(ctx, "password reset", account.ID, func(ctx context.Context) error {
		return s.events.PublishPasswordReset(ctx, domain.PasswordResetEvent{
			AccountID: account.ID,
			ResetAt:   now,
		})
	})
	s.logger.Info("password reset", zap.String("account_id", account.ID))

	return MessagePasswordChanged, nil
}

// Refresh exchanges a refresh token for a new pair. Role and status are re-read
// from the store and the verification flag carries over from the presented token.
func (s *AuthService) Refresh(ctx context.Context, raw string) (pair domain.TokenPair, err error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Refresh")
	defer func() { endSpan(span, err) }()

	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.TokenPair{}, ErrRefreshTokenRequired
	}

	payload, err := s.tokens.ParseRefreshToken(raw)
	if err != nil {
		s.metrics.ObserveRefresh(resultInvalid)
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	account, err := s.accounts.GetByID(ctx, payload.AccountID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return domain.TokenPair{}, fmt.Errorf("lookup account: %w", err)
	}
	if account == nil || !account.IsActive() {
		s.metrics.ObserveRefresh(resultInvalid)
		return domain.TokenPair{}, ErrRefreshAccountInactive
	}

	now := s.now().UTC()

	if payload.IsSuperseded(account.TokenGeneration) {
		return domain.TokenPair{}, s.reportReuse(ctx, account, payload.Generation, now)
	}
	if payload.Generation != account.TokenGeneration {
		s.metrics.ObserveRefresh(resultInvalid)
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}
	if account.RefreshTokenHash != nil && !security.HashMatches(raw, *account.RefreshTokenHash) {
		s.metrics.ObserveRefresh(resultInvalid)
		return domain.TokenPair{}, ErrInvalidRefreshToken
	}

	pair, err = s.rotate(ctx, account, payload.TwoFactorVerified, now)
	if err != nil {
		if errors.Is(err, ErrConcurrentUpdate) {
			return domain.TokenPair{}, s.reportReuse(ctx, account, payload.Generation, now)
		}
		return domain.TokenPair{}, err
	}

	s.metrics.ObserveRefresh(resultSuccess)
	return pair, nil
}

func (s *AuthService) reportReuse(ctx context.Context, account *domain.Account, presented int64, now time.Time) error {
	s.metrics.ObserveRefresh(resultReused)
	s.logger.Warn("superseded refresh token presented",
		zap.String("account_id", account.ID),
		zap.Int64("presented_generation", presented),
		zap.Int64("current_generation", account.TokenGeneration),
	)
	s.publish(ctx, "refresh token reused", account.ID, func(ctx context.Context) error {
		return s.events.PublishRefreshTokenReused(ctx, domain.RefreshTokenReusedEvent{
			AccountID:    account.ID,
			PresentedGen: presented,
			CurrentGen:   account.TokenGeneration,
			DetectedAt:   now,
		})
	})
	return ErrRefreshTokenReused
}

// Authenticate resolves the caller behind an access token. The account is
// re-read so role and status reflect the store, not the token.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*domain.Principal, error) {
	payload, err := s.tokens.ParseAccessToken(strings.TrimSpace(raw))
	if err != nil {
		if errors.Is(err, security.ErrTokenExpired) {
			return nil, ErrExpiredAccessToken
		}
		return nil, ErrInvalidAccessToken
	}

	account, err := s.accounts.GetByID(ctx, payload.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidAccessToken
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	return &domain.Principal{
		AccountID:         account.ID,
		Email:             account.Email,
		Username:          account.Username,
		Role:              account.Role,
		Status:            account.Status,
		TwoFactorVerified: payload.TwoFactorVerified,
	}, nil
}

// Current returns the profile of the authenticated account.
func (s *AuthService) Current(ctx context.Context, accountID string) (domain.Profile, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return domain.Profile{}, ErrUserNotFound
		}
		return domain.Profile{}, fmt.Errorf("lookup account: %w", err)
	}
	return domain.ProfileOf(*account), nil
}

// rotate issues the next generation of tokens and records it on the account.
func (s *AuthService) rotate(ctx context.Context, account *domain.Account, verified bool, now time.Time) (domain.TokenPair, error) {
	next := account.TokenGeneration + 1

	pair, err := s.tokens.IssuePair(*account, next, verified, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}

	hash := security.HashToken(pair.RefreshToken)
	if err := s.accounts.RotateRefreshToken(ctx, account.ID, account.TokenGeneration, &hash, now); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return domain.TokenPair{}, ErrConcurrentUpdate
		}
		return domain.TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	account.TokenGeneration = next
	account.RefreshTokenHash = &hash
	account.UpdatedAt = now
	return pair, nil
}

// issueUnpersisted signs an unverified pair at the current generation without
// touching the stored refresh token. Refresh rejects it as invalid while a
// persisted token exists.
func (s *AuthService) issueUnpersisted(account *domain.Account, now time.Time) (domain.TokenPair, error) {
	pair, err := s.tokens.IssuePair(*account, account.TokenGeneration, false, now)
	if err != nil {
		return domain.TokenPair{}, fmt.Errorf("issue tokens: %w", err)
	}
	return pair, nil
}

func (s *AuthService) checkTwoFactorAttempts(ctx context.Context, accountID string, now time.Time) error {
	if s.rateLimits == nil || s.limit.MaxAttempts <= 0 {
		return nil
	}

	window := s.limit.Window
	if window <= 0 {
		window = s.policy.CodeTTL
	}
	key := twoFactorKey(accountID)

	if err := s.rateLimits.TrimWindow(ctx, key, window, now); err != nil {
		s.logger.Warn("two-factor rate limit trim failed", zap.String("scope", twoFactorRateLimitScope), zap.Error(err))
		return nil
	}

	count, err := s.rateLimits.CountAttempts(ctx, key, window, now)
	if err != nil {
		s.logger.Warn("two-factor rate limit count failed", zap.String("scope", twoFactorRateLimitScope), zap.Error(err))
		return nil
	}

	if count >= s.limit.MaxAttempts {
		retryAfter := time.Duration(0)
		if oldest, ok, err := s.rateLimits.OldestAttempt(ctx, key, window, now); err == nil && ok {
			if reset := oldest.Add(window); reset.After(now) {
				retryAfter = reset.Sub(now)
			}
		} else if err != nil {
			s.logger.Warn("two-factor rate limit oldest lookup failed", zap.Error(err))
		}
		return &RateLimitExceededError{Scope: twoFactorRateLimitScope, RetryAfter: retryAfter}
	}

	if err := s.rateLimits.RecordAttempt(ctx, key, now); err != nil {
		s.logger.Warn("two-factor rate limit record failed", zap.Error(err))
	}
	return nil
}

func twoFactorKey(accountID string) string {
	return twoFactorRateLimitScope + ":" + accountID
}

// publish sends an event without failing the calling flow.
func (s *AuthService) publish(ctx context.Context, name, accountID string, fn func(context.Context) error) {
	if s.events == nil {
		return
	}
	if err := fn(ctx); err != nil {
		s.logger.Warn("publish "+name+" event failed", zap.String("account_id", accountID), zap.Error(err))
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

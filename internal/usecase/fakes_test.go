package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/core/port"
	"github.com/arklim/chat-account-api/internal/infra/security"
	"github.com/arklim/chat-account-api/internal/repository"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// memoryAccounts is an in-memory AccountRepository and AccountTransactor.
type memoryAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemoryAccounts() *memoryAccounts {
	return &memoryAccounts{accounts: make(map[string]domain.Account)}
}

func cloneAccount(a domain.Account) domain.Account {
	a.TrustedDevices = append([]string(nil), a.TrustedDevices...)
	return a
}

func (r *memoryAccounts) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email {
			return repository.ErrDuplicate
		}
	}
	r.accounts[account.ID] = cloneAccount(account)
	return nil
}

func (r *memoryAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	account, ok := r.accounts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	found := cloneAccount(account)
	return &found, nil
}

func (r *memoryAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Email == email {
			found := cloneAccount(account)
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	_, err := r.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (r *memoryAccounts) FindActiveByCodeHash(_ context.Context, codeHash string, now time.Time) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, account := range r.accounts {
		if account.Status != domain.AccountStatusActive || account.TwoFactorCodeHash == nil || account.TwoFactorExpiresAt == nil {
			continue
		}
		if *account.TwoFactorCodeHash == codeHash && account.TwoFactorExpiresAt.After(now) {
			found := cloneAccount(account)
			return &found, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memoryAccounts) List(_ context.Context) ([]domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.Account, 0, len(r.accounts))
	for _, account := range r.accounts {
		out = append(out, cloneAccount(account))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *memoryAccounts) Update(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.accounts[account.ID]
	if !ok {
		return repository.ErrNotFound
	}
	stored.Username = account.Username
	stored.PasswordHash = account.PasswordHash
	stored.Role = account.Role
	stored.Status = account.Status
	stored.TwoFactorCodeHash = account.TwoFactorCodeHash
	stored.TwoFactorExpiresAt = account.TwoFactorExpiresAt
	stored.TrustedDevices = append([]string(nil), account.TrustedDevices...)
	stored.LastVerifiedAt = account.LastVerifiedAt
	stored.UpdatedAt = account.UpdatedAt
	r.accounts[account.ID] = stored
	return nil
}

func (r *memoryAccounts) RotateRefreshToken(_ context.Context, id string, fromGeneration int64, tokenHash *string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.accounts[id]
	if !ok || stored.TokenGeneration != fromGeneration {
		return repository.ErrConflict
	}
	stored.TokenGeneration++
	stored.RefreshTokenHash = tokenHash
	stored.UpdatedAt = at
	r.accounts[id] = stored
	return nil
}

func (r *memoryAccounts) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.accounts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.accounts, id)
	return nil
}

func (r *memoryAccounts) WithinTx(ctx context.Context, fn func(ctx context.Context, accounts port.AccountRepository) error) error {
	r.mu.Lock()
	snapshot := make(map[string]domain.Account, len(r.accounts))
	for id, account := range r.accounts {
		snapshot[id] = cloneAccount(account)
	}
	r.mu.Unlock()

	if err := fn(ctx, r); err != nil {
		r.mu.Lock()
		r.accounts = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

func (r *memoryAccounts) put(account domain.Account) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.accounts[account.ID] = cloneAccount(account)
}

func (r *memoryAccounts) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}

type recordingNotifier struct {
	codes  []domain.VerificationCodeMail
	resets []domain.PasswordResetMail
	err    error
}

func (n *recordingNotifier) SendVerificationCode(_ context.Context, mail domain.VerificationCodeMail) error {
	if n.err != nil {
		return n.err
	}
	n.codes = append(n.codes, mail)
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, mail domain.PasswordResetMail) error {
	if n.err != nil {
		return n.err
	}
	n.resets = append(n.resets, mail)
	return nil
}

func (n *recordingNotifier) lastCode(t *testing.T) string {
	t.Helper()
	if len(n.codes) == 0 {
		t.Fatal("expected a verification code to be sent")
	}
	return n.codes[len(n.codes)-1].Code
}

// sequenceCodes hands out predictable codes.
type sequenceCodes struct {
	next int
}

func (g *sequenceCodes) Generate(length int) (string, error) {
	g.next++
	return fmt.Sprintf("%0*d", length, 100000+g.next), nil
}

type recordingEvents struct {
	registered []domain.AccountRegisteredEvent
	rolledBack []domain.RegistrationRolledBackEvent
	trusted    []domain.DeviceTrustedEvent
	resetAsked []domain.PasswordResetRequestedEvent
	resets     []domain.PasswordResetEvent
	reused     []domain.RefreshTokenReusedEvent
	err        error
}

func (e *recordingEvents) PublishAccountRegistered(_ context.Context, event domain.AccountRegisteredEvent) error {
	e.registered = append(e.registered, event)
	return e.err
}

func (e *recordingEvents) PublishRegistrationRolledBack(_ context.Context, event domain.RegistrationRolledBackEvent) error {
	e.rolledBack = append(e.rolledBack, event)
	return e.err
}

func (e *recordingEvents) PublishDeviceTrusted(_ context.Context, event domain.DeviceTrustedEvent) error {
	e.trusted = append(e.trusted, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordResetRequested(_ context.Context, event domain.PasswordResetRequestedEvent) error {
	e.resetAsked = append(e.resetAsked, event)
	return e.err
}

func (e *recordingEvents) PublishPasswordReset(_ context.Context, event domain.PasswordResetEvent) error {
	e.resets = append(e.resets, event)
	return e.err
}

func (e *recordingEvents) PublishRefreshTokenReused(_ context.Context, event domain.RefreshTokenReusedEvent) error {
	e.reused = append(e.reused, event)
	return e.err
}

// memoryRateLimits keeps attempt timestamps per identifier.
type memoryRateLimits struct {
	attempts map[string][]time.Time
	resets   []string
}

func newMemoryRateLimits() *memoryRateLimits {
	return &memoryRateLimits{attempts: make(map[string][]time.Time)}
}

func (m *memoryRateLimits) TrimWindow(_ context.Context, identifier string, window time.Duration, reference time.Time) error {
	kept := m.attempts[identifier][:0]
	for _, at := range m.attempts[identifier] {
		if at.After(reference.Add(-window)) {
			kept = append(kept, at)
		}
	}
	m.attempts[identifier] = kept
	return nil
}

func (m *memoryRateLimits) CountAttempts(_ context.Context, identifier string, _ time.Duration, _ time.Time) (int, error) {
	return len(m.attempts[identifier]), nil
}

func (m *memoryRateLimits) RecordAttempt(_ context.Context, identifier string, at time.Time) error {
	m.attempts[identifier] = append(m.attempts[identifier], at)
	return nil
}

func (m *memoryRateLimits) OldestAttempt(_ context.Context, identifier string, _ time.Duration, _ time.Time) (time.Time, bool, error) {
	if len(m.attempts[identifier]) == 0 {
		return time.Time{}, false, nil
	}
	return m.attempts[identifier][0], true, nil
}

func (m *memoryRateLimits) Reset(_ context.Context, identifier string) error {
	delete(m.attempts, identifier)
	m.resets = append(m.resets, identifier)
	return nil
}

type authFixture struct {
	service  *AuthService
	accounts *memoryAccounts
	notifier *recordingNotifier
	events   *recordingEvents
	limits   *memoryRateLimits
	issuer   *security.TokenIssuer
	hasher   *security.Argon2Hasher
	clock    *testClock
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()

	clock := newTestClock()

	keys, err := security.NewHMACKeyProvider(testSecret)
	if err != nil {
		t.Fatalf("NewHMACKeyProvider returned error: %v", err)
	}
	issuer, err := security.NewTokenIssuer(keys, security.TokenIssuerConfig{
		Issuer:          "chat-account-api",
		AccessTokenTTL:  10 * time.Minute,
		RefreshTokenTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("NewTokenIssuer returned error: %v", err)
	}
	issuer.WithClock(clock.Now)

	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}

	f := &authFixture{
		accounts: newMemoryAccounts(),
		notifier: &recordingNotifier{},
		events:   &recordingEvents{},
		limits:   newMemoryRateLimits(),
		issuer:   issuer,
		hasher:   hasher,
		clock:    clock,
	}

	f.service = NewAuthService(AuthDependencies{
		Accounts:   f.accounts,
		Transactor: f.accounts,
		Tokens:     issuer,
		Hasher:     hasher,
		Passwords:  security.DefaultPasswordPolicy(6, 0),
		Codes:      &sequenceCodes{},
		Notifier:   f.notifier,
		Events:     f.events,
		RateLimits: f.limits,
		ResetLinks: ResetLinks{UserPage: "http://localhost:3001", AdminPage: "http://localhost:3000/"},
	}, domain.DefaultAuthPolicy(), TwoFactorLimit{MaxAttempts: 5, Window: 10 * time.Minute}, zaptest.NewLogger(t))
	f.service.WithClock(clock.Now)

	return f
}

// seedAccount stores an ACTIVE account with password "secret1".
func (f *authFixture) seedAccount(t *testing.T, email string, role domain.Role) domain.Account {
	t.Helper()
	hash, err := f.hasher.Hash("secret1")
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	now := f.clock.Now()
	account := domain.Account{
		ID:              "acc-" + email,
		Email:           email,
		Username:        "seeded",
		PasswordHash:    hash,
		Role:            role,
		Status:          domain.AccountStatusActive,
		TokenGeneration: 1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	f.accounts.put(account)
	return account
}

func (f *authFixture) stored(t *testing.T, id string) domain.Account {
	t.Helper()
	account, err := f.accounts.GetByID(context.Background(), id)
	if err != nil {
		t.Fatalf("GetByID(%s) returned error: %v", id, err)
	}
	return *account
}

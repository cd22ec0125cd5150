package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
	"github.com/arklim/chat-account-api/internal/infra/security"
)

const testDevice = "Mozilla/5.0 (X11; Linux x86_64) Firefox/128.0"

func registerAlice(t *testing.T, f *authFixture) AuthResult {
	t.Helper()
	result, err := f.service.Register(context.Background(), RegisterInput{
		Email:    "a@x.com",
		Username: "alice",
		Password: "secret1",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return result
}

func accessPayload(t *testing.T, f *authFixture, pair domain.TokenPair) *domain.AccessTokenPayload {
	t.Helper()
	payload, err := f.issuer.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken returned error: %v", err)
	}
	return payload
}

func TestRegisterThenConfirmTrustsDevice(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	registered := registerAlice(t, f)
	if registered.Message != MessageRegistered {
		t.Fatalf("unexpected register message %q", registered.Message)
	}
	if accessPayload(t, f, registered.Tokens).TwoFactorVerified {
		t.Fatal("registration pair must not be verified")
	}
	if len(f.events.registered) != 1 {
		t.Fatalf("expected registered event, got %d", len(f.events.registered))
	}

	stored := f.stored(t, registered.Account.ID)
	if stored.Role != domain.RoleUser || stored.Status != domain.AccountStatusActive {
		t.Fatalf("unexpected role/status %s/%s", stored.Role, stored.Status)
	}
	if len(stored.TrustedDevices) != 0 {
		t.Fatalf("expected no trusted devices, got %v", stored.TrustedDevices)
	}
	if stored.PasswordHash == "secret1" {
		t.Fatal("password stored in plaintext")
	}

	f.clock.Advance(90 * time.Second)
	confirmed, err := f.service.ConfirmRegistrationTwoFactor(ctx, ConfirmInput{
		AccountID: registered.Account.ID,
		Code:      f.notifier.lastCode(t),
		Device:    testDevice,
	})
	if err != nil {
		t.Fatalf("ConfirmRegistrationTwoFactor returned error: %v", err)
	}
	if confirmed.Message != MessageConfirmed {
		t.Fatalf("unexpected confirm message %q", confirmed.Message)
	}
	if !accessPayload(t, f, confirmed.Tokens).TwoFactorVerified {
		t.Fatal("confirmed pair must be verified")
	}

	stored = f.stored(t, registered.Account.ID)
	if stored.TwoFactorCodeHash != nil || stored.TwoFactorExpiresAt != nil {
		t.Fatal("expected one-time code to be cleared")
	}
	if len(stored.TrustedDevices) != 1 || stored.TrustedDevices[0] != testDevice {
		t.Fatalf("unexpected trusted devices %v", stored.TrustedDevices)
	}
	if stored.LastVerifiedAt == nil || !stored.LastVerifiedAt.Equal(f.clock.Now()) {
		t.Fatalf("unexpected last verified at %v", stored.LastVerifiedAt)
	}
	if len(f.events.trusted) != 1 || !f.events.trusted[0].Appended {
		t.Fatalf("expected a device trusted event, got %+v", f.events.trusted)
	}

	login, err := f.service.Login(ctx, LoginInput{Email: "A@X.com ", Password: "secret1", Device: testDevice})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if login.Message != MessageVerified {
		t.Fatalf("expected trusted login, got %q", login.Message)
	}
	if !accessPayload(t, f, login.Tokens).TwoFactorVerified {
		t.Fatal("trusted login pair must be verified")
	}
	if len(f.notifier.codes) != 1 {
		t.Fatalf("trusted login must not send a code, sent %d", len(f.notifier.codes))
	}
}

func TestRegisterRejectsDuplicateEmail(t *testing.T) {
	f := newAuthFixture(t)
	registerAlice(t, f)

	_, err := f.service.Register(context.Background(), RegisterInput{
		Email:    " A@x.COM",
		Username: "other",
		Password: "another-secret",
	})
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}
	if f.accounts.count() != 1 {
		t.Fatalf("expected one account, got %d", f.accounts.count())
	}
}

func TestRegisterRejectsWeakPassword(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: "alice", Password: "abc"})
	var validation *security.PasswordValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected PasswordValidationError, got %v", err)
	}
	if f.accounts.count() != 0 {
		t.Fatal("expected no account to be stored")
	}
}

func TestRegisterMailFailureLeavesNoAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.notifier.err = errors.New("smtp down")

	_, err := f.service.Register(context.Background(), RegisterInput{Email: "a@x.com", Username: "alice", Password: "secret1"})
	if err == nil {
		t.Fatal("expected error when mail delivery fails")
	}
	if f.accounts.count() != 0 {
		t.Fatalf("expected rollback, found %d accounts", f.accounts.count())
	}
	if len(f.events.registered) != 0 {
		t.Fatal("no registered event expected after rollback")
	}
}

func TestConfirmRegistrationWithWrongCodeRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)

	wrong := "999999"
	if wrong == f.notifier.lastCode(t) {
		t.Fatal("fixture produced the wrong code")
	}

	_, err := f.service.ConfirmRegistrationTwoFactor(context.Background(), ConfirmInput{
		AccountID: registered.Account.ID,
		Code:      wrong,
		Device:    testDevice,
	})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if f.accounts.count() != 0 {
		t.Fatal("expected registration to be rolled back")
	}
	if len(f.events.rolledBack) != 1 {
		t.Fatalf("expected rollback event, got %d", len(f.events.rolledBack))
	}
}

func TestConfirmRegistrationExpiredCodeRollsBack(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)

	// A code is valid strictly before its expiry.
	f.clock.Advance(domain.DefaultCodeTTL)

	_, err := f.service.ConfirmRegistrationTwoFactor(context.Background(), ConfirmInput{
		AccountID: registered.Account.ID,
		Code:      f.notifier.lastCode(t),
	})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if f.accounts.count() != 0 {
		t.Fatal("expected registration to be rolled back")
	}
}

func TestConfirmRegistrationFailureKeepsVerifiedAccount(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	verifiedAt := f.clock.Now().Add(-time.Hour)
	account.LastVerifiedAt = &verifiedAt
	f.accounts.put(account)

	_, err := f.service.ConfirmRegistrationTwoFactor(context.Background(), ConfirmInput{AccountID: account.ID, Code: "123456"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if f.accounts.count() != 1 {
		t.Fatal("verified account must survive a failed registration confirmation")
	}
}

func TestFirstLoginRequiresTwoFactor(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)

	result, err := f.service.Login(context.Background(), LoginInput{Email: "b@x.com", Password: "secret1", Device: testDevice})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if result.Message != MessageVerifyRequired {
		t.Fatalf("expected verify: fail, got %q", result.Message)
	}
	if accessPayload(t, f, result.Tokens).TwoFactorVerified {
		t.Fatal("challenge pair must not be verified")
	}
	if len(f.notifier.codes) != 1 || f.notifier.codes[0].To != "b@x.com" {
		t.Fatalf("expected one code mailed to b@x.com, got %+v", f.notifier.codes)
	}

	stored := f.stored(t, account.ID)
	if !stored.HasPendingCode(f.clock.Now()) {
		t.Fatal("expected a pending one-time code")
	}
	if !stored.TwoFactorExpiresAt.Equal(f.clock.Now().Add(domain.DefaultCodeTTL)) {
		t.Fatalf("unexpected code expiry %v", stored.TwoFactorExpiresAt)
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "b@x.com", domain.RoleUser)
	inactive := f.seedAccount(t, "c@x.com", domain.RoleUser)
	inactive.Status = domain.AccountStatusInactive
	f.accounts.put(inactive)

	cases := []LoginInput{
		{Email: "b@x.com", Password: "wrong-password"},
		{Email: "nobody@x.com", Password: "secret1"},
		{Email: "c@x.com", Password: "secret1"},
		{Email: "", Password: ""},
	}
	for _, in := range cases {
		if _, err := f.service.Login(context.Background(), in); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("Login(%q) expected ErrInvalidCredentials, got %v", in.Email, err)
		}
	}
	if len(f.notifier.codes) != 0 {
		t.Fatal("no code should be sent for failed logins")
	}
}

func TestConfirmLoginFailureKeepsAccount(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)

	if _, err := f.service.Login(context.Background(), LoginInput{Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	_, err := f.service.ConfirmLoginTwoFactor(context.Background(), ConfirmInput{AccountID: account.ID, Code: "000000"})
	if !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if f.accounts.count() != 1 {
		t.Fatal("login confirmation failure must not delete the account")
	}
	stored := f.stored(t, account.ID)
	if !stored.HasPendingCode(f.clock.Now()) {
		t.Fatal("failed confirmation must leave the pending code in place")
	}
}

func TestNewLoginCodeReplacesPreviousOne(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("first Login returned error: %v", err)
	}
	first := f.notifier.lastCode(t)
	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("second Login returned error: %v", err)
	}
	second := f.notifier.lastCode(t)
	if first == second {
		t.Fatal("expected a fresh code")
	}

	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: first}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected superseded code to fail, got %v", err)
	}
	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: second}); err != nil {
		t.Fatalf("expected latest code to succeed, got %v", err)
	}
}

func TestTrustedDeviceExpiresAfterWindow(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1", Device: testDevice}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: f.notifier.lastCode(t), Device: testDevice}); err != nil {
		t.Fatalf("ConfirmLoginTwoFactor returned error: %v", err)
	}

	f.clock.Advance(domain.DefaultTrustWindow - time.Second)
	result, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1", Device: testDevice})
	if err != nil || result.Message != MessageVerified {
		t.Fatalf("expected trusted login inside window, got %q / %v", result.Message, err)
	}

	other, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1", Device: "curl/8.0"})
	if err != nil || other.Message != MessageVerifyRequired {
		t.Fatalf("expected challenge for unknown device, got %q / %v", other.Message, err)
	}

	f.clock.Advance(time.Second)
	result, err = f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1", Device: testDevice})
	if err != nil || result.Message != MessageVerifyRequired {
		t.Fatalf("expected challenge after window, got %q / %v", result.Message, err)
	}
}

func TestConfirmDoesNotDuplicateTrustedDevice(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	account.TrustedDevices = []string{testDevice}
	f.accounts.put(account)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1", Device: testDevice}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: f.notifier.lastCode(t), Device: "  " + testDevice + " "}); err != nil {
		t.Fatalf("ConfirmLoginTwoFactor returned error: %v", err)
	}

	if devices := f.stored(t, account.ID).TrustedDevices; len(devices) != 1 {
		t.Fatalf("expected one trusted device, got %v", devices)
	}
}

func TestConfirmInactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	account.Status = domain.AccountStatusInactive
	f.accounts.put(account)

	_, err := f.service.ConfirmLoginTwoFactor(context.Background(), ConfirmInput{AccountID: account.ID, Code: "123456"})
	if !errors.Is(err, ErrAccountDisabled) {
		t.Fatalf("expected ErrAccountDisabled, got %v", err)
	}

	_, err = f.service.ConfirmLoginTwoFactor(context.Background(), ConfirmInput{AccountID: "missing", Code: "123456"})
	if !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestTwoFactorAttemptsAreRateLimited(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: "000000"}); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: expected ErrInvalidCode, got %v", i+1, err)
		}
	}

	_, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: f.notifier.lastCode(t)})
	var limited *RateLimitExceededError
	if !errors.As(err, &limited) {
		t.Fatalf("expected RateLimitExceededError, got %v", err)
	}
	if limited.RetryAfter != 10*time.Minute {
		t.Fatalf("unexpected retry after %s", limited.RetryAfter)
	}
}

func TestSuccessfulConfirmResetsAttempts(t *testing.T) {
	f := newAuthFixture(t)
	account := f.seedAccount(t, "b@x.com", domain.RoleUser)
	ctx := context.Background()

	if _, err := f.service.Login(ctx, LoginInput{Email: "b@x.com", Password: "secret1"}); err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: "000000"}); !errors.Is(err, ErrInvalidCode) {
		t.Fatalf("expected ErrInvalidCode, got %v", err)
	}
	if _, err := f.service.ConfirmLoginTwoFactor(ctx, ConfirmInput{AccountID: account.ID, Code: f.notifier.lastCode(t)}); err != nil {
		t.Fatalf("ConfirmLoginTwoFactor returned error: %v", err)
	}

	if len(f.limits.resets) != 1 || f.limits.resets[0] != "two_factor:"+account.ID {
		t.Fatalf("expected attempts reset, got %v", f.limits.resets)
	}
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	f.clock.Advance(time.Second)
	second, err := f.service.Refresh(ctx, registered.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if second.AccessToken == registered.Tokens.AccessToken || second.RefreshToken == registered.Tokens.RefreshToken {
		t.Fatal("expected a distinct pair")
	}
	if accessPayload(t, f, second).TwoFactorVerified {
		t.Fatal("refresh must preserve the unverified flag")
	}

	_, err = f.service.Refresh(ctx, registered.Tokens.RefreshToken)
	if !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("expected ErrRefreshTokenReused, got %v", err)
	}
	if len(f.events.reused) != 1 || f.events.reused[0].PresentedGen != 1 || f.events.reused[0].CurrentGen != 2 {
		t.Fatalf("unexpected reuse events %+v", f.events.reused)
	}

	if _, err := f.service.Refresh(ctx, second.RefreshToken); err != nil {
		t.Fatalf("latest refresh token must keep working, got %v", err)
	}
}

func TestRefreshPreservesVerifiedFlag(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	confirmed, err := f.service.ConfirmRegistrationTwoFactor(ctx, ConfirmInput{AccountID: registered.Account.ID, Code: f.notifier.lastCode(t)})
	if err != nil {
		t.Fatalf("ConfirmRegistrationTwoFactor returned error: %v", err)
	}

	pair, err := f.service.Refresh(ctx, confirmed.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if !accessPayload(t, f, pair).TwoFactorVerified {
		t.Fatal("refresh must preserve the verified flag")
	}
}

func TestUntrustedLoginKeepsVerifiedSession(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	confirmed, err := f.service.ConfirmRegistrationTwoFactor(ctx, ConfirmInput{
		AccountID: registered.Account.ID,
		Code:      f.notifier.lastCode(t),
		Device:    testDevice,
	})
	if err != nil {
		t.Fatalf("ConfirmRegistrationTwoFactor returned error: %v", err)
	}
	before := f.stored(t, registered.Account.ID)

	f.clock.Advance(time.Second)
	challenge, err := f.service.Login(ctx, LoginInput{Email: "a@x.com", Password: "secret1", Device: "curl/8.0"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if challenge.Message != MessageVerifyRequired {
		t.Fatalf("expected a challenge, got %q", challenge.Message)
	}

	after := f.stored(t, registered.Account.ID)
	if after.TokenGeneration != before.TokenGeneration {
		t.Fatalf("challenge login moved generation from %d to %d", before.TokenGeneration, after.TokenGeneration)
	}
	if after.RefreshTokenHash == nil || *after.RefreshTokenHash != *before.RefreshTokenHash {
		t.Fatal("challenge login must not replace the stored refresh token")
	}

	if _, err := f.service.Refresh(ctx, challenge.Tokens.RefreshToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected challenge refresh token to be invalid, got %v", err)
	}

	pair, err := f.service.Refresh(ctx, confirmed.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("verified session must survive a challenge login, got %v", err)
	}
	if !accessPayload(t, f, pair).TwoFactorVerified {
		t.Fatal("refresh must preserve the verified flag")
	}
	if len(f.events.reused) != 0 {
		t.Fatalf("unexpected reuse events %+v", f.events.reused)
	}
}

func TestRefreshRejectsMissingInvalidAndInactive(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	if _, err := f.service.Refresh(ctx, "  "); !errors.Is(err, ErrRefreshTokenRequired) {
		t.Fatalf("expected ErrRefreshTokenRequired, got %v", err)
	}
	if _, err := f.service.Refresh(ctx, "not-a-token"); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken, got %v", err)
	}
	// An access token is not accepted as a refresh token.
	if _, err := f.service.Refresh(ctx, registered.Tokens.AccessToken); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected ErrInvalidRefreshToken for access token, got %v", err)
	}

	account := f.stored(t, registered.Account.ID)
	account.Status = domain.AccountStatusInactive
	f.accounts.put(account)
	if _, err := f.service.Refresh(ctx, registered.Tokens.RefreshToken); !errors.Is(err, ErrRefreshAccountInactive) {
		t.Fatalf("expected ErrRefreshAccountInactive, got %v", err)
	}

	if err := f.accounts.Delete(ctx, account.ID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := f.service.Refresh(ctx, registered.Tokens.RefreshToken); !errors.Is(err, ErrRefreshAccountInactive) {
		t.Fatalf("expected ErrRefreshAccountInactive for missing account, got %v", err)
	}
}

func TestRefreshReadsRoleFromStore(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)

	account := f.stored(t, registered.Account.ID)
	account.Role = domain.RoleAdmin
	f.accounts.put(account)

	pair, err := f.service.Refresh(context.Background(), registered.Tokens.RefreshToken)
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if role := accessPayload(t, f, pair).Role; role != domain.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", role)
	}
}

func TestForgotAndResetPassword(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	message, err := f.service.ForgotPassword(ctx, "A@x.com")
	if err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if message != MessageResetLinkSent {
		t.Fatalf("unexpected message %q", message)
	}
	if len(f.notifier.resets) != 1 {
		t.Fatalf("expected one reset mail, got %d", len(f.notifier.resets))
	}
	mail := f.notifier.resets[0]
	if !strings.HasPrefix(mail.ResetURL, "http://localhost:3001/reset-password?code=") || !strings.HasSuffix(mail.ResetURL, mail.Code) {
		t.Fatalf("unexpected reset url %q", mail.ResetURL)
	}
	if len(f.events.resetAsked) != 1 || f.events.resetAsked[0].MaskedDestination == "a@x.com" {
		t.Fatalf("unexpected reset requested events %+v", f.events.resetAsked)
	}

	message, err = f.service.ResetPassword(ctx, ResetPasswordInput{Password: "brand-new-1", Code: mail.Code, Device: testDevice})
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if message != MessagePasswordChanged {
		t.Fatalf("unexpected message %q", message)
	}

	stored := f.stored(t, registered.Account.ID)
	if stored.TwoFactorCodeHash != nil || stored.LastVerifiedAt != nil {
		t.Fatal("reset must clear the code and the last verification")
	}
	if len(stored.TrustedDevices) != 1 || stored.TrustedDevices[0] != testDevice {
		t.Fatalf("unexpected trusted devices %v", stored.TrustedDevices)
	}

	if _, err := f.service.Login(ctx, LoginInput{Email: "a@x.com", Password: "secret1"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password must stop working, got %v", err)
	}
	if _, err := f.service.Login(ctx, LoginInput{Email: "a@x.com", Password: "brand-new-1"}); err != nil {
		t.Fatalf("new password must work, got %v", err)
	}

	if _, err := f.service.ResetPassword(ctx, ResetPasswordInput{Password: "another-one-2", Code: mail.Code}); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("used code must be rejected, got %v", err)
	}
}

func TestResetPasswordInvalidatesRefreshTokens(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	if _, err := f.service.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if _, err := f.service.ResetPassword(ctx, ResetPasswordInput{Password: "brand-new-1", Code: f.notifier.resets[0].Code}); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}

	if _, err := f.service.Refresh(ctx, registered.Tokens.RefreshToken); !errors.Is(err, ErrRefreshTokenReused) {
		t.Fatalf("expected pre-reset refresh token to be rejected, got %v", err)
	}
}

func TestResetPasswordCodeFailuresAreUniform(t *testing.T) {
	f := newAuthFixture(t)
	registerAlice(t, f)
	ctx := context.Background()

	if _, err := f.service.ForgotPassword(ctx, "a@x.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	code := f.notifier.resets[0].Code

	if _, err := f.service.ResetPassword(ctx, ResetPasswordInput{Password: "brand-new-1", Code: "000000"}); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("unknown code: expected ErrInvalidResetCode, got %v", err)
	}
	if _, err := f.service.ResetPassword(ctx, ResetPasswordInput{Password: "brand-new-1", Code: ""}); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("empty code: expected ErrInvalidResetCode, got %v", err)
	}

	f.clock.Advance(domain.DefaultCodeTTL)
	if _, err := f.service.ResetPassword(ctx, ResetPasswordInput{Password: "brand-new-1", Code: code}); !errors.Is(err, ErrInvalidResetCode) {
		t.Fatalf("expired code: expected ErrInvalidResetCode, got %v", err)
	}
}

func TestForgotPasswordUnknownAccount(t *testing.T) {
	f := newAuthFixture(t)

	if _, err := f.service.ForgotPassword(context.Background(), "nobody@x.com"); !errors.Is(err, ErrAccountDoesNotExist) {
		t.Fatalf("expected ErrAccountDoesNotExist, got %v", err)
	}
	if len(f.notifier.resets) != 0 {
		t.Fatal("no mail expected")
	}
}

func TestForgotPasswordAdminLinkUsesAdminPage(t *testing.T) {
	f := newAuthFixture(t)
	f.seedAccount(t, "ops@x.com", domain.RoleAdminCS)

	if _, err := f.service.ForgotPassword(context.Background(), "ops@x.com"); err != nil {
		t.Fatalf("ForgotPassword returned error: %v", err)
	}
	if url := f.notifier.resets[0].ResetURL; !strings.HasPrefix(url, "http://localhost:3000/reset-password?code=") {
		t.Fatalf("unexpected admin reset url %q", url)
	}
}

func TestAuthenticateResolvesPrincipal(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)
	ctx := context.Background()

	principal, err := f.service.Authenticate(ctx, registered.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	if principal.AccountID != registered.Account.ID || principal.Username != "alice" || principal.TwoFactorVerified {
		t.Fatalf("unexpected principal %+v", principal)
	}

	if _, err := f.service.Authenticate(ctx, "garbage"); !errors.Is(err, ErrInvalidAccessToken) {
		t.Fatalf("expected ErrInvalidAccessToken, got %v", err)
	}

	f.clock.Advance(11 * time.Minute)
	if _, err := f.service.Authenticate(ctx, registered.Tokens.AccessToken); !errors.Is(err, ErrExpiredAccessToken) {
		t.Fatalf("expected ErrExpiredAccessToken, got %v", err)
	}
}

func TestCurrentReturnsProfile(t *testing.T) {
	f := newAuthFixture(t)
	registered := registerAlice(t, f)

	profile, err := f.service.Current(context.Background(), registered.Account.ID)
	if err != nil {
		t.Fatalf("Current returned error: %v", err)
	}
	if profile.Email != "a@x.com" || profile.Role != domain.RoleUser {
		t.Fatalf("unexpected profile %+v", profile)
	}

	if _, err := f.service.Current(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestEventFailuresDoNotFailFlows(t *testing.T) {
	f := newAuthFixture(t)
	f.events.err = errors.New("broker unavailable")

	registered := registerAlice(t, f)
	if _, err := f.service.ConfirmRegistrationTwoFactor(context.Background(), ConfirmInput{AccountID: registered.Account.ID, Code: f.notifier.lastCode(t)}); err != nil {
		t.Fatalf("ConfirmRegistrationTwoFactor returned error: %v", err)
	}
}

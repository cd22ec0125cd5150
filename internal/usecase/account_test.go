package usecase

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

type memoryDirectory struct {
	users map[string]domain.ChatUser
	err   error
}

func (d *memoryDirectory) InsertIfMissing(_ context.Context, user domain.ChatUser) (bool, error) {
	if d.err != nil {
		return false, d.err
	}
	if _, ok := d.users[user.AccountID]; ok {
		return false, nil
	}
	d.users[user.AccountID] = user
	return true, nil
}

func TestSyncChatUsersInsertsMissingOnly(t *testing.T) {
	accounts := newMemoryAccounts()
	accounts.put(domain.Account{ID: "a", Username: "alice", Role: domain.RoleUser, Status: domain.AccountStatusActive})
	accounts.put(domain.Account{ID: "b", Username: "bob", Role: domain.RoleAdmin, Status: domain.AccountStatusActive})

	directory := &memoryDirectory{users: map[string]domain.ChatUser{
		"a": {AccountID: "a", Name: "alice-original"},
	}}
	clock := newTestClock()
	service := NewAccountService(accounts, directory, zaptest.NewLogger(t))
	service.WithClock(clock.Now)

	result, err := service.SyncChatUsers(context.Background())
	if err != nil {
		t.Fatalf("SyncChatUsers returned error: %v", err)
	}
	if result.Inserted != 1 || result.Total != 2 {
		t.Fatalf("unexpected result %+v", result)
	}
	if directory.users["a"].Name != "alice-original" {
		t.Fatal("existing directory entry must not be overwritten")
	}
	bob := directory.users["b"]
	if bob.Name != "bob" || bob.Role != domain.RoleAdmin || !bob.CreatedAt.Equal(clock.Now()) {
		t.Fatalf("unexpected chat user %+v", bob)
	}

	again, err := service.SyncChatUsers(context.Background())
	if err != nil {
		t.Fatalf("second SyncChatUsers returned error: %v", err)
	}
	if again.Inserted != 0 {
		t.Fatalf("expected idempotent sync, inserted %d", again.Inserted)
	}
}

func TestSyncChatUsersPropagatesDirectoryError(t *testing.T) {
	accounts := newMemoryAccounts()
	accounts.put(domain.Account{ID: "a", Username: "alice"})
	directory := &memoryDirectory{users: map[string]domain.ChatUser{}, err: errors.New("mongo down")}

	if _, err := NewAccountService(accounts, directory, nil).SyncChatUsers(context.Background()); err == nil {
		t.Fatal("expected directory error")
	}
}

func TestAccountGet(t *testing.T) {
	accounts := newMemoryAccounts()
	accounts.put(domain.Account{ID: "a", Email: "a@x.com", Username: "alice", Role: domain.RoleUser, Status: domain.AccountStatusActive})
	service := NewAccountService(accounts, &memoryDirectory{users: map[string]domain.ChatUser{}}, nil)

	profile, err := service.Get(context.Background(), "a")
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if profile.Username != "alice" || profile.Email != "a@x.com" {
		t.Fatalf("unexpected profile %+v", profile)
	}
	if _, err := service.Get(context.Background(), "missing"); !errors.Is(err, ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}

func TestResetLinksPickFrontEndByRole(t *testing.T) {
	links := ResetLinks{UserPage: "https://chat.example.com/", AdminPage: "https://admin.example.com"}

	if got := links.URL(domain.RoleUser, "12 34"); got != "https://chat.example.com/reset-password?code=12+34" {
		t.Fatalf("unexpected user link %q", got)
	}
	for _, role := range []domain.Role{domain.RoleAdmin, domain.RoleAdminCS, domain.RoleSystemAdmin} {
		if got := links.URL(role, "123456"); got != "https://admin.example.com/reset-password?code=123456" {
			t.Fatalf("unexpected %s link %q", role, got)
		}
	}
}

package domain

import "time"

// ChatUser is the projection of an account kept in the chat user directory.
type ChatUser struct {
	Name      string
	AccountID string
	Role      Role
	CreatedAt time.Time
}

// ChatUserOf builds the directory projection of an account.
func ChatUserOf(account Account, at time.Time) ChatUser {
	return ChatUser{
		Name:      account.Username,
		AccountID: account.ID,
		Role:      account.Role,
		CreatedAt: at.UTC(),
	}
}

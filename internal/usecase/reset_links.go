package usecase

import (
	"net/url"
	"strings"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

// ResetLinks renders password reset URLs for the front-end that serves a role.
type ResetLinks struct {
	UserPage  string
	AdminPage string
}

// URL returns <page>/reset-password?code=<code>. USER accounts use the user
// front-end and every administrative role uses the admin front-end.
func (l ResetLinks) URL(role domain.Role, code string) string {
	page := l.UserPage
	if role.IsAdministrative() {
		page = l.AdminPage
	}
	return strings.TrimRight(page, "/") + "/reset-password?code=" + url.QueryEscape(code)
}

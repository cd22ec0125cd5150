package mailer

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"time"

	"github.com/arklim/chat-account-api/internal/core/domain"
)

const (
	verificationSubject = "Your 2FA Code"
	resetSubject        = "Reset Password"

	expiryLayout = "2006-01-02 15:04 MST"
)

//go:embed templates/*.html
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

type confirmView struct {
	Username       string
	Code           string
	Administrative bool
	ExpiresAt      string
}

type resetView struct {
	Username  string
	ResetURL  string
	ExpiresAt string
}

func renderVerification(mail domain.VerificationCodeMail) (string, error) {
	return render("confirm.html", confirmView{
		Username:       mail.Username,
		Code:           mail.Code,
		Administrative: mail.Role.IsAdministrative(),
		ExpiresAt:      formatExpiry(mail.ExpiresAt),
	})
}

func renderReset(mail domain.PasswordResetMail) (string, error) {
	return render("forgot-password.html", resetView{
		Username:  mail.Username,
		ResetURL:  mail.ResetURL,
		ExpiresAt: formatExpiry(mail.ExpiresAt),
	})
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

func formatExpiry(at time.Time) string {
	return at.UTC().Format(expiryLayout)
}

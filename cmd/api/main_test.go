package main

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("ACCOUNT_MAIN_TEST_PORT=9100\nACCOUNT_MAIN_TEST_ENV=staging\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	t.Setenv("ACCOUNT_MAIN_TEST_ENV", "production")
	t.Cleanup(func() { _ = os.Unsetenv("ACCOUNT_MAIN_TEST_PORT") })

	if err := loadEnvFile(path); err != nil {
		t.Fatalf("loadEnvFile returned error: %v", err)
	}
	if got := os.Getenv("ACCOUNT_MAIN_TEST_PORT"); got != "9100" {
		t.Fatalf("expected port from file, got %q", got)
	}
	if got := os.Getenv("ACCOUNT_MAIN_TEST_ENV"); got != "production" {
		t.Fatalf("file must not override the environment, got %q", got)
	}
}

func TestLoadEnvFileIgnoresMissingFile(t *testing.T) {
	if err := loadEnvFile(filepath.Join(t.TempDir(), "absent.env")); err != nil {
		t.Fatalf("expected missing file to be ignored, got %v", err)
	}
	if err := loadEnvFile(""); err != nil {
		t.Fatalf("expected empty path to be ignored, got %v", err)
	}
}

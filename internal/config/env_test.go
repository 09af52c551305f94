package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles_FromWorkingDir(t *testing.T) {
	dir := t.TempDir()
	content := `# local overrides
MEDTRACK_TRACKER_SNOOZE_MINUTES=15
MEDTRACK_LOG_LEVEL="debug"
`
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("HOME", t.TempDir())
	t.Setenv("MEDTRACK_TRACKER_SNOOZE_MINUTES", "")
	os.Unsetenv("MEDTRACK_TRACKER_SNOOZE_MINUTES")
	t.Setenv("MEDTRACK_LOG_LEVEL", "warn")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles failed: %v", err)
	}

	if got := os.Getenv("MEDTRACK_TRACKER_SNOOZE_MINUTES"); got != "15" {
		t.Errorf("snooze minutes not loaded from .env: %q", got)
	}
	if got := os.Getenv("MEDTRACK_LOG_LEVEL"); got != "warn" {
		t.Errorf(".env overrode an existing variable: %q", got)
	}
}

func TestLoadEnvFiles_NoneExist(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv("HOME", t.TempDir())

	if err := LoadEnvFiles(); err != nil {
		t.Errorf("missing .env files should be ignored, got %v", err)
	}
}

func TestApplyAliases(t *testing.T) {
	t.Setenv("MEDTRACK_SERVER_PORT", "")
	t.Setenv("PORT", "9090")

	t.Setenv("MEDTRACK_SECURITY_JWT_SECRET", "")
	t.Setenv("MEDTRACK_JWT_SECRET", "")
	t.Setenv("JWT_SECRET", "generic")

	t.Setenv("MEDTRACK_TRACKER_TIMEZONE", "Europe/Berlin")
	t.Setenv("TZ", "UTC")

	ApplyAliases()

	if got := os.Getenv("MEDTRACK_SERVER_PORT"); got != "9090" {
		t.Errorf("PORT alias not applied, got %q", got)
	}
	if got := os.Getenv("MEDTRACK_SECURITY_JWT_SECRET"); got != "generic" {
		t.Errorf("JWT_SECRET alias not applied, got %q", got)
	}
	if got := os.Getenv("MEDTRACK_TRACKER_TIMEZONE"); got != "Europe/Berlin" {
		t.Errorf("canonical timezone overridden by alias, got %q", got)
	}
}

func TestApplyAliases_FirstAliasWins(t *testing.T) {
	t.Setenv("MEDTRACK_SECURITY_JWT_SECRET", "")
	t.Setenv("MEDTRACK_JWT_SECRET", "short")
	t.Setenv("JWT_SECRET", "generic")

	ApplyAliases()

	if got := os.Getenv("MEDTRACK_SECURITY_JWT_SECRET"); got != "short" {
		t.Errorf("expected first alias, got %q", got)
	}
}

func TestEnvPaths(t *testing.T) {
	t.Setenv("HOME", "/home/dana")

	paths := EnvPaths()
	if len(paths) != 3 || paths[0] != "./.env" {
		t.Fatalf("unexpected env paths %v", paths)
	}
	if paths[1] != filepath.Join("/home/dana", ".medtrack", ".env") {
		t.Errorf("expected ~/.medtrack/.env second, got %s", paths[1])
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	Cfg = Settings{}
	Load()

	if Cfg.ListenAddr != ":8000" {
		t.Errorf("ListenAddr = %q, want :8000", Cfg.ListenAddr)
	}
	if Cfg.ShellCommand != "/bin/bash" {
		t.Errorf("ShellCommand = %q, want /bin/bash", Cfg.ShellCommand)
	}
	if Cfg.IdleTimeout != "15m" {
		t.Errorf("IdleTimeout = %q, want 15m", Cfg.IdleTimeout)
	}
	if Cfg.MaxSessions != 100 {
		t.Errorf("MaxSessions = %d, want 100", Cfg.MaxSessions)
	}
	if Cfg.ScrollbackSize != 262144 {
		t.Errorf("ScrollbackSize = %d, want 262144", Cfg.ScrollbackSize)
	}
}

func TestLoadFromEnv(t *testing.T) {
	os.Setenv("LSCLEAR_LISTEN_ADDR", ":9999")
	os.Setenv("LSCLEAR_MAX_SESSIONS", "5")
	defer os.Unsetenv("LSCLEAR_LISTEN_ADDR")
	defer os.Unsetenv("LSCLEAR_MAX_SESSIONS")

	Cfg = Settings{}
	Load()

	if Cfg.ListenAddr != ":9999" {
		t.Errorf("ListenAddr = %q, want :9999", Cfg.ListenAddr)
	}
	if Cfg.MaxSessions != 5 {
		t.Errorf("MaxSessions = %d, want 5", Cfg.MaxSessions)
	}
}

func TestApplyFile(t *testing.T) {
	Cfg = Settings{}
	Load()

	path := filepath.Join(t.TempDir(), "override.yaml")
	content := "listen_addr: \":7070\"\nshell_command: /bin/sh\nidle_timeout: 5m\nmax_sessions: 10\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write override file: %v", err)
	}

	if err := ApplyFile(path); err != nil {
		t.Fatalf("ApplyFile: %v", err)
	}
	if Cfg.ListenAddr != ":7070" {
		t.Errorf("ListenAddr = %q, want :7070", Cfg.ListenAddr)
	}
	if Cfg.ShellCommand != "/bin/sh" {
		t.Errorf("ShellCommand = %q, want /bin/sh", Cfg.ShellCommand)
	}
	if Cfg.IdleTimeout != "5m" {
		t.Errorf("IdleTimeout = %q, want 5m", Cfg.IdleTimeout)
	}
	if Cfg.MaxSessions != 10 {
		t.Errorf("MaxSessions = %d, want 10", Cfg.MaxSessions)
	}
	// Fields absent from the file keep their environment values.
	if Cfg.DatabasePath != "./data/lsclear.db" {
		t.Errorf("DatabasePath = %q, want default", Cfg.DatabasePath)
	}
}

func TestApplyFile_Errors(t *testing.T) {
	if err := ApplyFile("/no/such/file.yaml"); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("listen_addr: [not, a, string"), 0644)
	if err := ApplyFile(path); err == nil {
		t.Error("expected error for malformed yaml")
	}
}

func TestDuration(t *testing.T) {
	if got := Duration("30s", time.Minute); got != 30*time.Second {
		t.Errorf("Duration(30s) = %s", got)
	}
	if got := Duration("", time.Minute); got != time.Minute {
		t.Errorf("Duration(empty) = %s, want fallback", got)
	}
	if got := Duration("banana", time.Minute); got != time.Minute {
		t.Errorf("Duration(banana) = %s, want fallback", got)
	}
}

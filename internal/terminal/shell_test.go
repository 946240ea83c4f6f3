package terminal

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// collectOutput drains a shell's PTY into a shared buffer so tests can
// poll for expected substrings.
func collectOutput(sp *ShellProcess) (read func() string) {
	var mu sync.Mutex
	var out strings.Builder
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := sp.Read(buf)
			if n > 0 {
				mu.Lock()
				out.Write(buf[:n])
				mu.Unlock()
			}
			if err != nil {
				return
			}
		}
	}()
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		return out.String()
	}
}

func waitForOutput(t *testing.T, read func() string, want string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(read(), want) {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("output never contained %q; got %q", want, read())
}

func TestSpawnShell_EchoRoundTrip(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	defer sp.Terminate(time.Second)

	read := collectOutput(sp)

	// The empty quotes keep the marker out of the echoed input line, so a
	// match proves the shell executed the command.
	if _, err := sp.Write([]byte("echo round\"\"trip\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForOutput(t, read, "roundtrip")
}

func TestSpawnShell_OrderedChunkedWrites(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	defer sp.Terminate(time.Second)

	read := collectOutput(sp)

	// Written in fragments; the shell must observe the concatenation in
	// order for the assembled command to produce the marker.
	for _, chunk := range []string{"ec", "ho or", "der\"\"", "ed", "\n"} {
		if _, err := sp.Write([]byte(chunk)); err != nil {
			t.Fatalf("Write chunk %q: %v", chunk, err)
		}
	}
	waitForOutput(t, read, "ordered")
}

func TestSpawnShell_ShellEnvMatchesSpawnedShell(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	defer sp.Terminate(time.Second)

	read := collectOutput(sp)

	// The echoed input still shows the unexpanded variable, so a match
	// proves the child's environment, not the keystroke echo.
	if _, err := sp.Write([]byte("echo x:$SHELL\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	waitForOutput(t, read, "x:/bin/sh")
}

func TestSpawnShell_DefaultDimensions(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 0, 0, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell with zero dims: %v", err)
	}
	sp.Terminate(time.Second)
}

func TestSpawnShell_RejectsUnknownShell(t *testing.T) {
	if _, err := SpawnShell("/bin/evil", 24, 80, time.Second); !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("expected ErrSpawnFailed, got %v", err)
	}
}

func TestShellProcess_TerminateIdempotent(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}

	sp.Terminate(time.Second)
	sp.Terminate(time.Second) // second call must be a no-op

	select {
	case <-sp.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("process not reaped after Terminate")
	}
	if sp.Alive() {
		t.Error("expected process dead after Terminate")
	}
}

func TestShellProcess_DoneOnExit(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	defer sp.Terminate(time.Second)

	if !sp.Alive() {
		t.Fatal("expected process alive after spawn")
	}
	if _, err := sp.Write([]byte("exit\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	select {
	case <-sp.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Done not closed after shell exit")
	}
}

func TestShellProcess_Resize(t *testing.T) {
	sp, err := SpawnShell("/bin/sh", 24, 80, 10*time.Second)
	if err != nil {
		t.Fatalf("SpawnShell: %v", err)
	}
	defer sp.Terminate(time.Second)

	if err := sp.Resize(50, 120); err != nil {
		t.Errorf("Resize: %v", err)
	}
}

func TestValidateShell(t *testing.T) {
	tests := []struct {
		shell string
		ok    bool
	}{
		{"", true},
		{"/bin/bash", true},
		{"/bin/sh", true},
		{"/bin/zsh", true},
		{"su", true},
		{"su - abc", true},
		{"/bin/evil", false},
		{"suspicious", false},
		{"su - abc; rm -rf /", false},
		{"su - abc | cat", false},
		{"su - $(whoami)", false},
	}
	for _, tt := range tests {
		err := ValidateShell(tt.shell)
		if tt.ok && err != nil {
			t.Errorf("ValidateShell(%q) = %v, want nil", tt.shell, err)
		}
		if !tt.ok && err == nil {
			t.Errorf("ValidateShell(%q) = nil, want error", tt.shell)
		}
	}
}

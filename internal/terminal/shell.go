package terminal

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/creack/pty"
)

// DefaultShell is used when no shell command is configured.
const DefaultShell = "/bin/bash"

// AllowedShells is the set of shell binaries permitted for interactive
// sessions. Anything else is rejected by ValidateShell.
var AllowedShells = map[string]bool{
	"/bin/bash": true,
	"/bin/sh":   true,
	"/bin/zsh":  true,
}

// MaxInputMessageSize is the maximum size in bytes for a single terminal
// input message. Larger messages are dropped.
const MaxInputMessageSize = 64 * 1024

// MaxResizeCols and MaxResizeRows bound terminal resize requests.
const (
	MaxResizeCols uint16 = 500
	MaxResizeRows uint16 = 500
)

// ValidateShell checks that the configured shell command is either a
// whitelisted shell or a plain "su"/"su - <user>" invocation with no
// shell metacharacters.
func ValidateShell(shell string) error {
	if shell == "" {
		return nil // defaults to DefaultShell
	}
	if AllowedShells[shell] {
		return nil
	}
	if shell == "su" || strings.HasPrefix(shell, "su ") {
		for _, c := range shell {
			switch c {
			case ';', '&', '|', '$', '`', '(', ')', '{', '}', '<', '>', '\n', '\\', '"', '\'', '!':
				return fmt.Errorf("shell command %q contains forbidden character %q", shell, string(c))
			}
		}
		return nil
	}
	return fmt.Errorf("shell %q is not in the allowed list", shell)
}

// shellEnv builds the child environment: the server's environment with
// terminal identification layered on top, matching what the sandbox
// containers expect. shell is the binary actually spawned, so $SHELL
// inside the session matches it.
func shellEnv(shell string) []string {
	env := os.Environ()
	env = append(env,
		"TERM=xterm-256color",
		"SHELL="+shell,
	)
	return env
}

// ShellProcess owns exactly one interactive shell bound to a
// pseudo-terminal. It is owned exclusively by its Session.
type ShellProcess struct {
	cmd  *exec.Cmd
	ptmx *os.File

	// done is closed once the child has been reaped by Wait.
	done     chan struct{}
	waitErr  error
	termOnce sync.Once
}

// SpawnShell starts the shell attached to a new PTY of the given
// dimensions. The spawn is bounded by timeout; on expiry or start
// failure the error wraps ErrSpawnFailed.
func SpawnShell(shellCmd string, rows, cols uint16, timeout time.Duration) (*ShellProcess, error) {
	if err := ValidateShell(shellCmd); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, err)
	}
	if shellCmd == "" {
		shellCmd = DefaultShell
	}
	if rows == 0 {
		rows = 24
	}
	if cols == 0 {
		cols = 80
	}

	parts := strings.Fields(shellCmd)
	cmd := exec.Command(parts[0], parts[1:]...)
	// su sessions get the default; the login shell sets its own $SHELL.
	sh := parts[0]
	if !AllowedShells[sh] {
		sh = DefaultShell
	}
	cmd.Env = shellEnv(sh)

	type startResult struct {
		ptmx *os.File
		err  error
	}
	started := make(chan startResult, 1)
	go func() {
		ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Rows: rows, Cols: cols})
		started <- startResult{ptmx, err}
	}()

	var res startResult
	select {
	case res = <-started:
	case <-time.After(timeout):
		// Reap the child if the start ever completes after the deadline.
		go func() {
			if r := <-started; r.err == nil {
				r.ptmx.Close()
				cmd.Process.Kill()
				cmd.Wait()
			}
		}()
		return nil, fmt.Errorf("%w: timed out after %s", ErrSpawnFailed, timeout)
	}
	if res.err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSpawnFailed, res.err)
	}

	sp := &ShellProcess{
		cmd:  cmd,
		ptmx: res.ptmx,
		done: make(chan struct{}),
	}
	go func() {
		sp.waitErr = cmd.Wait()
		close(sp.done)
	}()
	return sp, nil
}

// Read reads shell output from the PTY master. The stream ends (returns
// an error) once the process exits and the PTY drains.
func (sp *ShellProcess) Read(p []byte) (int, error) {
	return sp.ptmx.Read(p)
}

// Write forwards raw bytes to the shell's input. No interpretation, no
// line buffering; control sequences pass through untouched.
func (sp *ShellProcess) Write(p []byte) (int, error) {
	return sp.ptmx.Write(p)
}

// Resize propagates new dimensions to the PTY. Best effort; callers log
// the error and carry on.
func (sp *ShellProcess) Resize(rows, cols uint16) error {
	return pty.Setsize(sp.ptmx, &pty.Winsize{Rows: rows, Cols: cols})
}

// Done returns a channel closed when the child has exited and been reaped.
func (sp *ShellProcess) Done() <-chan struct{} {
	return sp.done
}

// Alive reports whether the child is still running.
func (sp *ShellProcess) Alive() bool {
	select {
	case <-sp.done:
		return false
	default:
		return true
	}
}

// Pid returns the child process ID.
func (sp *ShellProcess) Pid() int {
	return sp.cmd.Process.Pid
}

// Terminate stops the shell: SIGTERM, a grace window, then SIGKILL, and
// finally closes the PTY descriptor. The child is always reaped by the
// Wait goroutine, so no zombies are left behind. Idempotent; terminating
// an already-dead process is a no-op.
func (sp *ShellProcess) Terminate(grace time.Duration) {
	sp.termOnce.Do(func() {
		defer sp.ptmx.Close()

		select {
		case <-sp.done:
			return
		default:
		}

		if err := sp.cmd.Process.Signal(syscall.SIGTERM); err != nil {
			// Already reaped between the check and the signal.
			return
		}

		select {
		case <-sp.done:
			return
		case <-time.After(grace):
		}

		if err := sp.cmd.Process.Kill(); err != nil {
			log.Printf("[terminal] kill pid %d: %v", sp.cmd.Process.Pid, err)
		}
		<-sp.done
	})
}

package terminal

import (
	"io"
	"sync"
	"time"
)

// State is the lifecycle state of a session.
type State string

const (
	// StateCreated means the session exists but no socket has ever attached.
	StateCreated State = "created"
	// StateAttached means a WebSocket is currently bridged to the shell.
	StateAttached State = "attached"
	// StateDetached means the shell is alive but no socket is attached.
	StateDetached State = "detached"
	// StateClosed means the shell has been terminated; the session is a tombstone.
	StateClosed State = "closed"
)

// Close reasons reported to the client in the trailer line before the
// server closes the socket.
const (
	ReasonShellExited = "shell exited"
	ReasonDeleted     = "session deleted"
	ReasonIdle        = "idle timeout"
	ReasonShutdown    = "server shutting down"
)

// Session binds one owner to one live shell process. The shell and the
// scrollback buffer are owned exclusively by the session; the attached
// socket is only tracked as a back reference for bookkeeping, its
// lifetime belongs to the bridge that attached it.
type Session struct {
	ID          string
	OwnerUserID string
	CreatedAt   time.Time

	shell      *ShellProcess
	scrollback *ScrollbackBuffer

	mu           sync.Mutex
	state        State
	closeReason  string
	lastActivity time.Time
	sink         io.Writer // output destination while attached, nil otherwise
	attachedConn StreamConn

	// done is closed when the session transitions to StateClosed.
	done chan struct{}
}

func newSession(id, ownerUserID string) *Session {
	return &Session{
		ID:           id,
		OwnerUserID:  ownerUserID,
		CreatedAt:    time.Now(),
		state:        StateCreated,
		lastActivity: time.Now(),
		done:         make(chan struct{}),
	}
}

// bindShell attaches the spawned shell process and scrollback buffer.
// Called exactly once by the controller right after a successful spawn.
func (s *Session) bindShell(sp *ShellProcess, sb *ScrollbackBuffer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shell = sp
	s.scrollback = sb
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// CloseReason returns the reason recorded by the first Close call, or "".
func (s *Session) CloseReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeReason
}

// LastActivity returns the time of the last inbound traffic or state change.
func (s *Session) LastActivity() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActivity
}

// Touch records activity for idle-timeout accounting.
func (s *Session) Touch() {
	s.mu.Lock()
	s.lastActivity = time.Now()
	s.mu.Unlock()
}

// Done returns a channel closed when the session is torn down.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// attach transitions Created/Detached to Attached and installs the
// output sink. It returns the scrollback snapshot to replay; capturing
// the snapshot and installing the sink under one lock guarantees no
// output chunk is lost or duplicated across the replay boundary.
func (s *Session) attach(conn StreamConn, sink io.Writer) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch s.state {
	case StateClosed:
		return nil, ErrSessionClosed
	case StateAttached:
		return nil, ErrAlreadyAttached
	}
	if s.shell == nil {
		return nil, ErrNotReady
	}

	snapshot := s.scrollback.Snapshot()
	s.state = StateAttached
	s.sink = sink
	s.attachedConn = conn
	s.lastActivity = time.Now()
	return snapshot, nil
}

// detach removes the given sink and transitions Attached to Detached.
// A no-op if the session is already closed or a different bridge has
// since attached.
func (s *Session) detach(sink io.Writer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sink != sink {
		return
	}
	s.sink = nil
	s.attachedConn = nil
	if s.state == StateAttached {
		s.state = StateDetached
		s.lastActivity = time.Now()
	}
}

// deliver routes one chunk of shell output: append to the scrollback and
// pick the sink under the same lock attach uses for its snapshot+install,
// so a chunk lands either in a client's replayed snapshot or in its live
// stream, never both. The blocking socket write stays outside the lock; a
// write failure only detaches, the shell keeps running.
func (s *Session) deliver(chunk []byte) {
	s.mu.Lock()
	if s.scrollback != nil {
		s.scrollback.Write(chunk)
	}
	w := s.sink
	s.mu.Unlock()

	if w != nil {
		if _, err := w.Write(chunk); err != nil {
			s.detach(w)
		}
	}
}

// IsAttached reports whether a socket is currently bridged.
func (s *Session) IsAttached() bool {
	return s.State() == StateAttached
}

// WriteInput forwards raw bytes to the shell's PTY and records activity.
func (s *Session) WriteInput(p []byte) (int, error) {
	s.mu.Lock()
	sp := s.shell
	s.lastActivity = time.Now()
	s.mu.Unlock()
	if sp == nil {
		return 0, ErrNotReady
	}
	return sp.Write(p)
}

// Resize propagates a terminal resize to the PTY. Best effort.
func (s *Session) Resize(rows, cols uint16) error {
	s.mu.Lock()
	sp := s.shell
	s.mu.Unlock()
	if sp == nil {
		return ErrNotReady
	}
	return sp.Resize(rows, cols)
}

// Close tears the session down exactly once: it records the reason,
// signals the done channel (stopping any bridge before the process
// dies), then terminates the shell. Safe to call repeatedly and from
// any goroutine.
func (s *Session) Close(reason string, grace time.Duration) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.closeReason = reason
	s.lastActivity = time.Now()
	s.sink = nil
	s.attachedConn = nil
	sp := s.shell
	sb := s.scrollback
	s.mu.Unlock()

	close(s.done)
	if sp != nil {
		sp.Terminate(grace)
	}
	if sb != nil {
		sb.Close()
	}
}

// Alive reports whether the underlying shell process is still running.
func (s *Session) Alive() bool {
	s.mu.Lock()
	sp := s.shell
	s.mu.Unlock()
	if sp == nil {
		return false
	}
	return sp.Alive()
}

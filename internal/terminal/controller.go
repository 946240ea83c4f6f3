package terminal

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// trailerTimeout bounds the final status write on a closing socket.
const trailerTimeout = 5 * time.Second

// Config carries the controller's tunables. Zero values fall back to the
// defaults below.
type Config struct {
	// ShellCommand is the command spawned per session (whitelisted by ValidateShell).
	ShellCommand string
	// IdleTimeout closes detached sessions with no activity; it also sets
	// how long closed tombstones linger before the sweep prunes them.
	IdleTimeout time.Duration
	// SpawnTimeout bounds how long StartSession waits for the shell to start.
	SpawnTimeout time.Duration
	// TerminateGrace is the SIGTERM-to-SIGKILL window on teardown.
	TerminateGrace time.Duration
	// MaxSessions caps concurrent live sessions across all users.
	MaxSessions int
	// ScrollbackSize caps the per-session replay buffer in bytes.
	ScrollbackSize int
	// SweepInterval is the cron cadence of the idle sweep.
	SweepInterval time.Duration
}

func (c *Config) applyDefaults() {
	if c.ShellCommand == "" {
		c.ShellCommand = DefaultShell
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 15 * time.Minute
	}
	if c.SpawnTimeout <= 0 {
		c.SpawnTimeout = 10 * time.Second
	}
	if c.TerminateGrace <= 0 {
		c.TerminateGrace = 5 * time.Second
	}
	if c.MaxSessions <= 0 {
		c.MaxSessions = 100
	}
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
}

// Controller is the session lifecycle state machine exposed to the HTTP
// layer: create (spawn), attach (bridge), delete (teardown), plus the
// periodic idle sweep. One session per owner, with reattach semantics:
// starting a session for a user who already holds a live one returns the
// existing session instead of spawning a second shell.
type Controller struct {
	cfg      Config
	registry *Registry
	sweeper  *cron.Cron

	// startMu serializes StartSession's reuse-or-create decision, held
	// through spawn and bind so a reused session always has its shell
	// bound and two concurrent starts for one owner cannot both spawn.
	startMu sync.Mutex
}

// NewController creates a controller with its own registry.
func NewController(cfg Config) *Controller {
	cfg.applyDefaults()
	return &Controller{
		cfg:      cfg,
		registry: NewRegistry(cfg.MaxSessions),
	}
}

// Registry exposes the underlying session table (used by handlers for
// listing and by tests).
func (c *Controller) Registry() *Registry {
	return c.registry
}

// StartSweeper schedules the idle sweep. Call Stop to halt it.
func (c *Controller) StartSweeper() error {
	c.sweeper = cron.New()
	spec := fmt.Sprintf("@every %s", c.cfg.SweepInterval)
	if _, err := c.sweeper.AddFunc(spec, func() { c.Sweep() }); err != nil {
		return fmt.Errorf("schedule idle sweep: %w", err)
	}
	c.sweeper.Start()
	return nil
}

// Stop halts the sweeper and tears down every live session.
func (c *Controller) Stop() {
	if c.sweeper != nil {
		c.sweeper.Stop()
	}
	for _, s := range c.registry.All() {
		s.Close(ReasonShutdown, c.cfg.TerminateGrace)
		c.registry.Remove(s.ID)
	}
}

// StartSession returns a session for ownerUserID, reusing the owner's
// existing live session if one exists, otherwise spawning a fresh shell.
// The bool result reports reuse. A spawn failure leaves no registry
// entry behind.
func (c *Controller) StartSession(ownerUserID string, rows, cols uint16) (*Session, bool, error) {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	for _, s := range c.registry.ListByOwner(ownerUserID) {
		if s.State() != StateClosed {
			return s, true, nil
		}
	}

	sess, err := c.registry.Create(ownerUserID)
	if err != nil {
		return nil, false, err
	}

	shell, err := SpawnShell(c.cfg.ShellCommand, rows, cols, c.cfg.SpawnTimeout)
	if err != nil {
		// Roll back the partial create; the caller sees no session.
		c.registry.Remove(sess.ID)
		return nil, false, err
	}
	sess.bindShell(shell, NewScrollbackBuffer(c.cfg.ScrollbackSize))

	go c.pumpOutput(sess, shell)

	log.Printf("[terminal] session %s created for user %s (pid %d)", sess.ID, ownerUserID, shell.Pid())
	return sess, false, nil
}

// pumpOutput is the single process-to-socket copy loop for a session. It
// runs for the shell's lifetime regardless of socket attachments: every
// chunk goes through Session.deliver, which lands it in the scrollback
// and in the attached sink when there is one. Sink writes block on the
// socket's flow control, which suspends further PTY reads — the
// backpressure contract.
func (c *Controller) pumpOutput(sess *Session, shell *ShellProcess) {
	buf := make([]byte, 32*1024)
	for {
		n, err := shell.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			sess.deliver(chunk)
		}
		if err != nil {
			// PTY drained: the shell exited (or teardown closed the fd).
			sess.Close(ReasonShellExited, c.cfg.TerminateGrace)
			log.Printf("[terminal] session %s output ended: %v", sess.ID, err)
			return
		}
	}
}

// Attach bridges conn to the session until either side closes. It fails
// with ErrNotFound for unknown IDs, ErrSessionClosed for tombstones, and
// ErrAlreadyAttached when a socket is already bridged; the existing
// attachment is never displaced.
func (c *Controller) Attach(ctx context.Context, sessionID string, conn StreamConn) error {
	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return err
	}
	return runBridge(ctx, sess, conn)
}

// DeleteSession authorizes the caller against the session's owner and
// forces teardown regardless of state. Repeated deletes are no-ops; an
// ID the registry never held (or already pruned) yields ErrNotFound.
func (c *Controller) DeleteSession(sessionID, ownerUserID string) error {
	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return err
	}
	if sess.OwnerUserID != ownerUserID {
		return ErrNotOwner
	}
	sess.Close(ReasonDeleted, c.cfg.TerminateGrace)
	log.Printf("[terminal] session %s deleted by user %s", sessionID, ownerUserID)
	return nil
}

// CloseAllForOwner tears down every live session belonging to userID and
// returns how many were closed.
func (c *Controller) CloseAllForOwner(userID string) int {
	closed := 0
	for _, s := range c.registry.ListByOwner(userID) {
		if s.State() != StateClosed {
			s.Close(ReasonDeleted, c.cfg.TerminateGrace)
			closed++
		}
	}
	return closed
}

// Status reports the poll-endpoint view of a session: RUNNING while the
// shell is alive, FAILED once closed, PENDING in between.
func (c *Controller) Status(sessionID string) (string, error) {
	sess, err := c.registry.Get(sessionID)
	if err != nil {
		return "", err
	}
	switch {
	case sess.State() == StateClosed:
		return "FAILED", nil
	case sess.Alive():
		return "RUNNING", nil
	default:
		return "PENDING", nil
	}
}

// Sweep closes sessions idle past the threshold and prunes closed
// tombstones past the same threshold. Sessions in StateCreated that were
// never attached age out the same way as detached ones. Returns the
// number of sessions closed.
func (c *Controller) Sweep() int {
	cutoff := time.Now().Add(-c.cfg.IdleTimeout)
	closed := 0
	for _, s := range c.registry.All() {
		state := s.State()
		stale := s.LastActivity().Before(cutoff)
		switch {
		case (state == StateDetached || state == StateCreated) && stale:
			log.Printf("[terminal] closing idle session %s (detached since %s)",
				s.ID, s.LastActivity().Format(time.RFC3339))
			s.Close(ReasonIdle, c.cfg.TerminateGrace)
			closed++
		case state == StateClosed && stale:
			c.registry.Remove(s.ID)
		}
	}
	return closed
}

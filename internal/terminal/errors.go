package terminal

import "errors"

// Sentinel errors returned by the registry and the lifecycle controller.
// Handlers map these onto HTTP status codes and WebSocket close codes.
var (
	// ErrNotFound means the session ID is not (or no longer) known to the registry.
	ErrNotFound = errors.New("session not found")
	// ErrSessionClosed means the session exists as a tombstone but has been torn down.
	ErrSessionClosed = errors.New("session closed")
	// ErrAlreadyAttached means a socket is already bridged to the session.
	ErrAlreadyAttached = errors.New("session already attached")
	// ErrNotReady means the session exists but its shell has not finished spawning.
	ErrNotReady = errors.New("session not ready")
	// ErrNotOwner means the caller is not the user the session was created for.
	ErrNotOwner = errors.New("session owned by different user")
	// ErrRegistryFull means the global concurrent-session cap was reached.
	ErrRegistryFull = errors.New("session registry full")
	// ErrSpawnFailed means the shell process could not be started.
	ErrSpawnFailed = errors.New("shell spawn failed")
)

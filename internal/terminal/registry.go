package terminal

import (
	"sync"

	"github.com/google/uuid"
)

// Registry is the thread-safe table of sessions keyed by session ID.
// All lookups and mutations from concurrently running bridges and the
// idle sweep go through its mutex; sessions themselves are never shared
// across bridges.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxLive  int
}

// NewRegistry creates a registry capped at maxLive concurrent non-closed
// sessions. maxLive <= 0 means unlimited.
func NewRegistry(maxLive int) *Registry {
	return &Registry{
		sessions: make(map[string]*Session),
		maxLive:  maxLive,
	}
}

// Create generates a fresh session ID, inserts a Session in StateCreated
// with no process bound yet, and returns it. Returns ErrRegistryFull when
// the live-session cap is reached. Generated IDs are collision-checked
// against current keys; an ID is never handed out twice while its prior
// holder is still tracked.
func (r *Registry) Create(ownerUserID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.maxLive > 0 && r.liveCountLocked() >= r.maxLive {
		return nil, ErrRegistryFull
	}

	id := uuid.New().String()
	for r.sessions[id] != nil {
		id = uuid.New().String()
	}

	s := newSession(id, ownerUserID)
	r.sessions[id] = s
	return s, nil
}

// Get returns the session for id, or ErrNotFound.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return s, nil
}

// Remove erases the entry for id. A no-op if absent.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

// ListByOwner returns every tracked session belonging to ownerUserID,
// closed tombstones included.
func (r *Registry) ListByOwner(ownerUserID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var result []*Session
	for _, s := range r.sessions {
		if s.OwnerUserID == ownerUserID {
			result = append(result, s)
		}
	}
	return result
}

// All returns every tracked session.
func (r *Registry) All() []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		result = append(result, s)
	}
	return result
}

// Len returns the total number of tracked sessions, tombstones included.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// LiveCount returns the number of non-closed sessions.
func (r *Registry) LiveCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.liveCountLocked()
}

func (r *Registry) liveCountLocked() int {
	count := 0
	for _, s := range r.sessions {
		if s.State() != StateClosed {
			count++
		}
	}
	return count
}

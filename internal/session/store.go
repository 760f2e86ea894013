package session

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds the live sessions of the server process.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*State
	logger   *slog.Logger
	now      func() time.Time
}

func NewStore(logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{sessions: make(map[string]*State), logger: logger, now: time.Now}
}

// Create starts a fresh session with the default schema and an empty table.
func (st *Store) Create(username, displayName string) *State {
	s := newState(uuid.NewString(), username, displayName, st.now())
	st.mu.Lock()
	st.sessions[s.ID] = s
	st.mu.Unlock()
	st.logger.Info("session.created", "session_id", s.ID, "user", username)
	return s
}

// Get returns the session and refreshes its idle timer.
func (st *Store) Get(id string) (*State, bool) {
	st.mu.RLock()
	s, ok := st.sessions[id]
	st.mu.RUnlock()
	if ok {
		s.touch(st.now())
	}
	return s, ok
}

func (st *Store) Delete(id string) {
	st.mu.Lock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	st.mu.Unlock()
	if ok {
		st.logger.Info("session.deleted", "session_id", id)
	}
}

func (st *Store) Len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// Sweep drops sessions idle for longer than maxIdle and returns how many.
func (st *Store) Sweep(maxIdle time.Duration) int {
	cutoff := st.now().Add(-maxIdle)
	st.mu.Lock()
	defer st.mu.Unlock()
	n := 0
	for id, s := range st.sessions {
		if s.idleSince().Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	if n > 0 {
		st.logger.Info("session.swept", "removed", n, "remaining", len(st.sessions))
	}
	return n
}

package chat

import (
	"context"
	"sync"
	"time"
)

// Store owns the lifecycle of every live session. Sessions are never
// persisted, ending one discards its transcript and image.
type Store struct {
	mu       sync.Mutex
	sessions map[string]*Session

	now func() time.Time
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Create starts a new session.
func (st *Store) Create() *Session {
	s := newSession(st.now())

	st.mu.Lock()
	defer st.mu.Unlock()
	st.sessions[s.ID] = s
	return s
}

// Get returns the live session with id and marks it as recently used.
func (st *Store) Get(id string) (*Session, bool) {
	st.mu.Lock()
	s, ok := st.sessions[id]
	st.mu.Unlock()

	if ok {
		s.touch(st.now())
	}
	return s, ok
}

// End discards the session with id. Ending an unknown session is a no-op.
func (st *Store) End(id string) {
	st.mu.Lock()
	defer st.mu.Unlock()

	delete(st.sessions, id)
}

func (st *Store) Len() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	return len(st.sessions)
}

// Sweep ends every session unused for longer than idle and returns how many
// were ended. Sessions with an extraction in flight are kept.
func (st *Store) Sweep(idle time.Duration) int {
	cutoff := st.now().Add(-idle)

	st.mu.Lock()
	defer st.mu.Unlock()

	var n int
	for id, s := range st.sessions {
		lastSeen, busy := s.idleSince()
		if !busy && lastSeen.Before(cutoff) {
			delete(st.sessions, id)
			n++
		}
	}
	return n
}

// Run sweeps idle sessions every interval until ctx is done.
func (st *Store) Run(ctx context.Context, interval, idle time.Duration) error {
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			st.Sweep(idle)
		}
	}
}

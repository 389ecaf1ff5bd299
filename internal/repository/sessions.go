package repository

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session owns the transient task list of one browser or chat session.
type Session struct {
	ID        string
	Store     *MemoryStore
	CreatedAt time.Time
	LastSeen  time.Time
}

// Sessions is the registry of live sessions. A session is created on first
// use and discarded explicitly or when it has been idle too long.
type Sessions struct {
	mu       sync.Mutex
	sessions map[string]*Session
	now      func() time.Time
}

func NewSessions() *Sessions {
	return &Sessions{
		sessions: make(map[string]*Session),
		now:      time.Now,
	}
}

// Start opens a new empty session.
func (s *Sessions) Start() *Session {
	now := s.now()
	sess := &Session{
		ID:        uuid.NewString(),
		Store:     NewMemoryStore(),
		CreatedAt: now,
		LastSeen:  now,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Lookup returns a live session and marks it as seen.
func (s *Sessions) Lookup(id string) (*Session, bool) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if ok {
		sess.LastSeen = s.now()
	}
	return sess, ok
}

// Discard ends a session and drops its tasks.
func (s *Sessions) Discard(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	delete(s.sessions, id)
	return ok
}

// Reap discards sessions idle for longer than maxIdle and returns how many.
func (s *Sessions) Reap(maxIdle time.Duration) int {
	cutoff := s.now().Add(-maxIdle)
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for id, sess := range s.sessions {
		if sess.LastSeen.Before(cutoff) {
			delete(s.sessions, id)
			n++
		}
	}
	return n
}

func (s *Sessions) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

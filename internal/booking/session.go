package booking

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// SessionStore keeps one wizard per booking session.
type SessionStore struct {
	sessions map[string]*Wizard
	mu       sync.RWMutex
	timeout  time.Duration
	factory  func() *Wizard
	now      func() time.Time
}

// NewSessionStore creates a store building wizards with factory.
func NewSessionStore(timeout time.Duration, factory func() *Wizard) *SessionStore {
	if timeout <= 0 {
		timeout = 30 * time.Minute
	}
	return &SessionStore{
		sessions: make(map[string]*Wizard),
		timeout:  timeout,
		factory:  factory,
		now:      time.Now,
	}
}

// Create starts a new session, optionally seeded.
func (ss *SessionStore) Create(ctx context.Context, seed Seed) (string, *Wizard, error) {
	w := ss.factory()
	if err := w.Seed(ctx, seed); err != nil {
		return "", nil, err
	}
	id := uuid.NewString()

	ss.mu.Lock()
	defer ss.mu.Unlock()
	ss.sessions[id] = w
	return id, w, nil
}

// Get returns the live session or ErrSessionNotFound.
func (ss *SessionStore) Get(id string) (*Wizard, error) {
	ss.mu.RLock()
	w, ok := ss.sessions[id]
	ss.mu.RUnlock()
	if !ok || ss.expired(w) {
		return nil, ErrSessionNotFound
	}
	return w, nil
}

// Delete removes a session.
func (ss *SessionStore) Delete(id string) {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	delete(ss.sessions, id)
}

// Len returns the number of stored sessions.
func (ss *SessionStore) Len() int {
	ss.mu.RLock()
	defer ss.mu.RUnlock()
	return len(ss.sessions)
}

// Cleanup removes expired sessions.
func (ss *SessionStore) Cleanup() int {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	removed := 0
	for id, w := range ss.sessions {
		if ss.expired(w) {
			delete(ss.sessions, id)
			removed++
		}
	}
	return removed
}

func (ss *SessionStore) expired(w *Wizard) bool {
	return ss.now().Sub(w.LastActivity()) > ss.timeout
}

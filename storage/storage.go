// Package storage defines the session persistence contract used by agents and
// ships a process local implementation. Durable backends live in sub
// packages (sqlstore for SQLite / Postgres, redisstore for Redis); only the
// wiring layer decides which one to instantiate.
package storage

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/hupe1980/agentcore/core"
)

// ErrNotFound is returned by Delete when the session does not exist.
var ErrNotFound = errors.New("session not found")

// Storage persists sessions keyed by session id.
type Storage interface {
	// Read returns the stored session, or nil, nil when none exists.
	Read(ctx context.Context, sessionID string) (*core.Session, error)
	// Upsert inserts or replaces a session and returns the stored copy.
	// CreatedAt of an existing session is preserved.
	Upsert(ctx context.Context, session *core.Session) (*core.Session, error)
	// Delete removes a session.
	Delete(ctx context.Context, sessionID string) error
	// List returns the sessions of a user (all sessions when userID is
	// empty), most recently updated first.
	List(ctx context.Context, userID string) ([]*core.Session, error)
}

// InMemory is a volatile Storage implementation storing sessions in a process
// local map. It is safe for concurrent access and best suited for tests or
// ephemeral demo servers. Sessions are cloned on the way in and out to
// prevent external mutation of internal state.
type InMemory struct {
	mu       sync.RWMutex
	sessions map[string]*core.Session
}

var _ Storage = (*InMemory)(nil)

// NewInMemory constructs an empty in‑memory session store.
func NewInMemory() *InMemory {
	return &InMemory{sessions: make(map[string]*core.Session)}
}

// Read implements Storage.
func (s *InMemory) Read(_ context.Context, sessionID string) (*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if sess, ok := s.sessions[sessionID]; ok {
		return sess.Clone(), nil
	}
	return nil, nil
}

// Upsert implements Storage.
func (s *InMemory) Upsert(_ context.Context, session *core.Session) (*core.Session, error) {
	if session == nil || session.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	stored := session.Clone()
	Touch(stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.sessions[stored.SessionID]; ok {
		stored.CreatedAt = prev.CreatedAt
	}
	s.sessions[stored.SessionID] = stored
	return stored.Clone(), nil
}

// Delete implements Storage.
func (s *InMemory) Delete(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return ErrNotFound
	}
	delete(s.sessions, sessionID)
	return nil
}

// List implements Storage.
func (s *InMemory) List(_ context.Context, userID string) ([]*core.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*core.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		if userID == "" || sess.UserID == userID {
			out = append(out, sess.Clone())
		}
	}
	SortByUpdated(out)
	return out, nil
}

// Touch stamps UpdatedAt with the current time and fills a missing CreatedAt.
func Touch(s *core.Session) {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now
}

// SortByUpdated orders sessions most recently updated first.
func SortByUpdated(sessions []*core.Session) {
	sort.SliceStable(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
}

package session

import (
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// ErrNotFound is returned by Lookup for unknown session identifiers.
var ErrNotFound = errors.New("session: not found")

// DefaultLanguage is the language tag assigned to sessions created without
// an explicit configuration.
const DefaultLanguage = "python"

// Store is the in-memory identifier-to-session table. It owns session
// creation, lookup, and reclamation; exactly one Session object exists per
// identifier at any time. The store lock covers only the map itself and is
// never held across broadcast I/O.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	defaultLanguage string
	logger          *slog.Logger

	totalCreated atomic.Uint64
	totalRemoved atomic.Uint64
}

// NewStore creates an empty Store. New sessions start with an empty document
// and defaultLanguage (DefaultLanguage when empty).
func NewStore(defaultLanguage string, logger *slog.Logger) *Store {
	if defaultLanguage == "" {
		defaultLanguage = DefaultLanguage
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		sessions:        make(map[string]*Session),
		defaultLanguage: defaultLanguage,
		logger:          logger.With("component", "session_store"),
	}
}

// Mint returns a fresh session identifier.
func (st *Store) Mint() string {
	return uuid.NewString()
}

// GetOrCreate returns the session for id, creating it if absent. Safe under
// concurrent calls for the same brand-new identifier: the loser of the race
// is handed the winner's session, never a duplicate.
func (st *Store) GetOrCreate(id string) *Session {
	st.mu.Lock()
	if sess, ok := st.sessions[id]; ok {
		st.mu.Unlock()
		return sess
	}
	sess := newSession(id, st.defaultLanguage)
	st.sessions[id] = sess
	st.totalCreated.Add(1)
	active := len(st.sessions)
	st.mu.Unlock()

	st.logger.Info("session created",
		"session_id", id,
		"active_sessions", active)
	return sess
}

// Get returns the session for id, or nil if the identifier is unknown.
func (st *Store) Get(id string) *Session {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return st.sessions[id]
}

// Lookup returns the session for id, or ErrNotFound.
func (st *Store) Lookup(id string) (*Session, error) {
	if sess := st.Get(id); sess != nil {
		return sess, nil
	}
	return nil, ErrNotFound
}

// Remove deletes a session unconditionally. A no-op for unknown identifiers,
// tolerating removals that race lifecycle supervision.
func (st *Store) Remove(id string) {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if ok {
		sess.mu.Lock()
		sess.closed = true
		sess.mu.Unlock()
		delete(st.sessions, id)
		st.totalRemoved.Add(1)
	}
	active := len(st.sessions)
	st.mu.Unlock()

	if ok {
		st.logger.Info("session removed",
			"session_id", id,
			"active_sessions", active)
	}
}

// RemoveIfEmpty reclaims a session once its registry is empty. The
// empty-check and removal are atomic with respect to concurrent joins: the
// session lock is taken under the store lock, so a join that lands first
// keeps the session alive, and a join that fetched the handle earlier but
// runs after removal observes the closed flag and retries through
// GetOrCreate. Reports whether the session was removed.
func (st *Store) RemoveIfEmpty(id string) bool {
	st.mu.Lock()
	sess, ok := st.sessions[id]
	if !ok {
		st.mu.Unlock()
		return false
	}

	sess.mu.Lock()
	if len(sess.members) > 0 {
		sess.mu.Unlock()
		st.mu.Unlock()
		return false
	}
	sess.closed = true
	sess.mu.Unlock()

	delete(st.sessions, id)
	st.totalRemoved.Add(1)
	active := len(st.sessions)
	st.mu.Unlock()

	st.logger.Info("empty session reclaimed",
		"session_id", id,
		"active_sessions", active)
	return true
}

// Count returns the number of live sessions.
func (st *Store) Count() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}

// StoreStats contains aggregated store counters.
type StoreStats struct {
	Active       int
	TotalCreated uint64
	TotalRemoved uint64
}

// Stats returns aggregated store counters.
func (st *Store) Stats() StoreStats {
	st.mu.RLock()
	active := len(st.sessions)
	st.mu.RUnlock()

	return StoreStats{
		Active:       active,
		TotalCreated: st.totalCreated.Load(),
		TotalRemoved: st.totalRemoved.Load(),
	}
}

package cache

import (
	"sort"
	"sync"

	"github.com/dennisdiepolder/monti/livechat/internal/metrics"
	"github.com/dennisdiepolder/monti/livechat/internal/types"
	"github.com/rs/zerolog"
)

// SessionStore holds the current state of every livechat session.
//
// Snapshots are shallow copies: nested values are replaced, never mutated,
// so they can be shared safely.
type SessionStore struct {
	sessions map[string]*types.Session // sessionID -> current record
	mu       sync.RWMutex
	logger   zerolog.Logger
}

// NewSessionStore creates a new session store
func NewSessionStore(logger zerolog.Logger) *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*types.Session),
		logger:   logger.With().Str("component", "session_store").Logger(),
	}
}

// Apply applies a change to the store and returns it as it should be
// delivered: removals carry the prior record, dropped field updates are
// cleared from the field set. A change for an unknown session is dropped and
// delivered with no fields.
func (s *SessionStore) Apply(c types.SessionChange) types.SessionChange {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch c.Kind {
	case types.ChangeAdded:
		record := &types.Session{ID: c.ID}
		c.Fields.ApplyTo(record)
		s.sessions[c.ID] = record

	case types.ChangeChanged:
		existing, exists := s.sessions[c.ID]
		if !exists {
			// a partial record would count as queued forever; the source
			// sends the full record as an addition
			s.logger.Debug().Str("session_id", c.ID).Msg("dropping change for unknown session")
			c.Fields.Present = 0
			break
		}
		if !c.Fields.ApplyTo(existing) {
			s.logger.Warn().Str("session_id", c.ID).Msg("ignoring metrics clear on closed session")
			c.Fields.Present &^= types.FieldMetrics
		}

	case types.ChangeRemoved:
		if existing, exists := s.sessions[c.ID]; exists {
			prior := *existing
			c.Prior = &prior
			delete(s.sessions, c.ID)
		}
	}

	metrics.Get().SetSourceRecords("sessions", len(s.sessions))
	return c
}

// FindSession returns the current record of a session
func (s *SessionStore) FindSession(id string) (types.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[id]
	if !ok {
		return types.Session{}, false
	}
	return *session, true
}

// Sessions returns a snapshot of all sessions ordered by ID
func (s *SessionStore) Sessions() []types.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]types.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		sessions = append(sessions, *session)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	return sessions
}

// Count returns the total number of tracked sessions
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

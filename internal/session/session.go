// Package session binds session identifiers to the active profile.
// The binding is process-local and explicit: callers pass a session id
// into every pipeline call instead of relying on ambient state.
package session

import "sync"

// Store maps session ids to profile ids with an explicit
// create/clear lifecycle.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]string
}

func NewStore() *Store {
	return &Store{profiles: make(map[string]string)}
}

// Bind associates sessionID with profileID, replacing any prior binding.
func (s *Store) Bind(sessionID, profileID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles[sessionID] = profileID
}

// Resolve returns the bound profile id, or false when the session has none.
func (s *Store) Resolve(sessionID string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.profiles[sessionID]
	return id, ok
}

// Clear removes the binding for sessionID, if any.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.profiles, sessionID)
}

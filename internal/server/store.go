package server

import (
	"sync"

	"supplychain-rag/internal/rag"
)

// sessionStore keeps uploaded documents in memory for the life of the process.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*rag.Session
}

func newSessionStore() *sessionStore {
	return &sessionStore{sessions: make(map[string]*rag.Session)}
}

func (s *sessionStore) put(session *rag.Session) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
}

func (s *sessionStore) get(id string) (*rag.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	return session, ok
}

func (s *sessionStore) delete(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

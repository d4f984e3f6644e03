package memory

import (
	"context"
	"sync"

	domainErr "github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/errors"
	"github.com/Tanmoy095/LogiSynapse/services/settlement-service/internal/domain/session"
)

// SessionStore keeps sessions in process memory. Used when no database is configured.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]session.Session
}

func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]session.Session)}
}

func (m *SessionStore) GetSession(ctx context.Context, identity string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[identity]
	if !ok {
		return nil, domainErr.ErrSessionNotFound
	}
	return &s, nil
}

func (m *SessionStore) PutSession(ctx context.Context, identity string, s *session.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[identity] = *s
	return nil
}

func (m *SessionStore) DeleteSession(ctx context.Context, identity string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[identity]; !ok {
		return domainErr.ErrSessionNotFound
	}
	delete(m.sessions, identity)
	return nil
}

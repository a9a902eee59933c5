package session

import (
	"context"
	"sync"

	"github.com/hihaowen/easysso/internal/sso/models"
)

// InMemoryState keeps session identities in process memory. Suited to tests
// and single-instance deployments.
type InMemoryState struct {
	mu       sync.RWMutex
	sessions map[string]models.LoginUser
}

func NewInMemoryState() *InMemoryState {
	return &InMemoryState{sessions: make(map[string]models.LoginUser)}
}

func (s *InMemoryState) Get(_ context.Context, sessionID string) (models.LoginUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[sessionID], nil
}

func (s *InMemoryState) Set(_ context.Context, sessionID string, user models.LoginUser) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = user
	return nil
}

func (s *InMemoryState) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

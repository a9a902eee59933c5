package store

import (
	"context"
	"sync"
)

// InMemoryStore keeps the single-process implementation lightweight and
// testable. It intentionally favors clarity over performance.
type InMemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	sets   map[string]map[Member]struct{}
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		values: make(map[string]string),
		sets:   make(map[string]map[Member]struct{}),
	}
}

func (s *InMemoryStore) Get(_ context.Context, key Key) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.values[key.String()]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func (s *InMemoryStore) Set(_ context.Context, key Key, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key.String()] = sessionID
	return nil
}

func (s *InMemoryStore) Delete(_ context.Context, key Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key.String())
	delete(s.sets, key.String())
	return nil
}

func (s *InMemoryStore) AddMember(_ context.Context, key Key, member Member) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key.String()
	if s.sets[k] == nil {
		s.sets[k] = make(map[Member]struct{})
	}
	s.sets[k][member] = struct{}{}
	return nil
}

func (s *InMemoryStore) Members(_ context.Context, key Key) ([]Member, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.sets[key.String()]
	members := make([]Member, 0, len(set))
	for m := range set {
		members = append(members, m)
	}
	return members, nil
}

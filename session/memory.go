package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is the single-process fallback used when REDIS_ADDR is unset.
type MemoryStore struct {
	mu      sync.Mutex
	refresh map[string]map[string]time.Time
	revoked map[string]time.Time
	users   map[string]userCutoff
	now     func() time.Time
}

type userCutoff struct {
	at, until time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		refresh: make(map[string]map[string]time.Time),
		revoked: make(map[string]time.Time),
		users:   make(map[string]userCutoff),
		now:     time.Now,
	}
}

func (s *MemoryStore) SaveRefresh(_ context.Context, username, tokenID string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.refresh[username] == nil {
		s.refresh[username] = make(map[string]time.Time)
	}
	s.refresh[username][tokenID] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) RefreshValid(_ context.Context, username, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.refresh[username][tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.refresh[username], tokenID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) DropRefresh(_ context.Context, username string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	live := 0
	now := s.now()
	for _, exp := range s.refresh[username] {
		if now.Before(exp) {
			live++
		}
	}
	delete(s.refresh, username)
	return live, nil
}

func (s *MemoryStore) Revoke(_ context.Context, tokenID string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.revoked[tokenID] = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Revoked(_ context.Context, tokenID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	exp, ok := s.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if !s.now().Before(exp) {
		delete(s.revoked, tokenID)
		return false, nil
	}
	return true, nil
}

func (s *MemoryStore) RevokeUser(_ context.Context, username string, at time.Time, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.users[username] = userCutoff{at: at.Truncate(time.Second), until: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) UserRevokedAt(_ context.Context, username string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.users[username]
	if !ok {
		return time.Time{}, nil
	}
	if !s.now().Before(c.until) {
		delete(s.users, username)
		return time.Time{}, nil
	}
	return c.at, nil
}

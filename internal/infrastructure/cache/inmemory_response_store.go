package cache

import (
	"context"
	"sync"
	"time"
)

// entry represents a claimed key with expiration; resp is nil while pending
type entry struct {
	resp      *StoredResponse
	expiresAt time.Time
}

// InMemoryResponseStore implements ResponseStore using an in-memory map.
// This is suitable for single-instance deployments and testing.
type InMemoryResponseStore struct {
	mu        sync.RWMutex
	entries   map[string]entry
	now       func() time.Time
	stopChan  chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewInMemoryResponseStore creates a new in-memory store.
// It starts a background goroutine to clean up expired entries.
func NewInMemoryResponseStore() *InMemoryResponseStore {
	store := &InMemoryResponseStore{
		entries:  make(map[string]entry),
		now:      time.Now,
		stopChan: make(chan struct{}),
	}

	store.wg.Add(1)
	go store.cleanupLoop()

	return store
}

// Claim reserves key unless a live entry exists
func (s *InMemoryResponseStore) Claim(_ context.Context, key string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if e, exists := s.entries[key]; exists && now.Before(e.expiresAt) {
		return false, nil
	}
	s.entries[key] = entry{expiresAt: now.Add(ttl)}
	return true, nil
}

// Store saves resp under key
func (s *InMemoryResponseStore) Store(_ context.Context, key string, resp StoredResponse, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	body := append([]byte(nil), resp.Body...)
	resp.Body = body
	s.entries[key] = entry{resp: &resp, expiresAt: s.now().Add(ttl)}
	return nil
}

// Load returns the stored response for key
func (s *InMemoryResponseStore) Load(_ context.Context, key string) (*StoredResponse, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.entries[key]
	if !exists || !s.now().Before(e.expiresAt) {
		return nil, nil
	}
	if e.resp == nil {
		return nil, ErrKeyInFlight
	}
	out := *e.resp
	out.Body = append([]byte(nil), e.resp.Body...)
	return &out, nil
}

// Release removes key
func (s *InMemoryResponseStore) Release(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, key)
	return nil
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (s *InMemoryResponseStore) Close() error {
	s.closeOnce.Do(func() {
		close(s.stopChan)
		s.wg.Wait()
	})
	return nil
}

func (s *InMemoryResponseStore) cleanupLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.cleanup()
		}
	}
}

func (s *InMemoryResponseStore) cleanup() {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for key, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, key)
		}
	}
}

// Size returns the number of entries in the store (for testing/monitoring)
func (s *InMemoryResponseStore) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

var _ ResponseStore = (*InMemoryResponseStore)(nil)

package memory

import (
	"context"
	"sync"
	"time"
)

type idemEntry struct {
	value   []byte
	expires time.Time
}

type IdempotencyStore struct {
	mu      sync.Mutex
	entries map[string]idemEntry
}

func NewIdempotencyStore() *IdempotencyStore {
	return &IdempotencyStore{entries: make(map[string]idemEntry)}
}

func (s *IdempotencyStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[key]
	if !ok || time.Now().After(e.expires) {
		delete(s.entries, key)
		return nil, false, nil
	}
	return e.value, true, nil
}

func (s *IdempotencyStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.entries[key]; ok && time.Now().Before(e.expires) {
		return nil
	}
	s.entries[key] = idemEntry{value: append([]byte(nil), value...), expires: time.Now().Add(ttl)}
	return nil
}

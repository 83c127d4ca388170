package authflow

import (
	"context"
	"sync"
)

// Store persists a TokenPair between process runs so a restarted consumer can
// resume with a refresh instead of replaying the full login protocol. Keys
// are the account username; implementations must treat token values as
// secrets and never log them.
type Store interface {
	// SaveTokenPair stores the pair for the given account, replacing any
	// previous pair.
	SaveTokenPair(ctx context.Context, username string, pair *TokenPair) error

	// LoadTokenPair returns the stored pair for the account, or (nil, nil)
	// when none is stored.
	LoadTokenPair(ctx context.Context, username string) (*TokenPair, error)

	// DeleteTokenPair removes any stored pair for the account.
	DeleteTokenPair(ctx context.Context, username string) error
}

// MemoryStore is an in-process Store for tests and for callers that do not
// need persistence across restarts.
type MemoryStore struct {
	mu    sync.Mutex
	pairs map[string]TokenPair
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{pairs: make(map[string]TokenPair)}
}

// SaveTokenPair stores a copy of the pair.
func (s *MemoryStore) SaveTokenPair(_ context.Context, username string, pair *TokenPair) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pairs[username] = *pair
	return nil
}

// LoadTokenPair returns a copy of the stored pair, or nil when absent.
func (s *MemoryStore) LoadTokenPair(_ context.Context, username string) (*TokenPair, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pair, ok := s.pairs[username]
	if !ok {
		return nil, nil
	}
	return &pair, nil
}

// DeleteTokenPair removes the stored pair.
func (s *MemoryStore) DeleteTokenPair(_ context.Context, username string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pairs, username)
	return nil
}

package runlog

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
)

// Store persists entries in append order.
type Store interface {
	// Append stores e and returns it with Seq assigned.
	Append(ctx context.Context, e Entry) (Entry, error)
	// ReadAll returns every stored entry in append order.
	ReadAll(ctx context.Context) ([]Entry, error)
	// Close releases resources.
	Close() error
}

// Open creates the store selected by cfg.
func Open(cfg config.RunLogConfig) (Store, error) {
	switch cfg.Backend {
	case config.RunLogSQLite:
		return NewSQLiteStore(cfg.Path)
	case config.RunLogMemory, "":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unsupported run log backend: %s", cfg.Backend)
	}
}

// MemoryStore keeps entries in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, e Entry) (Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.Seq = uint64(len(s.entries)) + 1
	s.entries = append(s.entries, e)
	return e, nil
}

func (s *MemoryStore) ReadAll(_ context.Context) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries), nil
}

func (s *MemoryStore) Close() error { return nil }

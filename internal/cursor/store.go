// Package cursor tracks the last processed message per chat so the diff
// engine can tell new activity from history it has already handed out.
package cursor

import (
	"sync"
	"time"
)

// Cursor is the last message the diff engine processed for one chat.
type Cursor struct {
	MessageID   string
	MessageTime time.Time
}

// Store is the per-chat cursor bookkeeping contract. Set must keep
// MessageTime monotonically non-decreasing within a process lifetime; the
// diff engine is the only writer.
type Store interface {
	Get(chatID string) (Cursor, bool)
	Set(chatID string, cur Cursor) error
	Close() error
}

// MemoryStore keeps cursors in memory only. A restart re-treats every chat
// as newly observed, which is the accepted default behavior.
type MemoryStore struct {
	mu      sync.RWMutex
	cursors map[string]Cursor
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cursors: make(map[string]Cursor)}
}

func (s *MemoryStore) Get(chatID string) (Cursor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cur, ok := s.cursors[chatID]
	return cur, ok
}

func (s *MemoryStore) Set(chatID string, cur Cursor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[chatID] = cur
	return nil
}

func (s *MemoryStore) Close() error { return nil }

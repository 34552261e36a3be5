package storage

import (
	"context"
	"sync"
	"time"

	"github.com/xaenox/teams-assistant-bot/internal/models"
)

// MemoryStore keeps the user-to-thread mapping in process memory.
// Entries live for the process lifetime; there is no eviction.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string]*models.UserThread
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string]*models.UserThread),
	}
}

func (s *MemoryStore) GetThread(ctx context.Context, userID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if thread, exists := s.threads[userID]; exists {
		thread.LastUsedAt = time.Now()
		return thread.ThreadID, nil
	}
	return "", nil
}

func (s *MemoryStore) SaveThread(ctx context.Context, userID, threadID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// An existing mapping is never reassigned.
	if _, exists := s.threads[userID]; exists {
		return nil
	}

	now := time.Now()
	s.threads[userID] = &models.UserThread{
		UserID:     userID,
		ThreadID:   threadID,
		CreatedAt:  now,
		LastUsedAt: now,
	}
	return nil
}

func (s *MemoryStore) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ent0n29/talkback/internal/chat"
)

// InMemoryStore is a simple in-process history store for local/dev use.
type InMemoryStore struct {
	mu      sync.RWMutex
	records map[string][]TurnRecord
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string][]TurnRecord)}
}

func (s *InMemoryStore) Append(_ context.Context, sessionID string, msgs ...chat.Message) error {
	if err := validate(msgs); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	arr := s.records[sessionID]
	now := time.Now().UTC()
	for _, m := range msgs {
		arr = append(arr, TurnRecord{
			ID:        uuid.NewString(),
			SessionID: sessionID,
			Seq:       int64(len(arr) + 1),
			Role:      m.Role,
			Content:   m.Content,
			CreatedAt: now,
		})
	}
	s.records[sessionID] = arr
	return nil
}

func (s *InMemoryStore) History(_ context.Context, sessionID string, limit int) (chat.History, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	arr := s.records[sessionID]
	if limit <= 0 || limit > len(arr) {
		limit = len(arr)
	}
	return toHistory(arr[len(arr)-limit:]), nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, sessionID)
	return nil
}

func (s *InMemoryStore) Close() error { return nil }

package repository

import (
	"context"
	"sync"

	"github.com/draftwing/convoscribe/internal/domain"
)

// MemoryConversationStore keeps records in memory, for tests and for
// running the agent without a database. It mirrors the Postgres adapter's
// duplicate handling: a record whose dedup key was already stored is
// skipped, which callers treat as success.
type MemoryConversationStore struct {
	mu      sync.Mutex
	byKey   map[string]*domain.ConversationRecord
	ordered []*domain.ConversationRecord
}

func NewMemoryConversationStore() *MemoryConversationStore {
	return &MemoryConversationStore{byKey: make(map[string]*domain.ConversationRecord)}
}

func (s *MemoryConversationStore) Save(_ context.Context, rec *domain.ConversationRecord) (domain.SaveResult, error) {
	key := rec.Context["assistant_message_id"]
	if key == "" {
		key = rec.ID
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byKey[key]; ok {
		return domain.SaveResult{Success: true, Skipped: true}, nil
	}
	s.byKey[key] = rec
	s.ordered = append(s.ordered, rec)
	return domain.SaveResult{Success: true}, nil
}

// All returns stored records in save order.
func (s *MemoryConversationStore) All() []*domain.ConversationRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*domain.ConversationRecord(nil), s.ordered...)
}

package chatstore

import (
	"context"
	"sync"

	"ng12-risk-assessor/internal/models"
)

// Store is an append-only conversation log per session
type Store interface {
	Append(ctx context.Context, sessionID string, turn models.ChatTurn) error
	// History returns the last limit turns in order, or all of them when limit <= 0
	History(ctx context.Context, sessionID string, limit int) ([]models.ChatTurn, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryStore keeps sessions in process memory
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string][]models.ChatTurn
}

// NewMemoryStore creates an empty memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string][]models.ChatTurn)}
}

func (s *MemoryStore) Append(_ context.Context, sessionID string, turn models.ChatTurn) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sessionID] = append(s.sessions[sessionID], turn)
	return nil
}

func (s *MemoryStore) History(_ context.Context, sessionID string, limit int) ([]models.ChatTurn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	turns := s.sessions[sessionID]
	if limit > 0 && len(turns) > limit {
		turns = turns[len(turns)-limit:]
	}
	out := make([]models.ChatTurn, len(turns))
	copy(out, turns)
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, sessionID)
	return nil
}

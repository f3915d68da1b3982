package database

import (
	"context"
	"sync"

	"ng12-risk-assessor/internal/models"
)

type memoryEntry struct {
	content   string
	embedding []float32
	meta      models.Metadata
}

// MemoryIndex is an in-process vector index keyed by chunk id
type MemoryIndex struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryIndex creates an empty in-memory index
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]memoryEntry)}
}

// Upsert inserts or replaces chunks keyed by id
func (m *MemoryIndex) Upsert(_ context.Context, ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error {
	if err := checkLengths(ids, documents, embeddings, metadatas); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for i, id := range ids {
		m.entries[id] = memoryEntry{
			content:   documents[i],
			embedding: append([]float32(nil), embeddings[i]...),
			meta:      metadatas[i],
		}
	}
	return nil
}

// Query ranks every entry by cosine similarity
func (m *MemoryIndex) Query(ctx context.Context, embedding []float32, topK int) (*models.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	scored := make([]scoredChunk, 0, len(m.entries))
	for id, e := range m.entries {
		scored = append(scored, scoredChunk{
			id:      id,
			content: e.content,
			meta:    e.meta,
			score:   cosineSimilarity(embedding, e.embedding),
		})
	}
	m.mu.RUnlock()

	return rank(scored, topK), nil
}

// Count returns the number of stored chunks
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

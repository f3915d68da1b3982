package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"ng12-risk-assessor/internal/models"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteIndex persists chunks in a local SQLite file and ranks them by brute-force cosine
type SQLiteIndex struct {
	mu sync.RWMutex
	db *sql.DB
}

// NewSQLiteIndex opens (creating if needed) the database at path
func NewSQLiteIndex(path string) (*SQLiteIndex, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	idx := &SQLiteIndex{db: db}
	if err := idx.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return idx, nil
}

func (s *SQLiteIndex) initSchema() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS evidence_chunks (
		chunk_id TEXT PRIMARY KEY,
		page INTEGER NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL,
		embedding BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_evidence_page ON evidence_chunks(page);
	`)
	return err
}

// Upsert inserts or replaces chunks keyed by id in one transaction
func (s *SQLiteIndex) Upsert(ctx context.Context, ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error {
	if err := checkLengths(ids, documents, embeddings, metadatas); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO evidence_chunks (chunk_id, page, content, metadata, embedding)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, id := range ids {
		embeddingJSON, err := json.Marshal(embeddings[i])
		if err != nil {
			return fmt.Errorf("failed to encode embedding: %w", err)
		}
		metaJSON, err := metadatas[i].Value()
		if err != nil {
			return fmt.Errorf("failed to encode metadata: %w", err)
		}
		page, ok := metadatas[i].Page()
		if !ok {
			page = models.UnknownPage
		}

		if _, err := stmt.ExecContext(ctx, id, page, documents[i], metaJSON, embeddingJSON); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// Query ranks every stored chunk by cosine similarity
func (s *SQLiteIndex) Query(ctx context.Context, embedding []float32, topK int) (*models.QueryResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT chunk_id, content, metadata, embedding FROM evidence_chunks`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chunks: %w", err)
	}
	defer rows.Close()

	var scored []scoredChunk
	for rows.Next() {
		var (
			sc            scoredChunk
			embeddingJSON []byte
			stored        []float32
		)
		if err := rows.Scan(&sc.id, &sc.content, &sc.meta, &embeddingJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		if err := json.Unmarshal(embeddingJSON, &stored); err != nil {
			return nil, fmt.Errorf("failed to decode embedding for %s: %w", sc.id, err)
		}
		sc.score = cosineSimilarity(embedding, stored)
		scored = append(scored, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return rank(scored, topK), nil
}

// Count returns the number of stored chunks
func (s *SQLiteIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM evidence_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

// Close closes the database
func (s *SQLiteIndex) Close() error {
	return s.db.Close()
}

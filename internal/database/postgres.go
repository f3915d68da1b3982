package database

import (
	"context"
	"fmt"

	"ng12-risk-assessor/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

// maxIndexedDimensions is the largest vector size pgvector can put in an HNSW index
const maxIndexedDimensions = 2000

// PostgresIndex stores evidence chunks in PostgreSQL with pgvector
type PostgresIndex struct {
	Pool *pgxpool.Pool
}

// NewPostgresIndex creates a new database connection pool
func NewPostgresIndex(ctx context.Context, connStr string) (*PostgresIndex, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresIndex{Pool: pool}, nil
}

// Initialize sets up the extension, table and cosine index for vectors of size dim
func (db *PostgresIndex) Initialize(ctx context.Context, dim int) error {
	if dim <= 0 {
		return fmt.Errorf("failed to initialize database: invalid embedding dimension %d", dim)
	}

	if _, err := db.Pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("failed to create vector extension: %w", err)
	}

	_, err := db.Pool.Exec(ctx, fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS evidence_chunks (
            chunk_id TEXT PRIMARY KEY,
            page INTEGER NOT NULL,
            source TEXT NOT NULL,
            content TEXT NOT NULL,
            metadata JSONB NOT NULL DEFAULT '{}',
            embedding vector(%d) NOT NULL
        )
    `, dim))
	if err != nil {
		return fmt.Errorf("failed to create evidence_chunks table: %w", err)
	}

	if dim <= maxIndexedDimensions {
		_, err = db.Pool.Exec(ctx, `
		CREATE INDEX IF NOT EXISTS evidence_chunks_embedding_idx ON evidence_chunks
		USING hnsw (embedding vector_cosine_ops)
	`)
		if err != nil {
			return fmt.Errorf("failed to create vector index: %w", err)
		}
	}

	_, err = db.Pool.Exec(ctx, `CREATE INDEX IF NOT EXISTS evidence_chunks_page_idx ON evidence_chunks (page)`)
	if err != nil {
		return fmt.Errorf("failed to create page index: %w", err)
	}

	return nil
}

// Upsert inserts or replaces chunks keyed by id in one batch
func (db *PostgresIndex) Upsert(ctx context.Context, ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error {
	if err := checkLengths(ids, documents, embeddings, metadatas); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for i, id := range ids {
		meta := metadatas[i]
		page, ok := meta.Page()
		if !ok {
			page = models.UnknownPage
		}
		source, ok := meta.Source()
		if !ok {
			source = models.DefaultSource
		}

		batch.Queue(`
            INSERT INTO evidence_chunks (chunk_id, page, source, content, metadata, embedding)
            VALUES ($1, $2, $3, $4, $5, $6::vector)
            ON CONFLICT (chunk_id) DO UPDATE SET
                page = EXCLUDED.page,
                source = EXCLUDED.source,
                content = EXCLUDED.content,
                metadata = EXCLUDED.metadata,
                embedding = EXCLUDED.embedding
        `, id, page, source, documents[i], meta, pgvector.NewVector(embeddings[i]))
	}

	results := db.Pool.SendBatch(ctx, batch)
	defer results.Close()

	for _, id := range ids {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to upsert chunk %s: %w", id, err)
		}
	}
	return nil
}

// Query returns the topK chunks closest to embedding by cosine distance
func (db *PostgresIndex) Query(ctx context.Context, embedding []float32, topK int) (*models.QueryResult, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT chunk_id, content, metadata
		FROM evidence_chunks
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, pgvector.NewVector(embedding), topK)
	if err != nil {
		return nil, fmt.Errorf("failed to query similar chunks: %w", err)
	}
	return processRows(rows)
}

// Count returns the number of indexed chunks
func (db *PostgresIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.Pool.QueryRow(ctx, `SELECT COUNT(*) FROM evidence_chunks`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count chunks: %w", err)
	}
	return n, nil
}

func processRows(rows pgx.Rows) (*models.QueryResult, error) {
	defer rows.Close()

	result := &models.QueryResult{}
	for rows.Next() {
		var (
			id, content string
			meta        models.Metadata
		)
		if err := rows.Scan(&id, &content, &meta); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		result.IDs = append(result.IDs, id)
		result.Documents = append(result.Documents, content)
		result.Metadatas = append(result.Metadatas, meta)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return result, nil
}

// Close closes the database connection
func (db *PostgresIndex) Close() {
	db.Pool.Close()
}

func checkLengths(ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error {
	n := len(ids)
	if len(documents) != n || len(embeddings) != n || len(metadatas) != n {
		return fmt.Errorf("failed to upsert: mismatched lengths ids=%d documents=%d embeddings=%d metadatas=%d",
			n, len(documents), len(embeddings), len(metadatas))
	}
	return nil
}

// Package rag implements NG12 evidence retrieval, structured risk assessment
// and the guideline chat agent on top of pluggable embedding, generation and
// vector index backends.
package rag

import (
	"context"

	"ng12-risk-assessor/internal/models"
)

// Embedder turns texts into vectors, one per text in input order.
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
}

// Generator produces model completions. GenerateJSON recovers malformed output
// itself and only fails on transport errors.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, user string) (map[string]any, error)
	ModelName() string
}

// VectorIndex returns the nearest chunks to an embedding, most similar first.
type VectorIndex interface {
	Query(ctx context.Context, embedding []float32, topK int) (*models.QueryResult, error)
}

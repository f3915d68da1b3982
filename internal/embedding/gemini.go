package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiEmbedder generates embeddings with a Gemini embedding model
type GeminiEmbedder struct {
	Client *genai.Client
	Model  string
	// Dimensions truncates the output vectors when positive
	Dimensions int32
	TaskType   string
}

// NewGeminiEmbedder wraps an existing genai client
func NewGeminiEmbedder(client *genai.Client, model string) *GeminiEmbedder {
	return &GeminiEmbedder{
		Client: client,
		Model:  model,
	}
}

// ModelName returns the embedding model name
func (g *GeminiEmbedder) ModelName() string {
	return g.Model
}

// EmbedTexts embeds all texts in a single request
func (g *GeminiEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.NewContentFromText(t, genai.RoleUser))
	}

	cfg := &genai.EmbedContentConfig{TaskType: g.TaskType}
	if g.Dimensions > 0 {
		cfg.OutputDimensionality = genai.Ptr(g.Dimensions)
	}

	resp, err := g.Client.Models.EmbedContent(ctx, g.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("failed to create embeddings: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(resp.Embeddings))
	for i, e := range resp.Embeddings {
		vectors[i] = e.Values
	}
	return vectors, nil
}

package embedding

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// OllamaEmbedder generates embeddings using the Ollama embed API
type OllamaEmbedder struct {
	Client *api.Client
	Model  string
	// MaxRetries applies per request. Query-time callers keep it at 0.
	MaxRetries int
	Timeout    time.Duration
}

// NewOllamaEmbedder creates a new Ollama embedder. An empty host falls back to OLLAMA_HOST.
func NewOllamaEmbedder(host string, model string) (*OllamaEmbedder, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaEmbedder{
		Client: client,
		Model:  model,
	}, nil
}

// ModelName returns the embedding model name
func (e *OllamaEmbedder) ModelName() string {
	return e.Model
}

// EmbedTexts embeds all texts in a single request, preserving order
func (e *OllamaEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var (
		vectors [][]float32
		err     error
	)
	for retries := 0; retries <= e.MaxRetries; retries++ {
		if retries > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(retries) * time.Second):
			}
		}

		vectors, err = e.embed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
	}

	if e.MaxRetries > 0 {
		return nil, fmt.Errorf("failed to create embeddings after %d retries: %w", e.MaxRetries, err)
	}
	return nil, err
}

// embed performs one embed request
func (e *OllamaEmbedder) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.Timeout)
		defer cancel()
	}

	resp, err := e.Client.Embed(ctx, &api.EmbedRequest{
		Model: e.Model,
		Input: texts,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("failed to create embeddings: got %d vectors for %d inputs", len(resp.Embeddings), len(texts))
	}

	return resp.Embeddings, nil
}

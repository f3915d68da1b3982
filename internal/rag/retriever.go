package rag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"ng12-risk-assessor/internal/models"
)

const (
	// DefaultTopK is used when a caller does not ask for a specific count
	DefaultTopK = 5
	// DefaultMaxTopK bounds any caller-supplied count
	DefaultMaxTopK = 15
)

// Retriever embeds a query and fetches the nearest guideline chunks
type Retriever struct {
	Embedder Embedder
	Index    VectorIndex
	MaxTopK  int
	Logger   *slog.Logger
}

// NewRetriever creates a retriever with the default top-k bound
func NewRetriever(embedder Embedder, index VectorIndex, logger *slog.Logger) *Retriever {
	if logger == nil {
		logger = slog.Default()
	}
	return &Retriever{
		Embedder: embedder,
		Index:    index,
		MaxTopK:  DefaultMaxTopK,
		Logger:   logger,
	}
}

// ClampTopK keeps k inside [1, MaxTopK]
func (r *Retriever) ClampTopK(k int) int {
	maxK := r.MaxTopK
	if maxK <= 0 {
		maxK = DefaultMaxTopK
	}
	return max(1, min(k, maxK))
}

// Retrieve returns up to topK evidence rows ordered by relevance.
// It makes exactly one embedding call and one index query.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]models.EvidenceRow, error) {
	k := r.ClampTopK(topK)

	vectors, err := r.Embedder.EmbedTexts(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("failed to embed query: no vector returned")
	}

	res, err := r.Index.Query(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("failed to query index: %w", err)
	}

	rows := NormalizeRows(res)
	r.Logger.Debug("retrieved evidence", slog.Int("top_k", k), slog.Int("rows", len(rows)))
	return rows, nil
}

// NormalizeRows converts the index's parallel arrays into evidence rows.
// Iteration stops at the shortest of the arrays actually returned; missing
// metadata falls back to page -1, the index id and the default source.
func NormalizeRows(res *models.QueryResult) []models.EvidenceRow {
	if res == nil {
		return []models.EvidenceRow{}
	}

	n := len(res.Documents)
	if len(res.Metadatas) > 0 {
		n = min(n, len(res.Metadatas))
	}
	if len(res.IDs) > 0 {
		n = min(n, len(res.IDs))
	}

	rows := make([]models.EvidenceRow, 0, n)
	for i := 0; i < n; i++ {
		var meta models.Metadata
		if i < len(res.Metadatas) {
			meta = res.Metadatas[i]
		}
		id := ""
		if i < len(res.IDs) {
			id = res.IDs[i]
		}

		row := models.EvidenceRow{
			Text:    res.Documents[i],
			Page:    models.UnknownPage,
			ChunkID: id,
			Source:  models.DefaultSource,
		}
		if page, ok := meta.Page(); ok {
			row.Page = page
		}
		if chunkID, ok := meta.ChunkID(); ok {
			row.ChunkID = chunkID
		}
		if source, ok := meta.Source(); ok {
			row.Source = source
		}
		rows = append(rows, row)
	}
	return rows
}

// HasEvidence reports whether at least one row carries non-blank text
func HasEvidence(rows []models.EvidenceRow) bool {
	for _, r := range rows {
		if strings.TrimSpace(r.Text) != "" {
			return true
		}
	}
	return false
}

// FormatEvidence renders rows as "[chunk_id | p.page] text" blocks separated by a blank line
func FormatEvidence(rows []models.EvidenceRow) string {
	lines := make([]string, 0, len(rows))
	for _, r := range rows {
		lines = append(lines, fmt.Sprintf("[%s | p.%d] %s", r.ChunkID, r.Page, r.Text))
	}
	return strings.Join(lines, "\n\n")
}

package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"ng12-risk-assessor/internal/embedding"
	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/processor"
)

// Upserter writes chunk vectors into an index, replacing rows with the same id
type Upserter interface {
	Upsert(ctx context.Context, ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error
}

// Stats summarizes one indexing run
type Stats struct {
	Pages       int
	EmptyPages  int
	Chunks      int
	AvgChunkLen float64
	Dimension   int
	Duration    time.Duration
}

// Ingester chunks guideline pages, embeds the chunks and upserts them
type Ingester struct {
	Embedder      embedding.TextEmbedder
	Index         Upserter
	ChunkSize     int
	ChunkOverlap  int
	BatchSize     int
	MaxConcurrent int
	// Dimension, when set, rejects vectors of any other length before writing
	Dimension int
	Progress  embedding.ProgressFunc
	Logger    *slog.Logger
}

// NewIngester creates an ingester with default chunking and batching
func NewIngester(embedder embedding.TextEmbedder, index Upserter, logger *slog.Logger) *Ingester {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ingester{
		Embedder:      embedder,
		Index:         index,
		ChunkSize:     processor.DefaultChunkSize,
		ChunkOverlap:  processor.DefaultChunkOverlap,
		BatchSize:     embedding.DefaultBatchSize,
		MaxConcurrent: 2,
		Logger:        logger,
	}
}

// IngestPDF extracts the pages of the PDF at path and indexes them
func (in *Ingester) IngestPDF(ctx context.Context, path string) (Stats, error) {
	proc, err := processor.NewPDFProcessor(in.ChunkSize, in.ChunkOverlap)
	if err != nil {
		return Stats{}, err
	}
	proc.StripFooters = true

	pages, err := proc.ExtractPages(path)
	if err != nil {
		return Stats{}, err
	}
	return in.Ingest(ctx, pages)
}

// Ingest indexes already extracted pages. Chunk ids are stable, so running it
// twice on the same pages leaves the index unchanged.
func (in *Ingester) Ingest(ctx context.Context, pages []models.PageText) (Stats, error) {
	start := time.Now()
	stats := Stats{Pages: len(pages)}
	for _, p := range pages {
		if processor.NormalizeWhitespace(p.Text) == "" {
			stats.EmptyPages++
		}
	}

	chunks, err := processor.BuildPageChunks(pages, in.ChunkSize, in.ChunkOverlap)
	if err != nil {
		return stats, err
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		in.Logger.Warn("no text extracted, nothing to index", "pages", len(pages))
		stats.Duration = time.Since(start)
		return stats, nil
	}

	ids := make([]string, len(chunks))
	docs := make([]string, len(chunks))
	metas := make([]models.Metadata, len(chunks))
	totalLen := 0
	for i, c := range chunks {
		ids[i] = c.ChunkID
		docs[i] = c.Text
		metas[i] = c.Metadata()
		totalLen += len([]rune(c.Text))
	}
	stats.AvgChunkLen = float64(totalLen) / float64(len(chunks))

	in.Logger.Info("embedding chunks", "chunks", len(chunks), "batch_size", in.BatchSize, "max_concurrent", in.MaxConcurrent)
	vectors, err := embedding.EmbedBatches(ctx, in.Embedder, docs, in.BatchSize, in.MaxConcurrent, in.Progress)
	if err != nil {
		return stats, fmt.Errorf("failed to embed chunks: %w", err)
	}

	stats.Dimension = len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 {
			return stats, fmt.Errorf("empty embedding for chunk %s", ids[i])
		}
		if len(v) != stats.Dimension || (in.Dimension > 0 && len(v) != in.Dimension) {
			return stats, fmt.Errorf("embedding dimension mismatch for chunk %s: got %d", ids[i], len(v))
		}
	}

	if err := in.Index.Upsert(ctx, ids, docs, vectors, metas); err != nil {
		return stats, fmt.Errorf("failed to store chunks: %w", err)
	}

	stats.Duration = time.Since(start)
	in.Logger.Info("indexing complete",
		"pages", stats.Pages,
		"chunks", stats.Chunks,
		"dimension", stats.Dimension,
		"duration", stats.Duration.Round(time.Millisecond),
	)
	return stats, nil
}

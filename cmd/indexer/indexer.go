package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"ng12-risk-assessor/internal/app"
	"ng12-risk-assessor/internal/config"
	"ng12-risk-assessor/internal/embedding"
	"ng12-risk-assessor/internal/ingest"
	"ng12-risk-assessor/internal/logging"
	"ng12-risk-assessor/internal/processor"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Parse command line flags
	pdfPath := flag.String("pdf", cfg.PDFPath, "Path to the NG12 PDF (downloaded if missing)")
	pdfURL := flag.String("url", cfg.PDFURL, "Where to download the NG12 PDF from")
	backend := flag.String("index", cfg.IndexBackend, "Vector index backend: postgres, sqlite or memory")
	pgConnString := flag.String("pg", cfg.DatabaseURL, "PostgreSQL connection string")
	sqlitePath := flag.String("sqlite", cfg.SQLitePath, "SQLite database path")
	embedProvider := flag.String("embedder", cfg.EmbedProvider, "Embedding provider: ollama, gemini or local")
	embeddingModel := flag.String("model", cfg.EmbedModel, "Embedding model")
	dim := flag.Int("dim", cfg.EmbeddingDim, "Embedding dimension")
	chunkSize := flag.Int("chunk-size", cfg.ChunkSize, "Character size for text chunks")
	chunkOverlap := flag.Int("chunk-overlap", cfg.ChunkOverlap, "Character overlap between chunks")
	batchSize := flag.Int("batch", cfg.BatchSize, "Texts per embedding request")
	maxConcurrent := flag.Int("max-concurrent", max(1, runtime.NumCPU()/2), "Maximum concurrent embedding requests")
	retries := flag.Int("retries", 3, "Retries per embedding request (Ollama only)")
	watch := flag.Bool("watch", false, "Keep running and re-index when the PDF changes")
	flag.Parse()

	cfg.IndexBackend = *backend
	cfg.DatabaseURL = *pgConnString
	cfg.SQLitePath = *sqlitePath
	cfg.EmbedProvider = *embedProvider
	cfg.EmbedModel = *embeddingModel
	cfg.EmbeddingDim = *dim
	cfg.ChunkSize = *chunkSize
	cfg.ChunkOverlap = *chunkOverlap
	cfg.BatchSize = *batchSize
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	logger := logging.New(os.Stderr, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	downloaded, err := processor.DownloadPDF(ctx, &http.Client{Timeout: 2 * time.Minute}, *pdfURL, *pdfPath)
	if err != nil {
		log.Fatalf("Failed to download PDF: %v", err)
	}
	if downloaded {
		log.Printf("Downloaded NG12 PDF to %s", *pdfPath)
	}

	log.Printf("Processing PDF: %s", *pdfPath)
	log.Printf("Using %s embeddings: %s (dim %d)", cfg.EmbedProvider, cfg.EmbedModel, cfg.EmbeddingDim)
	log.Printf("Index backend: %s", cfg.IndexBackend)
	log.Printf("Max concurrent requests: %d", *maxConcurrent)

	builder := app.NewBuilder(cfg, logger)
	defer builder.Close()

	embedder, err := builder.Embedder(ctx)
	if err != nil {
		log.Fatalf("Failed to create embedder: %v", err)
	}
	if oe, ok := embedder.(*embedding.OllamaEmbedder); ok {
		oe.MaxRetries = *retries
	}
	index, err := builder.Index(ctx)
	if err != nil {
		log.Fatalf("Failed to open index: %v", err)
	}
	log.Println("Index initialized successfully")

	ingester := ingest.NewIngester(embedder, index, logger)
	ingester.ChunkSize = cfg.ChunkSize
	ingester.ChunkOverlap = cfg.ChunkOverlap
	ingester.BatchSize = cfg.BatchSize
	ingester.MaxConcurrent = *maxConcurrent
	ingester.Dimension = cfg.EmbeddingDim

	run := func(ctx context.Context) error {
		embeddingStart := time.Now()
		ingester.Progress = func(processed, total int) {
			elapsedTime := time.Since(embeddingStart)
			estimatedTotal := elapsedTime * time.Duration(total) / time.Duration(processed)
			estimatedRemaining := estimatedTotal - elapsedTime

			log.Printf("Progress: %d/%d chunks embedded (%.1f%%) - Est. remaining: %v",
				processed, total, float64(processed)/float64(total)*100, estimatedRemaining.Round(time.Second))
		}

		stats, err := ingester.IngestPDF(ctx, *pdfPath)
		if err != nil {
			return err
		}
		printStatistics(stats)

		count, err := index.Count(ctx)
		if err != nil {
			return err
		}
		log.Printf("Index now holds %d chunks", count)
		return nil
	}

	if err := run(ctx); err != nil {
		log.Fatalf("Failed to index PDF: %v", err)
	}

	if *watch {
		log.Printf("Watching %s for changes (Ctrl+C to stop)", *pdfPath)
		if err := ingest.Watch(ctx, *pdfPath, 2*time.Second, run, logger); err != nil {
			log.Fatalf("Watch failed: %v", err)
		}
	}
}

// printStatistics prints a summary of one indexing run
func printStatistics(stats ingest.Stats) {
	log.Printf("Completed processing in %v:", stats.Duration.Round(time.Millisecond))
	log.Printf("  Pages: %d (%d without text)", stats.Pages, stats.EmptyPages)
	log.Printf("  Total chunks: %d", stats.Chunks)
	log.Printf("  Average chunk length: %.1f characters", stats.AvgChunkLen)
	log.Printf("  Embedding dimension: %d", stats.Dimension)
}

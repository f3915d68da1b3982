package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"ng12-risk-assessor/internal/chatstore"
	"ng12-risk-assessor/internal/config"
	"ng12-risk-assessor/internal/database"
	"ng12-risk-assessor/internal/embedding"
	"ng12-risk-assessor/internal/llm"
	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/patients"
	"ng12-risk-assessor/internal/rag"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"google.golang.org/genai"
)

// Embedder is an embedding provider that can report its model
type Embedder interface {
	EmbedTexts(ctx context.Context, texts []string) ([][]float32, error)
	ModelName() string
}

// Index is a vector index that can be both written and queried
type Index interface {
	rag.VectorIndex
	Upsert(ctx context.Context, ids, documents []string, embeddings [][]float32, metadatas []models.Metadata) error
	Count(ctx context.Context) (int, error)
}

// Builder creates providers and stores from configuration and remembers how
// to release them
type Builder struct {
	Config *config.Config
	Logger *slog.Logger

	genai   *genai.Client
	closers []func() error
}

// NewBuilder creates a builder for cfg
func NewBuilder(cfg *config.Config, logger *slog.Logger) *Builder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{Config: cfg, Logger: logger}
}

// Close releases everything the builder opened, most recent first
func (b *Builder) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}

func (b *Builder) onClose(fn func() error) {
	b.closers = append(b.closers, fn)
}

func (b *Builder) genaiClient(ctx context.Context) (*genai.Client, error) {
	if b.genai != nil {
		return b.genai, nil
	}
	c := b.Config
	client, err := llm.NewGenAIClient(ctx, c.GeminiAPIKey, c.GCPProject, c.GCPLocation, c.UseVertexAI)
	if err != nil {
		return nil, err
	}
	b.genai = client
	return client, nil
}

// Embedder builds the configured embedding provider
func (b *Builder) Embedder(ctx context.Context) (Embedder, error) {
	c := b.Config
	switch c.EmbedProvider {
	case config.ProviderOllama:
		e, err := embedding.NewOllamaEmbedder(c.OllamaHost, c.EmbedModel)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.ProviderGemini:
		client, err := b.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		e := embedding.NewGeminiEmbedder(client, c.EmbedModel)
		e.Dimensions = int32(c.EmbeddingDim)
		return e, nil
	case config.ProviderLocal:
		e, err := embedding.NewLocalEmbedder(c.EmbedModel, c.ModelDir)
		if err != nil {
			return nil, err
		}
		b.onClose(e.Close)
		return e, nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", c.EmbedProvider)
}

// Generator builds the configured generation model
func (b *Builder) Generator(ctx context.Context) (rag.Generator, error) {
	c := b.Config
	switch c.LLMProvider {
	case config.ProviderOllama:
		g, err := llm.NewOllamaLLM(c.OllamaHost, c.GenModel)
		if err != nil {
			return nil, err
		}
		return g, nil
	case config.ProviderGemini:
		client, err := b.genaiClient(ctx)
		if err != nil {
			return nil, err
		}
		return llm.NewGeminiLLM(client, c.GenModel), nil
	}
	return nil, fmt.Errorf("unknown llm provider %q", c.LLMProvider)
}

// Index opens the configured vector index, creating its schema if needed
func (b *Builder) Index(ctx context.Context) (Index, error) {
	c := b.Config
	switch c.IndexBackend {
	case config.BackendPostgres:
		db, err := database.NewPostgresIndex(ctx, c.DatabaseURL)
		if err != nil {
			return nil, err
		}
		b.onClose(func() error { db.Close(); return nil })
		if err := db.Initialize(ctx, c.EmbeddingDim); err != nil {
			return nil, err
		}
		return db, nil
	case config.BackendSQLite:
		db, err := database.NewSQLiteIndex(c.SQLitePath)
		if err != nil {
			return nil, err
		}
		b.onClose(db.Close)
		return db, nil
	case config.BackendMemory:
		b.Logger.Warn("using in-memory index, contents are lost on exit")
		return database.NewMemoryIndex(), nil
	}
	return nil, fmt.Errorf("unknown index backend %q", c.IndexBackend)
}

// Patients opens the configured patient repository
func (b *Builder) Patients(ctx context.Context) (patients.Repository, error) {
	c := b.Config
	switch c.PatientsBackend {
	case config.BackendJSON:
		return patients.NewJSONStore(c.PatientsPath), nil
	case config.BackendMongo:
		client, err := b.mongo(ctx)
		if err != nil {
			return nil, err
		}
		return patients.NewMongoStore(client, c.MongoDatabase), nil
	}
	return nil, fmt.Errorf("unknown patients backend %q", c.PatientsBackend)
}

func (b *Builder) mongo(ctx context.Context) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(b.Config.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	b.onClose(func() error { return client.Disconnect(context.Background()) })

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client, nil
}

// Sessions opens the configured chat session store
func (b *Builder) Sessions(ctx context.Context) (chatstore.Store, error) {
	c := b.Config
	switch c.ChatBackend {
	case config.BackendMemory:
		return chatstore.NewMemoryStore(), nil
	case config.BackendRedis:
		rdb := redis.NewClient(&redis.Options{Addr: c.RedisAddr})
		b.onClose(rdb.Close)
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping Redis: %w", err)
		}
		return chatstore.NewRedisStore(rdb, c.ChatTTL), nil
	}
	return nil, fmt.Errorf("unknown chat backend %q", c.ChatBackend)
}

// Services are the query-side components shared by the CLI and the server
type Services struct {
	Embedder  Embedder
	Generator rag.Generator
	Index     Index
	Retriever *rag.Retriever
	Assessor  *rag.Assessor
	Chat      *rag.ChatAgent
}

// Services builds the retriever, assessor and chat agent
func (b *Builder) Services(ctx context.Context) (*Services, error) {
	embedder, err := b.Embedder(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	generator, err := b.Generator(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create generator: %w", err)
	}
	index, err := b.Index(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open index: %w", err)
	}

	retriever := rag.NewRetriever(embedder, index, b.Logger)
	retriever.MaxTopK = b.Config.MaxTopK

	return &Services{
		Embedder:  embedder,
		Generator: generator,
		Index:     index,
		Retriever: retriever,
		Assessor:  rag.NewAssessor(retriever, generator, embedder.ModelName(), b.Config.TopK, b.Logger),
		Chat:      rag.NewChatAgent(retriever, generator, b.Logger),
	}, nil
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ng12-risk-assessor/internal/app"
	"ng12-risk-assessor/internal/config"
	"ng12-risk-assessor/internal/logging"
	"ng12-risk-assessor/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx := context.Background()
	logger := logging.New(os.Stderr, cfg.LogLevel)

	log.Printf("LLM:        %s (%s)", cfg.GenModel, cfg.LLMProvider)
	log.Printf("Embeddings: %s (%s, dim %d)", cfg.EmbedModel, cfg.EmbedProvider, cfg.EmbeddingDim)
	log.Printf("Index:      %s", cfg.IndexBackend)
	log.Printf("Patients:   %s", cfg.PatientsBackend)
	log.Printf("Sessions:   %s", cfg.ChatBackend)

	builder := app.NewBuilder(cfg, logger)
	defer builder.Close()

	svc, err := builder.Services(ctx)
	if err != nil {
		log.Fatalf("Failed to start services: %v", err)
	}
	repo, err := builder.Patients(ctx)
	if err != nil {
		log.Fatalf("Failed to open patient store: %v", err)
	}
	sessions, err := builder.Sessions(ctx)
	if err != nil {
		log.Fatalf("Failed to open session store: %v", err)
	}

	if n, err := svc.Index.Count(ctx); err != nil {
		log.Printf("Warning: could not count indexed chunks: %v", err)
	} else if n == 0 {
		log.Println("Warning: the index is empty, run the indexer first")
	}

	router := server.NewRouter(&server.Container{
		Assessor:    svc.Assessor,
		Chat:        svc.Chat,
		Patients:    repo,
		Sessions:    sessions,
		DefaultTopK: cfg.TopK,
		MaxTopK:     cfg.MaxTopK,
		WebDir:      cfg.WebDir,
		Logger:      logger,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		log.Println("Endpoints:")
		log.Println("  GET    /health")
		log.Println("  POST   /assess")
		log.Println("  POST   /chat")
		log.Println("  GET    /chat/{session_id}/history")
		log.Println("  DELETE /chat/{session_id}")

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("ListenAndServe:", err)
		}
	}()

	// Wait for interrupt
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exited")
}

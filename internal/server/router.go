package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"ng12-risk-assessor/internal/chatstore"
	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/patients"

	"github.com/gorilla/mux"
)

// HistoryTurns is the number of stored turns handed to the chat agent
const HistoryTurns = 12

// Assessor produces a referral assessment for one patient
type Assessor interface {
	Assess(ctx context.Context, patient models.Patient, topK int) (*models.AssessmentResult, error)
}

// ChatAgent answers one message given the recent conversation
type ChatAgent interface {
	Chat(ctx context.Context, message string, history []models.ChatTurn, topK int) (models.ChatAnswer, error)
}

// Container holds all dependencies for the router
type Container struct {
	Assessor Assessor
	Chat     ChatAgent
	Patients patients.Repository
	Sessions chatstore.Store
	// DefaultTopK and MaxTopK bound the chat top_k field
	DefaultTopK int
	MaxTopK     int
	// WebDir, when set, is served at /
	WebDir string
	Logger *slog.Logger
}

// NewRouter creates the API router with all endpoints
func NewRouter(c *Container) http.Handler {
	h := newHandler(c)
	r := mux.NewRouter()

	r.Use(corsMiddleware)
	r.Use(h.logRequests)

	r.HandleFunc("/health", h.Health).Methods("GET")
	r.HandleFunc("/assess", h.Assess).Methods("POST", "OPTIONS")
	r.HandleFunc("/chat", h.Chat).Methods("POST", "OPTIONS")
	r.HandleFunc("/chat/{session_id}/history", h.History).Methods("GET", "OPTIONS")
	r.HandleFunc("/chat/{session_id}", h.Clear).Methods("DELETE", "OPTIONS")

	if c.WebDir != "" {
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(c.WebDir))).Methods("GET")
	}

	return r
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

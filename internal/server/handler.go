package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/patients"
	"ng12-risk-assessor/internal/rag"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AssessRequest is the body of POST /assess
type AssessRequest struct {
	PatientID string `json:"patient_id"`
	TopK      *int   `json:"top_k,omitempty"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
	TopK      *int   `json:"top_k,omitempty"`
}

// ChatResponse is the reply of POST /chat
type ChatResponse struct {
	SessionID string            `json:"session_id"`
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations"`
}

// HistoryResponse is the reply of GET /chat/{session_id}/history
type HistoryResponse struct {
	SessionID string            `json:"session_id"`
	History   []models.ChatTurn `json:"history"`
}

type handler struct {
	c      *Container
	now    func() time.Time
	logger *slog.Logger
}

func newHandler(c *Container) *handler {
	logger := c.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if c.MaxTopK <= 0 {
		c.MaxTopK = rag.DefaultMaxTopK
	}
	if c.DefaultTopK <= 0 {
		c.DefaultTopK = min(rag.DefaultTopK, c.MaxTopK)
	}
	return &handler{c: c, now: time.Now, logger: logger}
}

// Health handles GET /health
func (h *handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Assess handles POST /assess
func (h *handler) Assess(w http.ResponseWriter, r *http.Request) {
	var req AssessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.PatientID = strings.TrimSpace(req.PatientID)
	if req.PatientID == "" {
		writeError(w, http.StatusBadRequest, "patient_id is required")
		return
	}
	topK := 0
	if req.TopK != nil {
		topK = *req.TopK
	}

	patient, err := h.c.Patients.Get(r.Context(), req.PatientID)
	if err != nil {
		if errors.Is(err, patients.ErrNotFound) {
			writeError(w, http.StatusNotFound, fmt.Sprintf("Patient not found: %s", req.PatientID))
			return
		}
		h.logger.Error("patient lookup failed", "patient_id", req.PatientID, "error", err)
		writeError(w, http.StatusInternalServerError, "patient lookup failed")
		return
	}

	result, err := h.c.Assessor.Assess(r.Context(), *patient, topK)
	if err != nil {
		h.logger.Error("assessment failed", "patient_id", req.PatientID, "error", err)
		writeError(w, http.StatusBadGateway, "assessment failed: upstream provider error")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// Chat handles POST /chat
func (h *handler) Chat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}
	topK := h.c.DefaultTopK
	if req.TopK != nil {
		topK = *req.TopK
	}
	if topK < 1 || topK > h.c.MaxTopK {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("top_k must be between 1 and %d", h.c.MaxTopK))
		return
	}
	if req.SessionID == "" {
		req.SessionID = uuid.NewString()
	}

	ctx := r.Context()
	userTurn := models.ChatTurn{Role: models.RoleUser, Content: req.Message, TS: h.now()}
	if err := h.c.Sessions.Append(ctx, req.SessionID, userTurn); err != nil {
		h.logger.Error("failed to store user turn", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store message")
		return
	}

	history, err := h.c.Sessions.History(ctx, req.SessionID, HistoryTurns)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}

	answer, err := h.c.Chat.Chat(ctx, req.Message, history, topK)
	if err != nil {
		h.logger.Error("chat failed", "session_id", req.SessionID, "error", err)
		writeError(w, http.StatusBadGateway, "chat failed: upstream provider error")
		return
	}

	assistantTurn := models.ChatTurn{Role: models.RoleAssistant, Content: answer.Answer, TS: h.now()}
	if err := h.c.Sessions.Append(ctx, req.SessionID, assistantTurn); err != nil {
		// the answer is still useful to the caller
		h.logger.Warn("failed to store assistant turn", "session_id", req.SessionID, "error", err)
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: req.SessionID,
		Answer:    answer.Answer,
		Citations: answer.Citations,
	})
}

// History handles GET /chat/{session_id}/history
func (h *handler) History(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	turns, err := h.c.Sessions.History(r.Context(), sessionID, 0)
	if err != nil {
		h.logger.Error("failed to load history", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load history")
		return
	}
	if turns == nil {
		turns = []models.ChatTurn{}
	}

	writeJSON(w, http.StatusOK, HistoryResponse{SessionID: sessionID, History: turns})
}

// Clear handles DELETE /chat/{session_id}
func (h *handler) Clear(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["session_id"]

	if err := h.c.Sessions.Clear(r.Context(), sessionID); err != nil {
		h.logger.Error("failed to clear session", "session_id", sessionID, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to clear session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"session_id": sessionID, "cleared": true})
}

func (h *handler) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		h.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ng12-risk-assessor/internal/chatstore"
	"ng12-risk-assessor/internal/models"
	"ng12-risk-assessor/internal/patients"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePatients map[string]models.Patient

func (f fakePatients) Get(_ context.Context, id string) (*models.Patient, error) {
	p, ok := f[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", patients.ErrNotFound, id)
	}
	return &p, nil
}

type fakeAgent struct {
	err         error
	gotTopK     int
	gotHistory  []models.ChatTurn
	gotPatient  models.Patient
	assessCalls int
}

func (f *fakeAgent) Assess(_ context.Context, p models.Patient, topK int) (*models.AssessmentResult, error) {
	f.assessCalls++
	f.gotPatient = p
	f.gotTopK = topK
	if f.err != nil {
		return nil, f.err
	}
	return &models.AssessmentResult{
		PatientID:  p.PatientID,
		Decision:   models.DecisionUrgentReferral,
		Confidence: 0.8,
		Citations:  []models.Citation{{Source: models.DefaultSource, Page: 12, ChunkID: "ng12_0012_00"}},
	}, nil
}

func (f *fakeAgent) Chat(_ context.Context, message string, history []models.ChatTurn, topK int) (models.ChatAnswer, error) {
	f.gotHistory = history
	f.gotTopK = topK
	if f.err != nil {
		return models.ChatAnswer{}, f.err
	}
	return models.ChatAnswer{
		Answer:    "answer to: " + message,
		Citations: []models.Citation{{Source: models.DefaultSource, Page: 9, ChunkID: "ng12_0009_01"}},
	}, nil
}

func newTestServer(t *testing.T, agent *fakeAgent) (http.Handler, *chatstore.MemoryStore) {
	t.Helper()
	sessions := chatstore.NewMemoryStore()
	router := NewRouter(&Container{
		Assessor: agent,
		Chat:     agent,
		Patients: fakePatients{"PT-101": {PatientID: "PT-101", Age: 55, Symptoms: []string{"unexplained hemoptysis"}}},
		Sessions: sessions,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	return router, sessions
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func intPtr(v int) *int { return &v }

func TestHealth(t *testing.T) {
	router, _ := newTestServer(t, &fakeAgent{})
	rec := do(t, router, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAssess(t *testing.T) {
	t.Run("Known patient", func(t *testing.T) {
		agent := &fakeAgent{}
		router, _ := newTestServer(t, agent)

		rec := do(t, router, http.MethodPost, "/assess", AssessRequest{PatientID: "PT-101", TopK: intPtr(7)})
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[models.AssessmentResult](t, rec)
		assert.Equal(t, "PT-101", res.PatientID)
		assert.Equal(t, models.DecisionUrgentReferral, res.Decision)
		assert.Equal(t, 7, agent.gotTopK)
		assert.Equal(t, 55, agent.gotPatient.Age)
	})

	t.Run("Missing top_k is left to the assessor default", func(t *testing.T) {
		agent := &fakeAgent{}
		router, _ := newTestServer(t, agent)

		rec := do(t, router, http.MethodPost, "/assess", map[string]string{"patient_id": "PT-101"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, agent.gotTopK)
	})

	t.Run("Unknown patient is 404", func(t *testing.T) {
		agent := &fakeAgent{}
		router, _ := newTestServer(t, agent)

		rec := do(t, router, http.MethodPost, "/assess", AssessRequest{PatientID: "PT-999"})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Contains(t, rec.Body.String(), "Patient not found: PT-999")
		assert.Zero(t, agent.assessCalls)
	})

	t.Run("Missing patient id is 400", func(t *testing.T) {
		router, _ := newTestServer(t, &fakeAgent{})
		rec := do(t, router, http.MethodPost, "/assess", map[string]string{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("Provider failure is 502", func(t *testing.T) {
		router, _ := newTestServer(t, &fakeAgent{err: errors.New("connection refused")})
		rec := do(t, router, http.MethodPost, "/assess", AssessRequest{PatientID: "PT-101"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.NotContains(t, rec.Body.String(), "connection refused")
	})
}

func TestChat(t *testing.T) {
	t.Run("Stores both turns and returns citations", func(t *testing.T) {
		agent := &fakeAgent{}
		router, sessions := newTestServer(t, agent)

		rec := do(t, router, http.MethodPost, "/chat", ChatRequest{SessionID: "s1", Message: "When is an urgent chest X-ray needed?"})
		require.Equal(t, http.StatusOK, rec.Code)

		res := decode[ChatResponse](t, rec)
		assert.Equal(t, "s1", res.SessionID)
		assert.Equal(t, "answer to: When is an urgent chest X-ray needed?", res.Answer)
		require.Len(t, res.Citations, 1)
		assert.Equal(t, "ng12_0009_01", res.Citations[0].ChunkID)
		assert.Equal(t, 5, agent.gotTopK)

		// the agent sees the user turn that was just stored
		require.Len(t, agent.gotHistory, 1)
		assert.Equal(t, models.RoleUser, agent.gotHistory[0].Role)

		turns, err := sessions.History(context.Background(), "s1", 0)
		require.NoError(t, err)
		require.Len(t, turns, 2)
		assert.Equal(t, models.RoleAssistant, turns[1].Role)
		assert.Equal(t, res.Answer, turns[1].Content)
	})

	t.Run("History handed to the agent is capped", func(t *testing.T) {
		agent := &fakeAgent{}
		router, _ := newTestServer(t, agent)

		for i := 0; i < 10; i++ {
			rec := do(t, router, http.MethodPost, "/chat", ChatRequest{SessionID: "long", Message: fmt.Sprintf("q%d", i)})
			require.Equal(t, http.StatusOK, rec.Code)
		}
		assert.Len(t, agent.gotHistory, HistoryTurns)
		assert.Equal(t, "q9", agent.gotHistory[len(agent.gotHistory)-1].Content)
	})

	t.Run("Missing session id gets one generated", func(t *testing.T) {
		router, _ := newTestServer(t, &fakeAgent{})

		rec := do(t, router, http.MethodPost, "/chat", ChatRequest{Message: "hello"})
		require.Equal(t, http.StatusOK, rec.Code)
		res := decode[ChatResponse](t, rec)
		assert.Len(t, res.SessionID, 36)
	})

	t.Run("Validation", func(t *testing.T) {
		router, _ := newTestServer(t, &fakeAgent{})

		tests := []struct {
			name string
			body ChatRequest
		}{
			{"empty message", ChatRequest{SessionID: "s", Message: "  "}},
			{"top_k too small", ChatRequest{SessionID: "s", Message: "hi", TopK: intPtr(0)}},
			{"top_k too large", ChatRequest{SessionID: "s", Message: "hi", TopK: intPtr(16)}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := do(t, router, http.MethodPost, "/chat", tt.body)
				assert.Equal(t, http.StatusBadRequest, rec.Code)
			})
		}
	})

	t.Run("Provider failure is 502 and no assistant turn is stored", func(t *testing.T) {
		router, sessions := newTestServer(t, &fakeAgent{err: errors.New("timeout")})

		rec := do(t, router, http.MethodPost, "/chat", ChatRequest{SessionID: "s2", Message: "hi"})
		assert.Equal(t, http.StatusBadGateway, rec.Code)

		turns, err := sessions.History(context.Background(), "s2", 0)
		require.NoError(t, err)
		require.Len(t, turns, 1)
		assert.Equal(t, models.RoleUser, turns[0].Role)
	})
}

func TestHistoryAndClear(t *testing.T) {
	router, _ := newTestServer(t, &fakeAgent{})

	rec := do(t, router, http.MethodGet, "/chat/empty/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"empty","history":[]}`, rec.Body.String())

	do(t, router, http.MethodPost, "/chat", ChatRequest{SessionID: "s3", Message: "hi"})

	rec = do(t, router, http.MethodGet, "/chat/s3/history", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	hist := decode[HistoryResponse](t, rec)
	assert.Equal(t, "s3", hist.SessionID)
	require.Len(t, hist.History, 2)
	assert.Equal(t, "hi", hist.History[0].Content)
	assert.False(t, hist.History[0].TS.IsZero())

	rec = do(t, router, http.MethodDelete, "/chat/s3", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"session_id":"s3","cleared":true}`, rec.Body.String())

	rec = do(t, router, http.MethodGet, "/chat/s3/history", nil)
	hist = decode[HistoryResponse](t, rec)
	assert.Empty(t, hist.History)
}

func TestStaticWebDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<h1>NG12</h1>"), 0o644))

	router := NewRouter(&Container{
		Assessor: &fakeAgent{},
		Chat:     &fakeAgent{},
		Patients: fakePatients{},
		Sessions: chatstore.NewMemoryStore(),
		WebDir:   dir,
	})

	rec := do(t, router, http.MethodGet, "/", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "NG12")

	rec = do(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

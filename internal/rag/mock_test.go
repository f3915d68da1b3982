package rag

import (
	"context"
	"errors"
	"fmt"

	"ng12-risk-assessor/internal/llm"
	"ng12-risk-assessor/internal/models"
)

var errTransport = errors.New("connection refused")

// mockEmbedder returns a fixed vector and counts calls
type mockEmbedder struct {
	calls  int
	inputs [][]string
	err    error
}

func (m *mockEmbedder) EmbedTexts(_ context.Context, texts []string) ([][]float32, error) {
	m.calls++
	m.inputs = append(m.inputs, texts)
	if m.err != nil {
		return nil, m.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

// mockIndex returns a canned result and records the requested k
type mockIndex struct {
	result *models.QueryResult
	calls  int
	lastK  int
	err    error
}

func (m *mockIndex) Query(_ context.Context, _ []float32, topK int) (*models.QueryResult, error) {
	m.calls++
	m.lastK = topK
	if m.err != nil {
		return nil, m.err
	}
	if m.result == nil {
		return &models.QueryResult{}, nil
	}
	// honour k like a real index
	res := *m.result
	if len(res.IDs) > topK {
		res.IDs = res.IDs[:topK]
	}
	if len(res.Documents) > topK {
		res.Documents = res.Documents[:topK]
	}
	if len(res.Metadatas) > topK {
		res.Metadatas = res.Metadatas[:topK]
	}
	return &res, nil
}

// mockGenerator replays a canned completion
type mockGenerator struct {
	text       string
	err        error
	calls      int
	lastPrompt string
	lastSystem string
}

func (m *mockGenerator) Generate(_ context.Context, prompt string) (string, error) {
	m.calls++
	m.lastPrompt = prompt
	if m.err != nil {
		return "", m.err
	}
	return m.text, nil
}

func (m *mockGenerator) GenerateJSON(_ context.Context, system, user string) (map[string]any, error) {
	m.calls++
	m.lastSystem = system
	m.lastPrompt = user
	if m.err != nil {
		return nil, m.err
	}
	return llm.ParseJSONObject(m.text), nil
}

func (m *mockGenerator) ModelName() string { return "test-gen" }

// indexResult builds n chunks on pages 1..n
func indexResult(n int) *models.QueryResult {
	res := &models.QueryResult{}
	for i := 1; i <= n; i++ {
		id := fmt.Sprintf("ng12_%04d_00", i)
		res.IDs = append(res.IDs, id)
		res.Documents = append(res.Documents, fmt.Sprintf("guideline text %d", i))
		res.Metadatas = append(res.Metadatas, models.Metadata{"page": i, "chunk_id": id, "source": models.DefaultSource})
	}
	return res
}

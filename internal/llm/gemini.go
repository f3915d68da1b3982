package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiLLM generates text with Gemini, either through the Gemini API or Vertex AI
type GeminiLLM struct {
	Client      *genai.Client
	Model       string
	Temperature float32
}

// NewGeminiLLM wraps an existing genai client
func NewGeminiLLM(client *genai.Client, model string) *GeminiLLM {
	return &GeminiLLM{
		Client:      client,
		Model:       model,
		Temperature: DefaultTemperature,
	}
}

// NewGenAIClient creates a genai client. Empty fields are resolved from the
// GOOGLE_* and GEMINI_API_KEY environment variables by the SDK.
func NewGenAIClient(ctx context.Context, apiKey, project, location string, vertex bool) (*genai.Client, error) {
	cfg := &genai.ClientConfig{
		APIKey:   apiKey,
		Project:  project,
		Location: location,
	}
	if vertex {
		cfg.Backend = genai.BackendVertexAI
		cfg.APIKey = ""
	} else if apiKey != "" {
		cfg.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return client, nil
}

// ModelName returns the generation model name
func (g *GeminiLLM) ModelName() string {
	return g.Model
}

// Generate returns the plain text completion for a prompt
func (g *GeminiLLM) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, genai.Text(prompt), &genai.GenerateContentConfig{
		Temperature: genai.Ptr(g.Temperature),
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}
	return resp.Text(), nil
}

// GenerateJSON requests application/json output and recovers the object.
func (g *GeminiLLM) GenerateJSON(ctx context.Context, system, user string) (map[string]any, error) {
	resp, err := g.Client.Models.GenerateContent(ctx, g.Model, genai.Text(user), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.Temperature),
		ResponseMIMEType:  "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to generate JSON response: %w", err)
	}
	return ParseJSONObject(resp.Text()), nil
}

package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ollama/ollama/api"
	"github.com/ollama/ollama/envconfig"
)

// DefaultTemperature is used for every generation call
const DefaultTemperature = 0.2

// OllamaLLM handles interactions with the Ollama generate API
type OllamaLLM struct {
	Client      *api.Client
	Model       string
	Temperature float64
	NumPredict  int
}

// NewOllamaLLM creates a new Ollama LLM client. An empty host falls back to OLLAMA_HOST.
func NewOllamaLLM(host string, model string) (*OllamaLLM, error) {
	hostURL := envconfig.Host()
	if host != "" {
		u, err := url.Parse(host)
		if err != nil {
			return nil, fmt.Errorf("failed to parse ollama host %q: %w", host, err)
		}
		hostURL = u
	}
	client := api.NewClient(hostURL, http.DefaultClient)

	return &OllamaLLM{
		Client:      client,
		Model:       model,
		Temperature: DefaultTemperature,
		NumPredict:  1024,
	}, nil
}

// ModelName returns the generation model name
func (o *OllamaLLM) ModelName() string {
	return o.Model
}

// Generate returns the plain text completion for a prompt
func (o *OllamaLLM) Generate(ctx context.Context, prompt string) (string, error) {
	return o.generate(ctx, &api.GenerateRequest{
		Model:   o.Model,
		Prompt:  prompt,
		Options: o.options(),
	})
}

// GenerateJSON asks for a JSON object and recovers it from whatever comes back.
// Only transport failures are returned as errors.
func (o *OllamaLLM) GenerateJSON(ctx context.Context, system, user string) (map[string]any, error) {
	text, err := o.generate(ctx, &api.GenerateRequest{
		Model:   o.Model,
		System:  system,
		Prompt:  user,
		Format:  json.RawMessage(`"json"`),
		Options: o.options(),
	})
	if err != nil {
		return nil, err
	}
	return ParseJSONObject(text), nil
}

func (o *OllamaLLM) options() map[string]any {
	opts := map[string]any{
		"temperature": o.Temperature,
	}
	if o.NumPredict > 0 {
		opts["num_predict"] = o.NumPredict
	}
	return opts
}

// generate collects the streamed response into one string
func (o *OllamaLLM) generate(ctx context.Context, req *api.GenerateRequest) (string, error) {
	var responseBuilder strings.Builder

	err := o.Client.Generate(ctx, req, func(resp api.GenerateResponse) error {
		_, err := responseBuilder.WriteString(resp.Response)
		return err
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate response: %w", err)
	}

	return responseBuilder.String(), nil
}

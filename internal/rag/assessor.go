package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"ng12-risk-assessor/internal/citations"
	"ng12-risk-assessor/internal/models"
)

// DefaultConfidence is reported when the model gives no usable confidence
const DefaultConfidence = 0.5

// Assessor produces structured referral assessments for patients
type Assessor struct {
	Retriever  *Retriever
	Generator  Generator
	EmbedModel string
	DefaultK   int
	Logger     *slog.Logger
}

// NewAssessor creates an assessor. defaultK is used when Assess is called with topK == 0.
func NewAssessor(retriever *Retriever, generator Generator, embedModel string, defaultK int, logger *slog.Logger) *Assessor {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultK <= 0 {
		defaultK = DefaultTopK
	}
	return &Assessor{
		Retriever:  retriever,
		Generator:  generator,
		EmbedModel: embedModel,
		DefaultK:   defaultK,
		Logger:     logger,
	}
}

// Assess retrieves evidence for the patient's symptoms, asks the model for a
// decision and reconciles the citations. Malformed model output degrades to
// defaults; only embedding, index and generation transport failures are errors.
func (a *Assessor) Assess(ctx context.Context, patient models.Patient, topK int) (*models.AssessmentResult, error) {
	k := topK
	if k == 0 {
		k = a.DefaultK
	}
	k = a.Retriever.ClampTopK(k)

	query := BuildQuery(patient)
	rows, err := a.Retriever.Retrieve(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve evidence: %w", err)
	}

	patientJSON, err := json.MarshalIndent(patient, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode patient: %w", err)
	}

	raw, err := a.Generator.GenerateJSON(ctx, AssessorSystemPrompt, buildAssessorUserPrompt(string(patientJSON), rows))
	if err != nil {
		return nil, fmt.Errorf("failed to generate assessment: %w", err)
	}
	if raw == nil {
		raw = map[string]any{}
	}

	merged := citations.MergeDedupe(
		citations.Normalize(raw["citations"], citations.ModelExcerptLimit),
		citations.FromEvidence(rows, k),
		k,
	)

	decision, _ := models.ParseDecision(stringField(raw, "decision"))
	patientID := stringField(raw, "patient_id")
	if patientID == "" {
		patientID = patient.PatientID
	}

	result := &models.AssessmentResult{
		PatientID:  patientID,
		Decision:   decision,
		Confidence: coerceConfidence(raw["confidence"]),
		Summary:    stringField(raw, "summary"),
		Reasoning:  stringField(raw, "reasoning"),
		Citations:  merged,
		Debug: models.AssessmentDebug{
			RAGQuery:        query,
			Model:           a.Generator.ModelName(),
			EmbedModel:      a.EmbedModel,
			TopK:            k,
			RetrievedChunks: len(rows),
		},
	}

	if msg, ok := raw["error"].(string); ok {
		a.Logger.Warn("model output was not valid JSON", slog.String("patient_id", patient.PatientID), slog.String("error", msg))
	}
	a.Logger.Info("assessment complete",
		slog.String("patient_id", result.PatientID),
		slog.String("decision", string(result.Decision)),
		slog.Int("citations", len(result.Citations)),
		slog.Int("evidence_rows", len(rows)),
	)

	return result, nil
}

func stringField(raw map[string]any, key string) string {
	s, _ := raw[key].(string)
	return s
}

// coerceConfidence accepts numbers and numeric strings inside [0, 1]
func coerceConfidence(v any) float64 {
	var f float64
	switch c := v.(type) {
	case float64:
		f = c
	case float32:
		f = float64(c)
	case int:
		f = float64(c)
	case json.Number:
		parsed, err := c.Float64()
		if err != nil {
			return DefaultConfidence
		}
		f = parsed
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(c), 64)
		if err != nil {
			return DefaultConfidence
		}
		f = parsed
	default:
		return DefaultConfidence
	}

	if math.IsNaN(f) || f < 0 || f > 1 {
		return DefaultConfidence
	}
	return f
}

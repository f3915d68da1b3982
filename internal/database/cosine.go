package database

import (
	"math"
	"sort"

	"ng12-risk-assessor/internal/models"
)

// cosineSimilarity returns 0 for mismatched or zero vectors
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

type scoredChunk struct {
	id      string
	content string
	meta    models.Metadata
	score   float64
}

// rank sorts by descending similarity (ties by id) and keeps topK
func rank(scored []scoredChunk, topK int) *models.QueryResult {
	sort.Slice(scored, func(i, j int) bool {
		if scored[i].score != scored[j].score {
			return scored[i].score > scored[j].score
		}
		return scored[i].id < scored[j].id
	})
	if topK >= 0 && len(scored) > topK {
		scored = scored[:topK]
	}

	result := &models.QueryResult{}
	for _, s := range scored {
		result.IDs = append(result.IDs, s.id)
		result.Documents = append(result.Documents, s.content)
		result.Metadatas = append(result.Metadatas, s.meta)
	}
	return result
}

package processor

import (
	"errors"
	"fmt"
	"strings"

	"ng12-risk-assessor/internal/models"
)

const (
	// DefaultChunkSize is the window width in characters
	DefaultChunkSize = 1200
	// DefaultChunkOverlap is the number of characters shared by consecutive windows
	DefaultChunkOverlap = 150
)

// ErrInvalidChunking is returned when the window and overlap cannot make progress
var ErrInvalidChunking = errors.New("invalid chunking parameters")

// ValidateChunking checks that chunkSize > 0 and 0 <= overlap < chunkSize
func ValidateChunking(chunkSize, overlap int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("%w: chunk size must be positive, got %d", ErrInvalidChunking, chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return fmt.Errorf("%w: overlap %d must be in [0, %d)", ErrInvalidChunking, overlap, chunkSize)
	}
	return nil
}

// NormalizeWhitespace collapses every whitespace run into a single space
func NormalizeWhitespace(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

// ChunkText splits text into overlapping windows after whitespace normalization.
// Windows are measured in characters, not bytes. Parameters are assumed valid.
func ChunkText(text string, chunkSize, overlap int) []string {
	runes := []rune(NormalizeWhitespace(text))
	n := len(runes)
	if n == 0 {
		return []string{}
	}

	var chunks []string
	step := chunkSize - overlap
	for start := 0; start < n; start += step {
		end := min(start+chunkSize, n)
		chunks = append(chunks, string(runes[start:end]))
		if end == n {
			break
		}
	}
	return chunks
}

// ChunkID returns the stable identifier of the index-th window on a page
func ChunkID(page, index int) string {
	return fmt.Sprintf("ng12_%04d_%02d", page, index)
}

// BuildPageChunks chunks every page independently and assigns stable ids.
// Re-running on identical input yields identical ids, so indexing is an upsert.
func BuildPageChunks(pages []models.PageText, chunkSize, overlap int) ([]models.EvidenceChunk, error) {
	if err := ValidateChunking(chunkSize, overlap); err != nil {
		return nil, err
	}

	chunks := []models.EvidenceChunk{}
	for _, p := range pages {
		for i, text := range ChunkText(p.Text, chunkSize, overlap) {
			chunks = append(chunks, models.EvidenceChunk{
				ChunkID: ChunkID(p.Page, i),
				Page:    p.Page,
				Text:    text,
				Source:  models.DefaultSource,
			})
		}
	}
	return chunks, nil
}

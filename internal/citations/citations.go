// Package citations turns untrusted model citation output and retrieved
// evidence into a bounded, deduplicated list of valid citations.
package citations

import (
	"strings"

	"ng12-risk-assessor/internal/models"
)

const (
	// ModelExcerptLimit caps excerpts copied from model output
	ModelExcerptLimit = 500
	// EvidenceExcerptLimit caps excerpts built from evidence rows before the ellipsis
	EvidenceExcerptLimit = 260
)

// Normalize coerces whatever the model put in its citation field into citations.
// nil and non-object values produce an empty list; a single object is treated
// as a one-element list; list elements that are not objects are skipped.
func Normalize(raw any, maxExcerpt int) []models.Citation {
	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items = []any{v}
	case []any:
		items = v
	case []map[string]any:
		for _, m := range v {
			items = append(items, m)
		}
	default:
		return []models.Citation{}
	}

	out := make([]models.Citation, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		page, _ := CoercePage(obj["page"])
		out = append(out, models.Citation{
			Source:  stringOr(obj["source"], models.DefaultSource),
			Page:    page,
			ChunkID: stringOr(obj["chunk_id"], ""),
			Excerpt: truncate(stringOr(obj["excerpt"], ""), maxExcerpt),
		})
	}
	return out
}

// CoercePage converts a raw page value. Missing, null, zero or non-numeric
// values map to models.UnknownPage; ok is false only when the value was
// present but not numeric.
func CoercePage(v any) (page int, ok bool) {
	if v == nil {
		return models.UnknownPage, true
	}
	n, ok := models.CoerceInt(v)
	if !ok {
		return models.UnknownPage, false
	}
	if n == 0 {
		return models.UnknownPage, true
	}
	return n, true
}

// FromEvidence builds one citation per evidence row, up to limit rows.
func FromEvidence(rows []models.EvidenceRow, limit int) []models.Citation {
	if limit > len(rows) {
		limit = len(rows)
	}
	if limit <= 0 {
		return []models.Citation{}
	}

	out := make([]models.Citation, 0, limit)
	for _, r := range rows[:limit] {
		excerpt := strings.TrimSpace(r.Text)
		if runes := []rune(excerpt); len(runes) > EvidenceExcerptLimit {
			excerpt = string(runes[:EvidenceExcerptLimit]) + "..."
		}
		source := r.Source
		if source == "" {
			source = models.DefaultSource
		}
		out = append(out, models.Citation{
			Source:  source,
			Page:    r.Page,
			ChunkID: r.ChunkID,
			Excerpt: excerpt,
		})
	}
	return out
}

// Preview builds fallback citations from the top rows with a hard excerpt cut
// and the default source.
func Preview(rows []models.EvidenceRow, limit, maxExcerpt int) []models.Citation {
	if limit > len(rows) {
		limit = len(rows)
	}
	if limit <= 0 {
		return []models.Citation{}
	}

	out := make([]models.Citation, 0, limit)
	for _, r := range rows[:limit] {
		out = append(out, models.Citation{
			Source:  models.DefaultSource,
			Page:    r.Page,
			ChunkID: r.ChunkID,
			Excerpt: truncate(r.Text, maxExcerpt),
		})
	}
	return out
}

// MergeDedupe concatenates model citations before evidence citations, drops
// invalid entries and repeats of (chunk_id, page), and stops at limit.
func MergeDedupe(modelCits, evidenceCits []models.Citation, limit int) []models.Citation {
	merged := []models.Citation{}
	if limit <= 0 {
		return merged
	}

	seen := make(map[models.CitationKey]struct{})
	for _, group := range [][]models.Citation{modelCits, evidenceCits} {
		for _, c := range group {
			c.ChunkID = strings.TrimSpace(c.ChunkID)
			if !c.Valid() {
				continue
			}
			key := c.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			merged = append(merged, c)

			if len(merged) >= limit {
				return merged
			}
		}
	}
	return merged
}

func stringOr(v any, fallback string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return fallback
	}
	return s
}

func truncate(s string, n int) string {
	if n < 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

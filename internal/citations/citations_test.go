package citations

import (
	"encoding/json"
	"strings"
	"testing"

	"ng12-risk-assessor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode(t *testing.T, s string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(s), &v))
	return v
}

func TestNormalize(t *testing.T) {
	t.Run("Nil and garbage produce nothing", func(t *testing.T) {
		assert.Empty(t, Normalize(nil, ModelExcerptLimit))
		assert.Empty(t, Normalize("see page 4", ModelExcerptLimit))
		assert.Empty(t, Normalize(float64(3), ModelExcerptLimit))
	})

	t.Run("Single object becomes a list", func(t *testing.T) {
		got := Normalize(decode(t, `{"page": 3, "chunk_id": "ng12_0003_00"}`), ModelExcerptLimit)
		require.Len(t, got, 1)
		assert.Equal(t, models.Citation{Source: "NG12 PDF", Page: 3, ChunkID: "ng12_0003_00"}, got[0])
	})

	t.Run("List skips non-objects and fills defaults", func(t *testing.T) {
		raw := decode(t, `[
			{"source": "NG12", "page": "7", "chunk_id": "a", "excerpt": "x"},
			"junk",
			{"page": null},
			{"page": "p.12", "chunk_id": "b"},
			42
		]`)
		got := Normalize(raw, ModelExcerptLimit)
		require.Len(t, got, 3)
		assert.Equal(t, models.Citation{Source: "NG12", Page: 7, ChunkID: "a", Excerpt: "x"}, got[0])
		assert.Equal(t, models.Citation{Source: "NG12 PDF", Page: -1}, got[1])
		assert.Equal(t, models.Citation{Source: "NG12 PDF", Page: -1, ChunkID: "b"}, got[2])
	})

	t.Run("Excerpts are truncated", func(t *testing.T) {
		raw := map[string]any{"chunk_id": "a", "excerpt": strings.Repeat("z", 900)}
		got := Normalize(raw, ModelExcerptLimit)
		require.Len(t, got, 1)
		assert.Len(t, got[0].Excerpt, 500)
	})
}

func TestFromEvidence(t *testing.T) {
	rows := []models.EvidenceRow{
		{Text: "  " + strings.Repeat("a", 300) + " ", Page: 1, ChunkID: "c1", Source: "NG12 PDF"},
		{Text: "short", Page: 2, ChunkID: "c2"},
		{Text: "third", Page: 3, ChunkID: "c3"},
	}

	got := FromEvidence(rows, 2)
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("a", 260)+"...", got[0].Excerpt)
	assert.Equal(t, "short", got[1].Excerpt)
	assert.Equal(t, "NG12 PDF", got[1].Source)

	assert.Len(t, FromEvidence(rows, 10), 3)
	assert.Empty(t, FromEvidence(rows, 0))
}

func TestPreview(t *testing.T) {
	rows := []models.EvidenceRow{
		{Text: strings.Repeat("b", 450), Page: 4, ChunkID: "c4", Source: "other"},
		{Text: "t", Page: 5, ChunkID: "c5"},
	}

	got := Preview(rows, 3, 400)
	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("b", 400), got[0].Excerpt)
	assert.Equal(t, "NG12 PDF", got[0].Source)
	assert.Equal(t, 5, got[1].Page)
}

func TestMergeDedupe(t *testing.T) {
	t.Run("Model first then evidence, deduped and bounded", func(t *testing.T) {
		modelCits := []models.Citation{
			{ChunkID: "c1", Page: 1, Excerpt: "model"},
			{ChunkID: " c1 ", Page: 1, Excerpt: "dup"},
			{ChunkID: "", Page: -1},
		}
		evidence := []models.Citation{
			{ChunkID: "c1", Page: 1, Excerpt: "evidence"},
			{ChunkID: "c2", Page: 2},
			{ChunkID: "c3", Page: 3},
		}

		got := MergeDedupe(modelCits, evidence, 2)
		require.Len(t, got, 2)
		assert.Equal(t, "model", got[0].Excerpt)
		assert.Equal(t, "c2", got[1].ChunkID)
	})

	t.Run("Same chunk id on different pages is kept", func(t *testing.T) {
		got := MergeDedupe([]models.Citation{{ChunkID: "c1", Page: 1}}, []models.Citation{{ChunkID: "c1", Page: 2}}, 5)
		assert.Len(t, got, 2)
	})

	t.Run("Page only citations are valid", func(t *testing.T) {
		got := MergeDedupe(nil, []models.Citation{{Page: 9}}, 5)
		assert.Len(t, got, 1)
	})

	t.Run("Non-positive limit yields nothing", func(t *testing.T) {
		assert.Empty(t, MergeDedupe([]models.Citation{{ChunkID: "c1", Page: 1}}, nil, 0))
	})

	t.Run("Result is non-empty when evidence has a valid row", func(t *testing.T) {
		rows := []models.EvidenceRow{{Text: "x", Page: -1, ChunkID: "ng12_0001_00"}}
		got := MergeDedupe(Normalize("garbage", ModelExcerptLimit), FromEvidence(rows, 5), 5)
		assert.NotEmpty(t, got)
	})
}

func TestCoercePage(t *testing.T) {
	p, ok := CoercePage(nil)
	assert.True(t, ok)
	assert.Equal(t, -1, p)

	p, ok = CoercePage(float64(12))
	assert.True(t, ok)
	assert.Equal(t, 12, p)

	p, ok = CoercePage("twelve")
	assert.False(t, ok)
	assert.Equal(t, -1, p)
}

package rag

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"ng12-risk-assessor/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestChat(gen *mockGenerator, index *mockIndex) *ChatAgent {
	return NewChatAgent(NewRetriever(&mockEmbedder{}, index, nil), gen, nil)
}

func TestChatAgent_Guardrail(t *testing.T) {
	t.Run("No hits refuses without calling the model", func(t *testing.T) {
		gen := &mockGenerator{text: `{"answer":"should not be used"}`}
		ans, err := newTestChat(gen, &mockIndex{}).Chat(context.Background(), "what about lumps?", nil, 5)
		require.NoError(t, err)

		assert.Equal(t, RefusalMessage, ans.Answer)
		assert.Empty(t, ans.Citations)
		assert.Equal(t, 0, gen.calls)
	})

	t.Run("Blank hits refuse", func(t *testing.T) {
		index := &mockIndex{result: &models.QueryResult{
			IDs:       []string{"a", "b"},
			Documents: []string{"  ", "\n\t"},
			Metadatas: []models.Metadata{{"page": 1}, {"page": 2}},
		}}
		gen := &mockGenerator{}
		ans, err := newTestChat(gen, index).Chat(context.Background(), "q", nil, 5)
		require.NoError(t, err)

		assert.Equal(t, RefusalMessage, ans.Answer)
		assert.Equal(t, 0, gen.calls)
	})
}

func TestChatAgent_Chat(t *testing.T) {
	t.Run("Fenced JSON reply", func(t *testing.T) {
		gen := &mockGenerator{text: "```json\n{\"answer\": \" Refer within 2 weeks. \", \"citations\": [{\"page\": 2, \"chunk_id\": \"ng12_0002_00\", \"excerpt\": \"text\"}]}\n```"}
		ans, err := newTestChat(gen, &mockIndex{result: indexResult(5)}).Chat(context.Background(), "haemoptysis?", nil, 5)
		require.NoError(t, err)

		assert.Equal(t, "Refer within 2 weeks.", ans.Answer)
		assert.Equal(t, []models.Citation{{Source: "NG12 PDF", Page: 2, ChunkID: "ng12_0002_00", Excerpt: "text"}}, ans.Citations)
	})

	t.Run("Plain text reply uses text and top three rows", func(t *testing.T) {
		long := strings.Repeat("w", 450)
		index := &mockIndex{result: &models.QueryResult{
			IDs:       []string{"a", "b", "c", "d"},
			Documents: []string{long, "two", "three", "four"},
			Metadatas: []models.Metadata{{"page": 1, "chunk_id": "a"}, {"page": 2, "chunk_id": "b"}, {"page": 3, "chunk_id": "c"}, {"page": 4, "chunk_id": "d"}},
		}}
		gen := &mockGenerator{text: "  Consider an urgent chest X-ray.  "}

		ans, err := newTestChat(gen, index).Chat(context.Background(), "q", nil, 5)
		require.NoError(t, err)

		assert.Equal(t, "Consider an urgent chest X-ray.", ans.Answer)
		require.Len(t, ans.Citations, 3)
		assert.Len(t, ans.Citations[0].Excerpt, 400)
		assert.Equal(t, "c", ans.Citations[2].ChunkID)
	})

	t.Run("Empty citations fall back to evidence", func(t *testing.T) {
		gen := &mockGenerator{text: `{"answer": "See guideline.", "citations": []}`}
		ans, err := newTestChat(gen, &mockIndex{result: indexResult(5)}).Chat(context.Background(), "q", nil, 5)
		require.NoError(t, err)

		require.Len(t, ans.Citations, 3)
		assert.Equal(t, "guideline text 1", ans.Citations[0].Excerpt)
	})

	t.Run("Missing answer field gives empty answer", func(t *testing.T) {
		gen := &mockGenerator{text: `{"citations": [{"page": 1, "chunk_id": "ng12_0001_00"}]}`}
		ans, err := newTestChat(gen, &mockIndex{result: indexResult(2)}).Chat(context.Background(), "q", nil, 5)
		require.NoError(t, err)

		assert.Equal(t, "", ans.Answer)
		assert.Len(t, ans.Citations, 1)
	})

	t.Run("Bad citations are dropped and the list is capped", func(t *testing.T) {
		var cits []string
		cits = append(cits, `{"page": "p.12", "chunk_id": "bad"}`, `"junk"`, `{"page": null, "chunk_id": "null-page"}`)
		for i := 1; i <= 6; i++ {
			cits = append(cits, fmt.Sprintf(`{"page": %d, "chunk_id": "c%d", "source": "other"}`, i, i))
		}
		gen := &mockGenerator{text: `{"answer": "ok", "citations": [` + strings.Join(cits, ",") + `]}`}

		ans, err := newTestChat(gen, &mockIndex{result: indexResult(3)}).Chat(context.Background(), "q", nil, 5)
		require.NoError(t, err)

		// only the first five entries are considered, three of them are unusable
		require.Len(t, ans.Citations, 2)
		assert.Equal(t, "c1", ans.Citations[0].ChunkID)
		assert.Equal(t, "c2", ans.Citations[1].ChunkID)
		for _, c := range ans.Citations {
			assert.Equal(t, "NG12 PDF", c.Source)
			assert.LessOrEqual(t, len(ans.Citations), MaxChatCitations)
		}
	})

	t.Run("Prompt carries only the last eight turns", func(t *testing.T) {
		var history []models.ChatTurn
		for i := 1; i <= 10; i++ {
			role := models.RoleUser
			if i%2 == 0 {
				role = models.RoleAssistant
			}
			history = append(history, models.ChatTurn{Role: role, Content: fmt.Sprintf("turn-%02d", i)})
		}
		gen := &mockGenerator{text: `{"answer":"ok"}`}

		_, err := newTestChat(gen, &mockIndex{result: indexResult(1)}).Chat(context.Background(), "latest question", history, 5)
		require.NoError(t, err)

		assert.NotContains(t, gen.lastPrompt, "turn-01")
		assert.NotContains(t, gen.lastPrompt, "turn-02")
		assert.Contains(t, gen.lastPrompt, "USER: turn-03")
		assert.Contains(t, gen.lastPrompt, "ASSISTANT: turn-10")
		assert.Contains(t, gen.lastPrompt, "User question:\nlatest question")
		assert.Contains(t, gen.lastPrompt, "[ng12_0001_00 | p.1] guideline text 1")
		assert.True(t, strings.HasPrefix(gen.lastPrompt, ChatSystemPrompt))
	})

	t.Run("Transport failure is an error", func(t *testing.T) {
		gen := &mockGenerator{err: errTransport}
		_, err := newTestChat(gen, &mockIndex{result: indexResult(2)}).Chat(context.Background(), "q", nil, 5)
		assert.ErrorIs(t, err, errTransport)
	})
}

func TestParseChatReply(t *testing.T) {
	assert.Equal(t, ReplyText{Answer: "[1, 2]"}, ParseChatReply("[1, 2]"))
	assert.Equal(t, ReplyJSON{Answer: "a"}, ParseChatReply(`{"answer":"a"}`))
	assert.Equal(t, ReplyJSON{Answer: ""}, ParseChatReply(`{"answer": 42}`))
}

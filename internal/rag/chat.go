package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"ng12-risk-assessor/internal/citations"
	"ng12-risk-assessor/internal/llm"
	"ng12-risk-assessor/internal/models"
)

const (
	// HistoryWindow is the number of prior turns included in the prompt
	HistoryWindow = 8
	// MaxChatCitations bounds the citations returned with an answer
	MaxChatCitations = 5

	// evidence rows cited when the model cites nothing usable
	fallbackCitations    = 3
	textFallbackExcerpt  = 400
	emptyFallbackExcerpt = 500
)

// ChatReply is the parsed model reply: either a JSON object or plain text
type ChatReply interface {
	isChatReply()
}

// ReplyJSON is a reply that parsed as a JSON object
type ReplyJSON struct {
	Answer    string
	Citations any
}

// ReplyText is a reply that was not a JSON object; the cleaned text is the answer
type ReplyText struct {
	Answer string
}

func (ReplyJSON) isChatReply() {}
func (ReplyText) isChatReply() {}

// ParseChatReply strips a code fence and classifies the reply
func ParseChatReply(raw string) ChatReply {
	clean := llm.StripCodeFence(raw)

	var obj map[string]any
	if err := json.Unmarshal([]byte(clean), &obj); err != nil || obj == nil {
		return ReplyText{Answer: clean}
	}

	answer, _ := obj["answer"].(string)
	return ReplyJSON{
		Answer:    strings.TrimSpace(answer),
		Citations: obj["citations"],
	}
}

// ChatAgent answers guideline questions grounded in retrieved excerpts
type ChatAgent struct {
	Retriever *Retriever
	Generator Generator
	Logger    *slog.Logger
}

// NewChatAgent creates a chat agent
func NewChatAgent(retriever *Retriever, generator Generator, logger *slog.Logger) *ChatAgent {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatAgent{
		Retriever: retriever,
		Generator: generator,
		Logger:    logger,
	}
}

// Chat answers message using at most the last HistoryWindow turns of history.
// When retrieval yields no usable text the refusal message is returned without
// calling the model. Malformed model output never fails the call.
func (c *ChatAgent) Chat(ctx context.Context, message string, history []models.ChatTurn, topK int) (models.ChatAnswer, error) {
	rows, err := c.Retriever.Retrieve(ctx, message, topK)
	if err != nil {
		return models.ChatAnswer{}, fmt.Errorf("failed to retrieve evidence: %w", err)
	}

	if !HasEvidence(rows) {
		c.Logger.Info("no supporting evidence, refusing", slog.Int("rows", len(rows)))
		return models.ChatAnswer{Answer: RefusalMessage, Citations: []models.Citation{}}, nil
	}

	raw, err := c.Generator.Generate(ctx, buildChatPrompt(message, history, rows, HistoryWindow))
	if err != nil {
		return models.ChatAnswer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	var (
		answer string
		cits   []models.Citation
	)
	switch reply := ParseChatReply(raw).(type) {
	case ReplyJSON:
		answer = reply.Answer
		cits = normalizeChatCitations(reply.Citations)
	case ReplyText:
		c.Logger.Debug("chat reply was not JSON, using raw text")
		answer = reply.Answer
		cits = normalizeChatCitations(citationMaps(citations.Preview(rows, fallbackCitations, textFallbackExcerpt)))
	}

	if len(cits) == 0 {
		cits = citations.Preview(rows, fallbackCitations, emptyFallbackExcerpt)
	}

	return models.ChatAnswer{Answer: answer, Citations: cits}, nil
}

// normalizeChatCitations keeps the first MaxChatCitations entries, dropping
// non-objects, entries whose page is null or non-numeric, and entries that
// name neither a chunk nor a page.
func normalizeChatCitations(raw any) []models.Citation {
	var items []any
	switch v := raw.(type) {
	case []any:
		items = v
	case map[string]any:
		items = []any{v}
	default:
		return []models.Citation{}
	}
	if len(items) > MaxChatCitations {
		items = items[:MaxChatCitations]
	}

	out := make([]models.Citation, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}

		page := models.UnknownPage
		if v, present := obj["page"]; present {
			n, ok := models.CoerceInt(v)
			if !ok {
				continue
			}
			page = n
		}

		chunkID, _ := obj["chunk_id"].(string)
		excerpt, _ := obj["excerpt"].(string)
		if r := []rune(excerpt); len(r) > citations.ModelExcerptLimit {
			excerpt = string(r[:citations.ModelExcerptLimit])
		}

		cit := models.Citation{
			Source:  models.DefaultSource,
			Page:    page,
			ChunkID: chunkID,
			Excerpt: excerpt,
		}
		if !cit.Valid() {
			continue
		}
		out = append(out, cit)
	}
	return out
}

// citationMaps re-encodes citations in the loose shape the model would return
func citationMaps(cits []models.Citation) []any {
	out := make([]any, 0, len(cits))
	for _, c := range cits {
		out = append(out, map[string]any{
			"page":     c.Page,
			"chunk_id": c.ChunkID,
			"excerpt":  c.Excerpt,
		})
	}
	return out
}

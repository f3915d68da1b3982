package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseJSONObject(t *testing.T) {
	t.Run("Strict JSON", func(t *testing.T) {
		obj := ParseJSONObject(`{"decision":"NOT_MET","confidence":0.8}`)
		assert.Equal(t, "NOT_MET", obj["decision"])
		assert.Equal(t, 0.8, obj["confidence"])
	})

	t.Run("JSON embedded in prose", func(t *testing.T) {
		obj := ParseJSONObject("Sure! Here you go:\n```json\n{\"decision\":\"URGENT_REFERRAL\",\"nested\":{\"a\":1}}\n```\nThanks")
		assert.Equal(t, "URGENT_REFERRAL", obj["decision"])
		assert.Contains(t, obj, "nested")
	})

	t.Run("Unrecoverable output", func(t *testing.T) {
		obj := ParseJSONObject("I cannot help with that } {")
		assert.Equal(t, InvalidJSONMessage, obj["error"])
		assert.Equal(t, "I cannot help with that } {", obj["raw"])
	})

	t.Run("Top level array is not an object", func(t *testing.T) {
		obj := ParseJSONObject(`[1,2,3]`)
		assert.Equal(t, InvalidJSONMessage, obj["error"])
	})

	t.Run("Empty output", func(t *testing.T) {
		obj := ParseJSONObject("")
		assert.Equal(t, "", obj["raw"])
	})
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `{"answer":"x"}`, StripCodeFence("```json\n{\"answer\":\"x\"}\n```"))
	assert.Equal(t, `{"answer":"x"}`, StripCodeFence("  ```\n{\"answer\":\"x\"}```  "))
	assert.Equal(t, "plain text ```json", StripCodeFence("  plain text ```json \n"))
}

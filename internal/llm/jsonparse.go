package llm

import (
	"encoding/json"
	"strings"
)

// InvalidJSONMessage is stored under "error" when no JSON object can be recovered
const InvalidJSONMessage = "Model did not return valid JSON"

// ParseJSONObject recovers a JSON object from model output. It tries the whole
// text, then the span from the first '{' to the last '}', and finally returns
// {"error": InvalidJSONMessage, "raw": text}. It never fails.
func ParseJSONObject(text string) map[string]any {
	if obj, ok := decodeObject(text); ok {
		return obj
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start != -1 && end > start {
		if obj, ok := decodeObject(text[start : end+1]); ok {
			return obj
		}
	}

	return map[string]any{
		"error": InvalidJSONMessage,
		"raw":   text,
	}
}

func decodeObject(s string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// StripCodeFence removes ```json and ``` markers when the trimmed text starts
// with a fence. Other text is only trimmed.
func StripCodeFence(text string) string {
	clean := strings.TrimSpace(text)
	if !strings.HasPrefix(clean, "```") {
		return clean
	}
	clean = strings.ReplaceAll(clean, "```json", "")
	clean = strings.ReplaceAll(clean, "```", "")
	return strings.TrimSpace(clean)
}

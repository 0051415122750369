package llm

import (
	"encoding/json"
	"strings"
)

// ParseResult is the outcome of extracting structured data from a model
// response. The raw text is always carried so callers can fall back to
// narrative handling when Parsed is false.
type ParseResult struct {
	Parsed bool
	Data   map[string]any
	Raw    string
}

// Parse decodes the JSON object embedded in a model response. An
// unparseable response is a first-class fallback, not an error.
func Parse(response string) ParseResult {
	result := ParseResult{Raw: response}
	raw := ExtractJSON(response)
	if raw == "" {
		return result
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return result
	}
	result.Parsed = true
	result.Data = data
	return result
}

// ExtractJSON pulls a JSON object out of a model response. Fenced code
// blocks are preferred; otherwise the first balanced object is used.
func ExtractJSON(response string) string {
	if block := extractJSONBlock(response); block != "" {
		return block
	}
	return extractJSONObject(response)
}

// extractJSONBlock extracts JSON from a ```json ... ``` code block.
func extractJSONBlock(s string) string {
	start := strings.Index(s, "```json")
	if start == -1 {
		start = strings.Index(s, "```")
		if start == -1 {
			return ""
		}
	}

	nl := strings.IndexByte(s[start:], '\n')
	if nl == -1 {
		return ""
	}
	start += nl + 1

	end := strings.LastIndex(s, "```")
	if end == -1 || end <= start {
		return ""
	}
	return strings.TrimSpace(s[start:end])
}

// extractJSONObject extracts the first balanced JSON object from a string.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start == -1 {
		return ""
	}

	depth := 0
	for i := start; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}

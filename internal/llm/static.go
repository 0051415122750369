package llm

import (
	"context"
	"strings"

	"sourcepilot/internal/types"
)

// Static is an offline narration client. It echoes a short summary derived
// from the prompt so the pipeline stays usable without an API key. Token
// usage is estimated so downstream accounting still runs.
type Static struct{}

// NewStatic creates the offline client.
func NewStatic() *Static {
	return &Static{}
}

// Complete returns a deterministic narrative built from the prompt's first
// line.
func (s *Static) Complete(ctx context.Context, prompt string) (string, types.Usage, error) {
	firstLine := prompt
	if i := strings.IndexByte(prompt, '\n'); i >= 0 {
		firstLine = prompt[:i]
	}
	firstLine = strings.TrimSpace(firstLine)
	if len(firstLine) > 120 {
		firstLine = firstLine[:120]
	}

	text := "Summary based on the available case data: " + firstLine +
		" Review the structured findings above for details."
	return text, types.Usage{
		InputTokens:  estimateTokens(prompt),
		OutputTokens: estimateTokens(text),
	}, nil
}

package llm

import (
	"context"
)

// LLMClient answers a single prompt. The oracle, the opposite detector and
// the cluster namer all expect a JSON object somewhere in the reply.
type LLMClient interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// EmbedderClient must return the same vector for the same text within a
// session; the embedding cache relies on it.
type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

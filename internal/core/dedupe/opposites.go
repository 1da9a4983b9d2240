package dedupe

import (
	"context"
	"fmt"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/llm"
)

// LLMOppositeDetector asks an LLM whether two lookalike names are distinct
// concepts. It plugs into similarity.WithOppositeDetector.
type LLMOppositeDetector struct {
	LLM     llm.LLMClient
	Prompts config.DeduplicationPrompts
}

func NewLLMOppositeDetector(llmClient llm.LLMClient, prompts config.DeduplicationPrompts) *LLMOppositeDetector {
	return &LLMOppositeDetector{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

func (d *LLMOppositeDetector) AreOpposites(ctx context.Context, a, b string) (bool, error) {
	prompt := fmt.Sprintf(d.Prompts.Opposites, a, b)

	response, err := d.LLM.Generate(ctx, prompt)
	if err != nil {
		return false, fmt.Errorf("failed to generate opposite check: %w", err)
	}

	result, err := common.ParseJSON[model.OppositeVerdict](response)
	if err != nil {
		return false, fmt.Errorf("failed to parse opposite check: %w", err)
	}
	return result.AreOpposites, nil
}

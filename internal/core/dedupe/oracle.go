package dedupe

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/agenthands/examina/internal/config"
	"github.com/agenthands/examina/internal/core/common"
	"github.com/agenthands/examina/internal/core/model"
	"github.com/agenthands/examina/internal/llm"
)

// Oracle labels a pair the committee is unsure about.
type Oracle interface {
	Judge(ctx context.Context, a, b model.KnowledgeItem) (model.OracleVerdict, error)
}

// LLMOracle asks an LLM whether two items denote the same concept.
type LLMOracle struct {
	LLM     llm.LLMClient
	Prompts config.DeduplicationPrompts
}

func NewLLMOracle(llmClient llm.LLMClient, prompts config.DeduplicationPrompts) *LLMOracle {
	return &LLMOracle{
		LLM:     llmClient,
		Prompts: prompts,
	}
}

func (o *LLMOracle) Judge(ctx context.Context, a, b model.KnowledgeItem) (model.OracleVerdict, error) {
	prompt := fmt.Sprintf(o.Prompts.Nodes, describeItem(a), describeItem(b))

	response, err := o.LLM.Generate(ctx, prompt)
	if err != nil {
		return model.OracleVerdict{}, fmt.Errorf("failed to generate oracle verdict: %w", err)
	}

	verdict, err := common.ParseJSON[model.OracleVerdict](response)
	if err != nil {
		return model.OracleVerdict{}, fmt.Errorf("failed to parse oracle verdict: %w", err)
	}
	if math.IsNaN(verdict.Confidence) {
		return model.OracleVerdict{}, fmt.Errorf("oracle returned a NaN confidence")
	}
	verdict.Confidence = common.Clamp01(verdict.Confidence)
	return verdict, nil
}

func describeItem(item model.KnowledgeItem) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Name: %s\n", item.Name)
	if item.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", item.Description)
	}
	if item.Category != "" {
		fmt.Fprintf(&sb, "Category: %s\n", item.Category)
	}
	return sb.String()
}

package llm

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

const claudeSystemPrompt = "You judge whether study topics are the same concept. Reply with one JSON object and nothing else."

// ClaudeClient only generates text; Anthropic has no embeddings endpoint.
type ClaudeClient struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func NewClaudeClient(apiKey, model, baseURL string) *ClaudeClient {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	if model == "" {
		model = "claude-3-5-haiku-latest"
	}
	return &ClaudeClient{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     model,
		maxTokens: 512,
	}
}

// Generate asks for a deterministic JSON verdict and returns the first text block.
func (c *ClaudeClient) Generate(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	resp, err := c.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model:       anthropic.Model(c.model),
		System:      claudeSystemPrompt,
		Temperature: &temperature,
		MaxTokens:   c.maxTokens,
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
	})
	if err != nil {
		return "", fmt.Errorf("claude messages: %w", err)
	}

	for _, block := range resp.Content {
		if block.Text != nil {
			return *block.Text, nil
		}
	}
	return "", fmt.Errorf("claude returned no text content")
}

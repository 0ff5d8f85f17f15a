package main

import (
	"context"
	"fmt"

	"github.com/ringo380/agentik/internal/agent"
	"github.com/ringo380/agentik/pkg/models"
)

// providerSummaryGenerator adapts an agent.LLMProvider's non-streaming
// Complete call to the compactor.SummaryGenerator contract, so the same
// provider driving the conversation also drives compaction summaries.
type providerSummaryGenerator struct {
	provider agent.LLMProvider
	model    string
}

func (g providerSummaryGenerator) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	resp, err := g.provider.Complete(ctx, &agent.CompletionRequest{
		Model:     g.model,
		MaxTokens: 1024,
		Messages: []agent.CompletionMessage{
			{Role: models.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return resp.Content, nil
}

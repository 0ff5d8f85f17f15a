package compactor

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ringo380/agentik/internal/compaction"
	"github.com/ringo380/agentik/pkg/models"
)

// maxSummaryChars is the §4.H cap on LLM-generated summary text.
const maxSummaryChars = 2000

// summaryPreamble is the fixed instruction prefix for LLM-backed compaction.
const summaryPreamble = "Summarize this conversation segment, focusing on: what the user wanted; " +
	"what actions were taken; current state. Keep it under 500 words and factual."

// SummaryGenerator is the §6.4 collaborator that turns a compaction prompt
// into summary text (typically backed by a CompletionProvider call against
// a small/cheap model).
type SummaryGenerator interface {
	GenerateSummary(ctx context.Context, prompt string) (string, error)
}

// summarizerAdapter lets a SummaryGenerator satisfy compaction.Summarizer so
// CompactWithLLM can reuse internal/compaction's chunk/merge machinery
// instead of duplicating it.
type summarizerAdapter struct {
	gen        SummaryGenerator
	extraction Extraction
	previous   string
}

func (a summarizerAdapter) GenerateSummary(ctx context.Context, messages []*compaction.Message, _ *compaction.SummarizationConfig) (string, error) {
	return a.gen.GenerateSummary(ctx, buildPrompt(messages, a.extraction, a.previous))
}

func buildPrompt(messages []*compaction.Message, extraction Extraction, previous string) string {
	var b strings.Builder
	b.WriteString(summaryPreamble)
	b.WriteString("\n\n")
	if previous != "" {
		b.WriteString("Previous summary:\n")
		b.WriteString(previous)
		b.WriteString("\n\n")
	}
	for _, m := range messages {
		fmt.Fprintf(&b, "[%s] %s\n", m.Role, truncate(m.Content, 500))
	}
	if len(extraction.ModifiedFiles) > 0 {
		b.WriteString("\nModified files: ")
		b.WriteString(strings.Join(extraction.ModifiedFiles, ", "))
		b.WriteString("\n")
	}
	return b.String()
}

func toCompactionMessages(messages []models.Message) []*compaction.Message {
	out := make([]*compaction.Message, 0, len(messages))
	for _, m := range messages {
		out = append(out, &compaction.Message{
			Role:      string(m.Role),
			Content:   m.Text(),
			Timestamp: m.Timestamp.Unix(),
			ID:        m.ID,
		})
	}
	return out
}

// CompactWithLLM builds the §4.H summarization prompt, chunks/merges via
// internal/compaction.SummarizeChunks when the segment is large, and caps
// the result at maxSummaryChars.
func CompactWithLLM(ctx context.Context, messages []models.Message, gen SummaryGenerator, previousSummary string, fileModifyingTools []string, contextWindow int, now time.Time) (models.CompactedSummary, error) {
	extraction := Extract(messages, fileModifyingTools)
	adapter := summarizerAdapter{gen: gen, extraction: extraction, previous: previousSummary}

	config := compaction.DefaultSummarizationConfig()
	if contextWindow > 0 {
		config.ContextWindow = contextWindow
	}
	config.PreviousSummary = previousSummary

	text, err := compaction.SummarizeChunks(ctx, toCompactionMessages(messages), adapter, config)
	if err != nil {
		return models.CompactedSummary{}, fmt.Errorf("compactor: llm summary: %w", err)
	}
	text = truncate(text, maxSummaryChars)

	return models.CompactedSummary{
		Text:              text,
		KeyDecisions:      extraction.Decisions,
		ModifiedFiles:     extraction.ModifiedFiles,
		CreatedAt:         now,
		MessagesCompacted: len(messages),
	}, nil
}

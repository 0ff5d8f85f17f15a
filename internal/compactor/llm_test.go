package compactor

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

type fakeGenerator struct {
	prompts []string
	reply   string
}

func (f *fakeGenerator) GenerateSummary(ctx context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, nil
}

func TestCompactWithLLMPassesPreviousSummaryIntoPrompt(t *testing.T) {
	gen := &fakeGenerator{reply: "the user asked for a health check endpoint"}
	messages := []models.Message{
		userMsg("please add a health check endpoint"),
		assistantMsg("I'll add a /healthz handler."),
	}

	summary, err := CompactWithLLM(context.Background(), messages, gen, "earlier the user set up the repo", DefaultFileModifyingTools, 0, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Text != gen.reply {
		t.Fatalf("expected summary text %q, got %q", gen.reply, summary.Text)
	}
	if len(gen.prompts) == 0 {
		t.Fatalf("expected generator to be called")
	}
	if !strings.Contains(gen.prompts[0], "earlier the user set up the repo") {
		t.Fatalf("expected prompt to include previous summary, got %q", gen.prompts[0])
	}
	if summary.MessagesCompacted != len(messages) {
		t.Fatalf("expected MessagesCompacted=%d, got %d", len(messages), summary.MessagesCompacted)
	}
}

func TestCompactWithLLMTruncatesOversizedResult(t *testing.T) {
	long := strings.Repeat("x", maxSummaryChars+500)
	gen := &fakeGenerator{reply: long}
	messages := []models.Message{userMsg("summarize this whole long conversation please")}

	summary, err := CompactWithLLM(context.Background(), messages, gen, "", DefaultFileModifyingTools, 0, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.Text) > maxSummaryChars+len("…") { // the ellipsis rune is 3 bytes
		t.Fatalf("expected summary capped near %d chars, got %d", maxSummaryChars, len(summary.Text))
	}
}

func TestCompactWithLLMCarriesExtractionIntoSummary(t *testing.T) {
	call := models.ToolCall{ID: "1", Name: "Write", Arguments: rawArgs(t, map[string]any{"path": "service.go"}, []string{"path"})}
	gen := &fakeGenerator{reply: "done"}
	messages := []models.Message{
		assistantMsg("I'll update the service to expose a new endpoint.", call),
	}

	summary, err := CompactWithLLM(context.Background(), messages, gen, "", DefaultFileModifyingTools, 0, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(summary.ModifiedFiles) != 1 || summary.ModifiedFiles[0] != "service.go" {
		t.Fatalf("expected ModifiedFiles=[service.go], got %v", summary.ModifiedFiles)
	}
	if len(summary.KeyDecisions) != 1 {
		t.Fatalf("expected 1 decision carried through, got %v", summary.KeyDecisions)
	}
}

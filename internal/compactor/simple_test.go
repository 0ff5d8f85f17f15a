package compactor

import (
	"strings"
	"testing"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

func TestCompactSimpleFallsBackWhenExtractionIsEmpty(t *testing.T) {
	messages := []models.Message{
		assistantMsg("nothing interesting happened here at all"),
	}
	summary := CompactSimple(messages, DefaultFileModifyingTools, time.Now())
	if summary.Text != "Compacted 1 messages from the conversation." {
		t.Fatalf("expected fallback text, got %q", summary.Text)
	}
	if summary.MessagesCompacted != 1 {
		t.Fatalf("expected MessagesCompacted=1, got %d", summary.MessagesCompacted)
	}
}

func TestCompactSimpleRendersSections(t *testing.T) {
	call := models.ToolCall{ID: "1", Name: "Write", Arguments: rawArgs(t, map[string]any{"path": "main.go"}, []string{"path"})}
	messages := []models.Message{
		userMsg("please add a health check endpoint to the service"),
		assistantMsg("I'll add a /healthz handler that returns 200 when ready.", call),
	}
	summary := CompactSimple(messages, DefaultFileModifyingTools, time.Now())

	if !strings.Contains(summary.Text, "User goals:") {
		t.Fatalf("expected a User goals section, got %q", summary.Text)
	}
	if !strings.Contains(summary.Text, "Actions:") {
		t.Fatalf("expected an Actions section, got %q", summary.Text)
	}
	if !strings.Contains(summary.Text, "Modified files:") {
		t.Fatalf("expected a Modified files section, got %q", summary.Text)
	}
	if !strings.Contains(summary.Text, "main.go") {
		t.Fatalf("expected modified file to be listed, got %q", summary.Text)
	}
	if len(summary.ModifiedFiles) != 1 || summary.ModifiedFiles[0] != "main.go" {
		t.Fatalf("expected ModifiedFiles=[main.go], got %v", summary.ModifiedFiles)
	}
}

func TestTopTruncatesToN(t *testing.T) {
	items := []string{"a", "b", "c", "d"}
	if got := top(items, 2); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("expected first 2 items, got %v", got)
	}
	if got := top(items, 10); len(got) != 4 {
		t.Fatalf("expected all items when n exceeds length, got %v", got)
	}
}

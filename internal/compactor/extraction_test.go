package compactor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

func userMsg(text string) models.Message {
	return models.Message{Role: models.RoleUser, Content: []models.Part{models.NewTextPart(text)}, Timestamp: time.Now()}
}

func assistantMsg(text string, calls ...models.ToolCall) models.Message {
	return models.Message{Role: models.RoleAssistant, Content: []models.Part{models.NewTextPart(text)}, ToolCalls: calls, Timestamp: time.Now()}
}

func rawArgs(t *testing.T, kv map[string]any, order []string) json.RawMessage {
	t.Helper()
	// Build a deterministic object literal honoring `order` so tests can
	// assert on "first N keys" without relying on map iteration order.
	var buf []byte
	buf = append(buf, '{')
	for i, k := range order {
		if i > 0 {
			buf = append(buf, ',')
		}
		key, _ := json.Marshal(k)
		val, _ := json.Marshal(kv[k])
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, val...)
	}
	buf = append(buf, '}')
	return json.RawMessage(buf)
}

func TestExtractUserGoalsFiltersShortMessages(t *testing.T) {
	messages := []models.Message{
		userMsg("hi"),
		userMsg("please refactor the auth module to use middleware"),
	}
	goals := extractUserGoals(messages)
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %v", goals)
	}
}

func TestExtractUserGoalsTruncatesLongText(t *testing.T) {
	long := ""
	for i := 0; i < 50; i++ {
		long += "0123456789"
	}
	goals := extractUserGoals([]models.Message{userMsg(long)})
	if len(goals) != 1 {
		t.Fatalf("expected 1 goal, got %d", len(goals))
	}
	if !contains(goals[0], "…") {
		t.Fatalf("expected truncated goal to end with an ellipsis, got %q", goals[0])
	}
}

func contains(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return true
		}
	}
	return false
}

func TestExtractDecisionsMatchesPrefixesAndDedupes(t *testing.T) {
	text := "I'll update the config file to enable caching.\n" +
		"this line has no matching prefix at all here\n" +
		"I'll update the config file to enable caching.\n" + // duplicate
		"Let's run the test suite before merging this change."
	decisions := extractDecisions([]models.Message{assistantMsg(text)})
	if len(decisions) != 2 {
		t.Fatalf("expected 2 unique decisions, got %v", decisions)
	}
}

func TestExtractDecisionsCapsAtFivePerMessage(t *testing.T) {
	text := ""
	for i := 0; i < 8; i++ {
		text += "I recommend applying patch number " + string(rune('A'+i)) + " to the service.\n"
	}
	decisions := extractDecisions([]models.Message{assistantMsg(text)})
	if len(decisions) != 5 {
		t.Fatalf("expected cap of 5 decisions, got %d", len(decisions))
	}
}

func TestExtractModifiedFilesPicksFirstPresentArgAndDedupes(t *testing.T) {
	call1 := models.ToolCall{ID: "1", Name: "Write", Arguments: rawArgs(t, map[string]any{"path": "a.go", "content": "x"}, []string{"path", "content"})}
	call2 := models.ToolCall{ID: "2", Name: "edit_file", Arguments: rawArgs(t, map[string]any{"file_path": "a.go"}, []string{"file_path"})}
	call3 := models.ToolCall{ID: "3", Name: "search", Arguments: rawArgs(t, map[string]any{"query": "x"}, []string{"query"})}

	files := extractModifiedFiles([]models.Message{assistantMsg("", call1, call2, call3)}, DefaultFileModifyingTools)
	if len(files) != 1 || files[0] != "a.go" {
		t.Fatalf("expected deduped [a.go], got %v", files)
	}
}

func TestExtractToolSummariesUsesFirstThreeKeysInOrder(t *testing.T) {
	call := models.ToolCall{
		ID:        "1",
		Name:      "Write",
		Arguments: rawArgs(t, map[string]any{"path": "a.go", "content": "x", "mode": "w", "extra": 1}, []string{"path", "content", "mode", "extra"}),
	}
	summaries := extractToolSummaries([]models.Message{assistantMsg("", call)})
	if len(summaries) != 1 {
		t.Fatalf("expected 1 summary, got %v", summaries)
	}
	if summaries[0] != "Write(path, content, mode)" {
		t.Fatalf("expected first 3 keys in order, got %q", summaries[0])
	}
}

package repomap

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ringo380/agentik/internal/repomap"
)

func writeGoFile(t *testing.T, root, rel, content string) {
	t.Helper()
	full := filepath.Join(root, rel)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
}

func newTestTool(t *testing.T) *Tool {
	t.Helper()
	root := t.TempDir()
	writeGoFile(t, root, "main.go", "package main\n\nfunc main() {}\n")

	tool, err := New(Config{
		Workspace:       root,
		RankConfig:      repomap.RankConfig{Damping: 0.85, Iterations: 20, ConvergenceThreshold: 0.0001},
		SerializeConfig: repomap.DefaultSerializeConfig(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tool
}

func TestToolNameAndCategory(t *testing.T) {
	tool := newTestTool(t)
	if tool.Name() != "repomap" {
		t.Fatalf("expected tool name repomap, got %q", tool.Name())
	}
	if tool.RequiresApproval() {
		t.Fatalf("expected repomap tool never to require approval")
	}
	if tool.IsDestructive() {
		t.Fatalf("expected repomap tool to be non-destructive")
	}
}

func TestExecuteWithNoParamsRendersPlainSerialize(t *testing.T) {
	tool := newTestTool(t)
	result, err := tool.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if result.Output == "" {
		t.Fatalf("expected non-empty repo map output")
	}
}

func TestExecuteWithFocusRendersFocusSection(t *testing.T) {
	tool := newTestTool(t)
	params, _ := json.Marshal(map[string]any{"focus": []string{"main.go"}})
	result, err := tool.Execute(context.Background(), params)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !result.Success {
		t.Fatalf("expected success, got error %q", result.Error)
	}
	if !strings.Contains(result.Output, "Focus Files") || !strings.Contains(result.Output, "main.go") {
		t.Fatalf("expected focus section mentioning main.go, got %q", result.Output)
	}
}

func TestExecuteWithInvalidParamsFails(t *testing.T) {
	tool := newTestTool(t)
	result, err := tool.Execute(context.Background(), json.RawMessage(`not json`))
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if result.Success {
		t.Fatalf("expected invalid JSON params to fail")
	}
}

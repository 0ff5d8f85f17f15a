package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ringo380/agentik/internal/session"
	"github.com/ringo380/agentik/internal/tools/policy"
	"github.com/ringo380/agentik/pkg/models"
)

// fakeProvider replays a scripted sequence of StreamChunk batches, one
// batch per CompleteStream call, so a test can drive exactly N loop
// iterations deterministically.
type fakeProvider struct {
	batches [][]StreamChunk
	calls   int
	lastReq *CompletionRequest
}

func (p *fakeProvider) ID() string              { return "fake" }
func (p *fakeProvider) Name() string             { return "fake" }
func (p *fakeProvider) AvailableModels() []Model { return nil }
func (p *fakeProvider) IsConfigured() bool       { return true }

func (p *fakeProvider) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	return nil, nil
}

func (p *fakeProvider) CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error) {
	idx := p.calls
	p.calls++
	p.lastReq = req
	ch := make(chan StreamChunk, len(p.batches[idx])+1)
	for _, c := range p.batches[idx] {
		ch <- c
	}
	close(ch)
	return ch, nil
}

type echoTool struct{}

func (echoTool) Name() string                  { return "echo" }
func (echoTool) Description() string           { return "echoes its input" }
func (echoTool) Schema() json.RawMessage       { return json.RawMessage(`{"type":"object"}`) }
func (echoTool) Category() models.ToolCategory { return models.CategoryFiles }
func (echoTool) RequiresApproval() bool        { return false }
func (echoTool) IsDestructive() bool           { return false }

func (echoTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Output: "echoed: " + string(params)}, nil
}

func newTestLoopStore(t *testing.T) (*session.Store, string) {
	t.Helper()
	store, err := session.Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Now().UTC().Truncate(time.Second)
	sess := &models.Session{
		Metadata: models.SessionMetadata{
			ID:               "sess-1",
			Version:          1,
			State:            models.StateActive,
			WorkingDirectory: "/repo",
			CreatedAt:        now,
			UpdatedAt:        now,
			LastActiveAt:     now,
			ModelConfig:      models.ModelConfig{Provider: "fake", ModelID: "fake-1", MaxTokens: 4096},
		},
	}
	if err := store.Create(context.Background(), sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	return store, sess.Metadata.ID
}

func drain(t *testing.T, chunks <-chan *ResponseChunk) []*ResponseChunk {
	t.Helper()
	var out []*ResponseChunk
	for c := range chunks {
		out = append(out, c)
		if c.Error != nil {
			t.Fatalf("unexpected loop error: %v", c.Error)
		}
	}
	return out
}

func TestRunCompletesWithoutToolCalls(t *testing.T) {
	store, sessionID := newTestLoopStore(t)
	provider := &fakeProvider{batches: [][]StreamChunk{
		{
			{DeltaText: "Hello"},
			{DeltaText: ", world"},
			{IsFinal: true, FinishReason: FinishStop},
		},
	}}
	registry := NewToolRegistry()
	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	loop := NewAgenticLoop(provider, executor, store, DefaultLoopConfig())

	chunks, err := loop.Run(context.Background(), sessionID, models.Message{
		Role:    models.RoleUser,
		Content: []models.Part{models.NewTextPart("hi there")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	results := drain(t, chunks)
	var text string
	done := false
	for _, c := range results {
		text += c.Text
		if c.Done {
			done = true
		}
	}
	if text != "Hello, world" {
		t.Fatalf("expected accumulated text %q, got %q", "Hello, world", text)
	}
	if !done {
		t.Fatalf("expected a Done chunk")
	}

	sess, err := store.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected 2 persisted messages (user+assistant), got %d", len(sess.Messages))
	}
}

func TestRunExecutesToolCallsAcrossIterations(t *testing.T) {
	store, sessionID := newTestLoopStore(t)
	provider := &fakeProvider{batches: [][]StreamChunk{
		{
			{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call-1", Name: "echo"}},
			{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsFragment: `{"msg":"hi"}`}},
			{IsFinal: true, FinishReason: FinishToolUse},
		},
		{
			{DeltaText: "done"},
			{IsFinal: true, FinishReason: FinishStop},
		},
	}}
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	loop := NewAgenticLoop(provider, executor, store, DefaultLoopConfig())

	chunks, err := loop.Run(context.Background(), sessionID, models.Message{
		Role:    models.RoleUser,
		Content: []models.Part{models.NewTextPart("please echo hi")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	results := drain(t, chunks)
	var sawToolResult bool
	for _, c := range results {
		if c.ToolResult != nil {
			sawToolResult = true
			if !c.ToolResult.Success {
				t.Fatalf("expected tool success, got %+v", c.ToolResult)
			}
		}
	}
	if !sawToolResult {
		t.Fatalf("expected a tool result chunk")
	}
	if provider.calls != 2 {
		t.Fatalf("expected 2 provider calls (stream, then continuation), got %d", provider.calls)
	}

	sess, err := store.Get(context.Background(), sessionID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	// user, assistant(tool_call), tool_result, assistant(final) = 4 messages
	if len(sess.Messages) != 4 {
		t.Fatalf("expected 4 persisted messages, got %d", len(sess.Messages))
	}
}

func TestRunReturnsErrorForUnknownSession(t *testing.T) {
	store, _ := newTestLoopStore(t)
	provider := &fakeProvider{}
	registry := NewToolRegistry()
	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	loop := NewAgenticLoop(provider, executor, store, DefaultLoopConfig())

	_, err := loop.Run(context.Background(), "does-not-exist", models.Message{Role: models.RoleUser})
	if err == nil {
		t.Fatalf("expected an error for an unknown session")
	}
}

func TestRunStopsAtMaxIterations(t *testing.T) {
	store, sessionID := newTestLoopStore(t)
	toolCallBatch := []StreamChunk{
		{ToolCallDelta: &ToolCallDelta{Index: 0, ID: "call-1", Name: "echo"}},
		{ToolCallDelta: &ToolCallDelta{Index: 0, ArgumentsFragment: `{}`}},
		{IsFinal: true, FinishReason: FinishToolUse},
	}
	provider := &fakeProvider{batches: [][]StreamChunk{toolCallBatch, toolCallBatch}}
	registry := NewToolRegistry()
	registry.Register(echoTool{})
	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	config := DefaultLoopConfig()
	config.MaxIterations = 2
	loop := NewAgenticLoop(provider, executor, store, config)

	chunks, err := loop.Run(context.Background(), sessionID, models.Message{
		Role:    models.RoleUser,
		Content: []models.Part{models.NewTextPart("loop forever")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	var lastErr *LoopError
	for c := range chunks {
		if c.Error != nil {
			lastErr = c.Error
		}
	}
	if lastErr == nil {
		t.Fatalf("expected a max-iterations error chunk")
	}
}

type bashTool struct{}

func (bashTool) Name() string                  { return "bash" }
func (bashTool) Description() string           { return "runs a shell command" }
func (bashTool) Schema() json.RawMessage       { return json.RawMessage(`{"type":"object"}`) }
func (bashTool) Category() models.ToolCategory { return models.CategoryShell }
func (bashTool) RequiresApproval() bool        { return false }
func (bashTool) IsDestructive() bool           { return true }

func (bashTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Output: "ran"}, nil
}

func TestStreamPhaseAppliesPolicyFilterToAdvertisedTools(t *testing.T) {
	store, sessionID := newTestLoopStore(t)
	provider := &fakeProvider{batches: [][]StreamChunk{
		{
			{DeltaText: "ok"},
			{IsFinal: true, FinishReason: FinishStop},
		},
	}}

	registry := NewToolRegistry()
	registry.Register(echoTool{})
	registry.Register(bashTool{})
	executor := NewToolExecutor(registry, DefaultToolExecConfig())

	config := DefaultLoopConfig()
	config.PolicyResolver = policy.NewResolver()
	config.ToolPolicy = &policy.Policy{Allow: []string{"echo"}}
	loop := NewAgenticLoop(provider, executor, store, config)

	chunks, err := loop.Run(context.Background(), sessionID, models.Message{
		Role:    models.RoleUser,
		Content: []models.Part{models.NewTextPart("hi")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	drain(t, chunks)

	if provider.lastReq == nil {
		t.Fatalf("expected the provider to receive a completion request")
	}
	if len(provider.lastReq.Tools) != 1 || provider.lastReq.Tools[0].Name != "echo" {
		t.Fatalf("expected only the policy-allowed \"echo\" tool to be advertised, got %v", provider.lastReq.Tools)
	}
}

func TestStreamPhaseWithoutPolicyAdvertisesEveryRegisteredTool(t *testing.T) {
	store, sessionID := newTestLoopStore(t)
	provider := &fakeProvider{batches: [][]StreamChunk{
		{
			{DeltaText: "ok"},
			{IsFinal: true, FinishReason: FinishStop},
		},
	}}

	registry := NewToolRegistry()
	registry.Register(echoTool{})
	registry.Register(bashTool{})
	executor := NewToolExecutor(registry, DefaultToolExecConfig())
	loop := NewAgenticLoop(provider, executor, store, DefaultLoopConfig())

	chunks, err := loop.Run(context.Background(), sessionID, models.Message{
		Role:    models.RoleUser,
		Content: []models.Part{models.NewTextPart("hi")},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	drain(t, chunks)

	if provider.lastReq == nil || len(provider.lastReq.Tools) != 2 {
		t.Fatalf("expected both registered tools to be advertised without a policy set, got %v", provider.lastReq)
	}
}

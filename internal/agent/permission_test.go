package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/ringo380/agentik/internal/observability"
	"github.com/ringo380/agentik/internal/sandbox"
	"github.com/ringo380/agentik/pkg/models"
)

type categoryTool struct {
	name             string
	category         models.ToolCategory
	requiresApproval bool
}

func (t categoryTool) Name() string                  { return t.name }
func (t categoryTool) Description() string           { return "test tool" }
func (t categoryTool) Schema() json.RawMessage       { return json.RawMessage(`{"type":"object"}`) }
func (t categoryTool) Category() models.ToolCategory { return t.category }
func (t categoryTool) RequiresApproval() bool        { return t.requiresApproval }
func (t categoryTool) IsDestructive() bool           { return false }

func (t categoryTool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	return &models.ToolResult{Success: true, Output: "ok"}, nil
}

func newAutonomousGate(registry *ToolRegistry) *PermissionGate {
	return NewPermissionGate(registry, models.PermissionsConfig{}, models.ModeAutonomous, nil)
}

func TestPermissionGateDeniesShellWhenSandboxDisallows(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "bash", category: models.CategoryShell})

	gate := newAutonomousGate(registry)
	gate.Context = &ToolContext{Sandbox: sandbox.Config{AllowShell: false, AllowNetwork: true}}

	result := gate.Execute(context.Background(), models.ToolCall{ID: "1", Name: "bash"})
	if result.Success {
		t.Fatalf("expected shell call to be denied when allow_shell is false")
	}
}

func TestPermissionGateAllowsShellWhenSandboxAllows(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "bash", category: models.CategoryShell})

	gate := newAutonomousGate(registry)
	gate.Context = &ToolContext{Sandbox: sandbox.Config{AllowShell: true}}

	result := gate.Execute(context.Background(), models.ToolCall{ID: "1", Name: "bash"})
	if !result.Success {
		t.Fatalf("expected shell call to succeed when allow_shell is true, got error: %s", result.Error)
	}
}

func TestPermissionGateDeniesGitWhenNetworkDisallowed(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "git_push", category: models.CategoryGit})

	gate := newAutonomousGate(registry)
	gate.Context = &ToolContext{Sandbox: sandbox.Config{AllowNetwork: false, AllowShell: true}}

	result := gate.Execute(context.Background(), models.ToolCall{ID: "1", Name: "git_push"})
	if result.Success {
		t.Fatalf("expected git call to be denied when allow_network is false")
	}
}

func TestPermissionGateWithoutContextIsUnaffected(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "bash", category: models.CategoryShell})

	gate := newAutonomousGate(registry)
	result := gate.Execute(context.Background(), models.ToolCall{ID: "1", Name: "bash"})
	if !result.Success {
		t.Fatalf("expected a gate with no Context to behave exactly as before, got error: %s", result.Error)
	}
}

func TestPermissionGateContextForcesApproval(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "bash", category: models.CategoryShell})

	gate := newAutonomousGate(registry)
	gate.Context = &ToolContext{Sandbox: sandbox.Config{AllowShell: true}, RequireApproval: true}

	result := gate.Execute(context.Background(), models.ToolCall{ID: "1", Name: "bash"})
	if result.Success {
		t.Fatalf("expected RequireApproval to force an approval prompt, which the noop handler declines")
	}
}

func TestToolContextIsPathAllowed(t *testing.T) {
	tc := ToolContext{Sandbox: sandbox.Config{AllowedPaths: []string{t.TempDir()}}}
	if tc.IsPathAllowed("/definitely/not/under/that/root") {
		t.Fatalf("expected path outside allowed_paths to be rejected")
	}
}

type auditCall struct {
	toolName  string
	decision  string
	granted   bool
	sessionID string
}

func TestPermissionGateAuditsEveryDecision(t *testing.T) {
	registry := NewToolRegistry()
	registry.Register(categoryTool{name: "bash", category: models.CategoryShell})

	var calls []auditCall
	gate := newAutonomousGate(registry)
	gate.Audit = func(ctx context.Context, toolName, decision string, granted bool, duration time.Duration) {
		if duration < 0 {
			t.Fatalf("expected a non-negative duration, got %s", duration)
		}
		calls = append(calls, auditCall{
			toolName:  toolName,
			decision:  decision,
			granted:   granted,
			sessionID: observability.GetSessionID(ctx),
		})
	}

	ctx := observability.AddSessionID(context.Background(), "sess-42")

	if result := gate.Execute(ctx, models.ToolCall{ID: "1", Name: "bash"}); !result.Success {
		t.Fatalf("expected autonomous bash call to succeed, got error: %s", result.Error)
	}
	if result := gate.Execute(ctx, models.ToolCall{ID: "2", Name: "does-not-exist"}); result.Success {
		t.Fatalf("expected an unknown tool call to fail")
	}

	if len(calls) != 2 {
		t.Fatalf("expected 2 audited decisions, got %d: %+v", len(calls), calls)
	}

	granted := calls[0]
	if granted.decision != "auto_approved" || !granted.granted {
		t.Fatalf("expected the bash call to be audited as auto_approved/granted, got %+v", granted)
	}
	if granted.sessionID != "sess-42" {
		t.Fatalf("expected the session id to propagate through context, got %q", granted.sessionID)
	}

	denied := calls[1]
	if denied.decision != "tool_not_found" || denied.granted {
		t.Fatalf("expected the unknown tool call to be audited as tool_not_found/denied, got %+v", denied)
	}
}

func TestAuditFuncClassifiesGrantedAndDeniedDecisions(t *testing.T) {
	if !decisionGranted("approval_granted") || !decisionGranted("auto_approved") {
		t.Fatalf("expected approval_granted and auto_approved to classify as granted")
	}
	for _, denied := range []string{"tool_not_found", "sandbox_denied", "always_deny", "ask_only_mode", "approval_error", "approval_denied"} {
		if decisionGranted(denied) {
			t.Fatalf("expected %q to classify as denied, not granted", denied)
		}
	}
}

func TestToolContextIsCommandBlocked(t *testing.T) {
	tc := ToolContext{Sandbox: sandbox.Config{BlockedCommands: []string{"curl"}}}
	if _, blocked := tc.IsCommandBlocked("ls -la"); blocked {
		t.Fatalf("expected unrelated command not to be blocked")
	}
	if substr, blocked := tc.IsCommandBlocked("curl http://example.com"); !blocked || substr != "curl" {
		t.Fatalf("expected curl to be blocked, got %q/%v", substr, blocked)
	}
}

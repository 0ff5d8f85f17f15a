package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/ringo380/agentik/internal/audit"
	"github.com/ringo380/agentik/internal/observability"
	"github.com/ringo380/agentik/pkg/models"
)

// DenialReason classifies why a call was denied before reaching the
// registry.
type DenialReason string

const (
	DenialNone       DenialReason = ""
	DenialAlwaysDeny DenialReason = "always_deny"
	DenialAskOnly    DenialReason = "ask_only_mode"
)

func contains(list []string, name string) bool {
	for _, v := range list {
		if v == name {
			return true
		}
	}
	return false
}

// isDenied implements §4.D step 1.
func isDenied(perms models.PermissionsConfig, mode models.AgentMode, toolName string) DenialReason {
	if contains(perms.AlwaysDeny, toolName) {
		return DenialAlwaysDeny
	}
	if mode == models.ModeAskOnly {
		return DenialAskOnly
	}
	return DenialNone
}

// requiresApproval implements §4.D step 2.
func requiresApproval(perms models.PermissionsConfig, mode models.AgentMode, def models.ToolDefinition) bool {
	if def.RequiresApproval {
		return true
	}
	if contains(perms.RequireConfirm, def.Name) {
		return true
	}
	if mode == models.ModeSupervised {
		return true
	}
	if def.IsDestructive && mode != models.ModeAutonomous {
		return true
	}
	return false
}

// isAutoApproved implements §4.D step 3.
func isAutoApproved(perms models.PermissionsConfig, mode models.AgentMode, def models.ToolDefinition) bool {
	if mode == models.ModeAutonomous && !def.IsDestructive {
		return true
	}
	if contains(perms.DefaultAllow, def.Name) && !requiresApproval(perms, mode, def) {
		return true
	}
	return false
}

// ApprovalHandler is the external collaborator (§6.4 PermissionHandler)
// that drives an interactive approval prompt. OnExecute/OnComplete are
// synchronous observers; RequestApproval may block on user input.
type ApprovalHandler interface {
	RequestApproval(ctx context.Context, call models.ToolCall, def models.ToolDefinition) (bool, error)
	OnExecute(call models.ToolCall)
	OnComplete(call models.ToolCall, result models.ToolResult)
}

// noopApprovalHandler auto-declines every approval request; it exists so a
// PermissionGate can always be constructed even without an interactive UI.
type noopApprovalHandler struct{}

func (noopApprovalHandler) RequestApproval(context.Context, models.ToolCall, models.ToolDefinition) (bool, error) {
	return false, nil
}
func (noopApprovalHandler) OnExecute(models.ToolCall)                      {}
func (noopApprovalHandler) OnComplete(models.ToolCall, models.ToolResult) {}

// PermissionGate wraps a ToolRegistry with the three-stage permission
// decision from §4.D, producing an error ToolResult without ever reaching
// the registry when a call is denied or declined.
type PermissionGate struct {
	Registry *ToolRegistry
	Perms    models.PermissionsConfig
	Mode     models.AgentMode
	Approval ApprovalHandler

	// Audit, when set, is called once for every §4.D decision Execute makes
	// (8 possible decision strings, see AuditFunc). sessionID comes from the
	// context (observability.GetSessionID) and duration is elapsed time
	// since Execute was entered.
	Audit func(ctx context.Context, toolName, decision string, granted bool, duration time.Duration)

	// Context, when set, additionally gates calls through the §6.3 sandbox
	// (allow_shell/allow_network) before the §4.D approval flow runs.
	Context *ToolContext
}

// NewPermissionGate constructs a gate; a nil Approval handler defaults to
// one that declines every request (matching AskOnly-style safety).
func NewPermissionGate(registry *ToolRegistry, perms models.PermissionsConfig, mode models.AgentMode, approval ApprovalHandler) *PermissionGate {
	if approval == nil {
		approval = noopApprovalHandler{}
	}
	return &PermissionGate{Registry: registry, Perms: perms, Mode: mode, Approval: approval}
}

// decisionGranted reports whether decision is one of the two (of Execute's
// 8 total) decision strings that mean the call actually reached the registry.
func decisionGranted(decision string) bool {
	return decision == "approval_granted" || decision == "auto_approved"
}

// AuditFunc wires an audit.Logger into a PermissionGate's Audit callback,
// recording every §4.D decision as a permission-granted or
// permission-denied event via the session ID and duration Execute supplies.
func AuditFunc(logger *audit.Logger) func(ctx context.Context, toolName, decision string, granted bool, duration time.Duration) {
	return func(ctx context.Context, toolName, decision string, granted bool, duration time.Duration) {
		sessionID := observability.GetSessionID(ctx)
		logger.LogPermissionDecision(ctx, sessionID, toolName, "", decision, granted, duration)
	}
}

func (g *PermissionGate) audit(ctx context.Context, toolName, decision string, start time.Time) {
	if g.Audit != nil {
		g.Audit(ctx, toolName, decision, decisionGranted(decision), time.Since(start))
	}
}

// Execute runs the full §4.D decision flow for a single call.
func (g *PermissionGate) Execute(ctx context.Context, call models.ToolCall) models.ToolResult {
	start := time.Now()

	tool, ok := g.Registry.Get(call.Name)
	if !ok {
		g.audit(ctx, call.Name, "tool_not_found", start)
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("tool not found: %s", call.Name)}
	}
	def := Definition(tool)

	if g.Context != nil {
		if msg, denied := g.Context.sandboxDenial(def); denied {
			g.audit(ctx, call.Name, "sandbox_denied", start)
			return models.ToolResult{ToolCallID: call.ID, Success: false, Error: fmt.Sprintf("tool %q denied: %s", call.Name, msg)}
		}
	}

	if reason := isDenied(g.Perms, g.Mode, call.Name); reason != DenialNone {
		g.audit(ctx, call.Name, string(reason), start)
		var msg string
		switch reason {
		case DenialAlwaysDeny:
			msg = fmt.Sprintf("tool %q is on the always_deny list", call.Name)
		case DenialAskOnly:
			msg = fmt.Sprintf("tool %q cannot run: agent mode is ask_only", call.Name)
		}
		return models.ToolResult{ToolCallID: call.ID, Success: false, Error: msg}
	}

	contextRequiresApproval := g.Context != nil && g.Context.RequireApproval
	if (contextRequiresApproval || requiresApproval(g.Perms, g.Mode, def)) && !isAutoApproved(g.Perms, g.Mode, def) {
		approved, err := g.Approval.RequestApproval(ctx, call, def)
		if err != nil {
			g.audit(ctx, call.Name, "approval_error", start)
			return models.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error()}
		}
		if !approved {
			g.audit(ctx, call.Name, "approval_denied", start)
			return models.ToolResult{ToolCallID: call.ID, Success: false, Error: "user declined approval"}
		}
		g.audit(ctx, call.Name, "approval_granted", start)
	} else {
		g.audit(ctx, call.Name, "auto_approved", start)
	}

	g.Approval.OnExecute(call)
	result, err := g.Registry.Execute(ctx, call.Name, call.Arguments)
	if err != nil {
		res := models.ToolResult{ToolCallID: call.ID, Success: false, Error: err.Error()}
		g.Approval.OnComplete(call, res)
		return res
	}
	out := *result
	out.ToolCallID = call.ID
	g.Approval.OnComplete(call, out)
	return out
}

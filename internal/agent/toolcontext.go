package agent

import (
	"github.com/ringo380/agentik/internal/sandbox"
	"github.com/ringo380/agentik/pkg/models"
)

// ToolContext is the §6.3 execution environment a tool call runs under: a
// working directory, a sandbox describing what it may touch, and whether the
// call still needs an interactive approval regardless of what the sandbox
// would otherwise permit.
type ToolContext struct {
	WorkingDir      string
	Sandbox         sandbox.Config
	RequireApproval bool
}

// IsPathAllowed reports whether path is reachable under this context's
// sandbox (see sandbox.IsPathAllowed for the canonicalization rule).
func (tc ToolContext) IsPathAllowed(path string) bool {
	return sandbox.IsPathAllowed(path, tc.Sandbox.AllowedPaths)
}

// IsCommandBlocked reports whether command is refused by this context's
// blocked_commands list.
func (tc ToolContext) IsCommandBlocked(command string) (string, bool) {
	return sandbox.IsCommandBlocked(command, tc.Sandbox.BlockedCommands)
}

// sandboxDenial reports whether def is categorically refused by tc's
// allow_shell/allow_network toggles, independent of the §4.D approval flow.
// Shell tools need allow_shell; git tools reach the network (fetch/push/
// clone) and need allow_network. Other categories are unaffected.
func (tc ToolContext) sandboxDenial(def models.ToolDefinition) (string, bool) {
	switch def.Category {
	case models.CategoryShell:
		if !tc.Sandbox.AllowShell {
			return "sandbox denies shell execution (allow_shell is false)", true
		}
	case models.CategoryGit:
		if !tc.Sandbox.AllowNetwork {
			return "sandbox denies network access (allow_network is false)", true
		}
	}
	return "", false
}

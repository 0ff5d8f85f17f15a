package exec

import (
	"encoding/json"

	"github.com/ringo380/agentik/internal/sandbox"
	"github.com/ringo380/agentik/pkg/models"
)

// deniedCommandSubstrings is a coarse, known-limitation blocklist: a
// lowercased, trimmed command containing any of these substrings is refused
// before it ever reaches the shell. Substring matching is imprecise (it can
// false-positive on an unrelated command that happens to contain the text,
// e.g. a comment mentioning "rm -rf"), but it catches the common destructive
// one-liners cheaply and without parsing shell syntax.
var deniedCommandSubstrings = []string{
	"rm -rf /",
	"rm -rf /*",
	"mkfs",
	":(){:|:&};:",
	"dd if=/dev/zero of=/dev/sda",
	"> /dev/sda",
}

// isCommandBlocked reports whether command matches extra (the sandbox's
// configured blocked_commands, §6.3) or the built-in denylist.
func isCommandBlocked(command string, extra []string) (string, bool) {
	if substr, blocked := sandbox.IsCommandBlocked(command, extra); blocked {
		return substr, true
	}
	return sandbox.IsCommandBlocked(command, deniedCommandSubstrings)
}

func toolError(message string) *models.ToolResult {
	payload, err := json.Marshal(map[string]string{"error": message})
	if err != nil {
		return &models.ToolResult{Success: false, Error: message}
	}
	return &models.ToolResult{Success: false, Output: string(payload), Error: message}
}

func toolOK(payload []byte) *models.ToolResult {
	return &models.ToolResult{Success: true, Output: string(payload)}
}

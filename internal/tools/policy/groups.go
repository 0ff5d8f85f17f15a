package policy

// ToolGroups defines named groups of tools for easier policy configuration.
// Group names use the "group:" prefix to distinguish them from tool names.
// Groups compose into policy allow/deny lists for coarse-grained control.
// Only groups that name tools this engine actually registers (§4.C) are
// kept; the teacher's messaging/browser/session-spawn/scheduling groups
// named tools that belong to collaborators this rebuild doesn't implement
// (see SPEC_FULL.md's dropped-dependency ledger) and were removed rather
// than left pointing at nothing. "group:mcp" stays as a naming convention
// for the out-of-scope MCP collaborator (§6.4): any future MCP tool
// registers under "mcp:<server>.<tool>" and is matched by prefix, not by
// an entry in this map.
var ToolGroups = map[string][]string{
	// Filesystem tools - read/write/modify files
	"group:fs": {"read", "write", "edit", "apply_patch"},

	// Runtime/execution tools - run shell commands and manage their processes
	"group:runtime": {"bash", "process"},

	// Repo map - the ranked, token-budgeted workspace overview (§4.I-M)
	"group:repomap": {"repomap"},

	// All built-in core tools
	"group:core": {
		"read", "write", "edit", "apply_patch",
		"bash", "process",
		"repomap",
	},

	// Read-only tools - safe tools that don't modify state
	"group:readonly": {"read", "repomap"},

	// MCP tools (dynamically populated by the out-of-scope subprocess
	// collaborator, §6.4); empty here, matched by prefix via IsMCPTool.
	"group:mcp": {},
}

// ToolProfiles defines pre-configured tool sets for common use cases.
// These map profile names to policies with their allowed tool groups.
var ToolProfiles = map[string]*Policy{
	// Coding profile - full development capabilities: filesystem, shell,
	// and the repo map.
	"coding": {
		Profile: ProfileCoding,
		Allow: []string{
			"group:fs",
			"group:runtime",
			"group:repomap",
			"group:mcp",
		},
	},

	// Readonly profile - observation only, no modifications.
	"readonly": {
		Allow: []string{
			"group:readonly",
		},
	},

	// Full profile - everything allowed (except explicit denies)
	"full": {
		Profile: ProfileFull,
	},

	// Minimal profile - repo map only, no filesystem or shell access.
	"minimal": {
		Profile: ProfileMinimal,
		Allow:   []string{"group:repomap"},
	},
}

// ExpandGroups expands group references in a tool list to their constituent tools.
// It handles:
//   - Group references (e.g., "group:fs" -> ["read", "write", "edit", "apply_patch"])
//   - Direct tool names (passed through unchanged)
//   - Deduplication of results
//
// Example:
//
//	ExpandGroups([]string{"group:fs", "custom_tool"})
//	// Returns: ["read", "write", "edit", "apply_patch", "custom_tool"]
func ExpandGroups(items []string) []string {
	var result []string
	seen := make(map[string]bool)

	for _, item := range items {
		// Check if it's a group reference
		if tools, ok := ToolGroups[item]; ok {
			for _, tool := range tools {
				if !seen[tool] {
					seen[tool] = true
					result = append(result, tool)
				}
			}
			continue
		}

		// Regular tool name
		if !seen[item] {
			seen[item] = true
			result = append(result, item)
		}
	}

	return result
}

// GetProfilePolicy returns the policy for a named profile.
// Returns nil if the profile doesn't exist.
func GetProfilePolicy(name string) *Policy {
	return ToolProfiles[name]
}

// ListGroups returns all available group names.
func ListGroups() []string {
	groups := make([]string, 0, len(ToolGroups))
	for name := range ToolGroups {
		groups = append(groups, name)
	}
	return groups
}

// ListProfiles returns all available profile names.
func ListProfiles() []string {
	profiles := make([]string, 0, len(ToolProfiles))
	for name := range ToolProfiles {
		profiles = append(profiles, name)
	}
	return profiles
}

// IsGroup returns true if the name is a valid group reference.
func IsGroup(name string) bool {
	_, ok := ToolGroups[name]
	return ok
}

// GetGroupTools returns the tools in a group, or nil if the group doesn't exist.
func GetGroupTools(name string) []string {
	tools, ok := ToolGroups[name]
	if !ok {
		return nil
	}
	// Return a copy to prevent modification
	result := make([]string, len(tools))
	copy(result, tools)
	return result
}

// init ensures ToolGroups is synchronized with DefaultGroups
func init() {
	// Copy ToolGroups to DefaultGroups for backwards compatibility
	for name, tools := range ToolGroups {
		DefaultGroups[name] = tools
	}
}

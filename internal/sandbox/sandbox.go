// Package sandbox implements the §6.3 tool execution sandbox: path and
// command gating shared by the file tools, the exec tools, and the agent's
// permission gate.
package sandbox

import (
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Config is the sandbox carried by a ToolContext.
type Config struct {
	AllowedPaths     []string      `json:"allowed_paths,omitempty"`
	AllowNetwork     bool          `json:"allow_network"`
	AllowShell       bool          `json:"allow_shell"`
	BlockedCommands  []string      `json:"blocked_commands,omitempty"`
	MaxExecutionTime time.Duration `json:"max_execution_time,omitempty"`
}

// IsPathAllowed reports whether path is a descendant of one of allowedPaths.
// A path's canonical form is its resolved (symlink-free) absolute form; when
// path does not exist yet, the canonical form of its nearest existing
// ancestor is used instead, so that a tool creating a new file under an
// allowed directory is not rejected just because the file itself is absent.
// An empty allowedPaths list means no restriction is configured.
func IsPathAllowed(path string, allowedPaths []string) bool {
	if len(allowedPaths) == 0 {
		return true
	}
	canon, ok := canonicalize(path)
	if !ok {
		return false
	}
	for _, allowed := range allowedPaths {
		allowedCanon, ok := canonicalize(allowed)
		if !ok {
			continue
		}
		if isDescendant(canon, allowedCanon) {
			return true
		}
	}
	return false
}

// canonicalize resolves path to an absolute, symlink-free form. If path (or
// some suffix of it) does not exist, it walks up to the nearest existing
// ancestor and resolves that instead.
func canonicalize(path string) (string, bool) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", false
	}
	cur := abs
	for {
		resolved, err := filepath.EvalSymlinks(cur)
		if err == nil {
			if cur != abs {
				// cur is an ancestor of abs; reattach the missing suffix so
				// the canonical form still names the original (non-existent)
				// path, just with its existing portion resolved.
				suffix, relErr := filepath.Rel(cur, abs)
				if relErr == nil && suffix != "." {
					return filepath.Join(resolved, suffix), true
				}
			}
			return resolved, true
		}
		if !os.IsNotExist(err) {
			return "", false
		}
		parent := filepath.Dir(cur)
		if parent == cur {
			return abs, true
		}
		cur = parent
	}
}

// isDescendant reports whether path is ancestor or a descendant of it (i.e.
// equal to or nested under ancestor).
func isDescendant(path, ancestor string) bool {
	if path == ancestor {
		return true
	}
	rel, err := filepath.Rel(ancestor, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(os.PathSeparator))
}

// IsCommandBlocked reports whether command's lowercased, trimmed form
// contains any of blocked's entries, also lowercased and trimmed. It returns
// the matching substring alongside the verdict.
func IsCommandBlocked(command string, blocked []string) (string, bool) {
	normalized := strings.ToLower(strings.TrimSpace(command))
	for _, substr := range blocked {
		substr = strings.ToLower(strings.TrimSpace(substr))
		if substr != "" && strings.Contains(normalized, substr) {
			return substr, true
		}
	}
	return "", false
}

// Package compactor implements the no-LLM extraction passes and simple/LLM
// compaction strategies of §4.H, producing a models.CompactedSummary from
// the messages a session's compact_boundary is about to advance over.
package compactor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ringo380/agentik/pkg/models"
)

// DefaultFileModifyingTools is the default set of tool names (matched
// case-insensitively) whose calls are considered file-modifying for the
// "Modified files" extraction pass.
var DefaultFileModifyingTools = []string{"write", "edit", "bash", "write_file", "edit_file", "create_file"}

// fileArgKeys is the order in which a file-modifying tool call's arguments
// are checked for a path.
var fileArgKeys = []string{"file_path", "path", "file", "filename", "target"}

// decisionPrefixes are the sentence openers that mark an Assistant line as a
// decision worth extracting.
var decisionPrefixes = []string{
	"I'll ", "I will ", "Let's ", "We should ", "The best approach ",
	"I've decided ", "I recommend ", "The solution is ",
}

// Extraction holds the four no-LLM extraction passes over a message range.
type Extraction struct {
	UserGoals     []string
	Decisions     []string
	ModifiedFiles []string
	ToolSummaries []string
}

// Extract runs all four passes over messages using the given
// file-modifying tool set (DefaultFileModifyingTools if nil).
func Extract(messages []models.Message, fileModifyingTools []string) Extraction {
	if fileModifyingTools == nil {
		fileModifyingTools = DefaultFileModifyingTools
	}
	return Extraction{
		UserGoals:     extractUserGoals(messages),
		Decisions:     extractDecisions(messages),
		ModifiedFiles: extractModifiedFiles(messages, fileModifyingTools),
		ToolSummaries: extractToolSummaries(messages),
	}
}

// extractUserGoals takes each User message with text length >= 10,
// truncated to 200 chars with an ellipsis.
func extractUserGoals(messages []models.Message) []string {
	var goals []string
	for _, m := range messages {
		if m.Role != models.RoleUser {
			continue
		}
		text := m.Text()
		if len(text) < 10 {
			continue
		}
		goals = append(goals, truncate(text, 200))
	}
	return goals
}

// extractDecisions splits each Assistant message's text into lines; a line
// is a decision if it starts with a known prefix, its length is in
// [20, 200], and it hasn't been seen before. At most 5 decisions are kept
// per message.
func extractDecisions(messages []models.Message) []string {
	seen := make(map[string]bool)
	var decisions []string
	for _, m := range messages {
		if m.Role != models.RoleAssistant {
			continue
		}
		kept := 0
		for _, line := range strings.Split(m.Text(), "\n") {
			if kept >= 5 {
				break
			}
			line = strings.TrimSpace(line)
			if len(line) < 20 || len(line) > 200 {
				continue
			}
			if !hasDecisionPrefix(line) {
				continue
			}
			if seen[line] {
				continue
			}
			seen[line] = true
			decisions = append(decisions, line)
			kept++
		}
	}
	return decisions
}

func hasDecisionPrefix(line string) bool {
	for _, prefix := range decisionPrefixes {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// extractModifiedFiles records the first present path-like argument of
// every Assistant tool call whose name matches (case-insensitively) one of
// tools, deduplicated in first-seen order.
func extractModifiedFiles(messages []models.Message, tools []string) []string {
	matchSet := make(map[string]bool, len(tools))
	for _, t := range tools {
		matchSet[strings.ToLower(t)] = true
	}

	seen := make(map[string]bool)
	var files []string
	for _, m := range messages {
		if m.Role != models.RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls {
			if !matchSet[strings.ToLower(call.Name)] {
				continue
			}
			path, ok := firstArgValue(call.Arguments, fileArgKeys)
			if !ok || path == "" || seen[path] {
				continue
			}
			seen[path] = true
			files = append(files, path)
		}
	}
	return files
}

// extractToolSummaries renders "<name>(<first 3 argument keys>)" per
// Assistant tool call.
func extractToolSummaries(messages []models.Message) []string {
	var out []string
	for _, m := range messages {
		if m.Role != models.RoleAssistant {
			continue
		}
		for _, call := range m.ToolCalls {
			keys := firstArgKeys(call.Arguments, 3)
			out = append(out, fmt.Sprintf("%s(%s)", call.Name, strings.Join(keys, ", ")))
		}
	}
	return out
}

func firstArgValue(raw json.RawMessage, keys []string) (string, bool) {
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		return "", false
	}
	for _, k := range keys {
		if v, ok := args[k]; ok {
			if s, ok := v.(string); ok && s != "" {
				return s, true
			}
		}
	}
	return "", false
}

// firstArgKeys returns the first n object keys of raw in their original
// source order (object key order is not preserved by a map[string]any
// unmarshal, so this walks the token stream directly).
func firstArgKeys(raw json.RawMessage, n int) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil
	}

	var keys []string
	for dec.More() && len(keys) < n {
		keyTok, err := dec.Token()
		if err != nil {
			break
		}
		key, ok := keyTok.(string)
		if !ok {
			break
		}
		keys = append(keys, key)

		var discard json.RawMessage
		if err := dec.Decode(&discard); err != nil {
			break
		}
	}
	return keys
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

package compactor

import (
	"fmt"
	"strings"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

// CompactSimple implements compact_simple (§4.H): if extraction found
// nothing, emit a one-line summary; otherwise render a section per
// extraction block (top 3 user goals, top 10 actions — decisions and tool
// summaries combined).
func CompactSimple(messages []models.Message, fileModifyingTools []string, now time.Time) models.CompactedSummary {
	extraction := Extract(messages, fileModifyingTools)

	var text string
	if len(extraction.UserGoals) == 0 && len(extraction.Decisions) == 0 &&
		len(extraction.ModifiedFiles) == 0 && len(extraction.ToolSummaries) == 0 {
		text = fmt.Sprintf("Compacted %d messages from the conversation.", len(messages))
	} else {
		text = renderSimpleSummary(extraction)
	}

	return models.CompactedSummary{
		Text:              text,
		KeyDecisions:      extraction.Decisions,
		ModifiedFiles:     extraction.ModifiedFiles,
		CreatedAt:         now,
		MessagesCompacted: len(messages),
	}
}

func renderSimpleSummary(e Extraction) string {
	var b strings.Builder

	if len(e.UserGoals) > 0 {
		b.WriteString("User goals:\n")
		for _, goal := range top(e.UserGoals, 3) {
			fmt.Fprintf(&b, "- %s\n", goal)
		}
	}

	actions := append(append([]string{}, e.Decisions...), e.ToolSummaries...)
	if len(actions) > 0 {
		b.WriteString("Actions:\n")
		for _, action := range top(actions, 10) {
			fmt.Fprintf(&b, "- %s\n", action)
		}
	}

	if len(e.ModifiedFiles) > 0 {
		b.WriteString("Modified files:\n")
		for _, f := range e.ModifiedFiles {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

func top(items []string, n int) []string {
	if len(items) <= n {
		return items
	}
	return items[:n]
}

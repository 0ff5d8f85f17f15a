package compactor

import (
	"strings"

	"github.com/ringo380/agentik/pkg/models"
)

// maxMergedDecisions caps how many key decisions MergeSummaries keeps: the
// newer summary's decisions first, then older ones fill remaining slots.
const maxMergedDecisions = 10

// MergeSummaries combines an older summary with a newer one for incremental
// re-compaction (§4.H merge): texts joined by "---", file lists unioned and
// deduplicated, decisions preferring the newer with older ones filling
// remaining slots up to 10, and messages_compacted summed.
func MergeSummaries(older, newer models.CompactedSummary) models.CompactedSummary {
	text := newer.Text
	if older.Text != "" {
		text = older.Text + "\n---\n" + newer.Text
	}

	return models.CompactedSummary{
		Text:              text,
		KeyDecisions:      mergeDecisions(newer.KeyDecisions, older.KeyDecisions),
		ModifiedFiles:     unionDedup(older.ModifiedFiles, newer.ModifiedFiles),
		CreatedAt:         newer.CreatedAt,
		MessagesCompacted: older.MessagesCompacted + newer.MessagesCompacted,
	}
}

func mergeDecisions(newer, older []string) []string {
	seen := make(map[string]bool, len(newer)+len(older))
	decisions := make([]string, 0, maxMergedDecisions)
	for _, d := range newer {
		if len(decisions) >= maxMergedDecisions {
			break
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		decisions = append(decisions, d)
	}
	for _, d := range older {
		if len(decisions) >= maxMergedDecisions {
			break
		}
		if seen[d] {
			continue
		}
		seen[d] = true
		decisions = append(decisions, d)
	}
	return decisions
}

func unionDedup(a, b []string) []string {
	seen := make(map[string]bool, len(a)+len(b))
	var out []string
	for _, s := range append(append([]string{}, a...), b...) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

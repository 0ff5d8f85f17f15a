package compactor

import (
	"testing"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

func TestMergeSummariesJoinsTextWithSeparator(t *testing.T) {
	older := models.CompactedSummary{Text: "first segment"}
	newer := models.CompactedSummary{Text: "second segment"}
	merged := MergeSummaries(older, newer)
	if merged.Text != "first segment\n---\nsecond segment" {
		t.Fatalf("unexpected merged text: %q", merged.Text)
	}
}

func TestMergeSummariesOmitsSeparatorWhenOlderTextEmpty(t *testing.T) {
	merged := MergeSummaries(models.CompactedSummary{}, models.CompactedSummary{Text: "only segment"})
	if merged.Text != "only segment" {
		t.Fatalf("unexpected merged text: %q", merged.Text)
	}
}

func TestMergeSummariesSumsMessagesCompacted(t *testing.T) {
	older := models.CompactedSummary{MessagesCompacted: 10}
	newer := models.CompactedSummary{MessagesCompacted: 5}
	merged := MergeSummaries(older, newer)
	if merged.MessagesCompacted != 15 {
		t.Fatalf("expected 15, got %d", merged.MessagesCompacted)
	}
}

func TestMergeSummariesUnionDedupesModifiedFiles(t *testing.T) {
	older := models.CompactedSummary{ModifiedFiles: []string{"a.go", "b.go"}}
	newer := models.CompactedSummary{ModifiedFiles: []string{"b.go", "c.go"}}
	merged := MergeSummaries(older, newer)
	want := []string{"a.go", "b.go", "c.go"}
	if len(merged.ModifiedFiles) != len(want) {
		t.Fatalf("expected %v, got %v", want, merged.ModifiedFiles)
	}
	for i, f := range want {
		if merged.ModifiedFiles[i] != f {
			t.Fatalf("expected %v, got %v", want, merged.ModifiedFiles)
		}
	}
}

func TestMergeSummariesDecisionsPreferNewerThenFillFromOlder(t *testing.T) {
	older := models.CompactedSummary{KeyDecisions: []string{"old-1", "old-2", "shared"}}
	newer := models.CompactedSummary{KeyDecisions: []string{"new-1", "shared"}}
	merged := MergeSummaries(older, newer)
	want := []string{"new-1", "shared", "old-1", "old-2"}
	if len(merged.KeyDecisions) != len(want) {
		t.Fatalf("expected %v, got %v", want, merged.KeyDecisions)
	}
	for i, d := range want {
		if merged.KeyDecisions[i] != d {
			t.Fatalf("expected %v at position %d, got %v", want, i, merged.KeyDecisions)
		}
	}
}

func TestMergeSummariesDecisionsCapAtTen(t *testing.T) {
	var older, newer []string
	for i := 0; i < 8; i++ {
		older = append(older, "old-decision")
	}
	for i := 0; i < 8; i++ {
		newer = append(newer, "new-decision")
	}
	merged := MergeSummaries(
		models.CompactedSummary{KeyDecisions: []string{"old-a", "old-b", "old-c", "old-d", "old-e", "old-f", "old-g", "old-h"}},
		models.CompactedSummary{KeyDecisions: []string{"new-a", "new-b", "new-c", "new-d", "new-e", "new-f", "new-g", "new-h"}},
	)
	if len(merged.KeyDecisions) != maxMergedDecisions {
		t.Fatalf("expected cap of %d decisions, got %d", maxMergedDecisions, len(merged.KeyDecisions))
	}
	_ = older
	_ = newer
}

func TestMergeSummariesUsesNewerCreatedAt(t *testing.T) {
	older := models.CompactedSummary{CreatedAt: time.Unix(100, 0)}
	newer := models.CompactedSummary{CreatedAt: time.Unix(200, 0)}
	merged := MergeSummaries(older, newer)
	if !merged.CreatedAt.Equal(newer.CreatedAt) {
		t.Fatalf("expected merged CreatedAt to match newer, got %v", merged.CreatedAt)
	}
}

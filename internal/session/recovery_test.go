package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ringo380/agentik/pkg/models"
)

func newTestRecovery(t *testing.T) (*Store, *Recovery) {
	t.Helper()
	store := newTestStore(t)
	return store, NewRecovery(store)
}

func TestResumeRejectsArchivedSession(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	sess := newTestSession("sess-archived")
	sess.Metadata.State = models.StateArchived
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := rec.Resume(ctx, "sess-archived"); err == nil {
		t.Fatal("expected resuming an archived session to fail")
	}
}

func TestResumeByPrefixAmbiguous(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	if err := store.Create(ctx, newTestSession("abc-1")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.Create(ctx, newTestSession("abc-2")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	_, err := rec.ResumeByPrefix(ctx, "abc")
	var ambiguous *AmbiguousPrefixError
	if !errors.As(err, &ambiguous) {
		t.Fatalf("expected AmbiguousPrefixError, got %v", err)
	}
	if ambiguous.Count != 2 {
		t.Fatalf("expected count 2, got %d", ambiguous.Count)
	}
}

func TestResumeByPrefixNoMatches(t *testing.T) {
	_, rec := newTestRecovery(t)
	if _, err := rec.ResumeByPrefix(context.Background(), "zzz"); err != ErrSessionNotFound {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestResumeMostRecentEmptyStore(t *testing.T) {
	_, rec := newTestRecovery(t)
	if _, err := rec.ResumeMostRecent(context.Background()); err != ErrNoSessionsFound {
		t.Fatalf("expected ErrNoSessionsFound, got %v", err)
	}
}

func TestSmartResumeFallsBackToMostRecent(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	if err := store.Create(ctx, newTestSession("sess-only")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	sess, err := rec.SmartResume(ctx, "")
	if err != nil {
		t.Fatalf("SmartResume: %v", err)
	}
	if sess.Metadata.ID != "sess-only" {
		t.Fatalf("expected sess-only, got %s", sess.Metadata.ID)
	}
}

func TestSmartResumeExactThenPrefix(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	if err := store.Create(ctx, newTestSession("abcdef")); err != nil {
		t.Fatalf("Create: %v", err)
	}

	exact, err := rec.SmartResume(ctx, "abcdef")
	if err != nil {
		t.Fatalf("SmartResume exact: %v", err)
	}
	if exact.Metadata.ID != "abcdef" {
		t.Fatalf("expected exact match abcdef, got %s", exact.Metadata.ID)
	}

	byPrefix, err := rec.SmartResume(ctx, "abc")
	if err != nil {
		t.Fatalf("SmartResume prefix: %v", err)
	}
	if byPrefix.Metadata.ID != "abcdef" {
		t.Fatalf("expected prefix match abcdef, got %s", byPrefix.Metadata.ID)
	}
}

func TestValidateDetectsBoundaryExceedingMessageCount(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	sess := newTestSession("sess-invalid")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.ApplyCompaction(ctx, "sess-invalid", models.CompactedSummary{Text: "x"}, 5); err != nil {
		t.Fatalf("ApplyCompaction: %v", err)
	}

	result, err := rec.Validate(ctx, "sess-invalid", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if result.IsValid {
		t.Fatal("expected invalid result when compact_boundary exceeds message count")
	}
	foundError := false
	for _, issue := range result.Issues {
		if issue.Severity == SeverityError {
			foundError = true
		}
	}
	if !foundError {
		t.Fatalf("expected an Error-severity issue, got %+v", result.Issues)
	}
}

func TestValidateWarnsOnSummaryWithZeroBoundary(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()
	sess := newTestSession("sess-warn")
	if err := store.Create(ctx, sess); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := store.ApplyCompaction(ctx, "sess-warn", models.CompactedSummary{Text: "x"}, 0); err != nil {
		t.Fatalf("ApplyCompaction: %v", err)
	}

	result, err := rec.Validate(ctx, "sess-warn", ValidateOptions{})
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if !result.IsValid {
		t.Fatalf("expected a Warning to not invalidate the session, got %+v", result.Issues)
	}
	foundWarning := false
	for _, issue := range result.Issues {
		if issue.Severity == SeverityWarning {
			foundWarning = true
		}
	}
	if !foundWarning {
		t.Fatalf("expected a Warning-severity issue, got %+v", result.Issues)
	}
}

func TestArchiveOldSessionsUsesInjectedClock(t *testing.T) {
	store, rec := newTestRecovery(t)
	ctx := context.Background()

	fixedNow := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	rec.SetNowFunc(func() time.Time { return fixedNow })

	old := newTestSession("sess-stale")
	old.Metadata.LastActiveAt = fixedNow.Add(-48 * time.Hour)
	fresh := newTestSession("sess-fresh")
	fresh.Metadata.LastActiveAt = fixedNow.Add(-1 * time.Hour)

	if err := store.Create(ctx, old); err != nil {
		t.Fatalf("Create old: %v", err)
	}
	if err := store.Create(ctx, fresh); err != nil {
		t.Fatalf("Create fresh: %v", err)
	}

	affected, err := rec.ArchiveOldSessions(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("ArchiveOldSessions: %v", err)
	}
	if len(affected) != 1 || affected[0] != "sess-stale" {
		t.Fatalf("expected only sess-stale archived, got %v", affected)
	}

	meta, err := store.GetMetadata(ctx, "sess-fresh")
	if err != nil {
		t.Fatalf("GetMetadata: %v", err)
	}
	if meta.State == models.StateArchived {
		t.Fatal("expected sess-fresh to remain unarchived")
	}
}

package sandbox

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsPathAllowedNoRestriction(t *testing.T) {
	if !IsPathAllowed("/anything/at/all", nil) {
		t.Fatalf("expected no restriction to allow any path")
	}
}

func TestIsPathAllowedExistingDescendant(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	if err := os.Mkdir(sub, 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	file := filepath.Join(sub, "main.go")
	if err := os.WriteFile(file, []byte("package main\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !IsPathAllowed(file, []string{dir}) {
		t.Fatalf("expected %s to be allowed under %s", file, dir)
	}
}

func TestIsPathAllowedNonExistentPathUsesNearestAncestor(t *testing.T) {
	dir := t.TempDir()
	notYetCreated := filepath.Join(dir, "newdir", "newfile.go")
	if !IsPathAllowed(notYetCreated, []string{dir}) {
		t.Fatalf("expected not-yet-created path under an allowed ancestor to be allowed")
	}
}

func TestIsPathAllowedRejectsOutsidePath(t *testing.T) {
	allowed := t.TempDir()
	outside := t.TempDir()
	target := filepath.Join(outside, "secret.txt")
	if IsPathAllowed(target, []string{allowed}) {
		t.Fatalf("expected path outside every allowed root to be rejected")
	}
}

func TestIsPathAllowedExactMatch(t *testing.T) {
	dir := t.TempDir()
	if !IsPathAllowed(dir, []string{dir}) {
		t.Fatalf("expected the allowed root itself to be allowed")
	}
}

func TestIsCommandBlockedMatchesLowercasedTrimmed(t *testing.T) {
	substr, blocked := IsCommandBlocked("  RM -RF /tmp/data  ", []string{"rm -rf"})
	if !blocked || substr != "rm -rf" {
		t.Fatalf("expected block on case/whitespace-insensitive match, got %q/%v", substr, blocked)
	}
}

func TestIsCommandBlockedNoMatch(t *testing.T) {
	if _, blocked := IsCommandBlocked("ls -la", []string{"rm -rf"}); blocked {
		t.Fatalf("expected ls -la not to be blocked")
	}
}

func TestIsCommandBlockedIgnoresEmptyEntries(t *testing.T) {
	if _, blocked := IsCommandBlocked("ls -la", []string{"", "  "}); blocked {
		t.Fatalf("expected empty blocklist entries to never match")
	}
}

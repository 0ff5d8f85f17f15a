package repomap

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCacheSaveLoadRoundTrip(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root)

	m := NewRepoMap(root)
	m.AddFile(FileInfo{Path: "a.go", Symbols: []Symbol{{Name: "Foo", Kind: SymbolFunction}}})
	m.Ranks["a.go"] = 0.42

	if err := c.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := c.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded == nil {
		t.Fatal("expected a loaded map, got nil")
	}
	if loaded.FileCount() != 1 {
		t.Fatalf("expected 1 file, got %d", loaded.FileCount())
	}
	if loaded.GetRank("a.go") != 0.42 {
		t.Fatalf("expected rank 0.42, got %f", loaded.GetRank("a.go"))
	}
}

func TestCacheLoadMissingFileReturnsNilNoError(t *testing.T) {
	c := NewCache(t.TempDir())
	m, err := c.Load()
	if err != nil {
		t.Fatalf("expected no error for missing cache, got %v", err)
	}
	if m != nil {
		t.Fatalf("expected nil map for missing cache, got %+v", m)
	}
}

func TestCacheLoadVersionMismatch(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root)

	m := NewRepoMap(root)
	m.Version = CacheVersion + 1
	if err := c.Save(m); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	if _, err := c.Load(); err != ErrCacheVersionMismatch {
		t.Fatalf("expected ErrCacheVersionMismatch, got %v", err)
	}
}

func TestCacheClearRemovesFile(t *testing.T) {
	root := t.TempDir()
	c := NewCache(root)
	if err := c.Save(NewRepoMap(root)); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if _, err := os.Stat(c.Path()); !os.IsNotExist(err) {
		t.Fatalf("expected cache file to be gone, stat err=%v", err)
	}
}

func TestCachePendingUpdatesModifiedSupersedesDeleted(t *testing.T) {
	c := NewCache(t.TempDir())
	c.recordDeleted("a.go")
	c.recordModified("a.go")

	pending := c.PendingUpdates()
	if _, ok := pending.Modified["a.go"]; !ok {
		t.Fatal("expected a.go to be in Modified")
	}
	if _, ok := pending.Deleted["a.go"]; ok {
		t.Fatal("expected a.go to be cleared from Deleted")
	}
	if c.HasPendingUpdates() {
		t.Fatal("expected pending updates to be drained after PendingUpdates()")
	}
}

func TestCacheShouldTrack(t *testing.T) {
	c := NewCache(t.TempDir())
	if !c.shouldTrack("main.go") {
		t.Fatal("expected .go files to be tracked")
	}
	if c.shouldTrack("README.md") {
		t.Fatal("expected .md files not to be tracked")
	}
}

func TestCacheNeedsUpdate(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "a.go")
	if err := os.WriteFile(path, []byte("package main"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	c := NewCache(root)
	m := NewRepoMap(root)
	if !c.NeedsUpdate(m, "a.go") {
		t.Fatal("expected an untracked file to need an update")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat failed: %v", err)
	}
	m.AddFile(FileInfo{Path: "a.go", ModTime: info.ModTime()})
	if c.NeedsUpdate(m, "a.go") {
		t.Fatal("expected a file with a current mtime not to need an update")
	}
}

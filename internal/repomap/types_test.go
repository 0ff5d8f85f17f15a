package repomap

import "testing"

func TestLanguageFromExtension(t *testing.T) {
	cases := map[string]Language{
		"rs":   LanguageRust,
		"ts":   LanguageTypeScript,
		"tsx":  LanguageTypeScript,
		"js":   LanguageJavaScript,
		"mjs":  LanguageJavaScript,
		"py":   LanguagePython,
		"go":   LanguageGo,
		"java": LanguageJava,
		"txt":  LanguageUnknown,
	}
	for ext, want := range cases {
		if got := LanguageFromExtension(ext); got != want {
			t.Errorf("LanguageFromExtension(%q) = %v, want %v", ext, got, want)
		}
	}
}

func TestLanguageIsSupported(t *testing.T) {
	if LanguageUnknown.IsSupported() {
		t.Fatal("LanguageUnknown should not be supported")
	}
	if !LanguageGo.IsSupported() {
		t.Fatal("LanguageGo should be supported")
	}
}

func TestSymbolKindPrefix(t *testing.T) {
	if got := SymbolFunction.Prefix(); got != "fn" {
		t.Fatalf("expected fn, got %s", got)
	}
	if got := SymbolStruct.Prefix(); got != "struct" {
		t.Fatalf("expected struct, got %s", got)
	}
}

func TestFileInfoFunctionsAndTypes(t *testing.T) {
	f := FileInfo{
		Path: "foo.go",
		Symbols: []Symbol{
			{Name: "Foo", Kind: SymbolStruct},
			{Name: "DoThing", Kind: SymbolFunction},
			{Name: "Mode", Kind: SymbolEnum},
			{Name: "helper", Kind: SymbolFunction},
		},
	}
	if fns := f.Functions(); len(fns) != 2 {
		t.Fatalf("expected 2 functions, got %d", len(fns))
	}
	if types := f.Types(); len(types) != 2 {
		t.Fatalf("expected 2 types, got %d", len(types))
	}
}

func TestRepoMapAddGetRemoveFile(t *testing.T) {
	m := NewRepoMap("/repo")
	m.AddFile(FileInfo{Path: "a.go"})
	m.Ranks["a.go"] = 0.5

	if _, ok := m.GetFile("a.go"); !ok {
		t.Fatal("expected a.go to be present")
	}
	if m.FileCount() != 1 {
		t.Fatalf("expected FileCount 1, got %d", m.FileCount())
	}

	m.RemoveFile("a.go")
	if _, ok := m.GetFile("a.go"); ok {
		t.Fatal("expected a.go to be removed")
	}
	if got := m.GetRank("a.go"); got != 0 {
		t.Fatalf("expected removed file's rank to be 0, got %f", got)
	}
}

func TestRepoMapIsCompatible(t *testing.T) {
	m := NewRepoMap("/repo")
	if !m.IsCompatible() {
		t.Fatal("freshly created map should be compatible")
	}
	m.Version = CacheVersion + 1
	if m.IsCompatible() {
		t.Fatal("mismatched version should not be compatible")
	}
}

func TestRepoMapFilesByRank(t *testing.T) {
	m := NewRepoMap("/repo")
	m.AddFile(FileInfo{Path: "low.go"})
	m.AddFile(FileInfo{Path: "high.go"})
	m.AddFile(FileInfo{Path: "tie-b.go"})
	m.AddFile(FileInfo{Path: "tie-a.go"})
	m.Ranks["low.go"] = 0.1
	m.Ranks["high.go"] = 0.9
	m.Ranks["tie-b.go"] = 0.5
	m.Ranks["tie-a.go"] = 0.5

	files := m.FilesByRank()
	want := []string{"high.go", "tie-a.go", "tie-b.go", "low.go"}
	if len(files) != len(want) {
		t.Fatalf("expected %d files, got %d", len(want), len(files))
	}
	for i, f := range files {
		if f.Path != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], f.Path)
		}
	}
}

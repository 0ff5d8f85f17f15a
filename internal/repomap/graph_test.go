package repomap

import "testing"

func TestBuildGraphResolvesGoImportByDirectoryName(t *testing.T) {
	m := NewRepoMap("/repo")
	m.AddFile(FileInfo{
		Path:     "cmd/main.go",
		Language: LanguageGo,
		Imports:  []Import{{RawPath: "github.com/example/internal/widgets"}},
	})
	m.AddFile(FileInfo{Path: "internal/widgets/widget.go", Language: LanguageGo})

	g := BuildGraph(m)
	deps := g.Dependencies("cmd/main.go")
	if len(deps) != 1 || deps[0] != "internal/widgets/widget.go" {
		t.Fatalf("expected resolved dependency on widget.go, got %v", deps)
	}
	if g.InDegree("internal/widgets/widget.go") != 1 {
		t.Fatalf("expected in-degree 1, got %d", g.InDegree("internal/widgets/widget.go"))
	}
}

func TestBuildGraphDropsUnresolvedImports(t *testing.T) {
	m := NewRepoMap("/repo")
	m.AddFile(FileInfo{
		Path:     "main.go",
		Language: LanguageGo,
		Imports:  []Import{{RawPath: "fmt"}},
	})
	g := BuildGraph(m)
	if g.OutDegree("main.go") != 0 {
		t.Fatalf("expected no resolved edges for stdlib import, got out-degree %d", g.OutDegree("main.go"))
	}
}

func TestAddEdgeIgnoresSelfLoops(t *testing.T) {
	g := NewGraph()
	g.AddEdge("a.go", "a.go")
	if g.EdgeCount() != 0 {
		t.Fatalf("expected self-loop to be ignored, got %d edges", g.EdgeCount())
	}
}

func TestResolveRustImport(t *testing.T) {
	known := map[string]struct{}{
		"src/types.rs": {},
		"src/graph.rs": {},
	}
	if got, ok := resolveRustImport("src/lib.rs", "crate::types", known); !ok || got != "src/types.rs" {
		t.Fatalf("expected src/types.rs, got %q ok=%v", got, ok)
	}
	if got, ok := resolveRustImport("src/sub/mod.rs", "super::graph", known); !ok || got != "src/graph.rs" {
		t.Fatalf("expected src/graph.rs, got %q ok=%v", got, ok)
	}
	if _, ok := resolveRustImport("src/lib.rs", "std::collections::HashMap", known); ok {
		t.Fatal("expected external crate import to be left unresolved")
	}
}

func TestResolveTSImport(t *testing.T) {
	known := map[string]struct{}{
		"src/components/foo.ts": {},
		"src/utils/index.ts":    {},
	}
	if got, ok := resolveTSImport("src/components/bar.ts", "./foo", known); !ok || got != "src/components/foo.ts" {
		t.Fatalf("expected foo.ts, got %q ok=%v", got, ok)
	}
	if got, ok := resolveTSImport("src/components/bar.ts", "../utils", known); !ok || got != "src/utils/index.ts" {
		t.Fatalf("expected utils/index.ts, got %q ok=%v", got, ok)
	}
	if _, ok := resolveTSImport("src/components/bar.ts", "react", known); ok {
		t.Fatal("expected bare package import to be left unresolved")
	}
}

func TestResolvePythonImport(t *testing.T) {
	known := map[string]struct{}{
		"pkg/sibling.py": {},
	}
	if got, ok := resolvePythonImport("pkg/mod.py", ".sibling", known); !ok || got != "pkg/sibling.py" {
		t.Fatalf("expected pkg/sibling.py, got %q ok=%v", got, ok)
	}

	fallbackKnown := map[string]struct{}{
		"src/pkg/sibling.py": {},
	}
	if got, ok := resolvePythonImport("other/mod.py", "pkg.sibling", fallbackKnown); !ok || got != "src/pkg/sibling.py" {
		t.Fatalf("expected src/pkg/sibling.py fallback, got %q ok=%v", got, ok)
	}
}

func TestResolveJavaImport(t *testing.T) {
	known := map[string]struct{}{
		"src/main/java/com/example/Widget.java": {},
	}
	got, ok := resolveJavaImport("com.example.Widget", known)
	if !ok || got != "src/main/java/com/example/Widget.java" {
		t.Fatalf("expected resolved Widget.java, got %q ok=%v", got, ok)
	}
}

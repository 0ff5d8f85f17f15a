package repomap

import (
	"strings"
	"testing"
)

func sampleRepoMap() *RepoMap {
	m := NewRepoMap("/repo")
	m.AddFile(FileInfo{
		Path: "core.go",
		Symbols: []Symbol{
			{Name: "Engine", Kind: SymbolStruct},
			{Name: "Run", Kind: SymbolFunction, Signature: "func (e *Engine) Run(ctx context.Context) error"},
		},
	})
	m.AddFile(FileInfo{
		Path: "util.go",
		Symbols: []Symbol{
			{Name: "Helper", Kind: SymbolFunction, Signature: "func Helper(x int) int"},
		},
	})
	m.Ranks["core.go"] = 0.8
	m.Ranks["util.go"] = 0.2
	return m
}

func TestSerializeOrdersByRank(t *testing.T) {
	m := sampleRepoMap()
	out := Serialize(m, DefaultSerializeConfig())

	coreIdx := strings.Index(out, "core.go")
	utilIdx := strings.Index(out, "util.go")
	if coreIdx == -1 || utilIdx == -1 || coreIdx > utilIdx {
		t.Fatalf("expected core.go (higher rank) to appear before util.go, got:\n%s", out)
	}
}

func TestSerializeIncludesRankWhenConfigured(t *testing.T) {
	m := sampleRepoMap()
	out := Serialize(m, DefaultSerializeConfig())
	if !strings.Contains(out, "core.go (0.80)") {
		t.Fatalf("expected rank annotation in output, got:\n%s", out)
	}
}

func TestSerializeOmitsRankWhenDisabled(t *testing.T) {
	m := sampleRepoMap()
	cfg := DefaultSerializeConfig()
	cfg.IncludeRanks = false
	out := Serialize(m, cfg)
	if strings.Contains(out, "(0.80)") {
		t.Fatalf("expected no rank annotation, got:\n%s", out)
	}
}

func TestSerializeFallsBackToHeaderOnlyWhenBudgetTight(t *testing.T) {
	m := sampleRepoMap()
	cfg := DefaultSerializeConfig()
	cfg.TokenBudget = estimateTokens("core.go (0.80)\n") + 1
	out := Serialize(m, cfg)

	if !strings.Contains(out, "core.go") {
		t.Fatalf("expected at least a header line, got:\n%s", out)
	}
	if strings.Contains(out, "Run") {
		t.Fatalf("expected symbols to be dropped once the budget is exceeded, got:\n%s", out)
	}
}

func TestSerializeTruncatesLongSignatures(t *testing.T) {
	m := NewRepoMap("/repo")
	longSig := "func ReallyLongFunctionNameThatGoesOnAndOnAndOnForeverAndEverWithLotsOfArgs(a, b, c, d, e, f int) error"
	m.AddFile(FileInfo{
		Path:    "long.go",
		Symbols: []Symbol{{Name: "ReallyLong", Kind: SymbolFunction, Signature: longSig}},
	})
	out := Serialize(m, DefaultSerializeConfig())
	if strings.Contains(out, longSig) {
		t.Fatal("expected long signature to be truncated")
	}
	if !strings.Contains(out, "…") {
		t.Fatal("expected truncation ellipsis in output")
	}
}

func TestSerializeForToolFocusFilesSection(t *testing.T) {
	m := sampleRepoMap()
	out := SerializeForTool(m, []string{"core.go"}, "", DefaultSerializeConfig())

	if !strings.Contains(out, "## Focus Files") {
		t.Fatal("expected a Focus Files section")
	}
	if !strings.Contains(out, "## Related Files") {
		t.Fatal("expected a Related Files section")
	}
	focusIdx := strings.Index(out, "## Focus Files")
	relatedIdx := strings.Index(out, "## Related Files")
	if focusIdx > relatedIdx {
		t.Fatal("expected Focus Files section before Related Files section")
	}
}

func TestSerializeForToolQueryFiltersRelatedFiles(t *testing.T) {
	m := sampleRepoMap()
	out := SerializeForTool(m, nil, "helper", DefaultSerializeConfig())
	if strings.Contains(out, "core.go") {
		t.Fatalf("expected query filter to exclude core.go, got:\n%s", out)
	}
	if !strings.Contains(out, "util.go") {
		t.Fatalf("expected query filter to keep util.go, got:\n%s", out)
	}
}

func TestEstimateTokensMatchesFourCharRatio(t *testing.T) {
	if got := estimateTokens("abcd"); got != 1 {
		t.Fatalf("expected 1 token for 4 chars, got %d", got)
	}
	if got := estimateTokens("abcde"); got != 2 {
		t.Fatalf("expected 2 tokens for 5 chars, got %d", got)
	}
}

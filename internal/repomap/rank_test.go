package repomap

import (
	"math"
	"testing"
)

func buildLinearGraph() *Graph {
	// a -> b -> c, so c should rank highest (everyone eventually points to it).
	g := NewGraph()
	g.AddFile("a.go")
	g.AddFile("b.go")
	g.AddFile("c.go")
	g.AddEdge("a.go", "b.go")
	g.AddEdge("b.go", "c.go")
	return g
}

func TestScorerComputeSumsToOne(t *testing.T) {
	scorer := NewScorer(DefaultRankConfig())
	scores := scorer.Compute(buildLinearGraph())

	total := 0.0
	for _, s := range scores {
		total += s
	}
	if math.Abs(total-1.0) > 1e-9 {
		t.Fatalf("expected scores to sum to 1, got %f", total)
	}
}

func TestScorerComputeRanksSinkHighest(t *testing.T) {
	scorer := NewScorer(DefaultRankConfig())
	scores := scorer.Compute(buildLinearGraph())

	if scores["c.go"] <= scores["b.go"] || scores["b.go"] <= scores["a.go"] {
		t.Fatalf("expected c > b > a, got a=%f b=%f c=%f", scores["a.go"], scores["b.go"], scores["c.go"])
	}
}

func TestScorerComputeEmptyGraph(t *testing.T) {
	scorer := NewScorer(DefaultRankConfig())
	scores := scorer.Compute(NewGraph())
	if len(scores) != 0 {
		t.Fatalf("expected empty result for empty graph, got %v", scores)
	}
}

func TestScorerComputeWithQueryBoostsFocusFiles(t *testing.T) {
	g := NewGraph()
	g.AddFile("focus.go")
	g.AddFile("neighbor.go")
	g.AddFile("other.go")
	g.AddEdge("focus.go", "neighbor.go")

	scorer := NewScorer(DefaultRankConfig())
	base := scorer.Compute(g)
	boosted := scorer.ComputeWithQuery(g, []string{"focus.go"})

	if boosted["focus.go"] <= base["focus.go"] {
		t.Fatalf("expected query boosting to raise focus.go's score: base=%f boosted=%f",
			base["focus.go"], boosted["focus.go"])
	}
}

func TestScorerComputeWithQueryNoFocusFallsBackToUniform(t *testing.T) {
	g := buildLinearGraph()
	scorer := NewScorer(DefaultRankConfig())
	base := scorer.Compute(g)
	boosted := scorer.ComputeWithQuery(g, nil)

	for path, score := range base {
		if math.Abs(score-boosted[path]) > 1e-12 {
			t.Fatalf("expected ComputeWithQuery(nil) to equal Compute for %s: %f vs %f", path, score, boosted[path])
		}
	}
}

func TestNewScorerSanitizesInvalidConfig(t *testing.T) {
	s := NewScorer(RankConfig{Damping: -1, Iterations: 0, ConvergenceThreshold: 0})
	defaults := DefaultRankConfig()
	if s.cfg.Damping != defaults.Damping || s.cfg.Iterations != defaults.Iterations {
		t.Fatalf("expected invalid config fields to fall back to defaults, got %+v", s.cfg)
	}
}

func TestRankSortsDescendingWithPathTiebreak(t *testing.T) {
	g := NewGraph()
	g.AddFile("z.go")
	g.AddFile("a.go")
	scorer := NewScorer(DefaultRankConfig())
	ranked := scorer.Rank(g)

	if len(ranked) != 2 || ranked[0].Path != "a.go" || ranked[1].Path != "z.go" {
		t.Fatalf("expected tie broken alphabetically, got %+v", ranked)
	}
}

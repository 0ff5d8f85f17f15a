package repomap

import (
	"math"
	"sort"
)

// RankConfig tunes the power-iteration PageRank pass (§4.K in the original
// scoring design): how much weight follows graph edges versus teleporting
// uniformly, how many iterations to run, and when to call it converged.
type RankConfig struct {
	Damping              float64
	Iterations           int
	ConvergenceThreshold float64
}

// DefaultRankConfig matches the reference implementation's tuning.
func DefaultRankConfig() RankConfig {
	return RankConfig{
		Damping:              0.85,
		Iterations:           100,
		ConvergenceThreshold: 1e-6,
	}
}

// Scorer computes PageRank scores over a Graph, crediting a file for every
// other file that imports it (the reverse of the import direction).
type Scorer struct {
	cfg RankConfig
}

// NewScorer returns a Scorer with the given config, falling back to
// DefaultRankConfig for zero-valued fields.
func NewScorer(cfg RankConfig) *Scorer {
	defaults := DefaultRankConfig()
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		cfg.Damping = defaults.Damping
	}
	if cfg.Iterations <= 0 {
		cfg.Iterations = defaults.Iterations
	}
	if cfg.ConvergenceThreshold <= 0 {
		cfg.ConvergenceThreshold = defaults.ConvergenceThreshold
	}
	return &Scorer{cfg: cfg}
}

// Compute scores every file in g with a uniform teleport vector.
func (s *Scorer) Compute(g *Graph) map[string]float64 {
	return s.computeWithPersonalization(g, nil)
}

// ComputeWithQuery scores every file, boosting focusFiles by 3.0 and their
// direct graph neighbors by sqrt(3.0) in the teleport vector; everything
// else keeps weight 1.0 before normalization.
func (s *Scorer) ComputeWithQuery(g *Graph, focusFiles []string) map[string]float64 {
	if len(focusFiles) == 0 {
		return s.Compute(g)
	}

	focusSet := make(map[string]struct{}, len(focusFiles))
	for _, f := range focusFiles {
		focusSet[f] = struct{}{}
	}

	neighborSet := make(map[string]struct{})
	for f := range focusSet {
		for n := range g.Neighbors(f) {
			if _, inFocus := focusSet[n]; !inFocus {
				neighborSet[n] = struct{}{}
			}
		}
	}

	const focusBoost = 3.0
	neighborBoost := math.Sqrt(focusBoost)

	personalization := make(map[string]float64, len(g.files))
	for _, f := range g.Files() {
		switch {
		case isIn(focusSet, f):
			personalization[f] = focusBoost
		case isIn(neighborSet, f):
			personalization[f] = neighborBoost
		default:
			personalization[f] = 1.0
		}
	}

	return s.computeWithPersonalization(g, personalization)
}

func isIn(set map[string]struct{}, key string) bool {
	_, ok := set[key]
	return ok
}

func (s *Scorer) computeWithPersonalization(g *Graph, personalization map[string]float64) map[string]float64 {
	files := g.Files()
	n := len(files)
	if n == 0 {
		return map[string]float64{}
	}

	idx := make(map[string]int, n)
	for i, f := range files {
		idx[f] = i
	}

	scores := make([]float64, n)
	newScores := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range scores {
		scores[i] = initial
	}

	teleport := make([]float64, n)
	if personalization == nil {
		for i := range teleport {
			teleport[i] = 1.0 / float64(n)
		}
	} else {
		total := 0.0
		for _, f := range files {
			w := personalization[f]
			if w == 0 {
				w = 1.0
			}
			total += w
		}
		for i, f := range files {
			w := personalization[f]
			if w == 0 {
				w = 1.0
			}
			teleport[i] = w / total
		}
	}

	incoming := make([][]int, n)
	outDegree := make([]int, n)
	for i, f := range files {
		outDegree[i] = g.OutDegree(f)
		for _, dependent := range g.Dependents(f) {
			if j, ok := idx[dependent]; ok {
				incoming[i] = append(incoming[i], j)
			}
		}
	}

	damping := s.cfg.Damping
	for iter := 0; iter < s.cfg.Iterations; iter++ {
		danglingSum := 0.0
		for i, deg := range outDegree {
			if deg == 0 {
				danglingSum += scores[i]
			}
		}
		danglingContribution := damping * danglingSum / float64(n)

		for i := 0; i < n; i++ {
			contribution := 0.0
			for _, j := range incoming[i] {
				if outDegree[j] > 0 {
					contribution += scores[j] / float64(outDegree[j])
				}
			}
			newScores[i] = damping*contribution + danglingContribution + (1-damping)*teleport[i]
		}

		maxDiff := 0.0
		for i := range scores {
			diff := math.Abs(scores[i] - newScores[i])
			if diff > maxDiff {
				maxDiff = diff
			}
		}
		scores, newScores = newScores, scores

		if maxDiff < s.cfg.ConvergenceThreshold {
			break
		}
	}

	total := 0.0
	for _, v := range scores {
		total += v
	}
	if total > 0 {
		for i := range scores {
			scores[i] /= total
		}
	}

	out := make(map[string]float64, n)
	for i, f := range files {
		out[f] = scores[i]
	}
	return out
}

// Ranked is one file's PageRank result, used by Rank/RankWithQuery.
type Ranked struct {
	Path  string
	Score float64
}

// Rank scores every file and returns them sorted by descending score.
func (s *Scorer) Rank(g *Graph) []Ranked {
	return sortRanked(s.Compute(g))
}

// RankWithQuery scores with query-focus boosting and returns the result
// sorted by descending score.
func (s *Scorer) RankWithQuery(g *Graph, focusFiles []string) []Ranked {
	return sortRanked(s.ComputeWithQuery(g, focusFiles))
}

func sortRanked(scores map[string]float64) []Ranked {
	out := make([]Ranked, 0, len(scores))
	for p, score := range scores {
		out = append(out, Ranked{Path: p, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Path < out[j].Path
	})
	return out
}

package repomap

import (
	"testing"

	"github.com/ringo380/agentik/internal/config"
)

func TestRankConfigFromEngine(t *testing.T) {
	cfg := config.DefaultRepoMapConfig()
	rc := RankConfigFromEngine(cfg)
	if rc.Damping != cfg.Damping || rc.Iterations != cfg.Iterations || rc.ConvergenceThreshold != cfg.ConvergenceThreshold {
		t.Fatalf("RankConfigFromEngine mismatch: %+v vs %+v", rc, cfg)
	}
}

func TestSerializeConfigFromEngine(t *testing.T) {
	cfg := config.DefaultRepoMapConfig()
	sc := SerializeConfigFromEngine(cfg)
	if sc.TokenBudget != cfg.TokenBudget || sc.IncludeRanks != cfg.IncludeRanks || sc.IncludeSignatures != cfg.IncludeSignatures {
		t.Fatalf("SerializeConfigFromEngine mismatch: %+v vs %+v", sc, cfg)
	}
}

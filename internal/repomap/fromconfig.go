package repomap

import "github.com/ringo380/agentik/internal/config"

// RankConfigFromEngine translates an internal/config.RepoMapConfig's scorer
// fields into a RankConfig.
func RankConfigFromEngine(cfg config.RepoMapConfig) RankConfig {
	return RankConfig{
		Damping:              cfg.Damping,
		Iterations:           cfg.Iterations,
		ConvergenceThreshold: cfg.ConvergenceThreshold,
	}
}

// SerializeConfigFromEngine translates an internal/config.RepoMapConfig's
// serializer fields into a SerializeConfig.
func SerializeConfigFromEngine(cfg config.RepoMapConfig) SerializeConfig {
	return SerializeConfig{
		TokenBudget:       cfg.TokenBudget,
		IncludeRanks:      cfg.IncludeRanks,
		IncludeSignatures: cfg.IncludeSignatures,
		MaxFiles:          cfg.MaxFiles,
		MinRank:           cfg.MinRank,
	}
}

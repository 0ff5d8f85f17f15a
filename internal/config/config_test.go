package config

import (
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

func TestDefaultEngineConfigPopulatesEverySection(t *testing.T) {
	cfg := DefaultEngineConfig()

	if cfg.RepoMap.Damping != 0.85 {
		t.Fatalf("expected default damping 0.85, got %v", cfg.RepoMap.Damping)
	}
	if cfg.RepoMap.Iterations != 100 {
		t.Fatalf("expected default iterations 100, got %v", cfg.RepoMap.Iterations)
	}
	if cfg.RepoMap.ConvergenceThreshold != 1e-6 {
		t.Fatalf("expected default convergence threshold 1e-6, got %v", cfg.RepoMap.ConvergenceThreshold)
	}
	if cfg.SessionStore.BaseDir == "" {
		t.Fatalf("expected a default session store base dir")
	}
	if cfg.SessionStore.ArchiveAfter != 30*24*time.Hour {
		t.Fatalf("expected a 30-day default archive window, got %v", cfg.SessionStore.ArchiveAfter)
	}
	if cfg.Context.MaxContextTokens == 0 {
		t.Fatalf("expected context defaults to be populated")
	}
	if !cfg.Sandbox.AllowShell || !cfg.Sandbox.AllowNetwork {
		t.Fatalf("expected permissive sandbox defaults, got %+v", cfg.Sandbox)
	}
	if cfg.Sandbox.MaxExecutionTime != 2*time.Minute {
		t.Fatalf("expected a 2-minute default execution ceiling, got %v", cfg.Sandbox.MaxExecutionTime)
	}
}

func TestSanitizeEngineConfigFillsZeroValuedSections(t *testing.T) {
	var cfg EngineConfig // fully zero, as if decoded from an empty document

	sanitized := SanitizeEngineConfig(cfg)

	if sanitized.RepoMap.RootPath != "." {
		t.Fatalf("expected root_path to default to \".\", got %q", sanitized.RepoMap.RootPath)
	}
	if sanitized.RepoMap.Damping != 0.85 {
		t.Fatalf("expected damping to default to 0.85, got %v", sanitized.RepoMap.Damping)
	}
	if sanitized.SessionStore.BaseDir != ".agentik/sessions" {
		t.Fatalf("expected default base dir, got %q", sanitized.SessionStore.BaseDir)
	}
}

func TestSanitizeEngineConfigPreservesExplicitValues(t *testing.T) {
	cfg := EngineConfig{
		RepoMap: RepoMapConfig{
			RootPath: "/srv/repo",
			Damping:  0.5,
		},
		SessionStore: SessionStoreConfig{
			BaseDir:      "/var/lib/agentik",
			ArchiveAfter: -1, // invalid, must be clamped to 0
		},
	}

	sanitized := SanitizeEngineConfig(cfg)

	if sanitized.RepoMap.RootPath != "/srv/repo" {
		t.Fatalf("expected explicit root_path to be preserved, got %q", sanitized.RepoMap.RootPath)
	}
	if sanitized.RepoMap.Damping != 0.5 {
		t.Fatalf("expected explicit damping to be preserved, got %v", sanitized.RepoMap.Damping)
	}
	if sanitized.SessionStore.BaseDir != "/var/lib/agentik" {
		t.Fatalf("expected explicit base dir to be preserved, got %q", sanitized.SessionStore.BaseDir)
	}
	if sanitized.SessionStore.ArchiveAfter != 0 {
		t.Fatalf("expected negative archive_after to be clamped to 0, got %v", sanitized.SessionStore.ArchiveAfter)
	}
}

func TestRepoMapConfigYAMLRoundTrip(t *testing.T) {
	maxFiles := 50
	original := RepoMapConfig{
		RootPath:             "/repo",
		IgnorePatterns:       []string{"vendor/**", "**/*.min.js"},
		CachePath:            "/repo/.agentik/repomap.json",
		Damping:              0.85,
		Iterations:           100,
		ConvergenceThreshold: 1e-6,
		TokenBudget:          2048,
		IncludeRanks:         true,
		IncludeSignatures:    false,
		MaxFiles:             &maxFiles,
		MinRank:              0.01,
	}

	data, err := yaml.Marshal(original)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded RepoMapConfig
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if decoded.RootPath != original.RootPath {
		t.Fatalf("expected root_path %q, got %q", original.RootPath, decoded.RootPath)
	}
	if len(decoded.IgnorePatterns) != 2 {
		t.Fatalf("expected 2 ignore patterns, got %v", decoded.IgnorePatterns)
	}
	if decoded.MaxFiles == nil || *decoded.MaxFiles != maxFiles {
		t.Fatalf("expected max_files %d, got %v", maxFiles, decoded.MaxFiles)
	}
	if decoded.MinRank != original.MinRank {
		t.Fatalf("expected min_rank %v, got %v", original.MinRank, decoded.MinRank)
	}
}

func TestRepoMapConfigMaxFilesOmittedWhenNil(t *testing.T) {
	cfg := DefaultRepoMapConfig()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded RepoMapConfig
	if err := yaml.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.MaxFiles != nil {
		t.Fatalf("expected max_files to remain nil through a round trip, got %v", *decoded.MaxFiles)
	}
}

func TestSandboxConfigSanitizedClampsNonPositiveExecutionTime(t *testing.T) {
	cfg := SandboxConfig{MaxExecutionTime: -1}
	if got := cfg.sanitized().MaxExecutionTime; got != 2*time.Minute {
		t.Fatalf("expected a non-positive execution time to clamp to the 2-minute default, got %v", got)
	}
}

func TestSandboxConfigToSandboxCarriesEveryField(t *testing.T) {
	cfg := SandboxConfig{
		AllowedPaths:     []string{"/repo"},
		AllowNetwork:     false,
		AllowShell:       true,
		BlockedCommands:  []string{"curl"},
		MaxExecutionTime: 30 * time.Second,
	}
	sc := cfg.ToSandbox()
	if len(sc.AllowedPaths) != 1 || sc.AllowedPaths[0] != "/repo" {
		t.Fatalf("expected allowed_paths to carry through, got %v", sc.AllowedPaths)
	}
	if sc.AllowNetwork != cfg.AllowNetwork || sc.AllowShell != cfg.AllowShell {
		t.Fatalf("expected allow_network/allow_shell to carry through unchanged")
	}
	if len(sc.BlockedCommands) != 1 || sc.BlockedCommands[0] != "curl" {
		t.Fatalf("expected blocked_commands to carry through, got %v", sc.BlockedCommands)
	}
	if sc.MaxExecutionTime != cfg.MaxExecutionTime {
		t.Fatalf("expected max_execution_time to carry through unchanged")
	}
}

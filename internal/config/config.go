// Package config holds the construction-time configuration structs for the
// engine: permissions, context-compaction tuning, repo-map scoring, and
// session-store layout. It does not read files from disk — loading a config
// document (TOML, `$include` merging, env overlays) is left to the embedding
// CLI; this package only owns the shapes that loader would populate and the
// defaults the engine falls back to when none is supplied.
package config

import (
	"time"

	"github.com/ringo380/agentik/internal/audit"
	ctxmgr "github.com/ringo380/agentik/internal/context"
	"github.com/ringo380/agentik/internal/sandbox"
	"github.com/ringo380/agentik/pkg/models"
)

// EngineConfig bundles every config struct the engine needs at construction
// time. Zero value is not meant to be used directly — call
// DefaultEngineConfig and override individual fields, or pass a
// partially-populated EngineConfig through SanitizeEngineConfig.
type EngineConfig struct {
	Permissions  models.PermissionsConfig `yaml:"permissions"`
	Context      ctxmgr.Config            `yaml:"context"`
	RepoMap      RepoMapConfig            `yaml:"repo_map"`
	SessionStore SessionStoreConfig       `yaml:"session_store"`
	Sandbox      SandboxConfig            `yaml:"sandbox"`
	Audit        audit.Config             `yaml:"audit"`
}

// DefaultEngineConfig returns an EngineConfig with every section's defaults
// applied.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Permissions:  DefaultPermissionsConfig(),
		Context:      ctxmgr.DefaultConfig(),
		RepoMap:      DefaultRepoMapConfig(),
		SessionStore: DefaultSessionStoreConfig(),
		Sandbox:      DefaultSandboxConfig(),
		Audit:        audit.DefaultConfig(),
	}
}

// SanitizeEngineConfig fills in zero-valued fields of the RepoMap,
// SessionStore and Sandbox sections with defaults. Safe to call on a config
// decoded from a partial YAML document. Context is left untouched:
// ctxmgr.NewManager sanitizes its own Config on construction. Permissions
// and Audit are also returned as given.
func SanitizeEngineConfig(cfg EngineConfig) EngineConfig {
	cfg.RepoMap = cfg.RepoMap.sanitized()
	cfg.SessionStore = cfg.SessionStore.sanitized()
	cfg.Sandbox = cfg.Sandbox.sanitized()
	return cfg
}

// SandboxConfig is the YAML-configurable form of the §6.3 tool execution
// sandbox. WorkingDir and AllowedPaths default to the workspace root a
// command is invoked with; see cmd/agentik for how the two are reconciled.
type SandboxConfig struct {
	AllowedPaths     []string      `yaml:"allowed_paths"`
	AllowNetwork     bool          `yaml:"allow_network"`
	AllowShell       bool          `yaml:"allow_shell"`
	BlockedCommands  []string      `yaml:"blocked_commands"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time"`
	RequireApproval  bool          `yaml:"require_approval"`
}

// DefaultSandboxConfig returns a permissive-but-bounded default: shell
// execution is allowed (the agent is a coding assistant), network access is
// allowed, no extra paths or commands are restricted beyond the workspace
// root and the built-in denylist, and calls fall through to the ordinary
// §4.D approval flow rather than forcing approval on every call.
func DefaultSandboxConfig() SandboxConfig {
	return SandboxConfig{
		AllowNetwork:     true,
		AllowShell:       true,
		MaxExecutionTime: 2 * time.Minute,
	}
}

func (c SandboxConfig) sanitized() SandboxConfig {
	if c.MaxExecutionTime <= 0 {
		c.MaxExecutionTime = 2 * time.Minute
	}
	return c
}

// ToSandbox converts the YAML-facing config into the sandbox package's
// runtime Config.
func (c SandboxConfig) ToSandbox() sandbox.Config {
	return sandbox.Config{
		AllowedPaths:     c.AllowedPaths,
		AllowNetwork:     c.AllowNetwork,
		AllowShell:       c.AllowShell,
		BlockedCommands:  c.BlockedCommands,
		MaxExecutionTime: c.MaxExecutionTime,
	}
}

// DefaultPermissionsConfig returns a conservative default: nothing is
// auto-allowed, nothing is auto-denied, and every tool falls through to the
// agent mode's default decision (§4.D).
func DefaultPermissionsConfig() models.PermissionsConfig {
	return models.PermissionsConfig{}
}

// RepoMapConfig configures the dependency-graph PageRank scorer (§4.K) and
// the prompt serializer (§4.M).
type RepoMapConfig struct {
	// RootPath is the repository root to walk and watch.
	RootPath string `yaml:"root_path"`

	// IgnorePatterns are additional doublestar globs excluded from the walk,
	// on top of the repo's own .gitignore rules.
	IgnorePatterns []string `yaml:"ignore_patterns"`

	// CachePath overrides the on-disk cache location. Defaults to
	// "<root>/.agentik/repomap.json" when empty.
	CachePath string `yaml:"cache_path"`

	// Damping, Iterations, and ConvergenceThreshold tune the PageRank
	// power iteration (§4.K).
	Damping              float64 `yaml:"damping"`
	Iterations           int     `yaml:"iterations"`
	ConvergenceThreshold float64 `yaml:"convergence_threshold"`

	// TokenBudget, IncludeRanks, IncludeSignatures, MaxFiles, and MinRank
	// tune the prompt serializer (§4.M). MaxFiles is a pointer because
	// "no limit" (nil) and "zero files" (0) are distinct settings.
	TokenBudget       int      `yaml:"token_budget"`
	IncludeRanks      bool     `yaml:"include_ranks"`
	IncludeSignatures bool     `yaml:"include_signatures"`
	MaxFiles          *int     `yaml:"max_files,omitempty"`
	MinRank           float64  `yaml:"min_rank"`
}

// DefaultRepoMapConfig returns the scorer and serializer defaults named in
// §4.K/§4.M.
func DefaultRepoMapConfig() RepoMapConfig {
	return RepoMapConfig{
		RootPath:             ".",
		Damping:              0.85,
		Iterations:           100,
		ConvergenceThreshold: 1e-6,
		TokenBudget:          4096,
		IncludeRanks:         true,
		IncludeSignatures:    true,
		MinRank:              0,
	}
}

func (c RepoMapConfig) sanitized() RepoMapConfig {
	if c.RootPath == "" {
		c.RootPath = "."
	}
	if c.Damping <= 0 || c.Damping >= 1 {
		c.Damping = 0.85
	}
	if c.Iterations <= 0 {
		c.Iterations = 100
	}
	if c.ConvergenceThreshold <= 0 {
		c.ConvergenceThreshold = 1e-6
	}
	if c.TokenBudget <= 0 {
		c.TokenBudget = 4096
	}
	return c
}

// SessionStoreConfig configures where the session store keeps its SQLite
// index and JSONL transcripts (§4.E, §6.1), and how aggressively Recovery
// archives idle sessions.
type SessionStoreConfig struct {
	// BaseDir is the directory passed to session.Open.
	BaseDir string `yaml:"base_dir"`

	// ArchiveAfter is the idle duration after which
	// Recovery.ArchiveOldSessions transitions a session to Archived.
	// Zero disables automatic archiving.
	ArchiveAfter time.Duration `yaml:"archive_after"`
}

// DefaultSessionStoreConfig returns the default on-disk layout: a
// ".agentik/sessions" directory relative to the working directory, and a
// 30-day archive window.
func DefaultSessionStoreConfig() SessionStoreConfig {
	return SessionStoreConfig{
		BaseDir:      ".agentik/sessions",
		ArchiveAfter: 30 * 24 * time.Hour,
	}
}

func (c SessionStoreConfig) sanitized() SessionStoreConfig {
	if c.BaseDir == "" {
		c.BaseDir = ".agentik/sessions"
	}
	if c.ArchiveAfter < 0 {
		c.ArchiveAfter = 0
	}
	return c
}

// Package repomap exposes the ranked repo map (internal/repomap) as an
// agent-facing tool, so the model can pull a fresh, token-budgeted view of
// the workspace instead of relying only on what's injected at session start.
package repomap

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/ringo380/agentik/internal/repomap"
	"github.com/ringo380/agentik/pkg/models"
)

// Config controls the repo map tool's defaults.
type Config struct {
	Workspace       string
	RankConfig      repomap.RankConfig
	SerializeConfig repomap.SerializeConfig
	IgnorePatterns  []string
}

// Tool renders the workspace's repo map on demand, optionally focused on
// specific files or filtered by a query. It keeps one Builder and rebuilds
// (cheaply, via the builder's cache) on every call rather than caching a
// RepoMap value itself, so edits made mid-session are reflected.
type Tool struct {
	mu      sync.Mutex
	builder *repomap.Builder
	cfg     Config
}

// New creates a repo map tool scoped to cfg.Workspace. It returns an error
// if the underlying parser bundle fails to initialize (see repomap.NewBuilder).
func New(cfg Config) (*Tool, error) {
	builder, err := repomap.NewBuilder(cfg.Workspace, cfg.RankConfig, cfg.IgnorePatterns)
	if err != nil {
		return nil, fmt.Errorf("repomap tool: %w", err)
	}
	return &Tool{builder: builder, cfg: cfg}, nil
}

// Name returns the tool name.
func (t *Tool) Name() string { return "repomap" }

// Description returns the tool description.
func (t *Tool) Description() string {
	return "Return a ranked map of the workspace's source files (symbols, imports, centrality), optionally focused on specific paths or filtered by a query."
}

// Schema returns the JSON schema for the tool parameters.
func (t *Tool) Schema() json.RawMessage {
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"focus": map[string]interface{}{
				"type":        "array",
				"items":       map[string]interface{}{"type": "string"},
				"description": "Repo-relative paths to render in full detail under a Focus Files section.",
			},
			"query": map[string]interface{}{
				"type":        "string",
				"description": "Case-insensitive substring to filter related files by path or symbol name.",
			},
		},
	}
	payload, err := json.Marshal(schema)
	if err != nil {
		return json.RawMessage(`{"type":"object"}`)
	}
	return payload
}

// Category reports this tool's registry grouping.
func (t *Tool) Category() models.ToolCategory { return models.CategoryRepoMap }

// RequiresApproval reports that reading the repo map never needs approval.
func (t *Tool) RequiresApproval() bool { return false }

// IsDestructive reports that the repo map has no side effects.
func (t *Tool) IsDestructive() bool { return false }

// Execute builds (or incrementally refreshes) the repo map and renders it
// for a tool result.
func (t *Tool) Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error) {
	var input struct {
		Focus []string `json:"focus"`
		Query string   `json:"query"`
	}
	if len(params) > 0 {
		if err := json.Unmarshal(params, &input); err != nil {
			return toolError(fmt.Sprintf("Invalid parameters: %v", err)), nil
		}
	}

	t.mu.Lock()
	m, err := t.builder.Build(ctx)
	t.mu.Unlock()
	if err != nil {
		return toolError(fmt.Sprintf("build repo map: %v", err)), nil
	}

	var rendered string
	if len(input.Focus) > 0 || input.Query != "" {
		rendered = repomap.SerializeForTool(m, input.Focus, input.Query, t.cfg.SerializeConfig)
	} else {
		rendered = repomap.Serialize(m, t.cfg.SerializeConfig)
	}

	return toolOK([]byte(rendered)), nil
}

func toolError(message string) *models.ToolResult {
	return &models.ToolResult{Success: false, Error: message, Output: message}
}

func toolOK(payload []byte) *models.ToolResult {
	return &models.ToolResult{Success: true, Output: string(payload)}
}

// Package models defines the core data types shared across the agent loop,
// session store, context manager, and tool layers.
package models

import (
	"encoding/json"
	"time"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType discriminates the kind of content a Part carries.
type PartType string

const (
	PartText       PartType = "text"
	PartImage      PartType = "image"
	PartToolUse    PartType = "tool_use"
	PartToolResult PartType = "tool_result"
)

// Part is one unit of message content. A Message's Content is a slice of
// Parts; a plain-text message has a single PartText part.
type Part struct {
	Type PartType `json:"type"`

	// Text carries PartText content.
	Text string `json:"text,omitempty"`

	// Image carries PartImage content, either a base64 payload or a URL.
	ImageBase64 string `json:"image_base64,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`

	// ToolUse carries PartToolUse content.
	ToolUseID   string          `json:"tool_use_id,omitempty"`
	ToolUseName string          `json:"tool_use_name,omitempty"`
	ToolUseArgs json.RawMessage `json:"tool_use_args,omitempty"`

	// ToolResult carries PartToolResult content.
	ToolResultCallID string `json:"tool_result_call_id,omitempty"`
	ToolResultText   string `json:"tool_result_text,omitempty"`
	ToolResultIsErr  bool   `json:"tool_result_is_error,omitempty"`
}

// NewTextPart builds a PartText part.
func NewTextPart(text string) Part {
	return Part{Type: PartText, Text: text}
}

// Message is the unit of conversation history. Messages are append-only:
// once persisted, a Message is never edited.
//
// Invariant: a Tool-role message's Content contains exactly one
// PartToolResult part whose ToolResultCallID references a ToolCall.ID on a
// prior Assistant message in the same session.
type Message struct {
	ID         string     `json:"id"`
	Role       Role       `json:"role"`
	Content    []Part     `json:"content"`
	Timestamp  time.Time  `json:"timestamp"`
	TokenCount *int       `json:"token_count,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Text concatenates every PartText part's text, in order.
func (m Message) Text() string {
	var out string
	for _, p := range m.Content {
		if p.Type == PartText {
			out += p.Text
		}
	}
	return out
}

// ToolCall is an LLM's request to invoke a tool, unique within the turn
// that produced it.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// ToolResult is the outcome of executing a ToolCall.
//
// Invariant: Success is true if and only if Error is empty.
type ToolResult struct {
	ToolCallID string   `json:"tool_call_id"`
	Success    bool     `json:"success"`
	Output     string   `json:"output"`
	Error      string   `json:"error,omitempty"`
	DurationMS int64    `json:"duration_ms"`
	Artifacts  []string `json:"artifacts,omitempty"`
}

// SessionState is the lifecycle state of a Session.
type SessionState string

const (
	StateActive     SessionState = "active"
	StateCompacting SessionState = "compacting"
	StateSuspended  SessionState = "suspended"
	StateSleeping   SessionState = "sleeping"
	StateArchived   SessionState = "archived"
)

// GitContext records the repository state a session was opened against.
type GitContext struct {
	Branch    string `json:"branch,omitempty"`
	CommitSHA string `json:"commit_sha,omitempty"`
	IsDirty   bool   `json:"is_dirty"`
	RemoteURL string `json:"remote_url,omitempty"`
}

// ModelConfig records which provider/model a session is bound to.
type ModelConfig struct {
	Provider    string  `json:"provider"`
	ModelID     string  `json:"model_id"`
	Temperature float64 `json:"temperature"`
	MaxTokens   int     `json:"max_tokens"`
}

// SessionMetrics accumulates usage counters for a session.
type SessionMetrics struct {
	TokensIn         int64   `json:"tokens_in"`
	TokensOut        int64   `json:"tokens_out"`
	CostUSD          float64 `json:"cost_usd"`
	TurnCount        int     `json:"turn_count"`
	CompactionCount  int     `json:"compaction_count"`
	ToolCalls        int     `json:"tool_calls"`
}

// SessionMetadata is the durable, SQLite-resident record for a Session.
type SessionMetadata struct {
	ID              string         `json:"id"`
	Version         int            `json:"version"`
	State           SessionState   `json:"state"`
	WorkingDirectory string        `json:"working_directory"`
	Title           string         `json:"title,omitempty"`
	Tags            []string       `json:"tags,omitempty"`
	ParentSessionID string         `json:"parent_session_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	LastActiveAt    time.Time      `json:"last_active_at"`
	GitContext      *GitContext    `json:"git_context,omitempty"`
	Metrics         SessionMetrics `json:"metrics"`
	ModelConfig     ModelConfig    `json:"model_config"`
}

// CompactedSummary replaces a prefix of a Session's messages.
type CompactedSummary struct {
	Text              string    `json:"text"`
	KeyDecisions      []string  `json:"key_decisions,omitempty"`
	ModifiedFiles     []string  `json:"modified_files,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	MessagesCompacted int       `json:"messages_compacted"`
}

// Session is the in-memory aggregate of a conversation: its metadata, the
// ordered message history, and any compaction state.
//
// Invariants: 0 <= CompactBoundary <= len(Messages). A non-nil Summary does
// not require CompactBoundary > 0, but a later summary supersedes an
// earlier one and adopts its boundary.
type Session struct {
	Metadata        SessionMetadata   `json:"metadata"`
	Messages        []Message         `json:"messages"`
	Summary         *CompactedSummary `json:"summary,omitempty"`
	CompactBoundary int               `json:"compact_boundary"`
}

// ToolCategory groups tools for registry listing and policy matching.
type ToolCategory string

const (
	CategoryFiles    ToolCategory = "files"
	CategoryShell    ToolCategory = "shell"
	CategorySearch   ToolCategory = "search"
	CategoryGit      ToolCategory = "git"
	CategoryRepoMap  ToolCategory = "repomap"
)

// ToolDefinition describes a tool's contract to the LLM and the executor.
type ToolDefinition struct {
	Name             string         `json:"name"`
	Description      string         `json:"description"`
	Parameters       map[string]any `json:"parameters"`
	Category         ToolCategory   `json:"category"`
	RequiresApproval bool           `json:"requires_approval"`
	IsDestructive    bool           `json:"is_destructive"`
}

// PermissionsConfig governs which tools may run without interactive
// approval.
type PermissionsConfig struct {
	DefaultAllow   []string `json:"default_allow,omitempty"`
	RequireConfirm []string `json:"require_confirm,omitempty"`
	AlwaysDeny     []string `json:"always_deny,omitempty"`
}

// AgentMode governs which tool calls require approval.
type AgentMode string

const (
	ModeAutonomous AgentMode = "autonomous"
	ModePlanning   AgentMode = "planning"
	ModeSupervised AgentMode = "supervised"
	ModeArchitect  AgentMode = "architect"
	ModeAskOnly    AgentMode = "ask_only"
)

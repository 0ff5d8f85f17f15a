package agent

import (
	"context"
	"encoding/json"

	"github.com/ringo380/agentik/pkg/models"
)

// FinishReason explains why a provider stopped generating.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishMaxTokens     FinishReason = "max_tokens"
	FinishToolUse       FinishReason = "tool_use"
	FinishContentFilter FinishReason = "content_filter"
)

// Usage reports token accounting for one completion.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	CachedTokens int `json:"cached_tokens,omitempty"`
}

// LLMProvider is the uniform streaming/non-streaming chat contract over a
// pluggable backend (Anthropic, OpenAI, Bedrock, ...). Providers map their
// SDK's stream events onto StreamChunk; none of them uses internal/sse, and
// callers treat providers as opaque.
//
// Implementations must be safe for concurrent use.
type LLMProvider interface {
	// ID returns a stable machine identifier for the provider (e.g. "anthropic").
	ID() string

	// Name returns a human-readable provider name.
	Name() string

	// AvailableModels returns the models this provider exposes.
	AvailableModels() []Model

	// IsConfigured reports whether the provider has the credentials it
	// needs to make requests.
	IsConfigured() bool

	// Complete performs a single non-streaming completion.
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)

	// CompleteStream performs a streaming completion, delivering chunks as
	// they are produced. The channel is closed when the stream ends or ctx
	// is cancelled.
	CompleteStream(ctx context.Context, req *CompletionRequest) (<-chan StreamChunk, error)
}

// CompletionRequest carries everything a provider needs for one turn.
type CompletionRequest struct {
	Model         string               `json:"model"`
	System        string               `json:"system,omitempty"`
	Messages      []CompletionMessage  `json:"messages"`
	Tools         []models.ToolDefinition `json:"tools,omitempty"`
	MaxTokens     int                  `json:"max_tokens,omitempty"`
	Temperature   float64              `json:"temperature,omitempty"`
	StopSequences []string             `json:"stop_sequences,omitempty"`
}

// CompletionMessage is one message in CompletionRequest.Messages.
type CompletionMessage struct {
	Role        models.Role        `json:"role"`
	Content     string             `json:"content,omitempty"`
	ToolCalls   []models.ToolCall   `json:"tool_calls,omitempty"`
	ToolResults []models.ToolResult `json:"tool_results,omitempty"`
}

// CompletionResponse is a non-streaming completion result.
type CompletionResponse struct {
	Content      string           `json:"content"`
	ToolCalls    []models.ToolCall `json:"tool_calls,omitempty"`
	FinishReason FinishReason     `json:"finish_reason"`
	Usage        Usage            `json:"usage"`
}

// ToolCallDelta is a partial tool-call fragment within a streaming
// response. Fragments for the same Index are concatenated by the caller
// (internal/agent/loop.go) until the call is complete.
type ToolCallDelta struct {
	Index             int    `json:"index"`
	ID                string `json:"id,omitempty"`
	Name              string `json:"name,omitempty"`
	ArgumentsFragment string `json:"arguments_fragment,omitempty"`
}

// StreamChunk is one unit of a streaming completion.
type StreamChunk struct {
	DeltaText     string         `json:"delta_text,omitempty"`
	ToolCallDelta *ToolCallDelta `json:"tool_call_delta,omitempty"`
	IsFinal       bool           `json:"is_final,omitempty"`
	Usage         *Usage         `json:"usage,omitempty"`
	FinishReason  FinishReason   `json:"finish_reason,omitempty"`
	Err           error          `json:"-"`
}

// Model describes an available LLM model and its capabilities.
type Model struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	ContextSize    int    `json:"context_size"`
	SupportsVision bool   `json:"supports_vision"`
}

// Tool is the interface every executable agent tool implements.
type Tool interface {
	// Name returns the tool name for LLM function calling.
	Name() string

	// Description returns a natural-language description of the tool.
	Description() string

	// Schema returns the JSON Schema defining the tool's parameters.
	Schema() json.RawMessage

	// Category groups this tool for registry listing and policy matching.
	Category() models.ToolCategory

	// RequiresApproval reports whether this tool always requires approval
	// regardless of agent mode.
	RequiresApproval() bool

	// IsDestructive reports whether this tool can cause irreversible
	// side effects (file writes, shell execution, ...).
	IsDestructive() bool

	// Execute runs the tool with the given JSON parameters.
	Execute(ctx context.Context, params json.RawMessage) (*models.ToolResult, error)
}

// Definition builds a models.ToolDefinition describing t, for registry
// listing and provider tool-call advertisement.
func Definition(t Tool) models.ToolDefinition {
	var params map[string]any
	_ = json.Unmarshal(t.Schema(), &params)
	return models.ToolDefinition{
		Name:             t.Name(),
		Description:      t.Description(),
		Parameters:       params,
		Category:         t.Category(),
		RequiresApproval: t.RequiresApproval(),
		IsDestructive:    t.IsDestructive(),
	}
}

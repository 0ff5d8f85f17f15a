package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"math"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/ringo380/agentik/internal/agent"
	"github.com/ringo380/agentik/internal/agent/toolconv"
	"github.com/ringo380/agentik/pkg/models"
)

// GoogleProvider implements agent.LLMProvider against Google's Gemini API
// via the genai SDK's GenerateContentStream call.
type GoogleProvider struct {
	client       *genai.Client
	apiKey       string
	maxRetries   int
	retryDelay   time.Duration
	defaultModel string
	base         BaseProvider
}

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	APIKey       string
	MaxRetries   int
	RetryDelay   time.Duration
	DefaultModel string
}

// NewGoogleProvider constructs a provider, applying defaults for unset
// optional fields.
func NewGoogleProvider(config GoogleConfig) (*GoogleProvider, error) {
	if config.APIKey == "" {
		return nil, errors.New("google: API key is required")
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = 3
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = time.Second
	}
	if config.DefaultModel == "" {
		config.DefaultModel = "gemini-2.0-flash"
	}

	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("google: failed to create client: %w", err)
	}

	return &GoogleProvider{
		client:       client,
		apiKey:       config.APIKey,
		maxRetries:   config.MaxRetries,
		retryDelay:   config.RetryDelay,
		defaultModel: config.DefaultModel,
		base:         NewBaseProvider("google", config.MaxRetries, config.RetryDelay),
	}, nil
}

func (p *GoogleProvider) ID() string         { return "google" }
func (p *GoogleProvider) Name() string       { return "Google Gemini" }
func (p *GoogleProvider) IsConfigured() bool { return p.apiKey != "" }

// AvailableModels lists the Gemini models commonly available through the
// Gemini API.
func (p *GoogleProvider) AvailableModels() []agent.Model {
	return []agent.Model{
		{ID: "gemini-2.0-flash", Name: "Gemini 2.0 Flash", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-2.0-flash-lite", Name: "Gemini 2.0 Flash Lite", ContextSize: 1000000, SupportsVision: true},
		{ID: "gemini-1.5-pro", Name: "Gemini 1.5 Pro", ContextSize: 2000000, SupportsVision: true},
		{ID: "gemini-1.5-flash", Name: "Gemini 1.5 Flash", ContextSize: 1000000, SupportsVision: true},
	}
}

// Complete performs a single non-streaming completion by draining
// CompleteStream.
func (p *GoogleProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
	chunks, err := p.CompleteStream(ctx, req)
	if err != nil {
		return nil, err
	}

	var text strings.Builder
	toolCalls := map[int]*models.ToolCall{}
	resp := &agent.CompletionResponse{FinishReason: agent.FinishStop}

	for chunk := range chunks {
		if chunk.Err != nil {
			return nil, chunk.Err
		}
		if chunk.DeltaText != "" {
			text.WriteString(chunk.DeltaText)
		}
		if d := chunk.ToolCallDelta; d != nil {
			tc, ok := toolCalls[d.Index]
			if !ok {
				tc = &models.ToolCall{}
				toolCalls[d.Index] = tc
			}
			if d.ID != "" {
				tc.ID = d.ID
			}
			if d.Name != "" {
				tc.Name = d.Name
			}
			tc.Arguments = json.RawMessage(string(tc.Arguments) + d.ArgumentsFragment)
		}
		if chunk.FinishReason != "" {
			resp.FinishReason = chunk.FinishReason
		}
	}

	resp.Content = text.String()
	for i := 0; i < len(toolCalls); i++ {
		if tc := toolCalls[i]; tc != nil {
			resp.ToolCalls = append(resp.ToolCalls, *tc)
		}
	}
	return resp, nil
}

// CompleteStream issues a GenerateContentStream request. The stream is
// opened lazily, so setup itself cannot fail here and is never retried;
// errors surface while iterating and end the stream as an error chunk.
func (p *GoogleProvider) CompleteStream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("google", req.Model, errors.New("google client not initialized"))
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	contents := p.convertMessages(req.Messages)
	config := p.buildConfig(req)

	var streamIter iter.Seq2[*genai.GenerateContentResponse, error]
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		streamIter = p.client.Models.GenerateContentStream(ctx, model, contents, config)
		return nil
	})
	if err != nil {
		if p.isRetryableError(err) {
			return nil, fmt.Errorf("google: max retries exceeded: %w", err)
		}
		return nil, p.wrapError(err, model)
	}

	chunks := make(chan agent.StreamChunk)
	go p.processStream(ctx, streamIter, chunks, model)
	return chunks, nil
}

func (p *GoogleProvider) processStream(ctx context.Context, streamIter iter.Seq2[*genai.GenerateContentResponse, error], chunks chan<- agent.StreamChunk, model string) {
	defer close(chunks)

	toolIndex := -1
	sawToolCalls := false

	for resp, err := range streamIter {
		select {
		case <-ctx.Done():
			chunks <- agent.StreamChunk{Err: ctx.Err(), IsFinal: true}
			return
		default:
		}

		if err != nil {
			chunks <- agent.StreamChunk{Err: p.wrapError(err, model), IsFinal: true}
			return
		}
		if resp == nil {
			continue
		}

		for _, candidate := range resp.Candidates {
			if candidate == nil || candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part == nil {
					continue
				}
				if part.Text != "" {
					chunks <- agent.StreamChunk{DeltaText: part.Text}
				}
				if part.FunctionCall != nil {
					argsJSON, jsonErr := json.Marshal(part.FunctionCall.Args)
					if jsonErr != nil {
						argsJSON = []byte("{}")
					}
					toolIndex++
					sawToolCalls = true
					chunks <- agent.StreamChunk{ToolCallDelta: &agent.ToolCallDelta{
						Index:             toolIndex,
						ID:                generateToolCallID(part.FunctionCall.Name),
						Name:              part.FunctionCall.Name,
						ArgumentsFragment: string(argsJSON),
					}}
				}
			}
		}
	}

	finish := agent.FinishStop
	if sawToolCalls {
		finish = agent.FinishToolUse
	}
	chunks <- agent.StreamChunk{IsFinal: true, FinishReason: finish}
}

// convertMessages converts internal messages to Gemini's Content format.
// Tool calls/results round-trip through FunctionCall/FunctionResponse parts.
func (p *GoogleProvider) convertMessages(messages []agent.CompletionMessage) []*genai.Content {
	var result []*genai.Content

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		content := &genai.Content{Role: genai.RoleUser}
		if msg.Role == models.RoleAssistant {
			content.Role = genai.RoleModel
		}

		if msg.Content != "" {
			content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
		}

		for _, tc := range msg.ToolCalls {
			var args map[string]any
			if err := json.Unmarshal(tc.Arguments, &args); err != nil {
				args = make(map[string]any)
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionCall: &genai.FunctionCall{Name: tc.Name, Args: args},
			})
		}

		for _, tr := range msg.ToolResults {
			response := map[string]any{"result": tr.Output}
			if tr.Error != "" {
				response["error"] = tr.Error
			}
			content.Parts = append(content.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					Name:     toolNameFromCallID(tr.ToolCallID, messages),
					Response: response,
				},
			})
		}

		if len(content.Parts) > 0 {
			result = append(result, content)
		}
	}

	return result
}

func (p *GoogleProvider) buildConfig(req *agent.CompletionRequest) *genai.GenerateContentConfig {
	config := &genai.GenerateContentConfig{}

	if req.System != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.System}}}
	}
	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		// #nosec G115 -- bounded by min above
		config.MaxOutputTokens = int32(maxTokens)
	}
	if len(req.Tools) > 0 {
		config.Tools = toolconv.ToGeminiTools(req.Tools)
	}

	return config
}

func (p *GoogleProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if providerErr, ok := GetProviderError(err); ok {
		return providerErr.Reason.IsRetryable()
	}
	errMsg := strings.ToLower(err.Error())
	if strings.Contains(errMsg, "resource exhausted") || strings.Contains(errMsg, "quota") {
		return true
	}
	return IsRetryable(err)
}

func (p *GoogleProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	return NewProviderError("google", model, err)
}

// generateToolCallID synthesizes a tool call id; Gemini doesn't assign one.
func generateToolCallID(name string) string {
	return fmt.Sprintf("call_%s_%d", name, time.Now().UnixNano())
}

// toolNameFromCallID recovers the tool name a ToolResult belongs to by
// scanning prior messages for the matching ToolCall, falling back to
// parsing the synthesized "call_<name>_<ts>" id format.
func toolNameFromCallID(toolCallID string, messages []agent.CompletionMessage) string {
	for _, msg := range messages {
		for _, tc := range msg.ToolCalls {
			if tc.ID == toolCallID {
				return tc.Name
			}
		}
	}
	parts := strings.Split(toolCallID, "_")
	if len(parts) >= 2 {
		return parts[1]
	}
	return ""
}

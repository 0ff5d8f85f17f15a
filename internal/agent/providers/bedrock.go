package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/document"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"

	"github.com/ringo380/agentik/internal/agent"
	discoverybedrock "github.com/ringo380/agentik/internal/providers/bedrock"
	"github.com/ringo380/agentik/internal/agent/toolconv"
	"github.com/ringo380/agentik/pkg/models"
)

// BedrockProvider implements agent.LLMProvider against AWS Bedrock's
// Converse/ConverseStream API, giving access to any foundation model the
// account has enabled (Claude, Titan, Llama, Mistral, Cohere, ...).
type BedrockProvider struct {
	client          *bedrockruntime.Client
	defaultModel    string
	maxRetries      int
	retryDelay      time.Duration
	region          string
	base            BaseProvider
	discovered      []agent.Model
	accessKeyID     string
	secretAccessKey string
	sessionToken    string
}

// BedrockConfig configures a BedrockProvider.
type BedrockConfig struct {
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string
	DefaultModel    string
	MaxRetries      int
	RetryDelay      time.Duration
}

// NewBedrockProvider constructs a provider, loading AWS credentials from
// the explicit config fields if given, otherwise the default chain.
func NewBedrockProvider(cfg BedrockConfig) (*BedrockProvider, error) {
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = time.Second
	}
	if cfg.DefaultModel == "" {
		cfg.DefaultModel = "anthropic.claude-3-sonnet-20240229-v1:0"
	}

	var awsCfg aws.Config
	var err error
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		awsCfg, err = config.LoadDefaultConfig(context.Background(),
			config.WithRegion(cfg.Region),
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.AccessKeyID, cfg.SecretAccessKey, cfg.SessionToken,
			)),
		)
	} else {
		awsCfg, err = config.LoadDefaultConfig(context.Background(), config.WithRegion(cfg.Region))
	}
	if err != nil {
		return nil, fmt.Errorf("bedrock: failed to load AWS config: %w", err)
	}

	return &BedrockProvider{
		client:          bedrockruntime.NewFromConfig(awsCfg),
		defaultModel:    cfg.DefaultModel,
		maxRetries:      cfg.MaxRetries,
		retryDelay:      cfg.RetryDelay,
		region:          cfg.Region,
		base:            NewBaseProvider("bedrock", cfg.MaxRetries, cfg.RetryDelay),
		accessKeyID:     cfg.AccessKeyID,
		secretAccessKey: cfg.SecretAccessKey,
		sessionToken:    cfg.SessionToken,
	}, nil
}

func (p *BedrockProvider) ID() string         { return "bedrock" }
func (p *BedrockProvider) Name() string       { return "AWS Bedrock" }
func (p *BedrockProvider) IsConfigured() bool { return p.client != nil }

// RefreshModels queries the Bedrock ListFoundationModels API and caches the
// result; subsequent AvailableModels calls return the live list instead of
// the static fallback until the process restarts.
func (p *BedrockProvider) RefreshModels(ctx context.Context) error {
	models, err := discoverybedrock.DiscoverModels(ctx, &discoverybedrock.DiscoveryConfig{
		Region:          p.region,
		AccessKeyID:     p.accessKeyID,
		SecretAccessKey: p.secretAccessKey,
		SessionToken:    p.sessionToken,
	})
	if err != nil {
		return fmt.Errorf("bedrock: refresh models: %w", err)
	}
	discovered := make([]agent.Model, 0, len(models))
	for _, m := range models {
		discovered = append(discovered, agent.Model{
			ID:             m.ID,
			Name:           m.Name,
			ContextSize:    m.ContextWindow,
			SupportsVision: containsString(m.Input, "image"),
		})
	}
	p.discovered = discovered
	return nil
}

func containsString(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

// AvailableModels lists the models commonly enabled on Bedrock, preferring
// the live RefreshModels result when available. Actual availability still
// depends on the account's model access grants.
func (p *BedrockProvider) AvailableModels() []agent.Model {
	if len(p.discovered) > 0 {
		return p.discovered
	}
	return []agent.Model{
		{ID: "anthropic.claude-3-opus-20240229-v1:0", Name: "Claude 3 Opus (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "anthropic.claude-3-sonnet-20240229-v1:0", Name: "Claude 3 Sonnet (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "anthropic.claude-3-haiku-20240307-v1:0", Name: "Claude 3 Haiku (Bedrock)", ContextSize: 200000, SupportsVision: true},
		{ID: "amazon.titan-text-express-v1", Name: "Titan Text Express", ContextSize: 8192},
		{ID: "meta.llama3-70b-instruct-v1:0", Name: "Llama 3 70B (Bedrock)", ContextSize: 8192},
		{ID: "mistral.mixtral-8x7b-instruct-v0:1", Name: "Mixtral 8x7B (Bedrock)", ContextSize: 32768},
		{ID: "cohere.command-r-plus-v1:0", Name: "Command R+ (Bedrock)", ContextSize: 128000},
	}
}

// Complete performs a single non-streaming completion by draining
// CompleteStream.
func (p *BedrockProvider) Complete(ctx context.Context, req *agent.CompletionRequest) (*agent.CompletionResponse, error) {
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

// CompleteStream issues a ConverseStream request, retrying stream setup
// with linear backoff on transient failures.
func (p *BedrockProvider) CompleteStream(ctx context.Context, req *agent.CompletionRequest) (<-chan agent.StreamChunk, error) {
	if p.client == nil {
		return nil, NewProviderError("bedrock", req.Model, errors.New("bedrock client not initialized"))
	}

	model := req.Model
	if model == "" {
		model = p.defaultModel
	}

	messages := p.convertMessages(req.Messages)

	converseReq := &bedrockruntime.ConverseStreamInput{
		ModelId:  aws.String(model),
		Messages: messages,
	}

	if req.System != "" {
		converseReq.System = []types.SystemContentBlock{&types.SystemContentBlockMemberText{Value: req.System}}
	}

	if req.MaxTokens > 0 {
		maxTokens := min(req.MaxTokens, math.MaxInt32)
		converseReq.InferenceConfig = &types.InferenceConfiguration{
			// #nosec G115 -- bounded by min above
			MaxTokens: aws.Int32(int32(maxTokens)),
		}
	}

	if len(req.Tools) > 0 {
		converseReq.ToolConfig = toolconv.ToBedrockTools(req.Tools)
	}

	var stream *bedrockruntime.ConverseStreamOutput
	err := p.base.Retry(ctx, p.isRetryableError, func() error {
		s, err := p.client.ConverseStream(ctx, converseReq)
		if err != nil {
			return p.wrapError(err, model)
		}
		stream = s
		return nil
	})
	if err != nil {
		if p.isRetryableError(err) {
			return nil, fmt.Errorf("bedrock: max retries exceeded: %w", err)
		}
		return nil, err
	}

	chunks := make(chan agent.StreamChunk)
	go p.processStream(ctx, stream, chunks, model)
	return chunks, nil
}

func (p *BedrockProvider) processStream(ctx context.Context, stream *bedrockruntime.ConverseStreamOutput, chunks chan<- agent.StreamChunk, model string) {
	defer close(chunks)

	eventStream := stream.GetStream()
	defer eventStream.Close()

	toolIndex := -1
	sawToolCalls := false

	eventChan := eventStream.Events()
	for {
		select {
		case <-ctx.Done():
			chunks <- agent.StreamChunk{Err: ctx.Err(), IsFinal: true}
			return
		case event, ok := <-eventChan:
			if !ok {
				if err := eventStream.Err(); err != nil {
					chunks <- agent.StreamChunk{Err: p.wrapError(err, model), IsFinal: true}
				} else {
					finish := agent.FinishStop
					if sawToolCalls {
						finish = agent.FinishToolUse
					}
					chunks <- agent.StreamChunk{IsFinal: true, FinishReason: finish}
				}
				return
			}

			switch ev := event.(type) {
			case *types.ConverseStreamOutputMemberContentBlockStart:
				if toolUse, ok := ev.Value.Start.(*types.ContentBlockStartMemberToolUse); ok {
					toolIndex++
					sawToolCalls = true
					chunks <- agent.StreamChunk{ToolCallDelta: &agent.ToolCallDelta{
						Index: toolIndex,
						ID:    aws.ToString(toolUse.Value.ToolUseId),
						Name:  aws.ToString(toolUse.Value.Name),
					}}
				}

			case *types.ConverseStreamOutputMemberContentBlockDelta:
				switch delta := ev.Value.Delta.(type) {
				case *types.ContentBlockDeltaMemberText:
					if delta.Value != "" {
						chunks <- agent.StreamChunk{DeltaText: delta.Value}
					}
				case *types.ContentBlockDeltaMemberToolUse:
					if delta.Value.Input != nil {
						chunks <- agent.StreamChunk{ToolCallDelta: &agent.ToolCallDelta{
							Index:             toolIndex,
							ArgumentsFragment: *delta.Value.Input,
						}}
					}
				}

			case *types.ConverseStreamOutputMemberMessageStop:
				finish := agent.FinishStop
				if sawToolCalls {
					finish = agent.FinishToolUse
				}
				chunks <- agent.StreamChunk{IsFinal: true, FinishReason: finish}
				return
			}
		}
	}
}

func (p *BedrockProvider) convertMessages(messages []agent.CompletionMessage) []types.Message {
	result := make([]types.Message, 0, len(messages))

	for _, msg := range messages {
		if msg.Role == models.RoleSystem {
			continue
		}

		var content []types.ContentBlock

		if msg.Content != "" {
			content = append(content, &types.ContentBlockMemberText{Value: msg.Content})
		}

		for _, tr := range msg.ToolResults {
			content = append(content, &types.ContentBlockMemberToolResult{
				Value: types.ToolResultBlock{
					ToolUseId: aws.String(tr.ToolCallID),
					Content:   []types.ToolResultContentBlock{&types.ToolResultContentBlockMemberText{Value: tr.Output}},
				},
			})
		}

		for _, tc := range msg.ToolCalls {
			var inputDoc any
			if err := json.Unmarshal(tc.Arguments, &inputDoc); err != nil {
				inputDoc = map[string]any{}
			}
			content = append(content, &types.ContentBlockMemberToolUse{
				Value: types.ToolUseBlock{
					ToolUseId: aws.String(tc.ID),
					Name:      aws.String(tc.Name),
					Input:     document.NewLazyDocument(inputDoc),
				},
			})
		}

		if len(content) == 0 {
			continue
		}

		role := types.ConversationRoleUser
		if msg.Role == models.RoleAssistant {
			role = types.ConversationRoleAssistant
		}
		result = append(result, types.Message{Role: role, Content: content})
	}

	return result
}

func (p *BedrockProvider) isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if strings.Contains(err.Error(), "ThrottlingException") ||
		strings.Contains(err.Error(), "ServiceUnavailableException") {
		return true
	}
	return IsRetryable(err)
}

func (p *BedrockProvider) wrapError(err error, model string) error {
	if err == nil {
		return nil
	}
	if IsProviderError(err) {
		return err
	}
	return NewProviderError("bedrock", model, err)
}

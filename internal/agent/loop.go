package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ringo380/agentik/internal/compactor"
	ctxmgr "github.com/ringo380/agentik/internal/context"
	"github.com/ringo380/agentik/internal/observability"
	"github.com/ringo380/agentik/internal/session"
	"github.com/ringo380/agentik/internal/tools/policy"
	"github.com/ringo380/agentik/pkg/models"
)

// LoopConfig configures the agentic loop's iteration limit, token budget,
// and context/compaction behavior (§4.N).
type LoopConfig struct {
	// MaxIterations bounds how many stream/tool-execute rounds one turn may
	// take before the loop gives up with ErrMaxIterations.
	// Default: 10.
	MaxIterations int

	// MaxTokens is the default max tokens requested per completion.
	// Default: 4096.
	MaxTokens int

	// DefaultModel and DefaultSystem seed CompletionRequest when the loop
	// isn't told otherwise per call.
	DefaultModel  string
	DefaultSystem string

	// ContextConfig configures the context manager's token accounting and
	// compaction trigger (§4.G).
	ContextConfig ctxmgr.Config

	// FileModifyingTools is passed through to compactor.Extract.
	FileModifyingTools []string

	// SummaryGenerator, when set, drives LLM-backed compaction
	// (compactor.CompactWithLLM). When nil, compaction falls back to
	// compactor.CompactSimple.
	SummaryGenerator compactor.SummaryGenerator

	// ToolResultGuard redacts/truncates tool output before it is persisted
	// or sent back to the provider. Zero value is inactive.
	ToolResultGuard ToolResultGuard

	// PolicyResolver and ToolPolicy, when both set, filter the tool list
	// advertised to the provider each turn down to what the policy allows.
	// The registry itself stays unfiltered — this only shapes what the
	// model is offered to call; PermissionGate still re-checks every actual
	// call against the same kind of policy independently.
	PolicyResolver *policy.Resolver
	ToolPolicy     *policy.Policy
}

// DefaultLoopConfig returns the default loop configuration.
func DefaultLoopConfig() *LoopConfig {
	return &LoopConfig{
		MaxIterations:      10,
		MaxTokens:          4096,
		ContextConfig:      ctxmgr.DefaultConfig(),
		FileModifyingTools: compactor.DefaultFileModifyingTools,
	}
}

func sanitizeLoopConfig(config *LoopConfig) *LoopConfig {
	if config == nil {
		return DefaultLoopConfig()
	}
	cfg := *config
	defaults := DefaultLoopConfig()
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = defaults.MaxIterations
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = defaults.MaxTokens
	}
	if cfg.FileModifyingTools == nil {
		cfg.FileModifyingTools = defaults.FileModifyingTools
	}
	if cfg.ContextConfig.MaxContextTokens <= 0 {
		cfg.ContextConfig = defaults.ContextConfig
	}
	return &cfg
}

// ResponseChunk is one unit streamed out of AgenticLoop.Run: incremental
// assistant text, a tool result as it completes, a compaction notice, a
// terminal error, or a Done marker closing out the turn.
type ResponseChunk struct {
	Text       string
	ToolCall   *models.ToolCall
	ToolResult *models.ToolResult
	Compacted  bool
	Done       bool
	Error      *LoopError
}

// AgenticLoop orchestrates one conversational turn: it loads session state,
// streams a completion, executes any requested tools, persists every
// message as it's produced, and checks the context manager's compaction
// boundary before each round-trip to the provider.
//
// The loop is a small state machine:
//
//	Init → Stream → (no tool calls) → Complete
//	             └→ (tool calls) → ExecuteTools → Continue → Stream (next iteration)
type AgenticLoop struct {
	provider   LLMProvider
	executor   *ToolExecutor
	store      *session.Store
	contextMgr *ctxmgr.Manager
	config     *LoopConfig
}

// NewAgenticLoop creates a loop bound to provider, executor, and the
// session store. If config is nil, DefaultLoopConfig is used.
func NewAgenticLoop(provider LLMProvider, executor *ToolExecutor, store *session.Store, config *LoopConfig) *AgenticLoop {
	config = sanitizeLoopConfig(config)
	return &AgenticLoop{
		provider:   provider,
		executor:   executor,
		store:      store,
		contextMgr: ctxmgr.NewManager(config.ContextConfig),
		config:     config,
	}
}

// SetDefaultModel sets the default model used when a request doesn't name one.
func (l *AgenticLoop) SetDefaultModel(model string) {
	l.config.DefaultModel = model
}

// SetDefaultSystem sets the default system prompt used when a request
// doesn't supply one.
func (l *AgenticLoop) SetDefaultSystem(system string) {
	l.config.DefaultSystem = system
}

// Run loads sessionID, appends userMessage, and drives the loop until the
// turn completes, hits an error, or exhausts MaxIterations. The returned
// channel is closed when the turn ends.
func (l *AgenticLoop) Run(ctx context.Context, sessionID string, userMessage models.Message) (<-chan *ResponseChunk, error) {
	if l.provider == nil {
		return nil, ErrNoProvider
	}
	if l.store == nil {
		return nil, errors.New("agent: no session store configured")
	}

	sess, err := l.store.Get(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("agent: load session %s: %w", sessionID, err)
	}

	ctx = observability.AddSessionID(ctx, sess.Metadata.ID)

	chunks := make(chan *ResponseChunk, 16)
	go func() {
		defer close(chunks)
		l.runTurn(ctx, sess, userMessage, chunks)
	}()
	return chunks, nil
}

func (l *AgenticLoop) runTurn(ctx context.Context, sess *models.Session, userMessage models.Message, chunks chan<- *ResponseChunk) {
	if userMessage.ID == "" {
		userMessage.ID = uuid.NewString()
	}
	if userMessage.Timestamp.IsZero() {
		userMessage.Timestamp = time.Now()
	}

	if err := l.persist(ctx, sess, userMessage); err != nil {
		chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseInit, Cause: err}}
		return
	}

	for iteration := 0; iteration < l.config.MaxIterations; iteration++ {
		select {
		case <-ctx.Done():
			chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseContinue, Iteration: iteration, Cause: ctx.Err()}}
			return
		default:
		}

		if compacted, err := l.maybeCompact(ctx, sess); err != nil {
			chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseInit, Iteration: iteration, Cause: err}}
			return
		} else if compacted {
			chunks <- &ResponseChunk{Compacted: true}
		}

		text, toolCalls, err := l.streamPhase(ctx, sess, chunks)
		if err != nil {
			chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseStream, Iteration: iteration, Cause: err}}
			return
		}

		assistantMsg := models.Message{
			ID:        uuid.NewString(),
			Role:      models.RoleAssistant,
			Content:   []models.Part{models.NewTextPart(text)},
			Timestamp: time.Now(),
			ToolCalls: toolCalls,
		}
		if err := l.persist(ctx, sess, assistantMsg); err != nil {
			chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseStream, Iteration: iteration, Cause: err}}
			return
		}

		if len(toolCalls) == 0 {
			chunks <- &ResponseChunk{Done: true}
			if err := l.store.Touch(ctx, sess.Metadata.ID); err != nil {
				chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseComplete, Iteration: iteration, Cause: err}}
			}
			return
		}

		if err := l.executeToolsPhase(ctx, sess, toolCalls, chunks); err != nil {
			chunks <- &ResponseChunk{Error: &LoopError{Phase: PhaseExecuteTools, Iteration: iteration, Cause: err}}
			return
		}
	}

	chunks <- &ResponseChunk{Error: &LoopError{
		Phase:   PhaseContinue,
		Cause:   ErrMaxIterations,
		Message: fmt.Sprintf("reached max iterations: %d", l.config.MaxIterations),
	}}
}

// persist appends msg to durable storage and the in-memory session so the
// next PrepareContext call sees it.
func (l *AgenticLoop) persist(ctx context.Context, sess *models.Session, msg models.Message) error {
	if _, _, err := l.store.AppendMessage(ctx, sess.Metadata.ID, msg); err != nil {
		return err
	}
	sess.Messages = append(sess.Messages, msg)
	return nil
}

// maybeCompact checks the context manager's usage trigger and, if tripped,
// runs compaction over the messages up to FindCompactionBoundary and
// persists the resulting summary.
func (l *AgenticLoop) maybeCompact(ctx context.Context, sess *models.Session) (bool, error) {
	usage := l.contextMgr.CalculateUsage(sess)
	if !usage.NeedsCompaction {
		return false, nil
	}

	boundary := l.contextMgr.FindCompactionBoundary(sess)
	if boundary.Index <= sess.CompactBoundary || boundary.MessagesToCompact == 0 {
		return false, nil
	}

	toCompact := sess.Messages[sess.CompactBoundary:boundary.Index]

	var newSummary models.CompactedSummary
	var err error
	if l.config.SummaryGenerator != nil {
		newSummary, err = compactor.CompactWithLLM(ctx, toCompact, l.config.SummaryGenerator, summaryText(sess.Summary), l.config.FileModifyingTools, l.config.ContextConfig.MaxContextTokens, time.Now())
	} else {
		newSummary = compactor.CompactSimple(toCompact, l.config.FileModifyingTools, time.Now())
	}
	if err != nil {
		return false, fmt.Errorf("compact messages: %w", err)
	}

	merged := newSummary
	if sess.Summary != nil {
		merged = compactor.MergeSummaries(*sess.Summary, newSummary)
	}

	if err := l.store.ApplyCompaction(ctx, sess.Metadata.ID, merged, boundary.Index); err != nil {
		return false, fmt.Errorf("persist compaction: %w", err)
	}

	sess.Summary = &merged
	sess.CompactBoundary = boundary.Index
	return true, nil
}

func summaryText(s *models.CompactedSummary) string {
	if s == nil {
		return ""
	}
	return s.Text
}

// streamPhase builds the provider request from the current prepared
// context, streams the completion, and reassembles delta text and
// tool-call argument fragments into complete values.
func (l *AgenticLoop) streamPhase(ctx context.Context, sess *models.Session, chunks chan<- *ResponseChunk) (string, []models.ToolCall, error) {
	prepared := l.contextMgr.PrepareContext(sess, l.config.DefaultSystem)

	var tools []models.ToolDefinition
	if l.executor != nil {
		if l.config.PolicyResolver != nil && l.config.ToolPolicy != nil {
			allowed := filterToolsByPolicy(l.config.PolicyResolver, l.config.ToolPolicy, l.executor.registry.AsLLMTools())
			tools = make([]models.ToolDefinition, 0, len(allowed))
			for _, t := range allowed {
				tools = append(tools, Definition(t))
			}
		} else {
			tools = l.executor.registry.Definitions()
		}
	}

	req := &CompletionRequest{
		Model:     l.config.DefaultModel,
		System:    prepared.System,
		Messages:  toCompletionMessages(prepared.Messages),
		Tools:     tools,
		MaxTokens: l.config.MaxTokens,
	}

	stream, err := l.provider.CompleteStream(ctx, req)
	if err != nil {
		return "", nil, err
	}

	var text string
	builders := map[int]*toolCallBuilder{}
	var order []int

	for chunk := range stream {
		if chunk.Err != nil {
			return "", nil, chunk.Err
		}
		if chunk.DeltaText != "" {
			text += chunk.DeltaText
			chunks <- &ResponseChunk{Text: chunk.DeltaText}
		}
		if d := chunk.ToolCallDelta; d != nil {
			b, ok := builders[d.Index]
			if !ok {
				b = &toolCallBuilder{}
				builders[d.Index] = b
				order = append(order, d.Index)
			}
			if d.ID != "" {
				b.id = d.ID
			}
			if d.Name != "" {
				b.name = d.Name
			}
			if d.ArgumentsFragment != "" {
				b.args.WriteString(d.ArgumentsFragment)
			}
		}
		if chunk.IsFinal {
			break
		}
	}

	sort.Ints(order)
	toolCalls := make([]models.ToolCall, 0, len(order))
	for _, idx := range order {
		b := builders[idx]
		args := b.args.String()
		if args == "" {
			args = "{}"
		}
		toolCalls = append(toolCalls, models.ToolCall{
			ID:        b.id,
			Name:      b.name,
			Arguments: json.RawMessage(args),
		})
	}

	return text, toolCalls, nil
}

type toolCallBuilder struct {
	id, name string
	args     strings.Builder
}

// executeToolsPhase runs every tool call (through the PermissionGate when
// the executor has one configured), streams each result as it completes,
// and persists a Tool-role message per call.
func (l *AgenticLoop) executeToolsPhase(ctx context.Context, sess *models.Session, toolCalls []models.ToolCall, chunks chan<- *ResponseChunk) error {
	if l.executor == nil {
		return errors.New("agent: no tool executor configured")
	}

	results := l.executor.ExecuteConcurrently(ctx, toolCalls, nil)
	for _, r := range results {
		call, res := r.ToolCall, l.config.ToolResultGuard.Apply(r.ToolCall.Name, r.Result, nil)
		chunks <- &ResponseChunk{ToolCall: &call, ToolResult: &res}

		toolMsg := models.Message{
			ID:   uuid.NewString(),
			Role: models.RoleTool,
			Content: []models.Part{{
				Type:             models.PartToolResult,
				ToolResultCallID: res.ToolCallID,
				ToolResultText:   toolResultText(res),
				ToolResultIsErr:  !res.Success,
			}},
			Timestamp: time.Now(),
		}
		if err := l.persist(ctx, sess, toolMsg); err != nil {
			return err
		}
	}
	return nil
}

func toolResultText(r models.ToolResult) string {
	if !r.Success && r.Error != "" {
		return r.Error
	}
	return r.Output
}

// toCompletionMessages converts session history into provider-facing
// messages, reconstituting tool-result parts back into
// CompletionMessage.ToolResults.
func toCompletionMessages(messages []models.Message) []CompletionMessage {
	out := make([]CompletionMessage, 0, len(messages))
	for _, m := range messages {
		cm := CompletionMessage{
			Role:      m.Role,
			Content:   m.Text(),
			ToolCalls: m.ToolCalls,
		}
		for _, p := range m.Content {
			if p.Type == models.PartToolResult {
				cm.ToolResults = append(cm.ToolResults, models.ToolResult{
					ToolCallID: p.ToolResultCallID,
					Success:    !p.ToolResultIsErr,
					Output:     p.ToolResultText,
				})
			}
		}
		out = append(out, cm)
	}
	return out
}

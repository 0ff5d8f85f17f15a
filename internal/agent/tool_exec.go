package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/ringo380/agentik/internal/backoff"
	"github.com/ringo380/agentik/internal/observability"
	"github.com/ringo380/agentik/pkg/models"
)

// ToolExecConfig configures tool execution behavior including concurrency,
// timeouts, and retry settings.
type ToolExecConfig struct {
	// Concurrency is the maximum number of concurrent tool executions.
	// Default: 4.
	Concurrency int

	// PerToolTimeout is the timeout for individual tool executions.
	// Default: 30 seconds.
	PerToolTimeout time.Duration

	// MaxAttempts is the number of attempts per tool call (default 1).
	MaxAttempts int

	// RetryBackoff waits between retries when RetryPolicy is nil.
	RetryBackoff time.Duration

	// RetryPolicy, when set, computes a per-attempt exponential backoff with
	// jitter instead of the fixed RetryBackoff duration.
	RetryPolicy *backoff.BackoffPolicy
}

// retryDelay returns how long to wait before the given attempt's retry.
func (c ToolExecConfig) retryDelay(attempt int) time.Duration {
	if c.RetryPolicy != nil {
		return backoff.ComputeBackoff(*c.RetryPolicy, attempt)
	}
	return c.RetryBackoff
}

// DefaultToolExecConfig returns sensible defaults for tool execution with
// 4 concurrent tools and 30 second timeout.
func DefaultToolExecConfig() ToolExecConfig {
	return ToolExecConfig{
		Concurrency:    4,
		PerToolTimeout: 30 * time.Second,
		MaxAttempts:    1,
		RetryBackoff:   0,
	}
}

// ToolExecutor handles concurrent tool execution with timeouts and retry
// logic. When Gate is set, every call is routed through the gate's §4.D
// three-stage permission decision before it reaches the registry; when Gate
// is nil, calls dispatch straight to the registry (used by tests that exercise
// execution mechanics independent of permissions).
type ToolExecutor struct {
	registry *ToolRegistry
	config   ToolExecConfig
	Gate     *PermissionGate
}

// NewToolExecutor creates a new tool executor with the given registry and configuration.
// Default values are applied if config fields are zero.
func NewToolExecutor(registry *ToolRegistry, config ToolExecConfig) *ToolExecutor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 1
	}
	return &ToolExecutor{
		registry: registry,
		config:   config,
	}
}

// WithGate attaches a PermissionGate so every dispatched call is subject to
// the §4.D decision flow, and returns the executor for chaining.
func (e *ToolExecutor) WithGate(gate *PermissionGate) *ToolExecutor {
	e.Gate = gate
	return e
}

// ToolExecResult contains the result of a tool execution including timing and timeout information.
type ToolExecResult struct {
	Index     int
	ToolCall  models.ToolCall
	Result    models.ToolResult
	StartTime time.Time
	EndTime   time.Time
	TimedOut  bool
}

// ExecEventType identifies a tool-lifecycle notification raised during
// batched execution.
type ExecEventType string

const (
	ExecEventStarted   ExecEventType = "started"
	ExecEventRetrying  ExecEventType = "retrying"
	ExecEventTimeout   ExecEventType = "timeout"
	ExecEventFailed    ExecEventType = "failed"
	ExecEventCompleted ExecEventType = "completed"
)

// ExecEvent is one tool-lifecycle notification.
type ExecEvent struct {
	Type       ExecEventType
	ToolName   string
	ToolCallID string
	Attempt    int
	DurationMS int64
}

// EventCallback is a non-blocking callback invoked for tool lifecycle events
// during execution.
type EventCallback func(ExecEvent)

// ExecuteConcurrently executes multiple tool calls with concurrency limits and timeouts.
// Results are returned in the same order as the input tool calls (§4.D batch
// execution: "run all N in parallel and return results in input order").
func (e *ToolExecutor) ExecuteConcurrently(ctx context.Context, toolCalls []models.ToolCall, emit EventCallback) []ToolExecResult {
	results := make([]ToolExecResult, len(toolCalls))

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, tc := range toolCalls {
		wg.Add(1)
		go func(idx int, call models.ToolCall) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ToolExecResult{
					Index:    idx,
					ToolCall: call,
					Result: models.ToolResult{
						ToolCallID: call.ID,
						Success:    false,
						Error:      "context canceled",
					},
				}
				return
			}

			startTime := time.Now()
			var result models.ToolResult
			var timedOut bool
			maxAttempts := e.config.MaxAttempts
			if maxAttempts <= 0 {
				maxAttempts = 1
			}

			for attempt := 1; attempt <= maxAttempts; attempt++ {
				if emit != nil {
					emit(ExecEvent{Type: ExecEventStarted, ToolName: call.Name, ToolCallID: call.ID, Attempt: attempt})
				}

				toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
				toolCtx = observability.AddToolCallID(toolCtx, call.ID)
				result, timedOut = e.executeWithTimeout(toolCtx, call)
				cancel()

				if result.Success {
					break
				}

				if attempt < maxAttempts {
					if emit != nil {
						eventType := ExecEventFailed
						if timedOut {
							eventType = ExecEventTimeout
						}
						emit(ExecEvent{Type: eventType, ToolName: call.Name, ToolCallID: call.ID, Attempt: attempt})
					}
					if delay := e.config.retryDelay(attempt); delay > 0 {
						canceled := false
						select {
						case <-time.After(delay):
						case <-ctx.Done():
							result = models.ToolResult{
								ToolCallID: call.ID,
								Success:    false,
								Error:      "tool execution canceled",
							}
							canceled = true
						}
						if canceled {
							break
						}
					}
				}
			}

			endTime := time.Now()

			results[idx] = ToolExecResult{
				Index:     idx,
				ToolCall:  call,
				Result:    result,
				StartTime: startTime,
				EndTime:   endTime,
				TimedOut:  timedOut,
			}

			if emit != nil {
				eventType := ExecEventCompleted
				if timedOut {
					eventType = ExecEventTimeout
				} else if !result.Success {
					eventType = ExecEventFailed
				}
				emit(ExecEvent{
					Type:       eventType,
					ToolName:   call.Name,
					ToolCallID: call.ID,
					DurationMS: endTime.Sub(startTime).Milliseconds(),
				})
			}
		}(i, tc)
	}

	wg.Wait()
	return results
}

// executeWithTimeout executes a single tool call with timeout handling.
func (e *ToolExecutor) executeWithTimeout(ctx context.Context, call models.ToolCall) (models.ToolResult, bool) {
	type execResult struct {
		result *models.ToolResult
		err    error
	}

	resultChan := make(chan execResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				res := &models.ToolResult{
					ToolCallID: call.ID,
					Success:    false,
					Error:      fmt.Sprintf("tool panicked: %v\n%s", r, stack),
				}
				select {
				case resultChan <- execResult{result: res}:
				default:
				}
			}
		}()

		var result *models.ToolResult
		var err error
		if e.Gate != nil {
			out := e.Gate.Execute(ctx, call)
			result = &out
		} else {
			result, err = e.registry.Execute(ctx, call.Name, call.Arguments)
		}
		select {
		case resultChan <- execResult{result: result, err: err}:
		default:
			runID := observability.GetRunID(ctx)
			sessionID := observability.GetSessionID(ctx)
			slog.Warn(
				"tool execution completed after timeout, result discarded",
				"tool", call.Name,
				"tool_call_id", call.ID,
				"run_id", runID,
				"session_id", sessionID,
			)
		}
	}()

	select {
	case <-ctx.Done():
		var msg string
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			msg = fmt.Sprintf("tool execution timed out after %v", e.config.PerToolTimeout)
		} else {
			msg = "tool execution canceled"
		}
		return models.ToolResult{
			ToolCallID: call.ID,
			Success:    false,
			Error:      msg,
		}, errors.Is(ctx.Err(), context.DeadlineExceeded)
	case res := <-resultChan:
		if res.err != nil {
			return models.ToolResult{
				ToolCallID: call.ID,
				Success:    false,
				Error:      res.err.Error(),
			}, false
		}
		if res.result == nil {
			return models.ToolResult{ToolCallID: call.ID, Success: true}, false
		}
		out := *res.result
		out.ToolCallID = call.ID
		return out, false
	}
}

// ExecuteSequentially executes tool calls one at a time in order.
// Results are returned in the same order as the input calls.
func (e *ToolExecutor) ExecuteSequentially(ctx context.Context, toolCalls []models.ToolCall) []ToolExecResult {
	results := make([]ToolExecResult, len(toolCalls))

	for i, tc := range toolCalls {
		startTime := time.Now()
		maxAttempts := e.config.MaxAttempts
		if maxAttempts <= 0 {
			maxAttempts = 1
		}
		var result models.ToolResult
		var timedOut bool
		for attempt := 1; attempt <= maxAttempts; attempt++ {
			toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
			toolCtx = observability.AddToolCallID(toolCtx, tc.ID)
			result, timedOut = e.executeWithTimeout(toolCtx, tc)
			cancel()
			if result.Success {
				break
			}
			if delay := e.config.retryDelay(attempt); attempt < maxAttempts && delay > 0 {
				stop := false
				select {
				case <-time.After(delay):
				case <-ctx.Done():
					result = models.ToolResult{
						ToolCallID: tc.ID,
						Success:    false,
						Error:      "tool execution canceled",
					}
					stop = true
				}
				if stop {
					break
				}
			}
		}
		endTime := time.Now()

		results[i] = ToolExecResult{
			Index:     i,
			ToolCall:  tc,
			Result:    result,
			StartTime: startTime,
			EndTime:   endTime,
			TimedOut:  timedOut,
		}
	}

	return results
}

// ExecuteSingle executes a single tool call by name with timeout and retry logic.
func (e *ToolExecutor) ExecuteSingle(ctx context.Context, name string, input json.RawMessage) (*models.ToolResult, error) {
	maxAttempts := e.config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
		result, err := e.registry.Execute(toolCtx, name, input)
		cancel()
		if err == nil {
			return result, nil
		}
		lastErr = err
		if delay := e.config.retryDelay(attempt); attempt < maxAttempts && delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}
	return nil, lastErr
}

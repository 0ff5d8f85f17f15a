package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/ringo380/agentik/internal/agent"
	"github.com/ringo380/agentik/internal/agent/providers"
	"github.com/ringo380/agentik/internal/audit"
	cfgpkg "github.com/ringo380/agentik/internal/config"
	"github.com/ringo380/agentik/internal/repomap"
	"github.com/ringo380/agentik/internal/session"
	"github.com/ringo380/agentik/internal/tools/exec"
	"github.com/ringo380/agentik/internal/tools/files"
	repomaptool "github.com/ringo380/agentik/internal/tools/repomap"
	"github.com/ringo380/agentik/pkg/models"
)

func buildRunCmd() *cobra.Command {
	var (
		workspace   string
		sessionID   string
		provider    string
		model       string
		message     string
		mode        string
		systemPrompt string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one turn of the agent loop against a session",
		RunE: func(cmd *cobra.Command, args []string) error {
			msg, err := resolveMessage(cmd.InOrStdin(), message)
			if err != nil {
				return err
			}

			workspace, err = filepath.Abs(workspace)
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}

			engineCfg := cfgpkg.SanitizeEngineConfig(cfgpkg.DefaultEngineConfig())
			store, err := session.Open(filepath.Join(workspace, engineCfg.SessionStore.BaseDir))
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			ctx := cmd.Context()
			sess, err := loadOrCreateSession(ctx, store, sessionID, workspace, provider, model)
			if err != nil {
				return err
			}

			llm, err := buildProvider(provider)
			if err != nil {
				return err
			}

			sandboxCfg := engineCfg.Sandbox
			if len(sandboxCfg.AllowedPaths) == 0 {
				sandboxCfg.AllowedPaths = []string{workspace}
			}

			repoCfg := engineCfg.RepoMap
			repoCfg.RootPath = workspace

			registry := agent.NewToolRegistry()
			if err := registerDefaultTools(registry, workspace, sandboxCfg, repoCfg); err != nil {
				return err
			}

			auditLogger, err := audit.NewLogger(engineCfg.Audit)
			if err != nil {
				return fmt.Errorf("init audit logger: %w", err)
			}
			defer auditLogger.Close()

			executor := agent.NewToolExecutor(registry, agent.DefaultToolExecConfig())
			gate := agent.NewPermissionGate(registry, engineCfg.Permissions, models.AgentMode(mode), nil)
			gate.Audit = agent.AuditFunc(auditLogger)
			gate.Context = &agent.ToolContext{
				WorkingDir:      workspace,
				Sandbox:         sandboxCfg.ToSandbox(),
				RequireApproval: sandboxCfg.RequireApproval,
			}
			executor = executor.WithGate(gate)

			loopCfg := agent.DefaultLoopConfig()
			loopCfg.DefaultModel = sess.Metadata.ModelConfig.ModelID
			loopCfg.DefaultSystem = systemPrompt
			loopCfg.ContextConfig = engineCfg.Context
			if llm.IsConfigured() {
				loopCfg.SummaryGenerator = providerSummaryGenerator{provider: llm, model: sess.Metadata.ModelConfig.ModelID}
			}

			loop := agent.NewAgenticLoop(llm, executor, store, loopCfg)

			chunks, err := loop.Run(ctx, sess.Metadata.ID, models.Message{
				Role:    models.RoleUser,
				Content: []models.Part{models.NewTextPart(msg)},
			})
			if err != nil {
				return fmt.Errorf("run turn: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s\n\n", sess.Metadata.ID)
			for chunk := range chunks {
				if err := renderChunk(out, chunk); err != nil {
					return err
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "Repository working directory")
	cmd.Flags().StringVar(&sessionID, "session", "", "Resume an existing session id (creates a new one if empty)")
	cmd.Flags().StringVar(&provider, "provider", "anthropic", "LLM provider: anthropic, openai, google, or bedrock")
	cmd.Flags().StringVar(&model, "model", "", "Model id override (defaults to the provider's default model)")
	cmd.Flags().StringVarP(&message, "message", "m", "", "User message (reads stdin when omitted)")
	cmd.Flags().StringVar(&mode, "mode", string(models.ModeSupervised), "Agent mode: autonomous, planning, supervised, architect, ask_only")
	cmd.Flags().StringVar(&systemPrompt, "system", "", "System prompt override")

	return cmd
}

func resolveMessage(stdin io.Reader, flagValue string) (string, error) {
	if strings.TrimSpace(flagValue) != "" {
		return flagValue, nil
	}
	scanner := bufio.NewScanner(stdin)
	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read message from stdin: %w", err)
	}
	msg := strings.TrimSpace(strings.Join(lines, "\n"))
	if msg == "" {
		return "", fmt.Errorf("a message is required: pass --message or pipe one on stdin")
	}
	return msg, nil
}

func loadOrCreateSession(ctx context.Context, store *session.Store, sessionID, workspace, provider, model string) (*models.Session, error) {
	if sessionID != "" {
		return store.Get(ctx, sessionID)
	}

	now := time.Now().UTC()
	sess := &models.Session{
		Metadata: models.SessionMetadata{
			ID:               uuid.NewString(),
			Version:          1,
			State:            models.StateActive,
			WorkingDirectory: workspace,
			CreatedAt:        now,
			UpdatedAt:        now,
			LastActiveAt:     now,
			ModelConfig:      models.ModelConfig{Provider: provider, ModelID: model, MaxTokens: 4096},
		},
	}
	if err := store.Create(ctx, sess); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return sess, nil
}

func buildProvider(name string) (agent.LLMProvider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "anthropic":
		p, err := providers.NewAnthropicProvider(providers.AnthropicConfig{APIKey: os.Getenv("ANTHROPIC_API_KEY")})
		if err != nil {
			return nil, fmt.Errorf("anthropic provider: %w", err)
		}
		return p, nil
	case "openai":
		return providers.NewOpenAIProvider(os.Getenv("OPENAI_API_KEY")), nil
	case "google", "gemini":
		p, err := providers.NewGoogleProvider(providers.GoogleConfig{APIKey: os.Getenv("GOOGLE_API_KEY")})
		if err != nil {
			return nil, fmt.Errorf("google provider: %w", err)
		}
		return p, nil
	case "bedrock":
		p, err := providers.NewBedrockProvider(providers.BedrockConfig{
			Region:          os.Getenv("AWS_REGION"),
			AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
			SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		})
		if err != nil {
			return nil, fmt.Errorf("bedrock provider: %w", err)
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
}

func registerDefaultTools(registry *agent.ToolRegistry, workspace string, sandboxCfg cfgpkg.SandboxConfig, repoCfg cfgpkg.RepoMapConfig) error {
	filesCfg := files.Config{Workspace: workspace, MaxReadBytes: 256 * 1024, AllowedPaths: sandboxCfg.AllowedPaths}
	registry.Register(files.NewReadTool(filesCfg))
	registry.Register(files.NewWriteTool(filesCfg))
	registry.Register(files.NewEditTool(filesCfg))
	registry.Register(files.NewApplyPatchTool(filesCfg))

	execManager := exec.NewManagerFromSandbox(workspace, sandboxCfg.ToSandbox())
	registry.Register(exec.NewExecTool("bash", execManager))
	registry.Register(exec.NewProcessTool(execManager))

	repomapTool, err := repomaptool.New(repomaptool.Config{
		Workspace:       workspace,
		RankConfig:      repomap.RankConfigFromEngine(repoCfg),
		SerializeConfig: repomap.SerializeConfigFromEngine(repoCfg),
		IgnorePatterns:  repoCfg.IgnorePatterns,
	})
	if err != nil {
		return fmt.Errorf("init repomap tool: %w", err)
	}
	registry.Register(repomapTool)
	return nil
}

func renderChunk(out io.Writer, chunk *agent.ResponseChunk) error {
	switch {
	case chunk.Error != nil:
		fmt.Fprintf(out, "\n[error] %s\n", chunk.Error.Error())
	case chunk.Text != "":
		fmt.Fprint(out, chunk.Text)
	case chunk.ToolCall != nil:
		fmt.Fprintf(out, "\n[tool] %s(%s)\n", chunk.ToolCall.Name, string(chunk.ToolCall.Arguments))
	case chunk.ToolResult != nil:
		status := "ok"
		if !chunk.ToolResult.Success {
			status = "error"
		}
		fmt.Fprintf(out, "[tool result: %s] %s\n", status, truncateForDisplay(chunk.ToolResult.Output, 400))
	case chunk.Compacted:
		fmt.Fprintln(out, "[compacted session history]")
	case chunk.Done:
		fmt.Fprintln(out)
	}
	return nil
}

func truncateForDisplay(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}

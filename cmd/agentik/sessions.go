package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/ringo380/agentik/internal/config"
	"github.com/ringo380/agentik/internal/session"
	"github.com/ringo380/agentik/pkg/models"
)

// resumeSession picks the exact/prefix/most-recent resolution strategy
// based on the flags a caller passed to the "resume" command.
func resumeSession(ctx context.Context, recovery *session.Recovery, sessionID string, mostRecent bool) (*models.Session, error) {
	if mostRecent {
		return recovery.ResumeMostRecent(ctx)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("pass --session <id> or --most-recent")
	}
	return recovery.SmartResume(ctx, sessionID)
}

func buildSessionsCmd() *cobra.Command {
	var workspace string

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List sessions recorded for this workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := filepath.Abs(workspace)
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}

			engineCfg := cfgpkg.SanitizeEngineConfig(cfgpkg.DefaultEngineConfig())
			store, err := session.Open(filepath.Join(workspace, engineCfg.SessionStore.BaseDir))
			if err != nil {
				return fmt.Errorf("open session store: %w", err)
			}
			defer store.Close()

			sessions, err := store.List(cmd.Context(), session.SessionQuery{WorkingDirectory: workspace, Limit: 50})
			if err != nil {
				return fmt.Errorf("list sessions: %w", err)
			}

			out := cmd.OutOrStdout()
			if len(sessions) == 0 {
				fmt.Fprintln(out, "no sessions recorded for this workspace")
				return nil
			}
			for _, meta := range sessions {
				fmt.Fprintf(out, "%s  %-10s  last active %s\n", meta.ID, meta.State, meta.LastActiveAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "Repository working directory")
	return cmd
}

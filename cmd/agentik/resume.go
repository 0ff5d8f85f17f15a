package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/ringo380/agentik/internal/config"
	"github.com/ringo380/agentik/internal/session"
)

func buildResumeCmd() *cobra.Command {
	var (
		workspace  string
		sessionID  string
		mostRecent bool
	)

	cmd := &cobra.Command{
		Use:   "resume",
		Short: "Resume a session and print its transcript",
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

			recovery := session.NewRecovery(store)
			ctx := cmd.Context()

			result, err := resumeSession(ctx, recovery, sessionID, mostRecent)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session: %s (state=%s, messages=%d)\n\n", result.Metadata.ID, result.Metadata.State, len(result.Messages))
			for _, msg := range result.Messages {
				fmt.Fprintf(out, "[%s] %s\n", msg.Role, msg.Text())
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "Repository working directory")
	cmd.Flags().StringVar(&sessionID, "session", "", "Session id or unambiguous id prefix")
	cmd.Flags().BoolVar(&mostRecent, "most-recent", false, "Resume the most recently active session")

	return cmd
}

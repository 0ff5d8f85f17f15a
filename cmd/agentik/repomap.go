package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	cfgpkg "github.com/ringo380/agentik/internal/config"
	"github.com/ringo380/agentik/internal/repomap"
)

func buildRepomapCmd() *cobra.Command {
	var (
		workspace string
		query     string
		focus     []string
		forTool   bool
	)

	cmd := &cobra.Command{
		Use:   "repomap",
		Short: "Build and print a ranked map of the workspace's source files",
		RunE: func(cmd *cobra.Command, args []string) error {
			workspace, err := filepath.Abs(workspace)
			if err != nil {
				return fmt.Errorf("resolve workspace: %w", err)
			}

			engineCfg := cfgpkg.SanitizeEngineConfig(cfgpkg.DefaultEngineConfig())
			repoCfg := engineCfg.RepoMap
			repoCfg.RootPath = workspace

			builder, err := repomap.NewBuilder(workspace, repomap.RankConfigFromEngine(repoCfg), repoCfg.IgnorePatterns)
			if err != nil {
				return fmt.Errorf("init repo map builder: %w", err)
			}

			m, err := builder.Build(cmd.Context())
			if err != nil {
				return fmt.Errorf("build repo map: %w", err)
			}

			serializeCfg := repomap.SerializeConfigFromEngine(repoCfg)
			out := cmd.OutOrStdout()
			if forTool || query != "" || len(focus) > 0 {
				fmt.Fprint(out, repomap.SerializeForTool(m, focus, query, serializeCfg))
			} else {
				fmt.Fprint(out, repomap.Serialize(m, serializeCfg))
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&workspace, "workspace", "w", ".", "Repository working directory")
	cmd.Flags().StringVar(&query, "query", "", "Filter related files by a case-insensitive substring match")
	cmd.Flags().StringArrayVar(&focus, "focus", nil, "Repo-relative path to render in full detail")
	cmd.Flags().BoolVar(&forTool, "tool", false, "Render in the detailed Focus/Related Files form used for tool results")

	return cmd
}

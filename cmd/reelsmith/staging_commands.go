package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"reelsmith/internal/logging"
	"reelsmith/internal/staging"
)

func newStagingCommand(ctx *commandContext) *cobra.Command {
	stagingCmd := &cobra.Command{
		Use:   "staging",
		Short: "Manage scratch workspaces",
	}

	stagingCmd.AddCommand(newStagingListCommand(ctx))
	stagingCmd.AddCommand(newStagingCleanCommand(ctx))

	return stagingCmd
}

func newStagingListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List run workspaces under the staging directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			stagingDir := cfg.Paths.StagingDir
			dirs, err := staging.ListDirectories(stagingDir)
			if err != nil {
				return fmt.Errorf("list staging directories: %w", err)
			}

			var totalSize int64
			for _, dir := range dirs {
				totalSize += dir.Size
			}
			if ctx.JSONMode() {
				if dirs == nil {
					dirs = []staging.DirInfo{}
				}
				return writeJSON(cmd, map[string]any{
					"staging_dir":      stagingDir,
					"directories":      dirs,
					"total_size_bytes": totalSize,
				})
			}

			out := cmd.OutOrStdout()
			if len(dirs) == 0 {
				fmt.Fprintln(out, "No run workspaces found")
				return nil
			}
			fmt.Fprintf(out, "Staging directory: %s\n\n", stagingDir)
			rows := make([][]string, 0, len(dirs))
			for _, dir := range dirs {
				rows = append(rows, []string{
					truncate(dir.RunID, 36),
					formatDuration(time.Since(dir.ModTime).Truncate(time.Minute)),
					formatBytes(dir.Size),
				})
			}
			fmt.Fprint(out, renderTable(tableLayout{
				Headers: []string{"Run", "Age", "Size"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignLeft, alignRight, alignRight},
				Footer:  []string{fmt.Sprintf("%d workspaces", len(dirs)), "", formatBytes(totalSize)},
			}))
			return nil
		},
	}
}

func newStagingCleanCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration
	var cleanAll bool

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove abandoned run workspaces",
		Long: `Remove run workspaces left behind by crashed or killed processes.

By default only workspaces older than assembly.stale_workspace_hours are
removed. Use --all to remove every workspace; this refuses to run while the
reelsmith service holds its lock.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			maxAge := cfg.StaleWorkspaceAge()
			if olderThan > 0 {
				maxAge = olderThan
			}
			if cleanAll {
				lock := flock.New(cfg.LockPath())
				locked, err := lock.TryLock()
				if err != nil {
					return fmt.Errorf("check service lock: %w", err)
				}
				if !locked {
					return errors.New("reelsmith service is running; stop it before cleaning all workspaces")
				}
				defer func() { _ = lock.Unlock() }()
				maxAge = 0
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				logger = logging.NewNop()
			}
			result := staging.CleanStale(cmd.Context(), cfg.Paths.StagingDir, maxAge, logger)

			if ctx.JSONMode() {
				errs := make([]string, 0, len(result.Errors))
				for _, e := range result.Errors {
					errs = append(errs, fmt.Sprintf("%s: %v", e.Path, e.Error))
				}
				return writeJSON(cmd, map[string]any{
					"removed": len(result.Removed),
					"errors":  errs,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Removed %d workspace(s)\n", len(result.Removed))
			for _, e := range result.Errors {
				fmt.Fprintf(out, "  failed: %s: %v\n", e.Path, e.Error)
			}
			if len(result.Errors) > 0 {
				return fmt.Errorf("%d workspace(s) could not be removed", len(result.Errors))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "Age cutoff (default from assembly.stale_workspace_hours)")
	cmd.Flags().BoolVar(&cleanAll, "all", false, "Remove all workspaces regardless of age")
	return cmd
}

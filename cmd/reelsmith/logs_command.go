package main

import (
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/logs"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var runID string
	var lines int
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent log output, optionally for one run",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			path := cfg.LogFilePath()
			match := logs.MatchRun(runID)
			out := cmd.OutOrStdout()

			var (
				recent []string
				offset int64
			)
			if runID != "" {
				// The last N matches may be anywhere in the file.
				recent, offset, err = logs.ReadFrom(path, 0)
			} else {
				recent, offset, err = logs.Last(path, lines)
			}
			if err != nil {
				return err
			}
			var selected []string
			for _, line := range recent {
				if match(line) {
					selected = append(selected, line)
				}
			}
			if lines > 0 && len(selected) > lines {
				selected = selected[len(selected)-lines:]
			}
			for _, line := range selected {
				fmt.Fprintln(out, line)
			}
			if !follow {
				return nil
			}

			followCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()
			return logs.Follow(followCtx, path, offset, 500*time.Millisecond, func(line string) {
				if match(line) {
					fmt.Fprintln(out, line)
				}
			})
		},
	}
	cmd.Flags().StringVar(&runID, "run", "", "Only show lines for this run id")
	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "Number of lines to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing new lines")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/assembly"
	"reelsmith/internal/runstore"
)

func newRunsCommand(ctx *commandContext) *cobra.Command {
	runsCmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect run history",
	}
	runsCmd.AddCommand(newRunsListCommand(ctx))
	runsCmd.AddCommand(newRunsShowCommand(ctx))
	runsCmd.AddCommand(newRunsPruneCommand(ctx))
	return runsCmd
}

func (c *commandContext) withRunStore(fn func(*runstore.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := runstore.Open(cfg)
	if err != nil {
		return fmt.Errorf("open run store: %w", err)
	}
	defer store.Close()
	return fn(store)
}

func newRunsListCommand(ctx *commandContext) *cobra.Command {
	var statusFlags []string
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses, err := parseStatuses(statusFlags)
			if err != nil {
				return err
			}
			return ctx.withRunStore(func(store *runstore.Store) error {
				runs, err := store.List(cmd.Context(), limit, statuses...)
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.RunListResponse{Runs: api.FromRuns(runs)})
				}
				out := cmd.OutOrStdout()
				if len(runs) == 0 {
					fmt.Fprintln(out, "No runs recorded")
					return nil
				}
				fmt.Fprint(out, renderRunsTable(runs, time.Now()))
				return nil
			})
		},
	}
	cmd.Flags().StringSliceVarP(&statusFlags, "status", "s", nil, "Filter by status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of runs to show (0 for all)")
	return cmd
}

func renderRunsTable(runs []*runstore.Run, now time.Time) string {
	rows := make([][]string, 0, len(runs))
	for _, run := range runs {
		output := run.OutputID
		if output == "" {
			output = "-"
		}
		rows = append(rows, []string{
			truncate(run.ID, 13),
			stageLabel(run.Status),
			truncate(output, 24),
			run.Source,
			strconv.Itoa(run.SentenceCount),
			formatSeconds(run.Seconds),
			formatDuration(run.Elapsed(now).Truncate(time.Second)),
			formatTime(run.CreatedAt),
		})
	}
	return renderTable(tableLayout{
		Headers: []string{"Run", "Status", "Output", "Source", "Sentences", "Length", "Elapsed", "Created"},
		Rows:    rows,
		Aligns:  []columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignRight, alignLeft},
	})
}

func newRunsShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one run in detail",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withRunStore(func(store *runstore.Store) error {
				run, err := store.Get(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if run == nil {
					return fmt.Errorf("run %s not found", args[0])
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, api.RunResponse{Run: api.FromRun(run)})
				}
				printRun(cmd.OutOrStdout(), run, time.Now())
				return nil
			})
		},
	}
}

func printRun(out io.Writer, run *runstore.Run, now time.Time) {
	fmt.Fprintf(out, "Run %s\n", run.ID)
	fmt.Fprintf(out, "  Status:     %s\n", stageLabel(run.Status))
	fmt.Fprintf(out, "  Source:     %s\n", run.Source)
	fmt.Fprintf(out, "  Sentences:  %d\n", run.SentenceCount)
	if run.Audio != "" {
		fmt.Fprintf(out, "  Audio:      %s\n", run.Audio)
	}
	fmt.Fprintf(out, "  Created:    %s\n", formatTime(run.CreatedAt))
	fmt.Fprintf(out, "  Elapsed:    %s\n", formatDuration(run.Elapsed(now).Truncate(time.Second)))
	switch run.Status {
	case assembly.StageDone:
		fmt.Fprintf(out, "  Output:     %s\n", run.OutputPath)
		fmt.Fprintf(out, "  Length:     %s\n", formatSeconds(run.Seconds))
		fmt.Fprintf(out, "  Segments:   %d\n", run.Segments)
		fmt.Fprintf(out, "  Included:   %s\n", joinInts(run.IncludedSentences))
		fmt.Fprintf(out, "  Soundtrack: %s\n", yesNo(run.AudioApplied))
		if run.Degraded {
			fmt.Fprintln(out, "  Degraded:   soundtrack failed; silent video published")
		}
	case assembly.StageFailed:
		fmt.Fprintf(out, "  Failed at:  %s\n", stageLabel(run.FailedStage))
		if run.ErrorClass != "" {
			fmt.Fprintf(out, "  Class:      %s\n", run.ErrorClass)
		}
		fmt.Fprintf(out, "  Error:      %s\n", run.ErrorMessage)
	}
}

func newRunsPruneCommand(ctx *commandContext) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete finished runs older than a cutoff",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return errors.New("--older-than must be positive")
			}
			return ctx.withRunStore(func(store *runstore.Store) error {
				removed, err := store.Prune(cmd.Context(), time.Now().Add(-olderThan))
				if err != nil {
					return err
				}
				if ctx.JSONMode() {
					return writeJSON(cmd, map[string]any{"removed": removed})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Removed %d run(s)\n", removed)
				return nil
			})
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff for finished runs")
	return cmd
}

func parseStatuses(values []string) ([]assembly.Stage, error) {
	var out []assembly.Stage
	for _, value := range values {
		if strings.TrimSpace(value) == "" {
			continue
		}
		stage, ok := assembly.ParseStage(value)
		if !ok {
			return nil, fmt.Errorf("unknown status %q", value)
		}
		out = append(out, stage)
	}
	return out, nil
}

func joinInts(values []int) string {
	if len(values) == 0 {
		return "-"
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}

package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/deps"
	"reelsmith/internal/preflight"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check external binaries and directory readiness",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			statuses := deps.CheckBinaries(deps.TranscodeRequirements(cfg))
			checks := preflight.RunAll(cmd.Context(), cfg)
			missing := deps.MissingRequired(statuses)
			failed := preflight.Failed(checks)

			if ctx.JSONMode() {
				if err := writeJSON(cmd, map[string]any{
					"dependencies": api.FromDependencies(statuses),
					"checks":       api.FromChecks(checks),
				}); err != nil {
					return err
				}
			} else {
				out := cmd.OutOrStdout()
				colorize := shouldColorize(out)
				fmt.Fprintln(out, renderSectionHeader("Dependencies", colorize))
				for _, dep := range statuses {
					kind, message := statusOK, dep.Command
					if !dep.Available {
						kind, message = statusError, dep.Detail
						if dep.Optional {
							kind = statusWarn
						}
					}
					fmt.Fprintln(out, renderStatusLine(dep.Name, kind, message, colorize))
				}
				fmt.Fprintln(out)
				fmt.Fprintln(out, renderSectionHeader("Preflight", colorize))
				for _, check := range checks {
					kind := statusOK
					if !check.Passed {
						kind = statusError
					}
					fmt.Fprintln(out, renderStatusLine(check.Name, kind, check.Detail, colorize))
				}
			}

			if len(missing) > 0 {
				return fmt.Errorf("missing required dependencies: %s", strings.Join(missing, ", "))
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d preflight check(s) failed", len(failed))
			}
			return nil
		},
	}
}

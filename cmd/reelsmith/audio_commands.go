package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"reelsmith/internal/api"
	"reelsmith/internal/fetch"
)

func newAudioCommand(ctx *commandContext) *cobra.Command {
	audioCmd := &cobra.Command{
		Use:   "audio",
		Short: "Inspect the background audio library",
	}
	audioCmd.AddCommand(newAudioListCommand(ctx))
	return audioCmd
}

func newAudioListCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List tracks in paths.audio_dir and the locator to request each one",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			files, err := fetch.ListAudio(cfg.Paths.AudioDir)
			if err != nil {
				return err
			}
			if ctx.JSONMode() {
				return writeJSON(cmd, api.AudioListResponse{Files: api.FromAudioFiles(files)})
			}

			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "No audio tracks found")
				return nil
			}
			fmt.Fprintf(out, "Audio directory: %s\n\n", cfg.Paths.AudioDir)
			rows := make([][]string, 0, len(files))
			var total int64
			for _, f := range files {
				total += f.Size
				rows = append(rows, []string{
					truncate(f.Name, 40),
					f.Locator,
					formatBytes(f.Size),
					formatDuration(time.Since(f.Modified).Truncate(time.Minute)),
				})
			}
			fmt.Fprint(out, renderTable(tableLayout{
				Headers: []string{"Name", "Locator", "Size", "Age"},
				Rows:    rows,
				Aligns:  []columnAlignment{alignLeft, alignLeft, alignRight, alignRight},
				Footer:  []string{fmt.Sprintf("%d tracks", len(files)), "", formatBytes(total), ""},
			}))
			return nil
		},
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"reelsmith/internal/api"
	"reelsmith/internal/assembly"
	"reelsmith/internal/runstore"
	"reelsmith/internal/services"
)

const sourceCLI = "cli"

func newAssembleCommand(ctx *commandContext) *cobra.Command {
	var outputID string
	var audio string
	var videoOnly bool

	cmd := &cobra.Command{
		Use:   "assemble <request-file>",
		Short: "Assemble one video from a JSON or YAML request (use - for stdin)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			req, err := readRequest(args[0], cmd.InOrStdin())
			if err != nil {
				return err
			}
			if v := strings.TrimSpace(outputID); v != "" {
				req.OutputID = v
			}
			if v := strings.TrimSpace(audio); v != "" {
				req.Audio = v
			}
			if videoOnly {
				req.AcceptVideoOnly = true
			}
			if err := req.Validate(); err != nil {
				return err
			}

			logger, err := ctx.newLogger(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			defer store.Close()

			runCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			result, runErr := newPipeline(runCtx, cfg, store, logger).assembler(sourceCLI).Run(runCtx, req)
			if ctx.JSONMode() {
				if err := writeJSON(cmd, api.NewSubmitResponse(result, runErr)); err != nil {
					return err
				}
				return runErr
			}
			if runErr != nil {
				return fmt.Errorf("assembly failed at %s (%s): %w",
					stageLabel(assembly.FailedStage(runErr)), services.Classify(runErr), runErr)
			}
			printResult(cmd.OutOrStdout(), result)
			return nil
		},
	}
	cmd.Flags().StringVar(&outputID, "output-id", "", "Override the request's output id")
	cmd.Flags().StringVar(&audio, "audio", "", "Override the request's soundtrack")
	cmd.Flags().BoolVar(&videoOnly, "accept-video-only", false, "Publish the silent video if the soundtrack cannot be applied")
	return cmd
}

// readRequest decodes a request file. .json files are decoded strictly as
// JSON; everything else, including stdin, is decoded as YAML, which also
// accepts JSON documents.
func readRequest(path string, stdin io.Reader) (assembly.Request, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return assembly.Request{}, fmt.Errorf("read request: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return assembly.Request{}, errors.New("request file is empty")
	}

	var req assembly.Request
	if strings.EqualFold(filepath.Ext(path), ".json") {
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&req); err != nil {
			return assembly.Request{}, fmt.Errorf("parse request %s: %w", path, err)
		}
		return req, nil
	}
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&req); err != nil {
		return assembly.Request{}, fmt.Errorf("parse request %s: %w", path, err)
	}
	return req, nil
}

func printResult(out io.Writer, result assembly.Result) {
	fmt.Fprintf(out, "Published %s\n", result.Path)
	fmt.Fprintf(out, "  Run:        %s\n", result.RunID)
	fmt.Fprintf(out, "  Duration:   %.2fs\n", result.Seconds)
	fmt.Fprintf(out, "  Segments:   %d across %d sentences\n", result.Segments, len(result.Sentences))
	fmt.Fprintf(out, "  Soundtrack: %s\n", yesNo(result.AudioApplied))
	if result.PlanScaled {
		fmt.Fprintln(out, "  Note: sentence durations were scaled down to fit the length cap")
	}
	if result.Degraded {
		fmt.Fprintln(out, "  Warning: soundtrack failed; the silent video was published")
	}
}

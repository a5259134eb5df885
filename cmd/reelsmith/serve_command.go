package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"reelsmith/internal/daemon"
	"reelsmith/internal/deps"
	"reelsmith/internal/logging"
	"reelsmith/internal/runstore"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and Kafka intake in the foreground",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if missing := deps.MissingRequired(deps.CheckBinaries(deps.TranscodeRequirements(cfg))); len(missing) > 0 {
				logging.WarnWithContext(logger, "required binaries missing", "dependency_missing",
					logging.Any("missing", missing),
					logging.String(logging.FieldErrorHint, "install ffmpeg or set transcode.ffmpeg_binary"),
					logging.String(logging.FieldImpact, "runs fail at the normalizing stage"),
				)
			}

			store, err := runstore.Open(cfg)
			if err != nil {
				return fmt.Errorf("open run store: %w", err)
			}
			d, err := daemon.New(cfg, store, newPipeline(signalCtx, cfg, store, logger).runnerFactory(), logger)
			if err != nil {
				_ = store.Close()
				return err
			}
			defer d.Close()

			if err := d.Start(signalCtx); err != nil {
				return err
			}
			<-signalCtx.Done()
			logger.Info("shutdown requested")
			return nil
		},
	}
}

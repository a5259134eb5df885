package main

import (
	"context"
	"log/slog"

	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/daemon"
	"reelsmith/internal/fetch"
	"reelsmith/internal/logging"
	"reelsmith/internal/notifications"
	"reelsmith/internal/runstore"
	"reelsmith/internal/transcode"
)

// pipeline holds the shared collaborators every assembler is built from.
type pipeline struct {
	cfg      *config.Config
	store    *runstore.Store
	engine   transcode.Engine
	fetcher  assembly.Fetcher
	notifier notifications.Notifier
	logger   *slog.Logger
}

func newPipeline(ctx context.Context, cfg *config.Config, store *runstore.Store, logger *slog.Logger) *pipeline {
	objects, err := fetch.NewS3Objects(ctx, cfg.S3)
	if err != nil {
		logging.WarnWithContext(logger, "s3 client unavailable", "s3_client_unavailable",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check AWS credentials and the [s3] config section"),
			logging.String(logging.FieldImpact, "s3:// clips and audio cannot be fetched"),
		)
	}
	var getter fetch.ObjectGetter
	if objects != nil {
		getter = objects
	}
	return &pipeline{
		cfg:      cfg,
		store:    store,
		engine:   transcode.NewFFmpeg(transcode.OptionsFromConfig(cfg), logger),
		fetcher:  fetch.New(fetch.OptionsFromConfig(cfg), getter, logger),
		notifier: notifications.NewNotifier(cfg),
		logger:   logger,
	}
}

// assembler returns an assembler whose runs are recorded under source and,
// when a topic is configured, announced on ntfy.
func (p *pipeline) assembler(source string) *assembly.Assembler {
	a := assembly.New(assembly.OptionsFromConfig(p.cfg), p.engine, p.fetcher, p.logger)
	if p.store != nil {
		a.WithReporter(p.store.Reporter(source))
	}
	if notifications.Enabled(p.notifier) {
		n := p.cfg.Notifications
		a.WithReporter(notifications.NewReporter(p.notifier, source, n.OnSuccess, n.OnFailure))
	}
	return a
}

func (p *pipeline) runnerFactory() daemon.RunnerFactory {
	return func(source string) daemon.Runner {
		return p.assembler(source)
	}
}

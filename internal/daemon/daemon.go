package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gofrs/flock"

	"reelsmith/internal/assembly"
	"reelsmith/internal/config"
	"reelsmith/internal/deps"
	"reelsmith/internal/intake"
	"reelsmith/internal/logging"
	"reelsmith/internal/preflight"
	"reelsmith/internal/runstore"
	"reelsmith/internal/staging"
)

// Runner executes one assembly request.
type Runner interface {
	Run(ctx context.Context, req assembly.Request) (assembly.Result, error)
}

// RunnerFactory returns a Runner whose runs are recorded with source.
type RunnerFactory func(source string) Runner

// Run sources recorded in run history.
const (
	SourceAPI   = "api"
	SourceKafka = "kafka"
)

// Daemon coordinates the background services and enforces single-instance execution.
type Daemon struct {
	cfg       *config.Config
	logger    *slog.Logger
	store     *runstore.Store
	newRunner RunnerFactory

	lockPath string
	lock     *flock.Flock

	mu       sync.Mutex
	running  atomic.Bool
	cancel   context.CancelFunc
	server   *apiServer
	consumer *intake.Consumer
}

// Status represents daemon runtime information.
type Status struct {
	Running       bool
	PID           int
	RunStorePath  string
	LockFilePath  string
	IntakeEnabled bool
	Summary       runstore.Summary
	Dependencies  []deps.Status
	Checks        []preflight.Result
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, store *runstore.Store, newRunner RunnerFactory, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || store == nil || newRunner == nil {
		return nil, errors.New("daemon requires config, run store, and runner factory")
	}
	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:       cfg,
		logger:    logging.NewComponentLogger(logger, "daemon"),
		store:     store,
		newRunner: newRunner,
		lockPath:  lockPath,
		lock:      flock.New(lockPath),
	}, nil
}

// Start acquires the service lock, recovers interrupted runs, and starts the
// HTTP API and Kafka intake.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	if err := d.cfg.EnsureDirectories(); err != nil {
		return err
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reelsmith service is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	if err := d.startServices(runCtx); err != nil {
		cancel()
		d.stopServices()
		_ = d.lock.Unlock()
		return err
	}
	d.cancel = cancel
	d.running.Store(true)
	d.logger.Info("reelsmith service started",
		logging.String("lock", d.lockPath),
		logging.String("api_bind", d.cfg.Paths.APIBind),
		logging.Bool("kafka_intake", d.cfg.Kafka.Enabled),
	)
	return nil
}

func (d *Daemon) startServices(ctx context.Context) error {
	if reset, err := d.store.ResetInterrupted(ctx, SourceAPI, SourceKafka); err != nil {
		return fmt.Errorf("recover interrupted runs: %w", err)
	} else if reset > 0 {
		logging.WarnWithContext(d.logger, "marked interrupted runs as failed", "runs_interrupted",
			logging.Int64("count", reset),
			logging.String(logging.FieldErrorHint, "resubmit the affected requests"),
			logging.String(logging.FieldImpact, "interrupted runs produced no video"),
		)
	}
	staging.CleanStale(ctx, d.cfg.Paths.StagingDir, d.cfg.StaleWorkspaceAge(), d.logger)

	server, err := newAPIServer(d.cfg, d, d.logger)
	if err != nil {
		return err
	}
	if err := server.start(ctx); err != nil {
		return err
	}
	d.server = server

	if d.cfg.Kafka.Enabled {
		handler := intake.NewHandler(d.newRunner(SourceKafka), d.logger)
		consumer, err := intake.NewConsumer(d.cfg.Kafka, handler, d.logger)
		if err != nil {
			return fmt.Errorf("kafka intake: %w", err)
		}
		d.consumer = consumer
		if err := consumer.Start(ctx); err != nil {
			return fmt.Errorf("start kafka intake: %w", err)
		}
	}
	return nil
}

func (d *Daemon) stopServices() {
	if d.server != nil {
		d.server.stop()
		d.server = nil
	}
	if d.consumer != nil {
		if err := d.consumer.Close(); err != nil {
			d.logger.Warn("failed to close kafka intake", logging.Error(err))
		}
		d.consumer = nil
	}
}

// Stop stops background services and releases the lock.
func (d *Daemon) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.running.Load() {
		return
	}
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.stopServices()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release service lock", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("reelsmith service stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Addr returns the API listen address, or "" when the API is not serving.
func (d *Daemon) Addr() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.server == nil || d.server.listener == nil {
		return ""
	}
	return d.server.listener.Addr().String()
}

// Status returns the current daemon status.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:       d.running.Load(),
		PID:           os.Getpid(),
		RunStorePath:  d.store.Path(),
		LockFilePath:  d.lockPath,
		IntakeEnabled: d.cfg.Kafka.Enabled,
		Dependencies:  deps.CheckBinaries(deps.TranscodeRequirements(d.cfg)),
		Checks:        preflight.RunAll(ctx, d.cfg),
	}
	summary, err := d.store.Summary(ctx)
	if err != nil {
		d.logger.Warn("run summary unavailable", logging.Error(err))
	}
	status.Summary = summary
	return status
}

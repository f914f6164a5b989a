// Package daemon runs the long-lived build trigger service: the HTTP gateway,
// the optional periodic trigger and the configuration watcher.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/events"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/metrics"
	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
	"git.home.luguber.info/inful/buildtrigger/internal/server"
)

// Status represents the current state of the daemon.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// scheduledJobName identifies the periodic trigger in the scheduler.
const scheduledJobName = "scheduled-build"

// Daemon owns every long-lived component of the service.
type Daemon struct {
	config     *config.Config
	configPath string
	status     atomic.Value // Status
	startTime  time.Time
	stopChan   chan struct{}
	stopOnce   sync.Once
	mu         sync.RWMutex

	runLog        *runlog.RunLog
	orchestrator  *pipeline.Orchestrator
	publisher     events.Publisher
	httpServer    *server.Server
	scheduler     *Scheduler
	scheduleJobID string
	configWatcher *ConfigWatcher

	// runCtx is the context scheduled runs execute under; set by Start.
	runCtx context.Context
}

// New wires a daemon from cfg. configPath enables the config watcher when non-empty.
func New(cfg *config.Config, configPath string) (*Daemon, error) {
	d := &Daemon{
		config:     cfg,
		configPath: configPath,
		stopChan:   make(chan struct{}),
		runCtx:     context.Background(),
	}
	d.status.Store(StatusStopped)

	store, err := runlog.Open(cfg.RunLog)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRunLog, "failed to open run log").
			WithContext("backend", string(cfg.RunLog.Backend)).
			Build()
	}
	d.runLog = runlog.New(store, slog.Default())

	opts := []pipeline.Option{pipeline.WithLogger(slog.Default())}
	if sq, ok := store.(*runlog.SQLiteStore); ok {
		last, lerr := sq.LastRunID(context.Background())
		if lerr != nil {
			slog.Warn("Could not read last run id from run log", logfields.Error(lerr))
		}
		opts = append(opts, pipeline.WithLastRunID(last))
	}

	var metricsHandler http.Handler
	if cfg.Metrics.Enabled {
		reg := prom.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		opts = append(opts, pipeline.WithRecorder(metrics.NewPrometheusRecorder(reg)))
		metricsHandler = metrics.HTTPHandler(reg)
	}

	if cfg.Events.NATSURL != "" {
		pub, perr := events.NewNATSPublisher(cfg.Events)
		if perr != nil {
			// Events are auxiliary; the pipeline runs without them.
			slog.Warn("Run events disabled", logfields.Error(perr))
		} else {
			d.publisher = pub
			opts = append(opts, pipeline.WithPublisher(pub))
		}
	}

	components, err := pipeline.ComponentsFromConfig(cfg)
	if err != nil {
		_ = d.closeResources()
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to prepare pipeline").Build()
	}
	d.orchestrator = pipeline.New(components, d.runLog, opts...)

	d.httpServer = server.New(d.orchestrator, d.runLog, server.Options{
		Address:        cfg.Server.Address,
		MetricsHandler: metricsHandler,
		Logger:         slog.Default(),
	})

	if d.scheduler, err = NewScheduler(); err != nil {
		_ = d.closeResources()
		return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to create scheduler").Build()
	}
	if interval := cfg.ScheduleIntervalDuration(); interval > 0 {
		if d.scheduleJobID, err = d.scheduler.ScheduleEvery(scheduledJobName, interval, d.runScheduled); err != nil {
			_ = d.closeResources()
			return nil, ferrors.WrapError(err, ferrors.CategoryDaemon, "failed to schedule periodic build").Build()
		}
	}

	if configPath != "" {
		if d.configWatcher, err = NewConfigWatcher(configPath, d); err != nil {
			slog.Warn("Config watcher disabled", logfields.Error(err))
		}
	}

	return d, nil
}

// Orchestrator returns the pipeline orchestrator.
func (d *Daemon) Orchestrator() *pipeline.Orchestrator { return d.orchestrator }

// Addr returns the gateway's bound address once running.
func (d *Daemon) Addr() string { return d.httpServer.Addr() }

// Start brings up all components and blocks until ctx is done or Stop is called.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.GetStatus() != StatusStopped {
		d.mu.Unlock()
		return fmt.Errorf("daemon is not in stopped state: %s", d.GetStatus())
	}
	d.status.Store(StatusStarting)
	d.startTime = time.Now()
	d.runCtx = ctx

	slog.Info("Starting buildtrigger daemon",
		logfields.URL(d.config.Source.URL),
		slog.String("address", d.config.Server.Address),
		slog.String("concurrency", string(d.config.Pipeline.Concurrency)))

	if err := d.httpServer.Start(ctx); err != nil {
		d.status.Store(StatusError)
		d.mu.Unlock()
		return fmt.Errorf("failed to start HTTP server: %w", err)
	}

	d.scheduler.Start(ctx)
	if d.scheduleJobID != "" {
		slog.Info("Periodic build scheduled", slog.String("interval", d.config.Schedule.Interval))
	}

	if d.configWatcher != nil {
		if err := d.configWatcher.Start(ctx); err != nil {
			slog.Error("Failed to start config watcher", logfields.Error(err))
		}
	}

	d.status.Store(StatusRunning)
	slog.Info("buildtrigger daemon started", slog.String("address", d.httpServer.Addr()))
	d.mu.Unlock()

	select {
	case <-ctx.Done():
	case <-d.stopChan:
	}
	return nil
}

// Stop gracefully shuts down the daemon.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	current := d.GetStatus()
	if current == StatusStopped || current == StatusStopping {
		return nil
	}
	d.status.Store(StatusStopping)
	slog.Info("Stopping buildtrigger daemon")
	d.stopOnce.Do(func() { close(d.stopChan) })

	var errs []error
	if d.configWatcher != nil {
		if err := d.configWatcher.Stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if err := d.scheduler.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("scheduler shutdown: %w", err))
	}
	if err := d.httpServer.Stop(ctx); err != nil {
		errs = append(errs, err)
	}
	if err := d.closeResources(); err != nil {
		errs = append(errs, err)
	}

	d.status.Store(StatusStopped)
	slog.Info("buildtrigger daemon stopped", slog.Duration("uptime", time.Since(d.startTime)))
	return errors.Join(errs...)
}

func (d *Daemon) closeResources() error {
	var errs []error
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close event publisher: %w", err))
		}
	}
	if d.runLog != nil {
		if err := d.runLog.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close run log: %w", err))
		}
	}
	return errors.Join(errs...)
}

// GetStatus returns the current daemon status.
func (d *Daemon) GetStatus() Status {
	status, ok := d.status.Load().(Status)
	if !ok {
		return StatusError
	}
	return status
}

// GetConfig returns the active configuration.
func (d *Daemon) GetConfig() *config.Config {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.config
}

// ReloadConfig applies a new configuration to the next run. Settings bound at
// startup (listen address, run log backend, events) only log a warning.
func (d *Daemon) ReloadConfig(ctx context.Context, newConfig *config.Config) error {
	components, err := pipeline.ComponentsFromConfig(newConfig)
	if err != nil {
		return err
	}
	// Waits for an active run; done before taking d.mu so status reads stay live.
	if err := d.orchestrator.Reconfigure(ctx, components); err != nil {
		return fmt.Errorf("failed to reconfigure pipeline: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	old := d.config
	d.config = newConfig

	if old.Server.Address != newConfig.Server.Address {
		slog.Warn("Listen address change requires restart", slog.String("address", old.Server.Address))
	}
	if old.RunLog != newConfig.RunLog {
		slog.Warn("Run log backend change requires restart")
	}
	if old.Events != newConfig.Events {
		slog.Warn("Events configuration change requires restart")
	}
	if old.Schedule.Interval != newConfig.Schedule.Interval {
		if err := d.reschedule(newConfig.ScheduleIntervalDuration()); err != nil {
			return err
		}
	}

	slog.Info("Configuration reloaded successfully")
	return nil
}

// reschedule replaces the periodic job. Caller holds d.mu.
func (d *Daemon) reschedule(interval time.Duration) error {
	if d.scheduleJobID != "" {
		if err := d.scheduler.Remove(d.scheduleJobID); err != nil {
			return fmt.Errorf("failed to remove periodic build: %w", err)
		}
		d.scheduleJobID = ""
	}
	if interval <= 0 {
		slog.Info("Periodic build disabled")
		return nil
	}
	id, err := d.scheduler.ScheduleEvery(scheduledJobName, interval, d.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule periodic build: %w", err)
	}
	d.scheduleJobID = id
	slog.Info("Periodic build rescheduled", slog.Duration("interval", interval))
	return nil
}

// runScheduled is invoked by the scheduler on every tick.
func (d *Daemon) runScheduled() {
	d.mu.RLock()
	ctx := d.runCtx
	d.mu.RUnlock()

	res, err := d.orchestrator.TriggerRun(ctx, "schedule")
	switch {
	case errors.Is(err, pipeline.ErrBusy):
		slog.Info("Scheduled build skipped: run in progress", logfields.RunID(res.RunID))
	case err != nil:
		slog.Warn("Scheduled build not started", logfields.Error(err))
	case !res.Succeeded():
		slog.Warn("Scheduled build failed",
			logfields.RunID(res.RunID),
			logfields.Stage(string(res.FailedStage)))
	}
}

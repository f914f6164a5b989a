package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildtrigger/internal/config"
	"git.home.luguber.info/inful/buildtrigger/internal/events"
	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
	"git.home.luguber.info/inful/buildtrigger/internal/metrics"
	"git.home.luguber.info/inful/buildtrigger/internal/observability"
	"git.home.luguber.info/inful/buildtrigger/internal/runlog"
)

// eventTimeout bounds a single lifecycle event publish.
const eventTimeout = 5 * time.Second

// Orchestrator runs the pipeline against a single shared workspace.
type Orchestrator struct {
	// sem is a one-slot semaphore held for the whole run.
	sem        chan struct{}
	components atomic.Pointer[Components]
	nextID     atomic.Uint64

	stateMu      sync.RWMutex
	current      Run
	lastArtifact string

	log       *runlog.RunLog
	recorder  metrics.Recorder
	publisher events.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithRecorder injects a metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPublisher injects a lifecycle event publisher.
func WithPublisher(p events.Publisher) Option {
	return func(o *Orchestrator) {
		if p != nil {
			o.publisher = p
		}
	}
}

// WithLogger sets the process logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithLastRunID continues run numbering after id, used with a persistent run log.
func WithLastRunID(id uint64) Option {
	return func(o *Orchestrator) { o.nextID.Store(id) }
}

// New creates an orchestrator. log may be nil for an in-memory run log.
func New(c Components, log *runlog.RunLog, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sem:       make(chan struct{}, 1),
		current:   Run{Stage: StageIdle},
		log:       log,
		recorder:  metrics.NoopRecorder{},
		publisher: events.NoopPublisher{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = runlog.New(runlog.NewMemoryStore(), o.logger)
	}
	o.components.Store(&c)
	return o
}

// RunLog returns the log the orchestrator appends to.
func (o *Orchestrator) RunLog() *runlog.RunLog { return o.log }

// Settings returns the settings the next run will use.
func (o *Orchestrator) Settings() Settings { return o.components.Load().Settings }

// Current returns a snapshot of the latest run, or an idle run before the first trigger.
func (o *Orchestrator) Current() Run {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	return o.current
}

// Artifact returns the path of the last successful artifact.
func (o *Orchestrator) Artifact() (string, error) {
	o.stateMu.RLock()
	path := o.lastArtifact
	o.stateMu.RUnlock()

	if path == "" {
		return "", ferrors.NotFoundError("no successful build artifact available").Build()
	}
	if _, err := os.Stat(path); err != nil {
		return "", ferrors.WrapError(err, ferrors.CategoryNotFound, "build artifact is no longer available").
			WithContext("path", path).
			Build()
	}
	return path, nil
}

// Reconfigure replaces the stage components. It waits for an active run to finish
// so that a run never observes a partial change.
func (o *Orchestrator) Reconfigure(ctx context.Context, c Components) error {
	select {
	case o.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-o.sem }()
	o.components.Store(&c)
	o.logger.Info("Pipeline reconfigured",
		logfields.URL(c.Settings.SourceURL),
		logfields.Path(c.Settings.Workspace),
		slog.String("concurrency", string(c.Settings.Concurrency)))
	return nil
}

// TriggerRun executes one run synchronously. trigger names the requester for logs.
//
// When a run is already active the reject policy returns ErrBusy immediately with
// Result.Busy set; the queue policy waits for the workspace until ctx is done. A
// stage failure is not an error of TriggerRun: it is reported in the Result.
func (o *Orchestrator) TriggerRun(ctx context.Context, trigger string) (Result, error) {
	c := o.components.Load()

	if err := o.acquire(ctx, c.Settings.Concurrency); err != nil {
		if errors.Is(err, ErrBusy) {
			active := o.Current()
			o.recorder.IncBusyRejection()
			o.logger.Info("Trigger rejected: run in progress",
				logfields.Trigger(trigger),
				logfields.RunID(active.ID),
				logfields.Stage(string(active.Stage)))
			return Result{RunID: active.ID, CorrelationID: active.CorrelationID, Stage: active.Stage, Busy: true}, err
		}
		return Result{}, err
	}
	defer o.release()

	// Components may have been swapped while this trigger was queued.
	c = o.components.Load()
	return o.execute(ctx, c, trigger), nil
}

func (o *Orchestrator) acquire(ctx context.Context, policy config.ConcurrencyPolicy) error {
	if policy == config.ConcurrencyQueue {
		select {
		case o.sem <- struct{}{}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	select {
	case o.sem <- struct{}{}:
		return nil
	default:
		return ErrBusy
	}
}

func (o *Orchestrator) release() { <-o.sem }

type stageFunc func(ctx context.Context) error

func (o *Orchestrator) execute(ctx context.Context, c *Components, trigger string) Result {
	run := Run{
		ID:            o.nextID.Add(1),
		CorrelationID: uuid.NewString(),
		Trigger:       trigger,
		Stage:         StageFetching,
		StartedAt:     o.now(),
	}
	logger := o.logger.With(logfields.RunID(run.ID), logfields.CorrelationID(run.CorrelationID))
	ctx = observability.WithRun(ctx, run.ID, run.CorrelationID)

	o.stateMu.Lock()
	o.current = run
	o.stateMu.Unlock()

	o.recorder.SetRunActive(true)
	defer o.recorder.SetRunActive(false)

	logger.Info("Pipeline run started", logfields.Trigger(trigger), logfields.URL(c.Settings.SourceURL))
	o.log.Info(ctx, run.ID, "run", fmt.Sprintf("run started (trigger: %s, correlation: %s)", trigger, run.CorrelationID))
	o.emit(ctx, logger, run, events.RunStarted)

	s := c.Settings
	var artifactPath string
	stages := []struct {
		stage Stage
		fn    stageFunc
	}{
		{StageFetching, func(ctx context.Context) error { return c.Fetcher.Fetch(ctx, s.SourceURL, s.Workspace) }},
		{StageBuilding, func(ctx context.Context) error { return c.Runner.Run(ctx, s.Workspace) }},
		{StagePackaging, func(ctx context.Context) error {
			p, err := c.Packager.Package(ctx, s.Workspace, s.ArtifactDir)
			artifactPath = p
			return err
		}},
	}

	for _, st := range stages {
		run = o.transition(run, st.stage)
		if err := o.runStage(ctx, logger, run, st.stage, s.StageTimeout, st.fn); err != nil {
			return o.fail(ctx, logger, run, st.stage, err)
		}
	}

	return o.succeed(ctx, logger, run, artifactPath)
}

func (o *Orchestrator) transition(run Run, stage Stage) Run {
	run.Stage = stage
	o.stateMu.Lock()
	o.current = run
	o.stateMu.Unlock()
	return run
}

func (o *Orchestrator) runStage(ctx context.Context, logger *slog.Logger, run Run, stage Stage, timeout time.Duration, fn stageFunc) error {
	o.log.Info(ctx, run.ID, string(stage), string(stage)+" started")
	logger.Debug("Stage started", logfields.Stage(string(stage)))

	stageCtx := observability.WithStage(ctx, string(stage))
	if timeout > 0 {
		var cancel context.CancelFunc
		stageCtx, cancel = context.WithTimeout(stageCtx, timeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(stageCtx)
	elapsed := time.Since(start)
	o.recorder.ObserveStageDuration(string(stage), elapsed)

	if err == nil {
		o.recorder.IncStageResult(string(stage), metrics.ResultSuccess)
		o.log.Info(ctx, run.ID, string(stage), fmt.Sprintf("%s completed in %s", stage, elapsed.Round(time.Millisecond)))
		logger.Info("Stage completed", logfields.Stage(string(stage)), logfields.Duration(elapsed))
		return nil
	}

	// The stage deadline expired while the caller's context is still live.
	if ctx.Err() == nil && errors.Is(stageCtx.Err(), context.DeadlineExceeded) {
		o.recorder.IncStageResult(string(stage), metrics.ResultTimeout)
		return &TimeoutError{Stage: stage, Timeout: timeout, Err: err}
	}
	if ctx.Err() != nil {
		o.recorder.IncStageResult(string(stage), metrics.ResultCanceled)
		return err
	}
	o.recorder.IncStageResult(string(stage), metrics.ResultFailed)
	return err
}

func (o *Orchestrator) fail(ctx context.Context, logger *slog.Logger, run Run, stage Stage, err error) Result {
	var te *TimeoutError
	run.Stage = StageFailed
	run.FailedStage = stage
	run.FailureMessage = err.Error()
	run.Timeout = errors.As(err, &te)
	run.EndedAt = o.now()

	o.stateMu.Lock()
	o.current = run
	o.stateMu.Unlock()

	o.log.Error(ctx, run.ID, string(stage), run.FailureMessage)
	logger.Error("Pipeline run failed",
		logfields.Stage(string(stage)),
		slog.Bool("timeout", run.Timeout),
		logfields.Duration(run.Duration()),
		logfields.Error(err))

	o.recorder.ObserveRunDuration(run.Duration())
	o.recorder.IncRunOutcome(metrics.OutcomeFailed)
	o.emit(ctx, logger, run, events.RunFailed)
	return resultOf(run, err)
}

func (o *Orchestrator) succeed(ctx context.Context, logger *slog.Logger, run Run, artifactPath string) Result {
	run.Stage = StageSucceeded
	run.ArtifactPath = artifactPath
	run.EndedAt = o.now()

	o.stateMu.Lock()
	o.current = run
	o.lastArtifact = artifactPath
	o.stateMu.Unlock()

	o.log.Info(ctx, run.ID, string(StageSucceeded), "artifact ready at "+artifactPath)
	logger.Info("Pipeline run succeeded", logfields.Path(artifactPath), logfields.Duration(run.Duration()))

	o.recorder.ObserveRunDuration(run.Duration())
	o.recorder.IncRunOutcome(metrics.OutcomeSucceeded)
	o.emit(ctx, logger, run, events.RunSucceeded)
	return resultOf(run, nil)
}

func (o *Orchestrator) emit(ctx context.Context, logger *slog.Logger, run Run, t events.Type) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventTimeout)
	defer cancel()

	err := o.publisher.Publish(ctx, events.RunEvent{
		Type:          t,
		RunID:         run.ID,
		CorrelationID: run.CorrelationID,
		Trigger:       run.Trigger,
		Stage:         string(run.Stage),
		FailedStage:   string(run.FailedStage),
		Message:       run.FailureMessage,
		Timeout:       run.Timeout,
		ArtifactPath:  run.ArtifactPath,
		Timestamp:     o.now(),
	})
	if err != nil {
		logger.Warn("Failed to publish run event", slog.String("event", string(t)), logfields.Error(err))
	}
}

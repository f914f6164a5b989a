package runlog

import (
	"context"
	"log/slog"
	"time"

	ferrors "git.home.luguber.info/inful/buildtrigger/internal/foundation/errors"
	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
)

// RunLog is the append-only record of pipeline events.
type RunLog struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// New wraps store. logger is the secondary sink for append failures; nil uses slog.Default().
func New(store Store, logger *slog.Logger) *RunLog {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &RunLog{store: store, logger: logger, now: time.Now}
}

// Store returns the underlying storage.
func (l *RunLog) Store() Store { return l.store }

// Append records e. It never fails the caller.
func (l *RunLog) Append(ctx context.Context, e Entry) {
	if e.Timestamp.IsZero() {
		e.Timestamp = l.now()
	}
	if e.Severity == "" {
		e.Severity = SeverityInfo
	}
	if _, err := l.store.Append(context.WithoutCancel(ctx), e); err != nil {
		l.logger.Warn("Run log append failed; entry dropped",
			logfields.RunID(e.RunID),
			logfields.Stage(e.Stage),
			slog.String("message", e.Message),
			logfields.Error(err))
	}
}

// Info appends an informational entry.
func (l *RunLog) Info(ctx context.Context, runID uint64, stage, message string) {
	l.Append(ctx, Entry{Severity: SeverityInfo, RunID: runID, Stage: stage, Message: message})
}

// Warn appends a warning entry.
func (l *RunLog) Warn(ctx context.Context, runID uint64, stage, message string) {
	l.Append(ctx, Entry{Severity: SeverityWarn, RunID: runID, Stage: stage, Message: message})
}

// Error appends a failure entry.
func (l *RunLog) Error(ctx context.Context, runID uint64, stage, message string) {
	l.Append(ctx, Entry{Severity: SeverityError, RunID: runID, Stage: stage, Message: message})
}

// ReadAll returns the full history to date.
func (l *RunLog) ReadAll(ctx context.Context) ([]Entry, error) {
	entries, err := l.store.ReadAll(ctx)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryRunLog, "failed to read run log").Build()
	}
	return entries, nil
}

// Close closes the underlying store.
func (l *RunLog) Close() error { return l.store.Close() }

// Package observability carries run identity through a context so that log
// lines from stage implementations are attributed to their run.
package observability

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildtrigger/internal/logfields"
)

// LogContext holds structured logging context information.
type LogContext struct {
	RunID         uint64
	CorrelationID string
	Stage         string
}

type logContextKeyType string

const logContextKey logContextKeyType = "log-context"

// WithRun adds the run identity to the context.
func WithRun(ctx context.Context, runID uint64, correlationID string) context.Context {
	lc := extractLogContext(ctx)
	lc.RunID = runID
	lc.CorrelationID = correlationID
	return context.WithValue(ctx, logContextKey, lc)
}

// WithStage adds a stage name to the context.
func WithStage(ctx context.Context, stage string) context.Context {
	lc := extractLogContext(ctx)
	lc.Stage = stage
	return context.WithValue(ctx, logContextKey, lc)
}

// GetContext returns the structured log context from the provided context.
func GetContext(ctx context.Context) LogContext {
	return extractLogContext(ctx)
}

func extractLogContext(ctx context.Context) LogContext {
	if lc, ok := ctx.Value(logContextKey).(LogContext); ok {
		return lc
	}
	return LogContext{}
}

func getLogAttrs(ctx context.Context) []slog.Attr {
	lc := extractLogContext(ctx)
	attrs := make([]slog.Attr, 0, 3)
	if lc.RunID != 0 {
		attrs = append(attrs, logfields.RunID(lc.RunID))
	}
	if lc.CorrelationID != "" {
		attrs = append(attrs, logfields.CorrelationID(lc.CorrelationID))
	}
	if lc.Stage != "" {
		attrs = append(attrs, logfields.Stage(lc.Stage))
	}
	return attrs
}

func logContext(ctx context.Context, level slog.Level, msg string, attrs []slog.Attr) {
	slog.Default().LogAttrs(ctx, level, msg, append(getLogAttrs(ctx), attrs...)...)
}

// InfoContext logs an info message with context information.
func InfoContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelInfo, msg, attrs)
}

// DebugContext logs a debug message with context information.
func DebugContext(ctx context.Context, msg string, attrs ...slog.Attr) {
	logContext(ctx, slog.LevelDebug, msg, attrs)
}

// Package events publishes pipeline run lifecycle events.
package events

import (
	"context"
	"time"
)

// Type names a lifecycle event.
type Type string

const (
	RunStarted   Type = "run.started"
	RunSucceeded Type = "run.succeeded"
	RunFailed    Type = "run.failed"
)

// RunEvent is the payload published for each lifecycle transition.
type RunEvent struct {
	Type          Type      `json:"type"`
	RunID         uint64    `json:"run_id"`
	CorrelationID string    `json:"correlation_id"`
	Trigger       string    `json:"trigger,omitempty"`
	Stage         string    `json:"stage"`
	FailedStage   string    `json:"failed_stage,omitempty"`
	Message       string    `json:"message,omitempty"`
	Timeout       bool      `json:"timeout,omitempty"`
	ArtifactPath  string    `json:"artifact_path,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// Publisher emits run events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev RunEvent) error
	Close() error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, RunEvent) error { return nil }
func (NoopPublisher) Close() error                            { return nil }

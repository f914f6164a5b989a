package server

import (
	"time"

	"git.home.luguber.info/inful/buildtrigger/internal/pipeline"
)

// BuildResponse is the body of POST /build.
type BuildResponse struct {
	Status        string `json:"status"`
	Message       string `json:"message"`
	RunID         uint64 `json:"run_id"`
	CorrelationID string `json:"correlation_id,omitempty"`
	Stage         string `json:"stage"`
	FailedStage   string `json:"failed_stage,omitempty"`
	Timeout       bool   `json:"timeout,omitempty"`
	Artifact      string `json:"artifact,omitempty"`
}

// ErrorsResponse is the body of GET /errors.
type ErrorsResponse struct {
	Errors string `json:"errors"`
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Run               pipeline.Run `json:"run"`
	ArtifactAvailable bool         `json:"artifact_available"`
	Concurrency       string       `json:"concurrency"`
	Timestamp         time.Time    `json:"timestamp"`
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status    string    `json:"status"`
	Uptime    float64   `json:"uptime"`
	Timestamp time.Time `json:"timestamp"`
}
